package wildcard

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"batchforge/internal/domain"
)

func TestResolveLiteralTemplate(t *testing.T) {
	res, err := Resolve("a plain cat", 4, nil)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if len(res.Prompts) != 4 {
		t.Fatalf("prompt count = %d, want 4", len(res.Prompts))
	}
	for i, p := range res.Prompts {
		if p != "a plain cat" {
			t.Fatalf("prompt %d = %q", i, p)
		}
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", res.Warnings)
	}
}

func TestResolveDrawsFromPool(t *testing.T) {
	pools := map[string]*Pool{
		"STYLE": NewPool("STYLE", []string{"realistic", "anime"}, WithSeed(7)),
	}
	res, err := Resolve("a __STYLE__ cat", 5, pools)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if len(res.Prompts) != 5 {
		t.Fatalf("prompt count = %d, want 5", len(res.Prompts))
	}

	counts := map[string]int{}
	for _, p := range res.Prompts {
		switch {
		case p == "a realistic cat":
			counts["realistic"]++
		case p == "a anime cat":
			counts["anime"]++
		default:
			t.Fatalf("unexpected prompt %q", p)
		}
	}
	if counts["realistic"] < 2 || counts["anime"] < 2 {
		t.Fatalf("both values should appear at least twice, got %v", counts)
	}
}

func TestResolveMissingPoolIsWarningNotError(t *testing.T) {
	res, err := Resolve("a __STYLE__ cat in __PLACE__", 2, map[string]*Pool{
		"STYLE": NewPool("STYLE", []string{"fluffy"}, WithSeed(1)),
	})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	for _, p := range res.Prompts {
		if p != "a fluffy cat in __PLACE__" {
			t.Fatalf("unexpected prompt %q", p)
		}
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "__PLACE__") {
		t.Fatalf("expected one warning about __PLACE__, got %v", res.Warnings)
	}
}

func TestResolveUnterminatedPlaceholder(t *testing.T) {
	if _, err := Resolve("a __STYLE cat", 1, nil); !errors.Is(err, domain.ErrInvalidTemplate) {
		t.Fatalf("expected ErrInvalidTemplate, got %v", err)
	}
}

func TestResolveRepeatedNameDrawsIndependently(t *testing.T) {
	pools := map[string]*Pool{
		"COLOR": NewPool("COLOR", []string{"red", "blue"}, WithSeed(3)),
	}
	res, err := Resolve("__COLOR__ and __COLOR__", 1, pools)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	parts := strings.Split(res.Prompts[0], " and ")
	if len(parts) != 2 {
		t.Fatalf("unexpected prompt %q", res.Prompts[0])
	}
	// Two draws within one bag pass over a two-value pool never repeat.
	if parts[0] == parts[1] {
		t.Fatalf("occurrences should draw independently without repeat, got %q", res.Prompts[0])
	}
}

func TestSmartCycleSpreadsValuesEvenly(t *testing.T) {
	values := []string{"a", "b", "c", "d", "e", "f"}
	pool := NewPool("X", values, WithSeed(42))

	counts := map[string]int{}
	prev := ""
	for i := 0; i < 2*len(values); i++ {
		v := pool.Draw()
		if v == prev {
			t.Fatalf("draw %d repeated %q immediately", i, v)
		}
		counts[v]++
		prev = v
	}
	for _, v := range values {
		if counts[v] != 2 {
			t.Fatalf("value %q drawn %d times over two full passes, want 2", v, counts[v])
		}
	}
}

func TestSeededDrawsAreReproducible(t *testing.T) {
	values := []string{"a", "b", "c", "d"}
	p1 := NewPool("X", values, WithSeed(99))
	p2 := NewPool("X", values, WithSeed(99))
	for i := 0; i < 20; i++ {
		if v1, v2 := p1.Draw(), p2.Draw(); v1 != v2 {
			t.Fatalf("draw %d diverged: %q vs %q", i, v1, v2)
		}
	}
}

func TestSingleValuePoolAlwaysRepeats(t *testing.T) {
	pool := NewPool("X", []string{"only"})
	for i := 0; i < 5; i++ {
		if v := pool.Draw(); v != "only" {
			t.Fatalf("draw %d = %q", i, v)
		}
	}
}

func TestHasPlaceholders(t *testing.T) {
	cases := []struct {
		template string
		want     bool
	}{
		{"plain text", false},
		{"a __STYLE__ cat", true},
		{"broken __STYLE", true}, // malformed: let Resolve surface the error
		{"", false},
	}
	for _, tc := range cases {
		if got := HasPlaceholders(tc.template); got != tc.want {
			t.Fatalf("HasPlaceholders(%q) = %v, want %v", tc.template, got, tc.want)
		}
	}
}

func TestResolveZeroCount(t *testing.T) {
	res, err := Resolve("a __STYLE__ cat", 0, nil)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if len(res.Prompts) != 0 {
		t.Fatalf("expected no prompts, got %d", len(res.Prompts))
	}
}

func TestCycleLengthCeiling(t *testing.T) {
	values := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		values = append(values, fmt.Sprintf("v%d", i))
	}
	pool := NewPool("X", values, WithSeed(5), WithCycleLength(4))

	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		v := pool.Draw()
		if seen[v] {
			t.Fatalf("value %q repeated within one bag pass", v)
		}
		seen[v] = true
	}
}
