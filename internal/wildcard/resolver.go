package wildcard

import (
	"fmt"
	"strings"

	"batchforge/internal/domain"
)

// Result carries the resolved prompts plus non-fatal warnings, one per
// placeholder name that had no backing pool.
type Result struct {
	Prompts  []string
	Warnings []string
}

// segment is one parsed piece of a template: literal text or a placeholder.
type segment struct {
	text string
	name string
}

// Resolve expands the template count times. Each __NAME__ occurrence draws
// independently from the matching pool; names without a pool stay verbatim
// and are reported as warnings. A template without placeholders is repeated
// as-is with no pool interaction.
func Resolve(template string, count int, pools map[string]*Pool) (*Result, error) {
	segs, err := parseTemplate(template)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	if count <= 0 {
		return res, nil
	}

	hasPlaceholder := false
	missing := map[string]bool{}
	for _, s := range segs {
		if s.name == "" {
			continue
		}
		hasPlaceholder = true
		if _, ok := pools[s.name]; !ok && !missing[s.name] {
			missing[s.name] = true
			res.Warnings = append(res.Warnings, fmt.Sprintf("no wildcard pool for __%s__", s.name))
		}
	}

	if !hasPlaceholder {
		res.Prompts = make([]string, count)
		for i := range res.Prompts {
			res.Prompts[i] = template
		}
		return res, nil
	}

	res.Prompts = make([]string, 0, count)
	var b strings.Builder
	for i := 0; i < count; i++ {
		b.Reset()
		for _, s := range segs {
			if s.name == "" {
				b.WriteString(s.text)
				continue
			}
			if pool, ok := pools[s.name]; ok {
				b.WriteString(pool.Draw())
			} else {
				b.WriteString("__")
				b.WriteString(s.name)
				b.WriteString("__")
			}
		}
		res.Prompts = append(res.Prompts, b.String())
	}
	return res, nil
}

// HasPlaceholders reports whether the template contains at least one
// well-formed placeholder. Malformed templates report true so that Resolve
// gets the chance to surface the parse error.
func HasPlaceholders(template string) bool {
	segs, err := parseTemplate(template)
	if err != nil {
		return true
	}
	for _, s := range segs {
		if s.name != "" {
			return true
		}
	}
	return false
}

// parseTemplate splits a template into literal and placeholder segments.
// A trailing __ with no closing marker is the one fatal syntax error; a
// delimited token that is not a valid name stays literal text.
func parseTemplate(t string) ([]segment, error) {
	var segs []segment
	i := 0
	for i < len(t) {
		open := strings.Index(t[i:], "__")
		if open < 0 {
			segs = append(segs, segment{text: t[i:]})
			break
		}
		open += i
		rest := t[open+2:]
		end := strings.Index(rest, "__")
		if end < 0 {
			return nil, fmt.Errorf("unterminated placeholder at offset %d: %w", open, domain.ErrInvalidTemplate)
		}
		name := rest[:end]
		stop := open + 2 + end + 2
		if !validName(name) {
			segs = append(segs, segment{text: t[i:stop]})
			i = stop
			continue
		}
		if open > i {
			segs = append(segs, segment{text: t[i:open]})
		}
		segs = append(segs, segment{name: name})
		i = stop
	}
	return segs, nil
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}
