package storage

import (
	"bytes"
	"context"
	"testing"
)

func TestWriteAndReadRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	key, err := store.Write(context.Background(), "generated/batch/job.png", []byte("payload"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if key != "generated/batch/job.png" {
		t.Fatalf("key = %q", key)
	}

	data, err := store.Read(context.Background(), key)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(data, []byte("payload")) {
		t.Fatalf("data = %q", data)
	}
}

func TestWriteRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	for _, key := range []string{"", "../escape.png", "a/../../escape.png"} {
		if _, err := store.Write(context.Background(), key, []byte("x")); err == nil {
			t.Fatalf("key %q should be rejected", key)
		}
	}
}

func TestRemoveDeletesArtifact(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	key, err := store.Write(context.Background(), "generated/b/j.png", []byte("payload"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := store.Remove(context.Background(), key); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := store.Read(context.Background(), key); err == nil {
		t.Fatalf("removed key should not be readable")
	}
	// Removing an absent key is a no-op.
	if err := store.Remove(context.Background(), key); err != nil {
		t.Fatalf("Remove absent key: %v", err)
	}
}

func TestReadMissingKey(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := store.Read(context.Background(), "nope.png"); err == nil {
		t.Fatalf("expected error for missing key")
	}
}
