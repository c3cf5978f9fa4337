package persistence

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	if err := store.Set(ctx, "ticket:a", "1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	val, ok, err := store.Get(ctx, "ticket:a")
	if err != nil || !ok || val != "1" {
		t.Fatalf("get = (%q, %v, %v)", val, ok, err)
	}

	if store.Len() != 1 {
		t.Fatalf("len = %d, want 1", store.Len())
	}

	if err := store.Delete(ctx, "ticket:a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, ok, _ = store.Get(ctx, "ticket:a")
	if ok {
		t.Fatal("key should be gone after delete")
	}
	if store.Len() != 0 {
		t.Fatalf("len = %d after delete, want 0", store.Len())
	}
}

func TestMemoryStoreKeysPrefix(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	for _, key := range []string{"ticket:b", "ticket:a", "counter:1", "index:meta"} {
		if err := store.Set(ctx, key, "x"); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}

	keys, err := store.Keys(ctx, "ticket:")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "ticket:a" || keys[1] != "ticket:b" {
		t.Fatalf("keys = %v, want sorted ticket keys", keys)
	}
}

func TestMemoryStoreValueSizeLimit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(16)

	if err := store.Set(ctx, "k", strings.Repeat("x", 17)); !errors.Is(err, ErrValueTooLarge) {
		t.Fatalf("expected ErrValueTooLarge, got %v", err)
	}
	if err := store.Set(ctx, "k", strings.Repeat("x", 16)); err != nil {
		t.Fatalf("value at the limit should be accepted: %v", err)
	}
}
