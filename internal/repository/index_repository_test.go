package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-ticket-core/internal/observability"
	"github.com/spec-kit/support-ticket-core/internal/persistence"
)

func newIndexRepo(maxEntries int) (IndexRepository, *persistence.MemoryStore) {
	store := persistence.NewMemoryStore(0)
	return NewIndexRepository(store, maxEntries, zap.NewNop(), observability.NewMetrics()), store
}

func TestIndexAppendAndEntries(t *testing.T) {
	ctx := context.Background()
	repo, _ := newIndexRepo(500)

	day := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := repo.Append(ctx, fmt.Sprintf("20260823-10%04d", i), day); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	entries, err := repo.Entries(ctx, ShardKey(day))
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	if entries[0].ID != "20260823-100000" {
		t.Fatalf("oldest entry = %s", entries[0].ID)
	}
}

func TestIndexCapEvictsOldest(t *testing.T) {
	ctx := context.Background()
	repo, _ := newIndexRepo(5)

	day := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		if err := repo.Append(ctx, fmt.Sprintf("id-%d", i), day); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	entries, err := repo.Entries(ctx, ShardKey(day))
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("entries = %d, want cap of 5", len(entries))
	}
	if entries[0].ID != "id-3" || entries[4].ID != "id-7" {
		t.Fatalf("expected oldest evicted, got %v", entries)
	}
}

func TestIndexShardsMetadata(t *testing.T) {
	ctx := context.Background()
	repo, _ := newIndexRepo(500)

	day1 := time.Date(2026, 8, 22, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC)
	if err := repo.Append(ctx, "a", day1); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := repo.Append(ctx, "b", day2); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := repo.Append(ctx, "c", day2); err != nil {
		t.Fatalf("append: %v", err)
	}

	shards, err := repo.Shards(ctx)
	if err != nil {
		t.Fatalf("shards: %v", err)
	}
	if len(shards) != 2 {
		t.Fatalf("shards = %d, want 2", len(shards))
	}
	// Newest first.
	if shards[0].Key != ShardKey(day2) || shards[0].EntryCount != 2 {
		t.Fatalf("first shard = %+v", shards[0])
	}
}

func TestIndexCorruptShardTreatedAsEmpty(t *testing.T) {
	ctx := context.Background()
	repo, store := newIndexRepo(500)

	day := time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC)
	if err := store.Set(ctx, ShardKey(day), "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	entries, err := repo.Entries(ctx, ShardKey(day))
	if err != nil {
		t.Fatalf("corrupt shard must not propagate: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries = %v, want empty", entries)
	}

	// Appending over a corrupt shard resets it.
	if err := repo.Append(ctx, "fresh", day); err != nil {
		t.Fatalf("append: %v", err)
	}
	entries, _ = repo.Entries(ctx, ShardKey(day))
	if len(entries) != 1 || entries[0].ID != "fresh" {
		t.Fatalf("entries = %v", entries)
	}
}

func TestIndexCleanupRetention(t *testing.T) {
	ctx := context.Background()
	repo, store := newIndexRepo(500)

	old := time.Now().UTC().AddDate(0, 0, -120)
	recent := time.Now().UTC()
	if err := repo.Append(ctx, "old-ticket", old); err != nil {
		t.Fatalf("append old: %v", err)
	}
	if err := repo.Append(ctx, "new-ticket", recent); err != nil {
		t.Fatalf("append recent: %v", err)
	}

	removed, err := repo.Cleanup(ctx, 90*24*time.Hour)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	if _, ok, _ := store.Get(ctx, ShardKey(old)); ok {
		t.Fatal("expired shard should be deleted")
	}
	shards, _ := repo.Shards(ctx)
	if len(shards) != 1 || shards[0].Key != ShardKey(recent) {
		t.Fatalf("shards = %+v", shards)
	}
}
