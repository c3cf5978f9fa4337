package repository

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-ticket-core/internal/observability"
	"github.com/spec-kit/support-ticket-core/internal/persistence"
)

// IndexEntry is a lightweight pointer into one date-bucketed shard.
type IndexEntry struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// ShardInfo describes one known shard, tracked in the metadata record so
// shards can be discovered without a key scan.
type ShardInfo struct {
	Key         string    `json:"key"`
	LastUpdated time.Time `json:"last_updated"`
	EntryCount  int       `json:"entry_count"`
}

// IndexRepository maintains the date-bucketed ticket index. Shards are
// created lazily on the first ticket of a day and capped at the most
// recent maxEntries pointers.
type IndexRepository interface {
	Append(ctx context.Context, id string, createdAt time.Time) error
	Entries(ctx context.Context, shardKey string) ([]IndexEntry, error)
	// Shards returns known shards, newest first.
	Shards(ctx context.Context) ([]ShardInfo, error)
	// Cleanup deletes shards whose day is older than the horizon and
	// stops early once ctx is done. It returns how many shards it removed.
	Cleanup(ctx context.Context, horizon time.Duration) (int, error)
}

type indexRepository struct {
	store      persistence.Store
	maxEntries int
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewIndexRepository instantiates the repository with the per-shard cap.
func NewIndexRepository(store persistence.Store, maxEntries int, logger *zap.Logger, metrics *observability.Metrics) IndexRepository {
	return &indexRepository{store: store, maxEntries: maxEntries, logger: logger, metrics: metrics}
}

func (r *indexRepository) Append(ctx context.Context, id string, createdAt time.Time) error {
	shardKey := ShardKey(createdAt)
	entries, err := r.Entries(ctx, shardKey)
	if err != nil {
		return err
	}

	entries = append(entries, IndexEntry{ID: id, CreatedAt: createdAt})
	if len(entries) > r.maxEntries {
		entries = entries[len(entries)-r.maxEntries:]
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, shardKey, string(raw)); err != nil {
		return err
	}
	return r.touchMeta(ctx, shardKey, len(entries))
}

func (r *indexRepository) Entries(ctx context.Context, shardKey string) ([]IndexEntry, error) {
	raw, ok, err := r.store.Get(ctx, shardKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var entries []IndexEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		// A shard that fails to deserialize is treated as empty rather
		// than blocking every read that touches its day.
		r.logger.Warn("index shard corrupt, treating as empty",
			zap.String("key", shardKey), zap.Error(err))
		r.metrics.RecordCorruptionReset()
		return nil, nil
	}
	return entries, nil
}

func (r *indexRepository) Shards(ctx context.Context) ([]ShardInfo, error) {
	meta, err := r.loadMeta(ctx)
	if err != nil {
		return nil, err
	}
	shards := make([]ShardInfo, 0, len(meta))
	for _, info := range meta {
		shards = append(shards, info)
	}
	sort.Slice(shards, func(i, j int) bool { return shards[i].Key > shards[j].Key })
	return shards, nil
}

func (r *indexRepository) Cleanup(ctx context.Context, horizon time.Duration) (int, error) {
	meta, err := r.loadMeta(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().UTC().Add(-horizon).Format(ShardDateFormat)

	removed := 0
	for key := range meta {
		if err := ctx.Err(); err != nil {
			// Budget expired; save progress and let the next sweep
			// pick up the remainder.
			break
		}
		day := strings.TrimPrefix(key, IndexShardKeyPrefix)
		if day >= cutoff {
			continue
		}
		if err := r.store.Delete(ctx, key); err != nil {
			return removed, err
		}
		delete(meta, key)
		removed++
		r.logger.Info("deleted expired index shard", zap.String("key", key))
	}
	if removed > 0 {
		if err := r.saveMeta(context.WithoutCancel(ctx), meta); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

func (r *indexRepository) touchMeta(ctx context.Context, shardKey string, count int) error {
	meta, err := r.loadMeta(ctx)
	if err != nil {
		return err
	}
	meta[shardKey] = ShardInfo{Key: shardKey, LastUpdated: time.Now().UTC(), EntryCount: count}
	return r.saveMeta(ctx, meta)
}

func (r *indexRepository) loadMeta(ctx context.Context) (map[string]ShardInfo, error) {
	raw, ok, err := r.store.Get(ctx, IndexMetaKey)
	if err != nil {
		return nil, err
	}
	meta := make(map[string]ShardInfo)
	if !ok {
		return meta, nil
	}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		r.logger.Warn("index metadata corrupt, resetting", zap.Error(err))
		r.metrics.RecordCorruptionReset()
		return make(map[string]ShardInfo), nil
	}
	return meta, nil
}

func (r *indexRepository) saveMeta(ctx context.Context, meta map[string]ShardInfo) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, IndexMetaKey, string(raw))
}
