package repository

import "time"

// Key namespaces in the persistent store. Everything the subsystem owns
// lives under one of these prefixes.
const (
	TicketKeyPrefix     = "ticket:"
	ThreadKeyPrefix     = "thread:"
	CounterKeyPrefix    = "counter:"
	IndexShardKeyPrefix = "index:shard:"
	IndexMetaKey        = "index:meta"
	CounterLockPrefix   = "lock:counter:"
)

// ShardDateFormat is the calendar-day bucket format for index shards.
const ShardDateFormat = "2006-01-02"

// TicketKey returns the store key for a ticket record.
func TicketKey(id string) string {
	return TicketKeyPrefix + id
}

// ThreadKey returns the store key for a thread-to-ticket mapping.
func ThreadKey(threadID string) string {
	return ThreadKeyPrefix + threadID
}

// ShardKey returns the index shard key for a creation date.
func ShardKey(t time.Time) string {
	return IndexShardKeyPrefix + t.UTC().Format(ShardDateFormat)
}
