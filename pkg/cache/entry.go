package cache

import (
	"time"

	"github.com/Sternrassler/menu-bot/pkg/catalog"
)

// Entry is the cached catalog. Only complete snapshots become entries.
type Entry struct {
	// Snapshot is the catalog served to callers. Snapshot.FetchedAt is when
	// the refresh that produced it finished.
	Snapshot catalog.Snapshot

	// Generation is the cache generation this entry belongs to.
	Generation uint64
}

// Age returns how long ago the entry was fetched.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.Snapshot.FetchedAt)
}

// IsFresh reports whether the entry can be served without a refetch.
func (e *Entry) IsFresh(now time.Time, ttl time.Duration) bool {
	if e == nil || !e.Snapshot.Complete() {
		return false
	}
	return e.Age(now) < ttl
}

// TTL returns the time left in the freshness window.
// Returns 0 if already stale.
func (e *Entry) TTL(now time.Time, ttl time.Duration) time.Duration {
	left := ttl - e.Age(now)
	if left < 0 {
		return 0
	}
	return left
}
