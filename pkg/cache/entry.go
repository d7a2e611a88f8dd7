package cache

import (
	"time"
)

// Entity is a cacheable domain value. EntityID must be unique within the
// value's kind.
type Entity interface {
	EntityID() string
}

// Entry is a cached value joined with its metadata at read time. It is never
// persisted as such.
type Entry[T any] struct {
	// Value is the cached payload.
	Value T

	// LastUpdate is when the value was last written to the cache.
	LastUpdate time.Time
}

// Age returns how long ago the entry was written.
// Returns 0 for entries stamped in the future.
func (e Entry[T]) Age(now time.Time) time.Duration {
	age := now.Sub(e.LastUpdate)
	if age < 0 {
		return 0
	}
	return age
}

// IsStale returns true if the entry is older than ttl.
func (e Entry[T]) IsStale(now time.Time, ttl time.Duration) bool {
	return e.Age(now) > ttl
}
