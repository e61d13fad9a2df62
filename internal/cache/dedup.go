package cache

import "time"

// DedupCache remembers recently seen inbound event identifiers so that
// redelivered messages are processed at most once per TTL window. It is
// process-local and bounds its own memory through the underlying LRU.
type DedupCache struct {
	seen *LRUCache[struct{}]
}

// NewDedupCache creates a dedup cache holding at most maxSize identifiers,
// each forgotten after ttl.
func NewDedupCache(maxSize int, ttl time.Duration) *DedupCache {
	return &DedupCache{seen: NewLRUCache[struct{}](maxSize, ttl)}
}

// WithClock replaces the time source. Intended for tests.
func (d *DedupCache) WithClock(now func() time.Time) *DedupCache {
	d.seen.WithClock(now)
	return d
}

// Seen records id and reports whether it was already present. The first
// call for an id within the TTL returns false; redeliveries return true.
func (d *DedupCache) Seen(id string) bool {
	return d.seen.CheckAndSet(id, struct{}{})
}

// Forget drops id so a redelivery is processed again. Used when the
// work keyed by id did not complete after all.
func (d *DedupCache) Forget(id string) {
	d.seen.Delete(id)
}

// Size returns the number of identifiers currently remembered.
func (d *DedupCache) Size() int {
	return d.seen.Size()
}
