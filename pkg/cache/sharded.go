// Package cache provides a sharded in-memory TTL cache. The engine uses it
// to reuse freshly fetched bar histories when a monitor pass follows a scan
// within the same interval.
package cache

import (
	"hash/fnv"
	"sync"
	"time"
)

const numShards = 16

// Sharded is a string-keyed cache split across shards to keep lock
// contention low when many symbols are read concurrently.
type Sharded[V any] struct {
	ttl    time.Duration
	shards [numShards]*shard[V]
}

type shard[V any] struct {
	mu    sync.RWMutex
	items map[string]entry[V]
}

type entry[V any] struct {
	value     V
	updatedAt time.Time
}

// New creates a sharded cache whose entries expire after ttl. A zero ttl
// never expires entries.
func New[V any](ttl time.Duration) *Sharded[V] {
	c := &Sharded[V]{ttl: ttl}
	for i := 0; i < numShards; i++ {
		c.shards[i] = &shard[V]{items: make(map[string]entry[V])}
	}
	return c
}

func (c *Sharded[V]) getShard(key string) *shard[V] {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%numShards]
}

// Set stores a value under key.
func (c *Sharded[V]) Set(key string, value V) {
	s := c.getShard(key)
	s.mu.Lock()
	s.items[key] = entry[V]{value: value, updatedAt: time.Now()}
	s.mu.Unlock()
}

// Get retrieves a value if present and not expired.
func (c *Sharded[V]) Get(key string) (V, bool) {
	s := c.getShard(key)
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	if !ok || (c.ttl > 0 && time.Since(e.updatedAt) > c.ttl) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Delete removes a key.
func (c *Sharded[V]) Delete(key string) {
	s := c.getShard(key)
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// Len returns total live items across all shards, expired entries included.
func (c *Sharded[V]) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.RLock()
		total += len(s.items)
		s.mu.RUnlock()
	}
	return total
}

// Cleanup removes entries older than the TTL and reports how many went.
func (c *Sharded[V]) Cleanup() int {
	if c.ttl <= 0 {
		return 0
	}
	removed := 0
	cutoff := time.Now().Add(-c.ttl)
	for _, s := range c.shards {
		s.mu.Lock()
		for key, e := range s.items {
			if e.updatedAt.Before(cutoff) {
				delete(s.items, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}
