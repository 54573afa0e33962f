// Package reputation holds the peer reputation/RTT table swept by the
// engine's maintenance scheduler. Insertion pressure is handled by the LRU
// backing store; the periodic sweep exists so transiently-penalized peers can
// recover instead of lingering until capacity forces them out.
package reputation

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// ScoreLong is the score (RTT-flavored, in milliseconds) above which a peer
// is considered penalized and eligible for the forced sweep.
const ScoreLong = 2000.0

// Cache maps peer identity to a numeric score with LRU eviction under
// capacity pressure. Mutated only from the engine's control goroutine.
type Cache struct {
	lru *lru.Cache[string, float64]
}

// New returns a reputation cache with the given capacity.
func New(size int) (*Cache, error) {
	c, err := lru.New[string, float64](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c}, nil
}

// Set records the score for a peer, replacing any previous value.
func (c *Cache) Set(peer string, score float64) {
	c.lru.Add(peer, score)
}

// Get returns the peer's score.
func (c *Cache) Get(peer string) (float64, bool) {
	return c.lru.Get(peer)
}

// Evict removes a peer. Reports whether it was present.
func (c *Cache) Evict(peer string) bool {
	return c.lru.Remove(peer)
}

// Len returns the number of tracked peers.
func (c *Cache) Len() int { return c.lru.Len() }

// Peers returns all tracked peer identities.
func (c *Cache) Peers() []string { return c.lru.Keys() }

// Snapshot returns a copy of the whole table.
func (c *Cache) Snapshot() map[string]float64 {
	out := make(map[string]float64, c.lru.Len())
	for _, peer := range c.lru.Keys() {
		if score, ok := c.lru.Peek(peer); ok {
			out[peer] = score
		}
	}
	return out
}

// Sweep evicts every occupied slot whose score exceeds threshold and returns
// the number of evicted entries. Running it twice without intervening score
// changes is a no-op on the second pass.
func (c *Cache) Sweep(threshold float64) int {
	evicted := 0
	for _, peer := range c.lru.Keys() {
		score, ok := c.lru.Peek(peer)
		if !ok {
			continue
		}
		if score > threshold {
			c.lru.Remove(peer)
			evicted++
		}
	}
	return evicted
}
