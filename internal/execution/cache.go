// Package execution dispatches risk-approved orders to venue backends
// behind one adapter contract: at-most-once submission per idempotency
// key, and reconciliation instead of blind resends whenever a venue
// answer is lost.
package execution

import (
	"sync"

	"github.com/quantgate-lab/quantgate/internal/types"
)

// IdempotencyCache maps idempotency keys to dispatch outcomes. Its
// one job is the compare-and-set insert: of two concurrent attempts
// for the same key, exactly one wins the right to dispatch.
type IdempotencyCache struct {
	mu      sync.Mutex
	entries map[string]types.OrderResult
}

// NewIdempotencyCache creates an empty cache.
func NewIdempotencyCache() *IdempotencyCache {
	return &IdempotencyCache{
		entries: map[string]types.OrderResult{},
	}
}

// PutIfAbsent inserts result under key only when the key is new. It
// returns the stored value and whether this call inserted it.
func (c *IdempotencyCache) PutIfAbsent(key string, result types.OrderResult) (types.OrderResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prior, ok := c.entries[key]; ok {
		return prior, false
	}

	c.entries[key] = result

	return result, true
}

// Get returns the stored result for key.
func (c *IdempotencyCache) Get(key string) (types.OrderResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result, ok := c.entries[key]

	return result, ok
}

// Update overwrites the result for an existing key. Used by the owner
// of the in-flight slot to record the venue's answer, and by the
// reconciliation path to settle ambiguous outcomes.
func (c *IdempotencyCache) Update(key string, result types.OrderResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = result
}

// Len returns the number of cached keys.
func (c *IdempotencyCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
