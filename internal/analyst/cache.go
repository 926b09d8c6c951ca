package analyst

import (
	"context"
	"sync"
	"time"
)

type cacheEntry struct {
	resp    Response
	expires time.Time
}

// CachingClient wraps a Client with fingerprint-keyed memoization, so a
// tick retried with identical inputs — e.g. after a transient failure
// downstream of Analyse — reuses the prior answer instead of re-billing
// the analyst (§4.3 step 3). Entries expire after ttl; a zero ttl disables
// caching entirely (every call passes through).
type CachingClient struct {
	next Client
	ttl  time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCachingClient wraps next with a fingerprint cache held for ttl.
func NewCachingClient(next Client, ttl time.Duration) *CachingClient {
	return &CachingClient{next: next, ttl: ttl, entries: make(map[string]cacheEntry)}
}

func (c *CachingClient) Analyse(ctx context.Context, req Request) (Response, error) {
	if c.ttl <= 0 {
		return c.next.Analyse(ctx, req)
	}

	key := Fingerprint(req)
	now := time.Now()

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok && now.Before(entry.expires) {
		c.mu.Unlock()
		return entry.resp, nil
	}
	c.mu.Unlock()

	resp, err := c.next.Analyse(ctx, req)
	if err != nil {
		return resp, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{resp: resp, expires: now.Add(c.ttl)}
	c.mu.Unlock()
	return resp, nil
}
