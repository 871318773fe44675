package api

import (
	"context"
	"sync"
	"time"
)

// LocalCooldown is an in-process Cooldown for single-instance deployments
// without Redis
type LocalCooldown struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// NewLocalCooldown creates an empty cooldown table
func NewLocalCooldown() *LocalCooldown {
	return &LocalCooldown{expires: make(map[string]time.Time), now: time.Now}
}

func (c *LocalCooldown) TryAcquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if until, ok := c.expires[key]; ok && now.Before(until) {
		return false, nil
	}
	c.expires[key] = now.Add(ttl)
	return true, nil
}
