package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"telephony-relay/pkg/utils"
)

// Claimer records intent ids whose dispatch has finished.
type Claimer interface {
	// Claimed reports whether id was claimed within the TTL window.
	Claimed(ctx context.Context, id string) (bool, error)
	// Claim returns true for the first caller for id within the TTL window.
	Claim(ctx context.Context, id string) (bool, error)
}

// RedisClaimer keeps claims in Redis with SET NX and a TTL.
type RedisClaimer struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisClaimer(rdb *redis.Client, ttl time.Duration) *RedisClaimer {
	return &RedisClaimer{rdb: rdb, prefix: "relay:intent:", ttl: ttl}
}

func (c *RedisClaimer) Claim(ctx context.Context, id string) (bool, error) {
	return utils.ClaimOnce(ctx, c.rdb, c.prefix+id, id, c.ttl)
}

func (c *RedisClaimer) Claimed(ctx context.Context, id string) (bool, error) {
	return utils.IsClaimed(ctx, c.rdb, c.prefix+id)
}

// MemoryClaimer is a process-local Claimer.
type MemoryClaimer struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	until map[string]time.Time
}

func NewMemoryClaimer(ttl time.Duration) *MemoryClaimer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryClaimer{ttl: ttl, now: time.Now, until: map[string]time.Time{}}
}

func (c *MemoryClaimer) Claim(ctx context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.expire(now)
	if _, taken := c.until[id]; taken {
		return false, nil
	}
	c.until[id] = now.Add(c.ttl)
	return true, nil
}

func (c *MemoryClaimer) Claimed(ctx context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expire(c.now())
	_, taken := c.until[id]
	return taken, nil
}

func (c *MemoryClaimer) expire(now time.Time) {
	for k, exp := range c.until {
		if !exp.After(now) {
			delete(c.until, k)
		}
	}
}
