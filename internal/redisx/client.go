package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Dedup remembers processed event ids per service.
type Dedup struct {
	Redis   *redis.Client
	Service string
	TTL     time.Duration // default TTLDedup
}

// Claim returns true the first time id is seen. SETNX makes concurrent
// claims of the same id race-free: exactly one caller wins.
func (d *Dedup) Claim(ctx context.Context, id string) (bool, error) {
	ttl := d.TTL
	if ttl <= 0 {
		ttl = TTLDedup
	}
	return d.Redis.SetNX(ctx, fmt.Sprintf(KeyDedup, d.Service, id), "1", ttl).Result()
}
