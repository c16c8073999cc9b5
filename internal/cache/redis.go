package cache

import (
	"context"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

type redisCache struct{ c *rdb.Client }

// NewRedis crea un cache respaldado por Redis.
func NewRedis(client *rdb.Client) Cache {
	return &redisCache{c: client}
}

func (r *redisCache) Get(k string) ([]byte, bool) {
	b, err := r.c.Get(context.Background(), k).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

func (r *redisCache) Set(k string, v []byte, ttl time.Duration) {
	_ = r.c.Set(context.Background(), k, v, ttl).Err()
}

func (r *redisCache) Delete(k string) { _ = r.c.Del(context.Background(), k).Err() }
