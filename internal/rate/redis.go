package rate

import (
	"context"
	"strings"

	rdb "github.com/redis/go-redis/v9"
)

// RedisLimiter: fixed window sencillo (INCR + EXPIRE en el primer hit).
type RedisLimiter struct {
	Client *rdb.Client
	Prefix string
}

func NewRedisLimiter(client *rdb.Client, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{Client: client, Prefix: prefix}
}

func (l *RedisLimiter) key(p Policy, key string) string {
	return l.Prefix + p.Name + ":" + strings.ReplaceAll(key, " ", "_")
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, p Policy) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	redisKey := l.key(p, key)

	pipe := l.Client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}

	// set expiry on first hit (o si quedó sin TTL por un crash entre INCR y EXPIRE)
	window := ttl.Val()
	if incr.Val() == 1 || window < 0 {
		if err := l.Client.Expire(ctx, redisKey, p.Window).Err(); err != nil {
			return Result{}, err
		}
		window = p.Window
	}

	hits := incr.Val()
	limit := int64(p.Limit)
	remaining := limit - hits
	if remaining < 0 {
		remaining = 0
	}

	res := Result{Allowed: hits <= limit, Remaining: int(remaining)}
	if !res.Allowed {
		res.RetryAfter = window
		if res.RetryAfter <= 0 {
			res.RetryAfter = windowCeil(p.Window)
		}
	}
	return res, nil
}
