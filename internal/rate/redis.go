package rate

import (
	"context"
	"fmt"
	"strings"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// Redis es fixed window sobre INCR + EXPIRE.
type Redis struct {
	c      *rdb.Client
	prefix string
	max    int64
	window time.Duration
	now    func() time.Time
}

func NewRedis(addr string, db int, prefix string, max int, window time.Duration) *Redis {
	return NewRedisWithClient(rdb.NewClient(&rdb.Options{Addr: addr, DB: db}), prefix, max, window)
}

func NewRedisWithClient(c *rdb.Client, prefix string, max int, window time.Duration) *Redis {
	return &Redis{c: c, prefix: prefix + "rl:", max: int64(max), window: window, now: time.Now}
}

func (l *Redis) Allow(ctx context.Context, key string) (Result, error) {
	winStart := l.now().UTC().Truncate(l.window)
	redisKey := fmt.Sprintf("%s%s:%d", l.prefix, strings.ReplaceAll(key, " ", "_"), winStart.Unix())

	pipe := l.c.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, l.window)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}

	retry := ttl.Val()
	if retry <= 0 {
		retry = l.window
	}
	return result(incr.Val(), l.max, retry), nil
}

func (l *Redis) Close() error { return l.c.Close() }
