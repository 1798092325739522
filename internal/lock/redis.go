package lock

import (
	"context"
	"sync"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// releaseScript borra la clave sólo si el token sigue siendo el nuestro.
var releaseScript = rdb.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Redis usa SET NX PX; sirve con varias réplicas del servicio.
type Redis struct {
	c      *rdb.Client
	prefix string
}

func NewRedis(addr string, db int, prefix string) *Redis {
	return NewRedisWithClient(rdb.NewClient(&rdb.Options{Addr: addr, DB: db}), prefix)
}

func NewRedisWithClient(c *rdb.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "realmport:lock:"
	}
	return &Redis{c: c, prefix: prefix}
}

func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	k := r.prefix + key
	tok := token()
	ok, err := r.c.SetNX(ctx, k, tok, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			// el ctx del llamador puede estar cancelado al liberar
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(rctx, r.c, []string{k}, tok).Err()
		})
	}, nil
}

func (r *Redis) Close() error { return r.c.Close() }
