// Package rate limita imports por principal con ventana fija. Hay backend en
// memoria (un proceso) y redis (varias réplicas).
package rate

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Result struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
	Hits       int64
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// Config elige el backend. Max <= 0 desactiva el límite (New retorna nil).
type Config struct {
	Kind      string // "memory" | "redis"
	Max       int
	Window    time.Duration
	RedisAddr string
	RedisDB   int
	Prefix    string
}

// New crea el Limiter indicado por cfg.Kind.
func New(cfg Config) (Limiter, error) {
	if cfg.Max <= 0 {
		return nil, nil
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	switch cfg.Kind {
	case "", "memory":
		return NewMemory(cfg.Max, cfg.Window), nil
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, errors.New("rate: redis addr is required")
		}
		return NewRedis(cfg.RedisAddr, cfg.RedisDB, cfg.Prefix, cfg.Max, cfg.Window), nil
	}
	return nil, fmt.Errorf("rate: unknown kind %q", cfg.Kind)
}

// result arma el Result de una ventana con hits consumidos.
func result(hits, max int64, ttl time.Duration) Result {
	res := Result{Allowed: hits <= max, Hits: hits, Remaining: max - hits}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if !res.Allowed {
		res.RetryAfter = ttl
	}
	return res
}
