// Package lock provee el lock por nombre de realm que toma el importer
// mientras commitea un bundle. Hay backend en memoria (un proceso) y redis
// (varias réplicas).
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// ErrLocked indica que otro importer tiene el lock.
var ErrLocked = errors.New("lock: already held")

// Locker adquiere locks con TTL. release es idempotente.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// Config elige el backend.
type Config struct {
	Kind      string // "memory" | "redis"
	RedisAddr string
	RedisDB   int
	Prefix    string
}

// New crea el Locker indicado por cfg.Kind.
func New(cfg Config) (Locker, error) {
	switch cfg.Kind {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, errors.New("lock: redis addr is required")
		}
		return NewRedis(cfg.RedisAddr, cfg.RedisDB, cfg.Prefix), nil
	}
	return nil, fmt.Errorf("lock: unknown kind %q", cfg.Kind)
}

func token() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
