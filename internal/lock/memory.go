package lock

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory usa go-cache: Add falla si la clave existe y no expiró.
type Memory struct {
	mu sync.Mutex
	c  *gocache.Cache
}

func NewMemory() *Memory {
	return &Memory{c: gocache.New(time.Minute, time.Minute)}
}

func (m *Memory) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	tok := token()
	m.mu.Lock()
	err := m.c.Add(key, tok, ttl)
	m.mu.Unlock()
	if err != nil {
		return nil, ErrLocked
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if v, ok := m.c.Get(key); ok && v.(string) == tok {
				m.c.Delete(key)
			}
		})
	}, nil
}
