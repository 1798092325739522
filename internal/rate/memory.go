package rate

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory cuenta hits en go-cache; cada ventana es una key que expira sola.
type Memory struct {
	c      *gocache.Cache
	max    int64
	window time.Duration
	now    func() time.Time
}

func NewMemory(max int, window time.Duration) *Memory {
	return &Memory{
		c:      gocache.New(window, 2*window),
		max:    int64(max),
		window: window,
		now:    time.Now,
	}
}

func (m *Memory) Allow(_ context.Context, key string) (Result, error) {
	now := m.now().UTC()
	winStart := now.Truncate(m.window)
	k := fmt.Sprintf("%s:%d", key, winStart.Unix())

	// Add falla si la key ya existe; en ese caso se incrementa.
	hits := int64(1)
	if err := m.c.Add(k, hits, m.window); err != nil {
		n, err := m.c.IncrementInt64(k, 1)
		if err != nil {
			return Result{}, err
		}
		hits = n
	}
	return result(hits, m.max, winStart.Add(m.window).Sub(now)), nil
}
