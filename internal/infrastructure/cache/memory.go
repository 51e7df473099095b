package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"card_pricer/internal/domain/entity"
)

// Memory: кэш оценок в памяти процесса.
type Memory struct {
	c *gocache.Cache
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{c: gocache.New(ttl, 2*ttl)}
}

func (m *Memory) Get(_ context.Context, key string) (entity.FairValueResult, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return entity.FairValueResult{}, false, nil
	}

	r, ok := v.(entity.FairValueResult)
	return r, ok, nil
}

func (m *Memory) Set(_ context.Context, key string, result entity.FairValueResult) error {
	m.c.SetDefault(key, result)
	return nil
}

func (m *Memory) Len() int {
	return m.c.ItemCount()
}
