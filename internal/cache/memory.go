package cache

import (
	"context"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const (
	defaultMemoryTTL      = 5 * time.Minute
	defaultMemoryCapacity = 100_000
)

// MemoryTier is an in-process Tier backed by a TTL cache. It serves as the
// fetch cache in production and as the in-process fake for the other tiers
// in tests.
type MemoryTier struct {
	c *ttlcache.Cache[string, []byte]
}

// NewMemoryTier creates a MemoryTier. A zero ttl or capacity falls back to
// the defaults. The expiry janitor is started immediately; Close stops it.
func NewMemoryTier(ttl time.Duration, capacity uint64) *MemoryTier {
	if ttl <= 0 {
		ttl = defaultMemoryTTL
	}
	if capacity == 0 {
		capacity = defaultMemoryCapacity
	}
	c := ttlcache.New(
		ttlcache.WithTTL[string, []byte](ttl),
		ttlcache.WithDisableTouchOnHit[string, []byte](),
		ttlcache.WithCapacity[string, []byte](capacity),
	)
	go c.Start()
	return &MemoryTier{c: c}
}

func (m *MemoryTier) Get(_ context.Context, key string) ([]byte, bool, error) {
	item := m.c.Get(key)
	if item == nil {
		return nil, false, nil
	}
	return item.Value(), true, nil
}

func (m *MemoryTier) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.DefaultTTL
	}
	m.c.Set(key, value, ttl)
	return nil
}

func (m *MemoryTier) Remove(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

func (m *MemoryTier) Keys(_ context.Context, prefix string) ([]string, error) {
	var out []string
	for _, k := range m.c.Keys() {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *MemoryTier) Close() error {
	m.c.Stop()
	return nil
}
