package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/storefront/pkg/redis"
)

// Cache keeps the last confirmed snapshot per cart id so a new session can
// start without a backend read while the entry is fresh.
type Cache interface {
	Get(ctx context.Context, cartID string) (CachedSnapshot, bool, error)
	Set(ctx context.Context, snap CachedSnapshot) error
	Delete(ctx context.Context, cartID string) error
}

// CachedSnapshot is a confirmed cart plus the time it was last read from the backend.
type CachedSnapshot struct {
	Cart      Cart      `json:"cart"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// MemoryCache is the in-process Cache used when redis is not configured.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	snap      CachedSnapshot
	expiresAt time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

func (m *MemoryCache) Get(_ context.Context, cartID string) (CachedSnapshot, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[cartID]
	m.mu.RUnlock()
	if !ok {
		return CachedSnapshot{}, false, nil
	}
	if !entry.expiresAt.IsZero() && m.now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, cartID)
		m.mu.Unlock()
		return CachedSnapshot{}, false, nil
	}
	return CachedSnapshot{Cart: entry.snap.Cart.Clone(), FetchedAt: entry.snap.FetchedAt}, true, nil
}

func (m *MemoryCache) Set(_ context.Context, snap CachedSnapshot) error {
	if snap.Cart.ID == "" {
		return fmt.Errorf("snapshot has no cart id")
	}
	entry := memoryEntry{snap: CachedSnapshot{Cart: snap.Cart.Clone(), FetchedAt: snap.FetchedAt}}
	if m.ttl > 0 {
		entry.expiresAt = m.now().Add(m.ttl)
	}
	m.mu.Lock()
	m.entries[snap.Cart.ID] = entry
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, cartID string) error {
	m.mu.Lock()
	delete(m.entries, cartID)
	m.mu.Unlock()
	return nil
}

// RedisCache shares snapshots across API instances.
type RedisCache struct {
	store redis.JSONStore
	ttl   time.Duration
}

func NewRedisCache(store redis.JSONStore, ttl time.Duration) (*RedisCache, error) {
	if store == nil {
		return nil, fmt.Errorf("redis store required")
	}
	return &RedisCache{store: store, ttl: ttl}, nil
}

func (r *RedisCache) Get(ctx context.Context, cartID string) (CachedSnapshot, bool, error) {
	var snap CachedSnapshot
	found, err := r.store.GetJSON(ctx, r.store.CartSnapshotKey(cartID), &snap)
	if err != nil || !found {
		return CachedSnapshot{}, false, err
	}
	if snap.Cart.Items == nil {
		snap.Cart.Items = []Item{}
	}
	return snap, true, nil
}

func (r *RedisCache) Set(ctx context.Context, snap CachedSnapshot) error {
	if snap.Cart.ID == "" {
		return fmt.Errorf("snapshot has no cart id")
	}
	return r.store.SetJSON(ctx, r.store.CartSnapshotKey(snap.Cart.ID), snap, r.ttl)
}

func (r *RedisCache) Delete(ctx context.Context, cartID string) error {
	return r.store.Del(ctx, r.store.CartSnapshotKey(cartID))
}
