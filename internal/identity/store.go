package identity

import (
	"context"
	"sync"
)

// Store persists the cart id on behalf of one visitor. Reads never fail:
// any fault reads as "no identity". Writes and clears swallow faults.
type Store interface {
	Identity(ctx context.Context) (string, bool)
	SetIdentity(ctx context.Context, cartID string, ttlDays int)
	ClearIdentity(ctx context.Context)
}

// MemoryStore keeps a single identity in process.
type MemoryStore struct {
	mu      sync.Mutex
	cartID  string
	ttlDays int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Identity(context.Context) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cartID, m.cartID != ""
}

func (m *MemoryStore) SetIdentity(_ context.Context, cartID string, ttlDays int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cartID = cartID
	m.ttlDays = ttlDays
}

func (m *MemoryStore) ClearIdentity(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cartID = ""
	m.ttlDays = 0
}

// TTLDays reports the lifetime requested by the last SetIdentity call.
func (m *MemoryStore) TTLDays() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ttlDays
}
