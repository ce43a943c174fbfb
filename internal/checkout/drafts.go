package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/angelmondragon/storefront/pkg/redis"
)

// Draft is the in-progress checkout of one cart.
type Draft struct {
	CartID    string              `json:"cartId"`
	Stage     enums.CheckoutStage `json:"stage"`
	Delivery  *DeliveryForm       `json:"delivery,omitempty"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// DraftStore keeps drafts keyed by cart id.
type DraftStore interface {
	Load(ctx context.Context, cartID string) (Draft, bool, error)
	Save(ctx context.Context, draft Draft) error
	Delete(ctx context.Context, cartID string) error
}

type MemoryDraftStore struct {
	mu     sync.Mutex
	drafts map[string]Draft
}

func NewMemoryDraftStore() *MemoryDraftStore {
	return &MemoryDraftStore{drafts: make(map[string]Draft)}
}

func (m *MemoryDraftStore) Load(_ context.Context, cartID string) (Draft, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[cartID]
	if ok && d.Delivery != nil {
		delivery := *d.Delivery
		d.Delivery = &delivery
	}
	return d, ok, nil
}

func (m *MemoryDraftStore) Save(_ context.Context, draft Draft) error {
	if draft.CartID == "" {
		return fmt.Errorf("draft has no cart id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if draft.Delivery != nil {
		delivery := *draft.Delivery
		draft.Delivery = &delivery
	}
	m.drafts[draft.CartID] = draft
	return nil
}

func (m *MemoryDraftStore) Delete(_ context.Context, cartID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, cartID)
	return nil
}

// RedisDraftStore keeps drafts in redis so any API instance can resume them.
type RedisDraftStore struct {
	store redis.JSONStore
	ttl   time.Duration
}

func NewRedisDraftStore(store redis.JSONStore, ttl time.Duration) (*RedisDraftStore, error) {
	if store == nil {
		return nil, fmt.Errorf("redis store required")
	}
	return &RedisDraftStore{store: store, ttl: ttl}, nil
}

func (r *RedisDraftStore) Load(ctx context.Context, cartID string) (Draft, bool, error) {
	var d Draft
	found, err := r.store.GetJSON(ctx, r.store.CheckoutDraftKey(cartID), &d)
	if err != nil || !found {
		return Draft{}, false, err
	}
	return d, true, nil
}

func (r *RedisDraftStore) Save(ctx context.Context, draft Draft) error {
	if draft.CartID == "" {
		return fmt.Errorf("draft has no cart id")
	}
	return r.store.SetJSON(ctx, r.store.CheckoutDraftKey(draft.CartID), draft, r.ttl)
}

func (r *RedisDraftStore) Delete(ctx context.Context, cartID string) error {
	return r.store.Del(ctx, r.store.CheckoutDraftKey(cartID))
}
