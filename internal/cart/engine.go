package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/storefront/internal/identity"
	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

const (
	defaultIdentityTTLDays = 30
	defaultStaleTime       = time.Minute
	defaultRefetchInterval = 5 * time.Minute
	defaultSessionIdleTTL  = 30 * time.Minute
)

// Gateway is the remote cart API the engine synchronizes against.
type Gateway interface {
	CreateCart(ctx context.Context) (Cart, error)
	FetchCart(ctx context.Context, cartID string) (Cart, error)
	AddItems(ctx context.Context, cartID string, lines []LineInput) (Cart, error)
	RemoveItems(ctx context.Context, cartID string, productIDs []string) (Cart, error)
	SetItemQuantity(ctx context.Context, cartID, productID string, quantity int) (Cart, error)
}

var errCartClosed = errors.New("cart is closed")

// EngineParams configure the synchronization engine.
type EngineParams struct {
	Gateway         Gateway
	Identity        identity.Store
	Cache           Cache
	Logger          *logger.Logger
	Metrics         *metrics.CartMetrics
	IdentityTTLDays int
	StaleTime       time.Duration
	RefetchInterval time.Duration
	SessionIdleTTL  time.Duration
	Now             func() time.Time
}

// Engine owns the published cart snapshot of every active cart. Only the
// engine writes snapshots and the cart identity; everything else reads them
// or requests mutations through its methods.
type Engine struct {
	gw       Gateway
	ids      identity.Store
	cache    Cache
	logg     *logger.Logger
	metrics  *metrics.CartMetrics
	ttlDays  int
	stale    time.Duration
	interval time.Duration
	idleTTL  time.Duration
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
	flights  singleflight.Group
}

func NewEngine(params EngineParams) (*Engine, error) {
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway required")
	}
	if params.Identity == nil {
		return nil, fmt.Errorf("identity store required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	cache := params.Cache
	if cache == nil {
		cache = NewMemoryCache(0)
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	e := &Engine{
		gw:       params.Gateway,
		ids:      params.Identity,
		cache:    cache,
		logg:     params.Logger,
		metrics:  params.Metrics,
		ttlDays:  params.IdentityTTLDays,
		stale:    params.StaleTime,
		interval: params.RefetchInterval,
		idleTTL:  params.SessionIdleTTL,
		now:      now,
		sessions: make(map[string]*session),
	}
	if e.ttlDays <= 0 {
		e.ttlDays = defaultIdentityTTLDays
	}
	if e.stale <= 0 {
		e.stale = defaultStaleTime
	}
	if e.interval <= 0 {
		e.interval = defaultRefetchInterval
	}
	if e.idleTTL <= 0 {
		e.idleTTL = defaultSessionIdleTTL
	}
	return e, nil
}

// Snapshot returns the visible cart, refetching first when the last backend
// read is older than the stale time. A failed refetch serves the last snapshot.
func (e *Engine) Snapshot(ctx context.Context) (Cart, error) {
	s, err := e.activate(ctx)
	if err != nil {
		return Cart{}, err
	}
	if e.now().Sub(s.lastFetched()) < e.stale {
		return s.snapshot(), nil
	}
	fresh, err := e.refreshOrRecreate(ctx, s, enums.RefreshTriggerStale)
	if err != nil {
		e.logg.Warn(e.logg.WithField(e.logg.WithCartID(ctx, s.id), "reason", err.Error()), "serving stale cart snapshot")
		return s.snapshot(), nil
	}
	return fresh, nil
}

// Current returns the published snapshot as is, without a staleness check.
func (e *Engine) Current(ctx context.Context) (Cart, error) {
	s, err := e.activate(ctx)
	if err != nil {
		return Cart{}, err
	}
	return s.snapshot(), nil
}

// Add merges input into the cart: an existing product line grows by
// input.Quantity, otherwise a new line is appended.
func (e *Engine) Add(ctx context.Context, input ItemInput) (Cart, error) {
	if input.ProductID == "" {
		return Cart{}, pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
	}
	if input.Quantity <= 0 {
		return Cart{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	s, err := e.activate(ctx)
	if err != nil {
		return Cart{}, err
	}

	var line Item
	var merged bool
	return e.mutate(ctx, s, "add",
		func(prev Cart) (Cart, error) {
			var next Cart
			next, line, merged = MergeAdd(prev, input)
			return next, nil
		},
		func(ctx context.Context) error {
			if merged {
				_, err := e.gw.SetItemQuantity(ctx, s.id, line.ProductID, line.Quantity)
				return err
			}
			_, err := e.gw.AddItems(ctx, s.id, []LineInput{{ProductID: line.ProductID, Quantity: line.Quantity}})
			return err
		},
	)
}

// Remove drops the line with itemID.
func (e *Engine) Remove(ctx context.Context, itemID string) (Cart, error) {
	s, err := e.activate(ctx)
	if err != nil {
		return Cart{}, err
	}
	var productID string
	return e.mutate(ctx, s, "remove",
		func(prev Cart) (Cart, error) {
			idx := FindItem(prev, itemID)
			if idx < 0 {
				return Cart{}, itemNotFound(itemID)
			}
			productID = prev.Items[idx].ProductID
			return RemoveItem(prev, itemID), nil
		},
		func(ctx context.Context) error {
			_, err := e.gw.RemoveItems(ctx, s.id, []string{productID})
			return err
		},
	)
}

// SetQuantity sets an absolute line quantity. Zero or less removes the line.
func (e *Engine) SetQuantity(ctx context.Context, itemID string, quantity int) (Cart, error) {
	s, err := e.activate(ctx)
	if err != nil {
		return Cart{}, err
	}
	var productID string
	return e.mutate(ctx, s, "set_quantity",
		func(prev Cart) (Cart, error) {
			idx := FindItem(prev, itemID)
			if idx < 0 {
				return Cart{}, itemNotFound(itemID)
			}
			productID = prev.Items[idx].ProductID
			return SetQuantity(prev, itemID, quantity), nil
		},
		func(ctx context.Context) error {
			if quantity <= 0 {
				_, err := e.gw.RemoveItems(ctx, s.id, []string{productID})
				return err
			}
			_, err := e.gw.SetItemQuantity(ctx, s.id, productID, quantity)
			return err
		},
	)
}

// Clear empties the cart with one batched removal of every product.
func (e *Engine) Clear(ctx context.Context) (Cart, error) {
	s, err := e.activate(ctx)
	if err != nil {
		return Cart{}, err
	}
	var productIDs []string
	return e.mutate(ctx, s, "clear",
		func(prev Cart) (Cart, error) {
			productIDs = ProductIDs(prev)
			return Empty(prev), nil
		},
		func(ctx context.Context) error {
			if len(productIDs) == 0 {
				return nil
			}
			_, err := e.gw.RemoveItems(ctx, s.id, productIDs)
			return err
		},
	)
}

// Refresh forces a backend read of the current cart.
func (e *Engine) Refresh(ctx context.Context) (Cart, error) {
	return e.Signal(ctx, enums.RefreshTriggerManual)
}

// Signal reacts to an environment re-entry (focus, reconnect) or an explicit
// request by refetching the cart.
func (e *Engine) Signal(ctx context.Context, trigger enums.RefreshTrigger) (Cart, error) {
	s, err := e.activate(ctx)
	if err != nil {
		return Cart{}, err
	}
	return e.refreshOrRecreate(ctx, s, trigger)
}

// CompleteCheckout forgets the consumed cart: the local snapshot is emptied,
// the identity cleared and the cached snapshot removed. The next cart
// operation starts a new cart.
func (e *Engine) CompleteCheckout(ctx context.Context) {
	cartID, ok := e.ids.Identity(ctx)
	e.ids.ClearIdentity(ctx)
	if !ok {
		return
	}
	ctx = e.logg.WithCartID(ctx, cartID)
	if s := e.lookup(cartID); s != nil {
		s.op.Lock()
		emptied := Empty(s.confirmedSnapshot())
		emptied.Status = enums.CartStatusClosed
		s.adopt(emptied, s.lastFetched())
		s.op.Unlock()
		e.drop(s)
	}
	if err := e.cache.Delete(ctx, cartID); err != nil {
		e.logg.Warn(e.logg.WithField(ctx, "reason", err.Error()), "failed to delete cart snapshot")
	}
	e.logg.Info(ctx, "cart checkout completed")
}

// Subscribe streams every snapshot the engine publishes for the caller's
// cart, including optimistic and rolled back ones. The channel closes when
// the session ends or cancel is called.
func (e *Engine) Subscribe(ctx context.Context) (Cart, <-chan Cart, func(), error) {
	s, err := e.activate(ctx)
	if err != nil {
		return Cart{}, nil, nil, err
	}
	ch, cancel := s.subscribe()
	return s.snapshot(), ch, cancel, nil
}

// mutate runs the optimistic protocol: compute from the confirmed snapshot,
// publish, call the backend once, then confirm or roll back.
func (e *Engine) mutate(ctx context.Context, s *session, name string, compute func(prev Cart) (Cart, error), remote func(ctx context.Context) error) (Cart, error) {
	ctx = e.logg.WithOperation(e.logg.WithCartID(ctx, s.id), name)

	s.op.Lock()
	defer s.op.Unlock()

	previous := s.confirmedSnapshot()
	next, err := compute(previous)
	if err != nil {
		return previous, err
	}

	s.show(next)
	if err := remote(ctx); err != nil {
		s.show(previous)
		e.metrics.IncRollback(name)
		e.logg.Warn(e.logg.WithField(ctx, "reason", err.Error()), "cart mutation rolled back")
		return previous, err
	}

	s.confirm(next)
	s.touch(e.now())
	e.store(ctx, next, s.lastFetched())
	return next, nil
}

// activate resolves the caller's session, creating a cart when there is no
// usable identity.
func (e *Engine) activate(ctx context.Context) (*session, error) {
	cartID, ok := e.ids.Identity(ctx)
	if !ok {
		return e.create(ctx)
	}
	if s := e.lookup(cartID); s != nil {
		s.touch(e.now())
		return s, nil
	}

	s, err := e.load(ctx, cartID)
	switch {
	case err == nil:
		return s, nil
	case errors.Is(err, errCartClosed), isMissing(err):
		e.logg.Info(e.logg.WithCartID(ctx, cartID), "stored cart unusable; starting a new one")
		e.metrics.IncRecreation()
		if delErr := e.cache.Delete(ctx, cartID); delErr != nil {
			e.logg.Warn(e.logg.WithField(ctx, "reason", delErr.Error()), "failed to delete cart snapshot")
		}
		return e.create(ctx)
	default:
		return nil, err
	}
}

// load starts a session for a known cart id from the cache when fresh, or
// from the backend. Concurrent loads of one id share a single backend read.
func (e *Engine) load(ctx context.Context, cartID string) (*session, error) {
	v, err, _ := e.flights.Do("load:"+cartID, func() (any, error) {
		if s := e.lookup(cartID); s != nil {
			return s, nil
		}
		if snap, ok := e.cachedFresh(ctx, cartID); ok {
			return e.register(newSession(snap.Cart, snap.FetchedAt, e.now())), nil
		}
		fetched, err := e.gw.FetchCart(ctx, cartID)
		if err != nil {
			return nil, err
		}
		if !fetched.IsOpen() {
			return nil, errCartClosed
		}
		now := e.now()
		confirmed := Reconcile(Cart{}, fetched)
		e.store(ctx, confirmed, now)
		return e.register(newSession(confirmed, now, now)), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*session), nil
}

func (e *Engine) cachedFresh(ctx context.Context, cartID string) (CachedSnapshot, bool) {
	snap, ok, err := e.cache.Get(ctx, cartID)
	if err != nil {
		e.logg.Warn(e.logg.WithField(e.logg.WithCartID(ctx, cartID), "reason", err.Error()), "cart snapshot cache read failed")
		return CachedSnapshot{}, false
	}
	if !ok || !snap.Cart.IsOpen() || e.now().Sub(snap.FetchedAt) >= e.stale {
		return CachedSnapshot{}, false
	}
	return snap, true
}

func (e *Engine) create(ctx context.Context) (*session, error) {
	created, err := e.gw.CreateCart(ctx)
	if err != nil {
		return nil, err
	}
	now := e.now()
	confirmed := Reconcile(Cart{}, created)
	e.ids.SetIdentity(ctx, confirmed.ID, e.ttlDays)
	e.store(e.logg.WithCartID(ctx, confirmed.ID), confirmed, now)
	e.logg.Info(e.logg.WithCartID(ctx, confirmed.ID), "cart created")
	return e.register(newSession(confirmed, now, now)), nil
}

// refreshOrRecreate refetches and, on the request path, replaces a cart the
// backend reports closed with a new one.
func (e *Engine) refreshOrRecreate(ctx context.Context, s *session, trigger enums.RefreshTrigger) (Cart, error) {
	fresh, err := e.refresh(ctx, s, trigger)
	if err == nil {
		return fresh, nil
	}
	if !errors.Is(err, errCartClosed) && !isMissing(err) {
		return Cart{}, err
	}
	e.drop(s)
	if delErr := e.cache.Delete(ctx, s.id); delErr != nil {
		e.logg.Warn(e.logg.WithField(ctx, "reason", delErr.Error()), "failed to delete cart snapshot")
	}
	e.metrics.IncRecreation()
	created, err := e.create(ctx)
	if err != nil {
		return Cart{}, err
	}
	return created.snapshot(), nil
}

// refresh reads the cart from the backend and adopts it. Concurrent
// refreshes of one cart coalesce into one read.
func (e *Engine) refresh(ctx context.Context, s *session, trigger enums.RefreshTrigger) (Cart, error) {
	v, err, _ := e.flights.Do("refresh:"+s.id, func() (any, error) {
		s.op.Lock()
		defer s.op.Unlock()

		fetched, err := e.gw.FetchCart(ctx, s.id)
		if err != nil {
			return nil, err
		}
		e.metrics.IncRefresh(trigger.String())
		if !fetched.IsOpen() {
			return nil, errCartClosed
		}
		now := e.now()
		next := Reconcile(s.confirmedSnapshot(), fetched)
		s.adopt(next, now)
		e.store(ctx, next, now)
		return next, nil
	})
	if err != nil {
		return Cart{}, err
	}
	return v.(Cart).Clone(), nil
}

func (e *Engine) store(ctx context.Context, c Cart, fetchedAt time.Time) {
	if err := e.cache.Set(ctx, CachedSnapshot{Cart: c, FetchedAt: fetchedAt}); err != nil {
		e.logg.Warn(e.logg.WithField(ctx, "reason", err.Error()), "failed to cache cart snapshot")
	}
}

func (e *Engine) lookup(cartID string) *session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessions[cartID]
}

func (e *Engine) register(s *session) *session {
	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.sessions[s.id]; ok {
		return existing
	}
	e.sessions[s.id] = s
	e.metrics.SetSessions(len(e.sessions))
	return s
}

func (e *Engine) drop(s *session) {
	e.mu.Lock()
	if current, ok := e.sessions[s.id]; ok && current == s {
		delete(e.sessions, s.id)
	}
	e.metrics.SetSessions(len(e.sessions))
	e.mu.Unlock()
	s.shutdown()
}

func (e *Engine) liveSessions() []*session {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*session, 0, len(e.sessions))
	for _, s := range e.sessions {
		out = append(out, s)
	}
	return out
}

func itemNotFound(itemID string) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found").
		WithDetails(map[string]any{"itemId": itemID})
}

// isMissing reports whether err says the backend no longer knows the cart.
func isMissing(err error) bool {
	var missing interface{ NotFound() bool }
	return errors.As(err, &missing) && missing.NotFound()
}
