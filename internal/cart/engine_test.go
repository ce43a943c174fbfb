package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/storefront/internal/identity"
	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type gatewayCall struct {
	Op         string
	CartID     string
	Lines      []LineInput
	ProductIDs []string
	ProductID  string
	Quantity   int
}

type missingErr struct{}

func (missingErr) Error() string  { return "request failed with status code 404" }
func (missingErr) NotFound() bool { return true }

type stubGateway struct {
	mu      sync.Mutex
	calls   []gatewayCall
	carts   map[string]Cart
	nextID  int
	fail    map[string]error
	release chan struct{}
}

func newStubGateway() *stubGateway {
	return &stubGateway{carts: make(map[string]Cart), fail: make(map[string]error)}
}

func (g *stubGateway) record(call gatewayCall) error {
	g.mu.Lock()
	g.calls = append(g.calls, call)
	err := g.fail[call.Op]
	release := g.release
	g.mu.Unlock()
	if release != nil {
		<-release
	}
	return err
}

func (g *stubGateway) failOn(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail[op] = err
}

func (g *stubGateway) put(c Cart) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.carts[c.ID] = c
}

func (g *stubGateway) callsFor(op string) []gatewayCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []gatewayCall
	for _, c := range g.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (g *stubGateway) CreateCart(ctx context.Context) (Cart, error) {
	if err := g.record(gatewayCall{Op: "create"}); err != nil {
		return Cart{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	c := Cart{ID: fmt.Sprintf("cart-%d", g.nextID), Status: enums.CartStatusOpen, Items: []Item{}}
	g.carts[c.ID] = c
	return c, nil
}

func (g *stubGateway) FetchCart(ctx context.Context, cartID string) (Cart, error) {
	if err := g.record(gatewayCall{Op: "fetch", CartID: cartID}); err != nil {
		return Cart{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.carts[cartID]
	if !ok {
		return Cart{}, missingErr{}
	}
	return c.Clone(), nil
}

func (g *stubGateway) AddItems(ctx context.Context, cartID string, lines []LineInput) (Cart, error) {
	return Cart{}, g.record(gatewayCall{Op: "add", CartID: cartID, Lines: lines})
}

func (g *stubGateway) RemoveItems(ctx context.Context, cartID string, productIDs []string) (Cart, error) {
	return Cart{}, g.record(gatewayCall{Op: "remove", CartID: cartID, ProductIDs: productIDs})
}

func (g *stubGateway) SetItemQuantity(ctx context.Context, cartID, productID string, quantity int) (Cart, error) {
	return Cart{}, g.record(gatewayCall{Op: "set_quantity", CartID: cartID, ProductID: productID, Quantity: quantity})
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type engineFixture struct {
	engine *Engine
	gw     *stubGateway
	ids    *identity.MemoryStore
	cache  *MemoryCache
	clock  *clock
	reg    *prometheus.Registry
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	f := &engineFixture{
		gw:    newStubGateway(),
		ids:   identity.NewMemoryStore(),
		cache: NewMemoryCache(0),
		clock: &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		reg:   prometheus.NewRegistry(),
	}
	engine, err := NewEngine(EngineParams{
		Gateway:   f.gw,
		Identity:  f.ids,
		Cache:     f.cache,
		Logger:    logger.Nop(),
		Metrics:   metrics.NewCartMetrics(f.reg),
		StaleTime: time.Minute,
		Now:       f.clock.Now,
	})
	require.NoError(t, err)
	f.engine = engine
	return f
}

func price(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestNewEngineRequiresDependencies(t *testing.T) {
	_, err := NewEngine(EngineParams{Identity: identity.NewMemoryStore(), Logger: logger.Nop()})
	assert.Error(t, err)
	_, err = NewEngine(EngineParams{Gateway: newStubGateway(), Logger: logger.Nop()})
	assert.Error(t, err)
	_, err = NewEngine(EngineParams{Gateway: newStubGateway(), Identity: identity.NewMemoryStore()})
	assert.Error(t, err)
}

func TestFirstSnapshotCreatesCartAndPersistsIdentity(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	c, err := f.engine.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cart-1", c.ID)
	assert.Empty(t, c.Items)

	id, ok := f.ids.Identity(ctx)
	require.True(t, ok)
	assert.Equal(t, "cart-1", id)
	assert.Equal(t, defaultIdentityTTLDays, f.ids.TTLDays())

	again, err := f.engine.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cart-1", again.ID)
	assert.Len(t, f.gw.callsFor("create"), 1)
}

func TestAddToEmptyCart(t *testing.T) {
	f := newEngineFixture(t)

	c, err := f.engine.Add(context.Background(), ItemInput{ProductID: "sku-1", Quantity: 2, Price: price("10")})
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.True(t, c.Total.Equal(price("20")), "total %s", c.Total)

	adds := f.gw.callsFor("add")
	require.Len(t, adds, 1)
	assert.Equal(t, []LineInput{{ProductID: "sku-1", Quantity: 2}}, adds[0].Lines)
}

func TestAddExistingProductMergesQuantity(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	_, err := f.engine.Add(ctx, ItemInput{ProductID: "sku-1", Quantity: 2, Price: price("10")})
	require.NoError(t, err)
	c, err := f.engine.Add(ctx, ItemInput{ProductID: "sku-1", Quantity: 3, Price: price("10")})
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	assert.Equal(t, 5, c.Items[0].Quantity)
	assert.True(t, c.Total.Equal(price("50")))

	sets := f.gw.callsFor("set_quantity")
	require.Len(t, sets, 1)
	assert.Equal(t, "sku-1", sets[0].ProductID)
	assert.Equal(t, 5, sets[0].Quantity)
}

func TestFailedRemoveRollsBack(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	_, err := f.engine.Add(ctx, ItemInput{ProductID: "sku-1", Quantity: 1, Price: price("4.50")})
	require.NoError(t, err)
	before, err := f.engine.Add(ctx, ItemInput{ProductID: "sku-2", Quantity: 2, Price: price("3")})
	require.NoError(t, err)

	f.gw.failOn("remove", pkgerrors.Gateway("failed to remove products from cart", errors.New("boom")))
	_, err = f.engine.Remove(ctx, before.Items[0].ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsGatewayFailure(err))

	after, err := f.engine.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, float64(1), counterValue(t, f.reg, "cart_rollbacks_total"))
}

func TestFailedClearAndQuantityChangesRollBack(t *testing.T) {
	tests := []struct {
		name   string
		failOp string
		mutate func(e *Engine, ctx context.Context, c Cart) (Cart, error)
	}{
		{
			name:   "clear",
			failOp: "remove",
			mutate: func(e *Engine, ctx context.Context, _ Cart) (Cart, error) {
				return e.Clear(ctx)
			},
		},
		{
			name:   "set quantity",
			failOp: "set_quantity",
			mutate: func(e *Engine, ctx context.Context, c Cart) (Cart, error) {
				return e.SetQuantity(ctx, c.Items[1].ID, 7)
			},
		},
		{
			name:   "set quantity to zero",
			failOp: "remove",
			mutate: func(e *Engine, ctx context.Context, c Cart) (Cart, error) {
				return e.SetQuantity(ctx, c.Items[0].ID, 0)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture(t)
			ctx := context.Background()

			_, err := f.engine.Add(ctx, ItemInput{ProductID: "sku-1", Quantity: 1, Price: price("4.50")})
			require.NoError(t, err)
			before, err := f.engine.Add(ctx, ItemInput{ProductID: "sku-2", Quantity: 2, Price: price("3")})
			require.NoError(t, err)

			f.gw.failOn(tt.failOp, pkgerrors.Gateway("failed to update cart", errors.New("boom")))
			_, err = tt.mutate(f.engine, ctx, before)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsGatewayFailure(err))

			after, err := f.engine.Snapshot(ctx)
			require.NoError(t, err)
			assert.Equal(t, before, after)
			assert.True(t, after.Total.Equal(price("10.50")))
			assert.Equal(t, float64(1), counterValue(t, f.reg, "cart_rollbacks_total"))
		})
	}
}

func TestClearIssuesSingleBatchedRemove(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	_, err := f.engine.Add(ctx, ItemInput{ProductID: "sku-1", Quantity: 1, Price: price("1")})
	require.NoError(t, err)
	_, err = f.engine.Add(ctx, ItemInput{ProductID: "sku-2", Quantity: 1, Price: price("2")})
	require.NoError(t, err)

	c, err := f.engine.Clear(ctx)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.True(t, c.Total.IsZero())

	removes := f.gw.callsFor("remove")
	require.Len(t, removes, 1)
	assert.ElementsMatch(t, []string{"sku-1", "sku-2"}, removes[0].ProductIDs)
}

func TestClearEmptyCartSkipsBackend(t *testing.T) {
	f := newEngineFixture(t)
	_, err := f.engine.Clear(context.Background())
	require.NoError(t, err)
	assert.Empty(t, f.gw.callsFor("remove"))
}

func TestSetQuantityFloorRemovesLine(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	c, err := f.engine.Add(ctx, ItemInput{ProductID: "sku-1", Quantity: 2, Price: price("5")})
	require.NoError(t, err)

	c, err = f.engine.SetQuantity(ctx, c.Items[0].ID, 0)
	require.NoError(t, err)
	assert.Empty(t, c.Items)

	removes := f.gw.callsFor("remove")
	require.Len(t, removes, 1)
	assert.Equal(t, []string{"sku-1"}, removes[0].ProductIDs)
	assert.Empty(t, f.gw.callsFor("set_quantity"))
}

func TestMutationValidation(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	_, err := f.engine.Add(ctx, ItemInput{ProductID: "sku-1", Quantity: 0})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	_, err = f.engine.Add(ctx, ItemInput{Quantity: 1})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = f.engine.Remove(ctx, "missing")
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
	_, err = f.engine.SetQuantity(ctx, "missing", 3)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	assert.Empty(t, f.gw.callsFor("remove"))
	assert.Empty(t, f.gw.callsFor("set_quantity"))
}

func TestSubscriberSeesOptimisticThenRollback(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	_, err := f.engine.Add(ctx, ItemInput{ProductID: "sku-1", Quantity: 1, Price: price("2")})
	require.NoError(t, err)

	initial, updates, cancel, err := f.engine.Subscribe(ctx)
	require.NoError(t, err)
	defer cancel()
	require.Len(t, initial.Items, 1)

	f.gw.failOn("add", errors.New("offline"))
	_, err = f.engine.Add(ctx, ItemInput{ProductID: "sku-2", Quantity: 1, Price: price("3")})
	require.Error(t, err)

	optimistic := <-updates
	assert.Len(t, optimistic.Items, 2)
	rolledBack := <-updates
	assert.Equal(t, initial, rolledBack)
}

func TestStaleSnapshotRefetches(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	c, err := f.engine.Snapshot(ctx)
	require.NoError(t, err)

	f.gw.put(Cart{ID: c.ID, Status: enums.CartStatusOpen, Items: []Item{{ProductID: "sku-9", Quantity: 4, Price: price("2.5")}}})
	cached, err := f.engine.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, cached.Items, "fresh snapshot served without a read")

	f.clock.Advance(2 * time.Minute)
	fresh, err := f.engine.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, fresh.Items, 1)
	assert.NotEmpty(t, fresh.Items[0].ID)
	assert.True(t, fresh.Total.Equal(price("10")))
}

func TestStaleSnapshotServedWhenRefetchFails(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	c, err := f.engine.Add(ctx, ItemInput{ProductID: "sku-1", Quantity: 1, Price: price("7")})
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)
	f.gw.failOn("fetch", errors.New("timeout"))
	got, err := f.engine.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestRefreshKeepsLocalItemIDs(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	c, err := f.engine.Add(ctx, ItemInput{ProductID: "sku-1", Quantity: 1, Price: price("7")})
	require.NoError(t, err)
	f.gw.put(Cart{ID: c.ID, Status: enums.CartStatusOpen, Items: []Item{{ProductID: "sku-1", Quantity: 3, Price: price("7")}}})

	fresh, err := f.engine.Signal(ctx, enums.RefreshTriggerFocus)
	require.NoError(t, err)
	require.Len(t, fresh.Items, 1)
	assert.Equal(t, c.Items[0].ID, fresh.Items[0].ID)
	assert.Equal(t, 3, fresh.Items[0].Quantity)
}

func TestClosedCartIsRecreated(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	c, err := f.engine.Snapshot(ctx)
	require.NoError(t, err)
	f.gw.put(Cart{ID: c.ID, Status: enums.CartStatusClosed, Items: []Item{}})

	fresh, err := f.engine.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cart-2", fresh.ID)
	id, _ := f.ids.Identity(ctx)
	assert.Equal(t, "cart-2", id)
	assert.Equal(t, float64(1), counterValue(t, f.reg, "cart_recreations_total"))
}

func TestUnknownStoredCartIsRecreated(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.ids.SetIdentity(ctx, "gone", 30)

	c, err := f.engine.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cart-1", c.ID)
}

func TestStoredCartFetchFailureSurfaces(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.ids.SetIdentity(ctx, "cart-x", 30)
	f.gw.failOn("fetch", pkgerrors.Gateway("failed to retrieve cart", errors.New("502")))

	_, err := f.engine.Snapshot(ctx)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsGatewayFailure(err))
	assert.Empty(t, f.gw.callsFor("create"))
}

func TestFreshCacheAvoidsFetch(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	cached := Cart{ID: "cart-7", Status: enums.CartStatusOpen, Items: []Item{{ID: "i-1", ProductID: "sku-1", Quantity: 1, Price: price("3")}}, Total: price("3")}
	require.NoError(t, f.cache.Set(ctx, CachedSnapshot{Cart: cached, FetchedAt: f.clock.Now()}))
	f.ids.SetIdentity(ctx, "cart-7", 30)

	c, err := f.engine.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, cached, c)
	assert.Empty(t, f.gw.callsFor("fetch"))
}

func TestCompleteCheckoutForgetsCart(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	c, err := f.engine.Add(ctx, ItemInput{ProductID: "sku-1", Quantity: 1, Price: price("1")})
	require.NoError(t, err)
	_, updates, cancel, err := f.engine.Subscribe(ctx)
	require.NoError(t, err)
	defer cancel()

	f.engine.CompleteCheckout(ctx)

	_, ok := f.ids.Identity(ctx)
	assert.False(t, ok)
	_, found, err := f.cache.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, found)

	last := <-updates
	assert.Empty(t, last.Items)
	_, open := <-updates
	assert.False(t, open, "subscription closes with the session")

	next, err := f.engine.Snapshot(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, c.ID, next.ID)
}

func TestConcurrentMutationsAreSerialized(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	_, err := f.engine.Snapshot(ctx)
	require.NoError(t, err)

	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			_, err := f.engine.Add(ctx, ItemInput{ProductID: "sku-1", Quantity: 1, Price: price("2")})
			return err
		})
	}
	require.NoError(t, g.Wait())

	c, err := f.engine.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 20, c.Items[0].Quantity)
	assert.True(t, c.Total.Equal(price("40")))
}

func TestSweepEvictsIdleAndClosedSessions(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	c, err := f.engine.Snapshot(ctx)
	require.NoError(t, err)
	f.gw.put(Cart{ID: c.ID, Status: enums.CartStatusClosed, Items: []Item{}})

	f.engine.sweep(ctx)
	assert.Nil(t, f.engine.lookup(c.ID))
	assert.Len(t, f.gw.callsFor("create"), 1, "the loop never creates carts")
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	c, err := f.engine.Snapshot(ctx)
	require.NoError(t, err)
	f.clock.Advance(defaultSessionIdleTTL + time.Second)

	f.engine.sweep(ctx)
	assert.Nil(t, f.engine.lookup(c.ID))
	assert.Empty(t, f.gw.callsFor("fetch"))
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newEngineFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, f.engine.Run(ctx), context.Canceled)
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
