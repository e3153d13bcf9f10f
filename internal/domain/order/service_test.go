package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/user"
)

// memStore is an in-memory Repository. InTx holds a single mutex for the
// whole transaction and applies writes only when fn succeeds.
type memStore struct {
	mu       sync.Mutex
	orders   map[string]*Order
	carts    map[string]*cart.Cart
	stock    map[string]int
	cleared  map[string]bool
	paidSets int
	failOn   string
}

func newMemStore() *memStore {
	return &memStore{
		orders:  map[string]*Order{},
		carts:   map[string]*cart.Cart{},
		stock:   map[string]int{},
		cleared: map[string]bool{},
	}
}

func (m *memStore) Get(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) ListByUser(_ context.Context, userID string, _, _ int) ([]Order, int, error) {
	var out []Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, len(out), nil
}

func (m *memStore) List(_ context.Context, _ string, _, _ int) ([]Order, int, error) {
	return nil, len(m.orders), nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	delete(m.orders, id)
	return nil
}

func (m *memStore) InTx(_ context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{store: m}
	if err := fn(tx); err != nil {
		return err
	}
	for _, op := range tx.ops {
		op()
	}
	return nil
}

type memTx struct {
	store *memStore
	ops   []func()
}

func (t *memTx) fail(op string) error {
	if t.store.failOn == op {
		return errors.New(op + " failed")
	}
	return nil
}

func (t *memTx) Lock(_ context.Context, id string) (*Order, error) {
	o, ok := t.store.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (t *memTx) LockCart(_ context.Context, userID string) (*cart.Cart, error) {
	c, ok := t.store.carts[userID]
	if !ok {
		return nil, cart.ErrCartNotFound
	}
	cp := *c
	cp.Items = append([]cart.Item(nil), c.Items...)
	return &cp, nil
}

func (t *memTx) Insert(_ context.Context, o *Order) error {
	cp := *o
	t.ops = append(t.ops, func() { t.store.orders[o.ID] = &cp })
	return t.fail("insert")
}

func (t *memTx) ClearCart(_ context.Context, cartID string) error {
	t.ops = append(t.ops, func() {
		t.store.cleared[cartID] = true
		for _, c := range t.store.carts {
			if c.ID == cartID {
				c.Items, c.Prices = nil, cart.Prices{}
			}
		}
	})
	return t.fail("clear")
}

func (t *memTx) DecrementStock(_ context.Context, productID string, qty int) (bool, error) {
	left := t.store.stock[productID] - qty
	clamped := left < 0
	t.ops = append(t.ops, func() { t.store.stock[productID] = max(left, 0) })
	return clamped, t.fail("stock")
}

func (t *memTx) SetPaymentResult(_ context.Context, id string, r PaymentResult) error {
	t.ops = append(t.ops, func() { t.store.orders[id].PaymentResult = &r })
	return nil
}

func (t *memTx) MarkPaid(_ context.Context, id string, at time.Time, r PaymentResult) error {
	t.ops = append(t.ops, func() {
		o := t.store.orders[id]
		o.IsPaid, o.PaidAt, o.PaymentResult = true, &at, &r
		t.store.paidSets++
	})
	return t.fail("paid")
}

func (t *memTx) MarkDelivered(_ context.Context, id string, at time.Time) error {
	t.ops = append(t.ops, func() {
		o := t.store.orders[id]
		o.IsDelivered, o.DeliveredAt = true, &at
	})
	return nil
}

type stubUsers map[string]*user.User

func (s stubUsers) Get(_ context.Context, id string) (*user.User, error) {
	u, ok := s[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

var testAddress = &user.Address{
	FullName:      "Jane Doe",
	StreetAddress: "1 Main St",
	City:          "Springfield",
	PostalCode:    "12345",
	Country:       "USA",
}

func fixture() (*Service, *memStore) {
	items := []cart.Item{{ProductID: "p1", Name: "Polo Shirt", Slug: "polo-shirt", Price: decimal.RequireFromString("60.00"), Qty: 2}}
	store := newMemStore()
	store.carts = map[string]*cart.Cart{
		"u1": {ID: "c1", UserID: "u1", Items: items, Prices: cart.CalcPrices(items, cart.DefaultPricing)},
		"u2": {ID: "c2", UserID: "u2"},
		"u3": {ID: "c3", UserID: "u3", Items: items},
		"u4": {ID: "c4", UserID: "u4", Items: items},
	}
	users := stubUsers{
		"u1": {ID: "u1", Name: "Jane Doe", Address: testAddress, PaymentMethod: user.PaymentPayPal},
		"u2": {ID: "u2", Address: testAddress, PaymentMethod: user.PaymentPayPal},
		"u3": {ID: "u3", PaymentMethod: user.PaymentPayPal},
		"u4": {ID: "u4", Address: testAddress},
		"u5": {ID: "u5", Address: testAddress, PaymentMethod: user.PaymentPayPal},
	}
	store.stock["p1"] = 5
	svc := NewService(store, users, 10)
	return svc, store
}

func TestService_Create(t *testing.T) {
	svc, store := fixture()
	ctx := context.Background()

	o, err := svc.Create(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, StateCreated, o.State())
	assert.Equal(t, "138.00", o.Prices.Total.StringFixed(2))
	require.Len(t, o.Items, 1)
	assert.Equal(t, 2, o.Items[0].Qty)
	assert.Equal(t, "Springfield", o.ShippingAddress.City)
	assert.True(t, store.cleared["c1"])
	assert.Contains(t, store.orders, o.ID)
}

func TestService_CreatePreconditions(t *testing.T) {
	tests := []struct {
		name     string
		userID   string
		wantErr  error
		message  string
		redirect string
	}{
		{name: "empty cart", userID: "u2", wantErr: ErrCartEmpty, message: "Cart is empty", redirect: "/cart"},
		{name: "no cart", userID: "u5", wantErr: ErrCartEmpty, message: "Cart is empty", redirect: "/cart"},
		{name: "no address", userID: "u3", wantErr: ErrNoShippingAddress, message: "No shipping address", redirect: "/shipping-address"},
		{name: "no payment method", userID: "u4", wantErr: ErrNoPaymentMethod, message: "No payment method", redirect: "/payment-method"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := fixture()

			_, err := svc.Create(context.Background(), tt.userID)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.message, apperr.Fail(err).Message)
			assert.Equal(t, tt.redirect, apperr.Fail(err).RedirectTo)
			assert.Empty(t, store.orders)
			assert.Empty(t, store.cleared)
		})
	}
}

func TestService_CreateAnonymous(t *testing.T) {
	svc, _ := fixture()

	_, err := svc.Create(context.Background(), "")
	r, ok := apperr.AsRedirect(err)
	require.True(t, ok)
	assert.Equal(t, "/sign-in", r.URL)
}

func TestService_CreateConcurrent(t *testing.T) {
	svc, store := fixture()
	ctx := context.Background()

	const callers = 5
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(ctx, "u1")
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrCartEmpty)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, store.orders, 1)
	assert.Empty(t, store.carts["u1"].Items)
}

func TestService_CreateAtomic(t *testing.T) {
	svc, store := fixture()
	store.failOn = "clear"

	_, err := svc.Create(context.Background(), "u1")
	require.Error(t, err)
	assert.Empty(t, store.orders)
	assert.False(t, store.cleared["c1"])
	assert.Len(t, store.carts["u1"].Items, 1)
}

func TestService_MarkPaidTwice(t *testing.T) {
	svc, store := fixture()
	ctx := context.Background()
	o, err := svc.Create(ctx, "u1")
	require.NoError(t, err)

	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc.now = func() time.Time { return first }
	paid, err := svc.MarkPaid(ctx, o.ID, PaymentResult{ID: "CAP-1", Status: "COMPLETED", PricePaid: "138.00"})
	require.NoError(t, err)
	assert.Equal(t, StatePaid, paid.State())
	assert.Equal(t, 3, store.stock["p1"])

	svc.now = func() time.Time { return first.Add(time.Hour) }
	_, err = svc.MarkPaid(ctx, o.ID, PaymentResult{ID: "CAP-2"})
	require.ErrorIs(t, err, ErrAlreadyPaid)

	assert.Equal(t, 3, store.stock["p1"])
	assert.Equal(t, 1, store.paidSets)
	assert.True(t, store.orders[o.ID].PaidAt.Equal(first))
	assert.Equal(t, "CAP-1", store.orders[o.ID].PaymentResult.ID)
}

func TestService_MarkPaidConcurrent(t *testing.T) {
	svc, store := fixture()
	ctx := context.Background()
	o, err := svc.Create(ctx, "u1")
	require.NoError(t, err)

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.MarkPaid(ctx, o.ID, PaymentResult{ID: "CAP"}); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, 3, store.stock["p1"])
}

func TestService_MarkPaidRollback(t *testing.T) {
	svc, store := fixture()
	ctx := context.Background()
	o, err := svc.Create(ctx, "u1")
	require.NoError(t, err)

	store.failOn = "paid"
	_, err = svc.MarkPaid(ctx, o.ID, PaymentResult{ID: "CAP"})
	require.Error(t, err)
	assert.Equal(t, 5, store.stock["p1"])
	assert.False(t, store.orders[o.ID].IsPaid)
}

func TestService_MarkPaidClampsStock(t *testing.T) {
	svc, store := fixture()
	ctx := context.Background()
	o, err := svc.Create(ctx, "u1")
	require.NoError(t, err)
	store.stock["p1"] = 1

	_, err = svc.MarkPaid(ctx, o.ID, PaymentResult{ID: "CAP"})
	require.NoError(t, err)
	assert.Equal(t, 0, store.stock["p1"])
}

func TestService_MarkDelivered(t *testing.T) {
	svc, _ := fixture()
	ctx := context.Background()
	o, err := svc.Create(ctx, "u1")
	require.NoError(t, err)

	_, err = svc.MarkDelivered(ctx, o.ID)
	require.ErrorIs(t, err, ErrNotPaid)

	_, err = svc.MarkPaid(ctx, o.ID, PaymentResult{ID: "CAP"})
	require.NoError(t, err)

	d, err := svc.MarkDelivered(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StateDelivered, d.State())
	require.NotNil(t, d.DeliveredAt)

	_, err = svc.MarkDelivered(ctx, o.ID)
	require.ErrorIs(t, err, ErrAlreadyDelivered)
}

func TestService_SetPending(t *testing.T) {
	svc, store := fixture()
	ctx := context.Background()
	o, err := svc.Create(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, svc.SetPending(ctx, o.ID, "PP-1"))
	assert.Equal(t, StateAwaitingCapture, store.orders[o.ID].State())
	assert.Equal(t, "PP-1", store.orders[o.ID].PendingProviderID())

	_, err = svc.MarkPaid(ctx, o.ID, PaymentResult{ID: "PP-1"})
	require.NoError(t, err)
	require.ErrorIs(t, svc.SetPending(ctx, o.ID, "PP-2"), ErrAlreadyPaid)
}

func TestService_GetHidesForeignOrders(t *testing.T) {
	svc, _ := fixture()
	ctx := context.Background()
	o, err := svc.Create(ctx, "u1")
	require.NoError(t, err)

	_, err = svc.Get(ctx, &auth.Principal{UserID: "u1"}, o.ID)
	require.NoError(t, err)

	_, err = svc.Get(ctx, &auth.Principal{UserID: "u2"}, o.ID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Get(ctx, &auth.Principal{UserID: "admin", Role: auth.RoleAdmin}, o.ID)
	require.NoError(t, err)
}
