package payment

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
)

type fakeOrders struct {
	orders    map[string]*order.Order
	paidCalls int
}

func (f *fakeOrders) Get(_ context.Context, _ *auth.Principal, id string) (*order.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) SetPending(_ context.Context, id, providerOrderID string) error {
	f.orders[id].PaymentResult = &order.PaymentResult{ID: providerOrderID}
	return nil
}

func (f *fakeOrders) MarkPaid(_ context.Context, id string, r order.PaymentResult) (*order.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	if o.IsPaid {
		return nil, order.ErrAlreadyPaid
	}
	f.paidCalls++
	o.IsPaid = true
	o.PaymentResult = &r
	return o, nil
}

func (f *fakeOrders) MarkDelivered(_ context.Context, id string) (*order.Order, error) {
	o := f.orders[id]
	if !o.IsPaid {
		return nil, order.ErrNotPaid
	}
	o.IsDelivered = true
	return o, nil
}

type fakePayPal struct {
	createID string
	capture  *Capture
	err      error
	amount   decimal.Decimal
}

func (f *fakePayPal) CreateOrder(_ context.Context, amount decimal.Decimal) (string, error) {
	f.amount = amount
	return f.createID, f.err
}

func (f *fakePayPal) CaptureOrder(_ context.Context, _ string) (*Capture, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.capture, nil
}

type fakeIntents struct {
	event *Event
	cents int64
}

func (f *fakeIntents) CreateIntent(_ context.Context, amountCents int64, orderID string) (*Intent, error) {
	f.cents = amountCents
	return &Intent{ID: "pi_1", ClientSecret: "pi_1_secret_" + orderID}, nil
}

func (f *fakeIntents) ParseEvent(_ []byte, signature string) (*Event, error) {
	if signature != "valid" {
		return nil, errors.New("signature mismatch")
	}
	return f.event, nil
}

func newTestService(t *testing.T, pp *fakePayPal, in *fakeIntents) (*Service, *fakeOrders) {
	t.Helper()
	orders := &fakeOrders{orders: map[string]*order.Order{
		"o1": {ID: "o1", UserID: "u1", Prices: cart.Prices{Total: decimal.RequireFromString("138.00")}},
	}}
	svc, err := NewService(orders, pp, in,
		metricnoop.NewMeterProvider().Meter("test"),
		tracenoop.NewTracerProvider().Tracer("test"),
	)
	require.NoError(t, err)
	return svc, orders
}

var customer = &auth.Principal{UserID: "u1", Role: auth.RoleUser}

func TestPayPalFlow(t *testing.T) {
	ctx := context.Background()
	pp := &fakePayPal{createID: "PP-1"}
	svc, orders := newTestService(t, pp, &fakeIntents{})

	id, err := svc.CreatePayPalOrder(ctx, customer, "o1")
	require.NoError(t, err)
	assert.Equal(t, "PP-1", id)
	assert.Equal(t, "138.00", pp.amount.StringFixed(2))
	assert.Equal(t, order.StateAwaitingCapture, orders.orders["o1"].State())

	pp.capture = &Capture{ID: "PP-1", Status: StatusCompleted, PayerEmail: "buyer@example.com", Amount: "138.00"}
	paid, err := svc.ApprovePayPalOrder(ctx, customer, "o1", "PP-1")
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)
	assert.Equal(t, "buyer@example.com", paid.PaymentResult.EmailAddress)
	assert.Equal(t, "138.00", paid.PaymentResult.PricePaid)

	_, err = svc.ApprovePayPalOrder(ctx, customer, "o1", "PP-1")
	require.ErrorIs(t, err, order.ErrAlreadyPaid)
	assert.Equal(t, 1, orders.paidCalls)

	_, err = svc.CreatePayPalOrder(ctx, customer, "o1")
	require.ErrorIs(t, err, order.ErrAlreadyPaid)
}

func TestApprovePayPalOrderRejects(t *testing.T) {
	tests := []struct {
		name    string
		capture *Capture
		err     error
	}{
		{name: "id mismatch", capture: &Capture{ID: "PP-other", Status: StatusCompleted}},
		{name: "not completed", capture: &Capture{ID: "PP-1", Status: "PENDING"}},
		{name: "provider failure", err: errors.New("422 UNPROCESSABLE_ENTITY")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			pp := &fakePayPal{createID: "PP-1"}
			svc, orders := newTestService(t, pp, &fakeIntents{})
			_, err := svc.CreatePayPalOrder(ctx, customer, "o1")
			require.NoError(t, err)

			pp.capture, pp.err = tt.capture, tt.err
			_, err = svc.ApprovePayPalOrder(ctx, customer, "o1", "PP-1")
			require.Error(t, err)
			assert.Equal(t, apperr.KindProvider, apperr.KindOf(err))
			assert.False(t, orders.orders["o1"].IsPaid)
			assert.Zero(t, orders.paidCalls)
		})
	}
}

func TestApprovePayPalOrderWithoutPending(t *testing.T) {
	svc, _ := newTestService(t, &fakePayPal{}, &fakeIntents{})

	_, err := svc.ApprovePayPalOrder(context.Background(), customer, "o1", "PP-1")
	require.ErrorIs(t, err, ErrNotAwaitingCapture)
}

func TestCreatePaymentIntent(t *testing.T) {
	in := &fakeIntents{}
	svc, _ := newTestService(t, &fakePayPal{}, in)

	intent, err := svc.CreatePaymentIntent(context.Background(), customer, "o1")
	require.NoError(t, err)
	assert.Equal(t, int64(13800), in.cents)
	assert.Equal(t, "pi_1_secret_o1", intent.ClientSecret)
}

func TestHandleCardWebhook(t *testing.T) {
	ctx := context.Background()
	in := &fakeIntents{event: &Event{
		ID:          "evt_1",
		Type:        EventChargeSucceeded,
		OrderID:     "o1",
		ChargeID:    "ch_1",
		Status:      "succeeded",
		Email:       "buyer@example.com",
		AmountCents: 13800,
	}}
	svc, orders := newTestService(t, &fakePayPal{}, in)

	_, err := svc.HandleCardWebhook(ctx, []byte(`{}`), "forged")
	require.ErrorIs(t, err, ErrBadSignature)
	assert.Zero(t, orders.paidCalls)

	msg, err := svc.HandleCardWebhook(ctx, []byte(`{}`), "valid")
	require.NoError(t, err)
	assert.Equal(t, "Order marked as paid", msg)
	assert.Equal(t, "138.00", orders.orders["o1"].PaymentResult.PricePaid)
	assert.Equal(t, "ch_1", orders.orders["o1"].PaymentResult.ID)

	msg, err = svc.HandleCardWebhook(ctx, []byte(`{}`), "valid")
	require.NoError(t, err)
	assert.Equal(t, "Order already paid", msg)
	assert.Equal(t, 1, orders.paidCalls)

	in.event = &Event{ID: "evt_2", Type: "payment_intent.created"}
	msg, err = svc.HandleCardWebhook(ctx, []byte(`{}`), "valid")
	require.NoError(t, err)
	assert.Equal(t, "Event ignored", msg)
}

func TestOffline(t *testing.T) {
	ctx := context.Background()
	svc, orders := newTestService(t, &fakePayPal{}, &fakeIntents{})

	_, err := svc.MarkDelivered(ctx, "o1")
	require.ErrorIs(t, err, order.ErrNotPaid)

	_, err = svc.MarkPaidOffline(ctx, "o1")
	require.NoError(t, err)
	_, err = svc.MarkPaidOffline(ctx, "o1")
	require.ErrorIs(t, err, order.ErrAlreadyPaid)

	d, err := svc.MarkDelivered(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, d.IsDelivered)
	assert.Equal(t, 1, orders.paidCalls)
}

func TestCents(t *testing.T) {
	assert.Equal(t, int64(2150), ToCents(decimal.RequireFromString("21.50")))
	assert.Equal(t, "21.50", FromCents(2150))
	assert.Equal(t, "0.05", FromCents(5))
}
