// Package payment drives orders through provider capture into the paid
// state.
package payment

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/order"
)

// StatusCompleted is the provider status of a successful capture.
const StatusCompleted = "COMPLETED"

// EventChargeSucceeded is the card webhook event that settles an order.
const EventChargeSucceeded = "charge.succeeded"

var (
	// ErrPayPalRejected is returned when a capture does not match the pending
	// provider order or did not complete.
	ErrPayPalRejected = apperr.Provider("Error in PayPal payment", nil)
	// ErrNotAwaitingCapture is returned when approving an order that never
	// started a PayPal payment.
	ErrNotAwaitingCapture = apperr.Rule("Order is not awaiting PayPal payment", "")
	// ErrBadSignature is returned for webhook payloads that fail verification.
	ErrBadSignature = apperr.Validation("Invalid webhook signature")
)

// Capture is the outcome of a PayPal capture call.
type Capture struct {
	ID         string
	Status     string
	PayerEmail string
	// Amount is the captured value as the provider reports it.
	Amount string
}

// PayPal is the PayPal orders API.
type PayPal interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal) (string, error)
	CaptureOrder(ctx context.Context, providerOrderID string) (*Capture, error)
}

// Intent is a card payment intent awaiting confirmation by the customer.
type Intent struct {
	ID           string
	ClientSecret string
}

// Event is a verified card provider webhook event.
type Event struct {
	ID   string
	Type string
	// OrderID is the storefront order named in the charge metadata.
	OrderID     string
	ChargeID    string
	Status      string
	Email       string
	AmountCents int64
}

// CardIntents is the card payment-intent API.
type CardIntents interface {
	CreateIntent(ctx context.Context, amountCents int64, orderID string) (*Intent, error)
	// ParseEvent verifies signature over payload and decodes the event.
	ParseEvent(payload []byte, signature string) (*Event, error)
}

// Orders is the order functionality payment capture relies on.
type Orders interface {
	Get(ctx context.Context, p *auth.Principal, id string) (*order.Order, error)
	SetPending(ctx context.Context, id, providerOrderID string) error
	MarkPaid(ctx context.Context, id string, result order.PaymentResult) (*order.Order, error)
	MarkDelivered(ctx context.Context, id string) (*order.Order, error)
}

// ToCents converts a 2-decimal amount to integer minor units.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromCents formats integer minor units as a 2-decimal amount.
func FromCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
