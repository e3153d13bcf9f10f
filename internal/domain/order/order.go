// Package order builds immutable orders from carts and owns the paid and
// delivered transitions.
package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/user"
)

var (
	ErrNotFound          = apperr.NotFound("Order not found")
	ErrCartEmpty         = apperr.Rule("Cart is empty", "/cart")
	ErrNoShippingAddress = apperr.Rule("No shipping address", "/shipping-address")
	ErrNoPaymentMethod   = apperr.Rule("No payment method", "/payment-method")
	ErrAlreadyPaid       = apperr.Rule("Order is already paid", "")
	ErrNotPaid           = apperr.Rule("Order is not paid", "")
	ErrAlreadyDelivered  = apperr.Rule("Order is already delivered", "")
)

// State is the payment lifecycle position of an order.
type State int

const (
	StateCreated State = iota
	StateAwaitingCapture
	StatePaid
	StateDelivered
)

func (s State) String() string {
	switch s {
	case StateAwaitingCapture:
		return "awaiting_capture"
	case StatePaid:
		return "paid"
	case StateDelivered:
		return "delivered"
	default:
		return "created"
	}
}

// PaymentResult is the provider's record of a payment. Before capture it may
// hold only the pending provider order id.
type PaymentResult struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	EmailAddress string `json:"email_address"`
	PricePaid    string `json:"pricePaid"`
}

// Item is an order line, snapshotted from a cart line.
type Item struct {
	ProductID string
	Name      string
	Slug      string
	Image     string
	Price     decimal.Decimal
	Qty       int
}

// Order is an immutable snapshot of a cart plus shipping and payment choice.
// Only the paid and delivered flags and the payment result change later.
type Order struct {
	ID              string
	UserID          string
	UserName        string
	ShippingAddress user.Address
	PaymentMethod   user.PaymentMethod
	Prices          cart.Prices
	PaymentResult   *PaymentResult
	IsPaid          bool
	PaidAt          *time.Time
	IsDelivered     bool
	DeliveredAt     *time.Time
	Items           []Item
	CreatedAt       time.Time
}

// State derives the lifecycle state from the stored flags.
func (o *Order) State() State {
	switch {
	case o.IsDelivered:
		return StateDelivered
	case o.IsPaid:
		return StatePaid
	case o.PaymentResult != nil && o.PaymentResult.ID != "":
		return StateAwaitingCapture
	default:
		return StateCreated
	}
}

// PendingProviderID returns the provider order id stored while awaiting
// capture.
func (o *Order) PendingProviderID() string {
	if o.IsPaid || o.PaymentResult == nil {
		return ""
	}
	return o.PaymentResult.ID
}

// Repository defines persistence of orders.
type Repository interface {
	Get(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, int, error)
	// List returns a page of all orders whose buyer name contains query.
	List(ctx context.Context, query string, limit, offset int) ([]Order, int, error)
	Delete(ctx context.Context, id string) error
	// InTx runs fn in one transaction, rolling back when fn fails.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of writes that must commit together.
type Tx interface {
	// Lock loads the order and holds a row lock until the transaction ends.
	Lock(ctx context.Context, id string) (*Order, error)
	// LockCart loads the user's cart and holds a row lock until the
	// transaction ends. It returns cart.ErrCartNotFound when there is none.
	LockCart(ctx context.Context, userID string) (*cart.Cart, error)
	Insert(ctx context.Context, o *Order) error
	ClearCart(ctx context.Context, cartID string) error
	// DecrementStock reduces stock by qty without going below zero and
	// reports whether it had to clamp.
	DecrementStock(ctx context.Context, productID string, qty int) (clamped bool, err error)
	SetPaymentResult(ctx context.Context, id string, r PaymentResult) error
	MarkPaid(ctx context.Context, id string, at time.Time, r PaymentResult) error
	MarkDelivered(ctx context.Context, id string, at time.Time) error
}

// Users is the user lookup needed at checkout.
type Users interface {
	Get(ctx context.Context, id string) (*user.User, error)
}
