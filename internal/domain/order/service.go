package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/user"
)

// Page is one page of orders.
type Page struct {
	Items      []Order
	Total      int
	TotalPages int
}

// Service implements the order builder and the order state transitions.
type Service struct {
	orders   Repository
	users    Users
	pageSize int
	now      func() time.Time
}

// NewService creates an order Service.
func NewService(orders Repository, users Users, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &Service{
		orders:   orders,
		users:    users,
		pageSize: pageSize,
		now:      time.Now,
	}
}

// Create turns the user's cart into an order and empties the cart in the same
// transaction. The cart row stays locked until commit, so concurrent checkouts
// of one cart yield a single order. Missing preconditions return a
// business-rule error naming the page that fixes them.
func (s *Service) Create(ctx context.Context, userID string) (*Order, error) {
	if userID == "" {
		return nil, apperr.RedirectTo("/sign-in")
	}

	// The user is loaded before the transaction so no pool connection is
	// requested while the cart lock is held.
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	var o *Order
	if err := s.orders.InTx(ctx, func(tx Tx) error {
		c, err := tx.LockCart(ctx, userID)
		if err != nil && !errors.Is(err, cart.ErrCartNotFound) {
			return errors.Wrap(err, "lock cart")
		}
		if c.IsEmpty() {
			return ErrCartEmpty
		}
		if !u.HasAddress() {
			return ErrNoShippingAddress
		}
		if !u.HasPaymentMethod() {
			return ErrNoPaymentMethod
		}

		o = s.build(u, c)
		if err := tx.Insert(ctx, o); err != nil {
			return errors.Wrap(err, "insert order")
		}
		if err := tx.ClearCart(ctx, c.ID); err != nil {
			return errors.Wrap(err, "clear cart")
		}
		return nil
	}); err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("Order created",
		zap.String("order_id", o.ID),
		zap.String("total", o.Prices.Total.StringFixed(2)),
	)
	return o, nil
}

// build snapshots c into a new order for u.
func (s *Service) build(u *user.User, c *cart.Cart) *Order {
	o := &Order{
		ID:              uuid.New().String(),
		UserID:          u.ID,
		UserName:        u.Name,
		ShippingAddress: *u.Address,
		PaymentMethod:   u.PaymentMethod,
		Prices:          c.Prices,
		Items:           make([]Item, len(c.Items)),
		CreatedAt:       s.now(),
	}
	for i, it := range c.Items {
		o.Items[i] = Item{
			ProductID: it.ProductID,
			Name:      it.Name,
			Slug:      it.Slug,
			Image:     it.Image,
			Price:     it.Price,
			Qty:       it.Qty,
		}
	}
	return o
}

// Get returns order id. Non-admin callers only see their own orders.
func (s *Service) Get(ctx context.Context, p *auth.Principal, id string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() && (p == nil || o.UserID != p.UserID) {
		return nil, ErrNotFound
	}
	return o, nil
}

// ListForUser returns one page of the user's orders, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string, page int) (*Page, error) {
	page = max(page, 1)
	items, total, err := s.orders.ListByUser(ctx, userID, s.pageSize, (page-1)*s.pageSize)
	if err != nil {
		return nil, errors.Wrap(err, "list user orders")
	}
	return s.page(items, total), nil
}

// List returns one page of all orders, optionally filtered by buyer name.
func (s *Service) List(ctx context.Context, query string, page int) (*Page, error) {
	page = max(page, 1)
	if query == "all" {
		query = ""
	}
	items, total, err := s.orders.List(ctx, query, s.pageSize, (page-1)*s.pageSize)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return s.page(items, total), nil
}

func (s *Service) page(items []Order, total int) *Page {
	return &Page{
		Items:      items,
		Total:      total,
		TotalPages: (total + s.pageSize - 1) / s.pageSize,
	}
}

// Delete removes order id.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.orders.Delete(ctx, id)
}

// SetPending stores the provider order id of a payment awaiting capture.
func (s *Service) SetPending(ctx context.Context, id, providerOrderID string) error {
	return s.orders.InTx(ctx, func(tx Tx) error {
		o, err := tx.Lock(ctx, id)
		if err != nil {
			return err
		}
		if o.IsPaid {
			return ErrAlreadyPaid
		}
		return tx.SetPaymentResult(ctx, id, PaymentResult{ID: providerOrderID})
	})
}

// MarkPaid is the paid-transition. Under the order row lock it rejects an
// already paid order, decrements stock for every line and stores the payment
// result, all in one transaction.
func (s *Service) MarkPaid(ctx context.Context, id string, result PaymentResult) (*Order, error) {
	lg := zctx.From(ctx).With(zap.String("order_id", id))

	var paid *Order
	err := s.orders.InTx(ctx, func(tx Tx) error {
		o, err := tx.Lock(ctx, id)
		if err != nil {
			return err
		}
		if o.IsPaid {
			return ErrAlreadyPaid
		}

		for _, it := range o.Items {
			clamped, err := tx.DecrementStock(ctx, it.ProductID, it.Qty)
			if err != nil {
				return errors.Wrapf(err, "decrement stock of %q", it.ProductID)
			}
			if clamped {
				lg.Warn("Stock oversold",
					zap.String("product_id", it.ProductID),
					zap.Int("qty", it.Qty),
				)
			}
		}

		at := s.now()
		if err := tx.MarkPaid(ctx, id, at, result); err != nil {
			return errors.Wrap(err, "mark paid")
		}

		o.IsPaid = true
		o.PaidAt = &at
		o.PaymentResult = &result
		paid = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	lg.Info("Order paid", zap.String("payment_id", result.ID))
	return paid, nil
}

// MarkDelivered sets the one-way delivered flag of a paid order.
func (s *Service) MarkDelivered(ctx context.Context, id string) (*Order, error) {
	var delivered *Order
	err := s.orders.InTx(ctx, func(tx Tx) error {
		o, err := tx.Lock(ctx, id)
		if err != nil {
			return err
		}
		if !o.IsPaid {
			return ErrNotPaid
		}
		if o.IsDelivered {
			return ErrAlreadyDelivered
		}

		at := s.now()
		if err := tx.MarkDelivered(ctx, id, at); err != nil {
			return errors.Wrap(err, "mark delivered")
		}
		o.IsDelivered = true
		o.DeliveredAt = &at
		delivered = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return delivered, nil
}
