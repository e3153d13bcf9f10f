// Package cart implements the per-owner shopping cart and its derived totals.
package cart

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/product"
)

var (
	// ErrNoOwner is returned when neither a user nor a session identifies the caller.
	ErrNoOwner = apperr.Validation("Cart session not found")
	// ErrCartNotFound is returned when the owner has no cart yet.
	ErrCartNotFound = apperr.NotFound("Cart not found")
	// ErrItemNotFound is returned when removing a product that is not in the cart.
	ErrItemNotFound = apperr.NotFound("Item not found")
	// ErrNotEnoughStock is returned when a quantity would exceed product stock.
	ErrNotEnoughStock = apperr.Rule("Not enough stock", "")
	// ErrInvalidItem is returned for an empty product reference.
	ErrInvalidItem = apperr.Validation("Product is required")
)

// Owner identifies whose cart an operation acts on. When UserID is set it is
// the lookup key; SessionID is kept so a freshly created cart records both.
type Owner struct {
	UserID    string
	SessionID string
}

// ResolveOwner returns the canonical cart owner for a caller. An authenticated
// user always wins over the anonymous session.
func ResolveOwner(userID, sessionID string) (Owner, error) {
	switch {
	case userID != "":
		return Owner{UserID: userID, SessionID: sessionID}, nil
	case sessionID != "":
		return Owner{SessionID: sessionID}, nil
	default:
		return Owner{}, ErrNoOwner
	}
}

// IsUser reports whether the owner is an authenticated user.
func (o Owner) IsUser() bool { return o.UserID != "" }

// Item is one cart line. Name, slug, image and price are snapshotted when the
// product is first added.
type Item struct {
	ProductID string
	Name      string
	Slug      string
	Image     string
	Price     decimal.Decimal
	Qty       int
}

// Cart is a mutable pre-checkout collection of items.
type Cart struct {
	ID        string
	UserID    string
	SessionID string
	Items     []Item
	Prices    Prices
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool { return c == nil || len(c.Items) == 0 }

func (c *Cart) find(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Repository defines persistence of carts.
type Repository interface {
	// Find returns the owner's cart or ErrCartNotFound.
	Find(ctx context.Context, owner Owner) (*Cart, error)
	Create(ctx context.Context, c *Cart) error
	// Save persists the item list and derived prices of c.
	Save(ctx context.Context, c *Cart) error
	// Claim hands the session cart over to userID, replacing any cart the
	// user already had.
	Claim(ctx context.Context, sessionID, userID string) error
}

// Products is the slice of the catalog the cart needs.
type Products interface {
	GetByID(ctx context.Context, id string) (*product.Product, error)
}
