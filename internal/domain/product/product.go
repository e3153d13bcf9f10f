package product

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = apperr.NotFound("Product not found")

// ErrHasOrders is returned when deleting a product that order history refers to.
var ErrHasOrders = apperr.Rule("Product has orders and cannot be deleted", "")

// ErrSlugTaken is returned when a product slug is already in use.
var ErrSlugTaken = apperr.Validation("Slug already exists")

// Product represents a catalog item available for purchase.
type Product struct {
	ID          string
	Name        string
	Slug        string
	Category    string
	Brand       string
	Description string
	Images      []string
	Price       decimal.Decimal
	Stock       int
	Rating      decimal.Decimal
	NumReviews  int
	IsFeatured  bool
	Banner      string
	CreatedAt   time.Time
}

// FirstImage returns the primary image path, or "" when there are none.
func (p *Product) FirstImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// CategoryCount is one entry of the category facet.
type CategoryCount struct {
	Category string
	Count    int
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	GetBySlug(ctx context.Context, slug string) (*Product, error)
	Latest(ctx context.Context, limit int) ([]Product, error)
	Featured(ctx context.Context, limit int) ([]Product, error)
	// Search returns one page of matching products and the total match count.
	Search(ctx context.Context, params SearchParams) ([]Product, int, error)
	Categories(ctx context.Context) ([]CategoryCount, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
}
