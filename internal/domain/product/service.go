package product

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
)

// Config holds catalog paging limits.
type Config struct {
	PageSize    int
	LatestLimit int
}

// Page is one page of search results.
type Page struct {
	Items      []Product
	Total      int
	TotalPages int
}

// Input is the admin-editable part of a product.
type Input struct {
	Name        string   `label:"Name" validate:"min=3"`
	Slug        string   `label:"Slug" validate:"min=3"`
	Category    string   `label:"Category" validate:"min=3"`
	Brand       string   `label:"Brand" validate:"min=3"`
	Description string   `label:"Description" validate:"min=10"`
	Price       string   `label:"Price" validate:"money"`
	Stock       int      `label:"Stock" validate:"gte=0"`
	Images      []string `label:"Images" validate:"min=1"`
	IsFeatured  bool
	Banner      string
}

// Service implements catalog reads and admin product maintenance.
type Service struct {
	repo Repository
	cfg  Config
}

// NewService creates a catalog Service.
func NewService(repo Repository, cfg Config) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	if cfg.LatestLimit <= 0 {
		cfg.LatestLimit = 4
	}
	return &Service{repo: repo, cfg: cfg}
}

// BySlug returns the product with the given slug.
func (s *Service) BySlug(ctx context.Context, slug string) (*Product, error) {
	return s.repo.GetBySlug(ctx, slug)
}

// ByID returns the product with the given id.
func (s *Service) ByID(ctx context.Context, id string) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

// Latest returns the newest products for the home page.
func (s *Service) Latest(ctx context.Context) ([]Product, error) {
	return s.repo.Latest(ctx, s.cfg.LatestLimit)
}

// Featured returns featured products for the home page carousel.
func (s *Service) Featured(ctx context.Context) ([]Product, error) {
	return s.repo.Featured(ctx, s.cfg.LatestLimit)
}

// Categories returns the category facet with product counts.
func (s *Service) Categories(ctx context.Context) ([]CategoryCount, error) {
	return s.repo.Categories(ctx)
}

// Search parses raw and returns the requested page of matching products.
func (s *Service) Search(ctx context.Context, raw RawSearch) (*Page, error) {
	params, err := raw.Parse(s.cfg.PageSize)
	if err != nil {
		return nil, err
	}

	items, total, err := s.repo.Search(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "search products")
	}

	return &Page{
		Items:      items,
		Total:      total,
		TotalPages: TotalPages(total, params.Limit),
	}, nil
}

// Create validates in and inserts a new product.
func (s *Service) Create(ctx context.Context, in Input) (*Product, error) {
	p, err := in.toProduct()
	if err != nil {
		return nil, err
	}
	p.ID = uuid.New().String()

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	return p, nil
}

// Update validates in and replaces the editable fields of product id.
func (s *Service) Update(ctx context.Context, id string, in Input) (*Product, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	p, err := in.toProduct()
	if err != nil {
		return nil, err
	}
	p.ID = existing.ID
	p.Rating = existing.Rating
	p.NumReviews = existing.NumReviews
	p.CreatedAt = existing.CreatedAt

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, errors.Wrap(err, "update product")
	}
	return p, nil
}

// Delete removes product id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (in Input) toProduct() (*Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Slug = strings.TrimSpace(in.Slug)
	if err := apperr.ValidateStruct(in); err != nil {
		return nil, err
	}

	price, err := decimal.NewFromString(in.Price)
	if err != nil {
		return nil, apperr.Validation("Price must be a valid number with 2 decimal places")
	}

	return &Product{
		Name:        in.Name,
		Slug:        in.Slug,
		Category:    in.Category,
		Brand:       in.Brand,
		Description: in.Description,
		Images:      in.Images,
		Price:       price.Round(2),
		Stock:       in.Stock,
		Rating:      decimal.Zero,
		IsFeatured:  in.IsFeatured,
		Banner:      in.Banner,
	}, nil
}
