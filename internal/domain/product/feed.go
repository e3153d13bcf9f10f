package product

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
)

var maxRating = decimal.NewFromInt(5)

// FeedRecord is one product of a JSON catalog feed or the seed file.
type FeedRecord struct {
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Category    string   `json:"category"`
	Brand       string   `json:"brand"`
	Description string   `json:"description"`
	Images      []string `json:"images"`
	Price       string   `json:"price"`
	Stock       int      `json:"stock"`
	Rating      string   `json:"rating"`
	NumReviews  int      `json:"numReviews"`
	IsFeatured  bool     `json:"isFeatured"`
	Banner      string   `json:"banner"`
}

// Product validates r like an admin edit and returns it with a fresh id.
// Feeds may also carry review aggregates.
func (r FeedRecord) Product() (Product, error) {
	p, err := Input{
		Name:        r.Name,
		Slug:        r.Slug,
		Category:    r.Category,
		Brand:       r.Brand,
		Description: r.Description,
		Price:       r.Price,
		Stock:       r.Stock,
		Images:      r.Images,
		IsFeatured:  r.IsFeatured,
		Banner:      r.Banner,
	}.toProduct()
	if err != nil {
		return Product{}, err
	}
	p.ID = uuid.New().String()

	if r.Rating != "" {
		rating, err := decimal.NewFromString(r.Rating)
		if err != nil || rating.IsNegative() || rating.GreaterThan(maxRating) {
			return Product{}, apperr.Validation("Rating must be between 0 and 5")
		}
		p.Rating = rating
	}
	if r.NumReviews < 0 {
		return Product{}, apperr.Validation("Review count must not be negative")
	}
	p.NumReviews = r.NumReviews
	return *p, nil
}
