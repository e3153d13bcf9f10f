package product

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
)

// SortKey orders search results.
type SortKey string

const (
	SortNewest     SortKey = "newest"
	SortPriceAsc   SortKey = "price-asc"
	SortPriceDesc  SortKey = "price-desc"
	SortRatingDesc SortKey = "rating-desc"
)

// sortAliases maps the storefront's short sort names to sort keys.
var sortAliases = map[string]SortKey{
	"lowest":  SortPriceAsc,
	"highest": SortPriceDesc,
	"rating":  SortRatingDesc,
}

// SearchParams is a validated catalog query. Zero values mean "no filter".
type SearchParams struct {
	Query     string
	Category  string
	MinPrice  decimal.NullDecimal
	MaxPrice  decimal.NullDecimal
	MinRating decimal.NullDecimal
	Sort      SortKey
	Page      int
	Limit     int
}

// Offset returns the number of rows to skip for the requested page.
func (p SearchParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// RawSearch holds the unparsed query parameters of a catalog search. The
// literal value "all" means unset for every filter.
type RawSearch struct {
	Query    string
	Category string
	Price    string
	Rating   string
	Sort     string
	Page     string
}

// Parse validates r into SearchParams with the given page size.
func (r RawSearch) Parse(limit int) (SearchParams, error) {
	params := SearchParams{
		Query:    unsetAll(r.Query),
		Category: unsetAll(r.Category),
		Sort:     SortNewest,
		Page:     1,
		Limit:    limit,
	}

	if price := unsetAll(r.Price); price != "" {
		lo, hi, ok := strings.Cut(price, "-")
		if !ok {
			return params, apperr.Validation("Price range must look like min-max")
		}
		minPrice, err := decimal.NewFromString(strings.TrimSpace(lo))
		if err != nil {
			return params, apperr.Validation("Invalid minimum price")
		}
		maxPrice, err := decimal.NewFromString(strings.TrimSpace(hi))
		if err != nil {
			return params, apperr.Validation("Invalid maximum price")
		}
		if maxPrice.LessThan(minPrice) {
			return params, apperr.Validation("Maximum price is below minimum price")
		}
		params.MinPrice = decimal.NewNullDecimal(minPrice)
		params.MaxPrice = decimal.NewNullDecimal(maxPrice)
	}

	if rating := unsetAll(r.Rating); rating != "" {
		v, err := decimal.NewFromString(rating)
		if err != nil {
			return params, apperr.Validation("Invalid rating")
		}
		params.MinRating = decimal.NewNullDecimal(v)
	}

	if s := unsetAll(r.Sort); s != "" {
		switch key := SortKey(s); key {
		case SortNewest, SortPriceAsc, SortPriceDesc, SortRatingDesc:
			params.Sort = key
		default:
			alias, ok := sortAliases[s]
			if !ok {
				return params, apperr.Validation("Unknown sort order " + strconv.Quote(s))
			}
			params.Sort = alias
		}
	}

	if r.Page != "" {
		n, err := strconv.Atoi(r.Page)
		if err != nil || n < 1 {
			return params, apperr.Validation("Page must be a positive number")
		}
		params.Page = n
	}

	return params, nil
}

func unsetAll(v string) string {
	v = strings.TrimSpace(v)
	if v == "all" {
		return ""
	}
	return v
}

// TotalPages returns the number of pages needed for total rows.
func TotalPages(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
