package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/product"
)

const productColumns = `id, name, slug, category, brand, description, images, price, stock,
		rating, num_reviews, is_featured, COALESCE(banner, ''), created_at`

const (
	getProductByIDSQL   = `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	getProductBySlugSQL = `SELECT ` + productColumns + ` FROM products WHERE slug = $1`

	latestProductsSQL = `SELECT ` + productColumns + `
		FROM products ORDER BY created_at DESC, id LIMIT $1`

	featuredProductsSQL = `SELECT ` + productColumns + `
		FROM products WHERE is_featured ORDER BY created_at DESC, id LIMIT $1`

	categoriesSQL = `SELECT category, count(*) FROM products GROUP BY category ORDER BY category`

	createProductSQL = `INSERT INTO products
		(id, name, slug, category, brand, description, images, price, stock, rating, num_reviews, is_featured, banner)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NULLIF($13, ''))
		RETURNING created_at`

	updateProductSQL = `UPDATE products SET
		name = $2, slug = $3, category = $4, brand = $5, description = $6, images = $7,
		price = $8, stock = $9, is_featured = $10, banner = NULLIF($11, '')
		WHERE id = $1`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`

	upsertProductSQL = `INSERT INTO products
		(id, name, slug, category, brand, description, images, price, stock, rating, num_reviews, is_featured, banner)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NULLIF($13, ''))
		ON CONFLICT (slug) DO UPDATE SET
			name = EXCLUDED.name, category = EXCLUDED.category, brand = EXCLUDED.brand,
			description = EXCLUDED.description, images = EXCLUDED.images, price = EXCLUDED.price,
			stock = EXCLUDED.stock, is_featured = EXCLUDED.is_featured, banner = EXCLUDED.banner`
)

var searchOrder = map[product.SortKey]string{
	product.SortNewest:     "created_at DESC, id",
	product.SortPriceAsc:   "price ASC, id",
	product.SortPriceDesc:  "price DESC, id",
	product.SortRatingDesc: "rating DESC, id",
}

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	return r.getOne(ctx, getProductByIDSQL, id)
}

// GetBySlug returns a single product by its slug.
func (r *ProductRepository) GetBySlug(ctx context.Context, slug string) (*product.Product, error) {
	return r.getOne(ctx, getProductBySlugSQL, slug)
}

func (r *ProductRepository) getOne(ctx context.Context, sql, key string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, sql, key)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", key, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", key, err)
	}
	return &p, nil
}

// Latest returns the newest products.
func (r *ProductRepository) Latest(ctx context.Context, limit int) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, latestProductsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("listing latest products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Featured returns the newest featured products.
func (r *ProductRepository) Featured(ctx context.Context, limit int) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, featuredProductsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("listing featured products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Search returns one page of products matching params and the total number
// of matches.
func (r *ProductRepository) Search(ctx context.Context, params product.SearchParams) ([]product.Product, int, error) {
	where, args := searchFilter(params)

	total, err := countRows(ctx, r.pool, `SELECT count(*) FROM products`+where, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("counting products: %w", err)
	}

	order, ok := searchOrder[params.Sort]
	if !ok {
		order = searchOrder[product.SortNewest]
	}
	n := len(args)
	sql := `SELECT ` + productColumns + ` FROM products` + where +
		` ORDER BY ` + order +
		` LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, params.Limit, params.Offset())

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("searching products: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, 0, fmt.Errorf("searching products: %w", err)
	}
	return items, total, nil
}

// searchFilter builds the WHERE clause of a catalog search.
func searchFilter(p product.SearchParams) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}

	if p.Query != "" {
		add("name ILIKE ?", likePattern(p.Query))
	}
	if p.Category != "" {
		add("category = ?", p.Category)
	}
	if p.MinPrice.Valid {
		add("price >= ?", p.MinPrice.Decimal)
	}
	if p.MaxPrice.Valid {
		add("price <= ?", p.MaxPrice.Decimal)
	}
	if p.MinRating.Valid {
		add("rating >= ?", p.MinRating.Decimal)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Categories returns every category with its product count.
func (r *ProductRepository) Categories(ctx context.Context) ([]product.CategoryCount, error) {
	rows, err := r.pool.Query(ctx, categoriesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.CategoryCount, error) {
		var c product.CategoryCount
		err := row.Scan(&c.Category, &c.Count)
		return c, err
	})
}

// Create inserts p and fills in its creation time.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	err := r.pool.QueryRow(ctx, createProductSQL,
		p.ID, p.Name, p.Slug, p.Category, p.Brand, p.Description, p.Images,
		p.Price, p.Stock, p.Rating, p.NumReviews, p.IsFeatured, p.Banner,
	).Scan(&p.CreatedAt)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return product.ErrSlugTaken
		}
		return fmt.Errorf("creating product %q: %w", p.Slug, err)
	}
	return nil
}

// Update replaces the editable fields of p.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	tag, err := r.pool.Exec(ctx, updateProductSQL,
		p.ID, p.Name, p.Slug, p.Category, p.Brand, p.Description, p.Images,
		p.Price, p.Stock, p.IsFeatured, p.Banner,
	)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return product.ErrSlugTaken
		}
		return fmt.Errorf("updating product %q: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Delete removes product id. Products referenced by orders are kept.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return product.ErrHasOrders
		}
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// UpsertBatch inserts or updates products keyed by slug in one round trip.
func (r *ProductRepository) UpsertBatch(ctx context.Context, products []product.Product) error {
	batch := &pgx.Batch{}
	for _, p := range products {
		batch.Queue(upsertProductSQL,
			p.ID, p.Name, p.Slug, p.Category, p.Brand, p.Description, p.Images,
			p.Price, p.Stock, p.Rating, p.NumReviews, p.IsFeatured, p.Banner,
		)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting %d products: %w", len(products), err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Slug, &p.Category, &p.Brand, &p.Description, &p.Images,
		&p.Price, &p.Stock, &p.Rating, &p.NumReviews, &p.IsFeatured, &p.Banner, &p.CreatedAt,
	)
	return p, err
}
