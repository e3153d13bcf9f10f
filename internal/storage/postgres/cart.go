package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/cart"
)

const cartColumns = `id, COALESCE(user_id, ''), session_id, items,
		items_price, shipping_price, tax_price, total_price`

const (
	findUserCartSQL = `SELECT ` + cartColumns + ` FROM carts
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`

	lockUserCartSQL = `SELECT ` + cartColumns + ` FROM carts
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1 FOR UPDATE`

	findSessionCartSQL = `SELECT ` + cartColumns + ` FROM carts
		WHERE session_id = $1 AND user_id IS NULL ORDER BY created_at DESC LIMIT 1`

	createCartSQL = `INSERT INTO carts
		(id, user_id, session_id, items, items_price, shipping_price, tax_price, total_price)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8)`

	saveCartSQL = `UPDATE carts SET items = $2,
		items_price = $3, shipping_price = $4, tax_price = $5, total_price = $6
		WHERE id = $1`

	lockSessionCartSQL = `SELECT id FROM carts
		WHERE session_id = $1 AND user_id IS NULL
		ORDER BY created_at DESC LIMIT 1 FOR UPDATE`

	deleteUserCartsSQL = `DELETE FROM carts WHERE user_id = $1`
	assignCartSQL      = `UPDATE carts SET user_id = $2 WHERE id = $1`
)

// cartItemJSON is the JSONB shape of a cart line.
type cartItemJSON struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Slug      string          `json:"slug"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Qty       int             `json:"qty"`
}

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Find returns the owner's cart, looked up by user when authenticated and by
// session otherwise.
func (r *CartRepository) Find(ctx context.Context, owner cart.Owner) (*cart.Cart, error) {
	sql, key := findSessionCartSQL, owner.SessionID
	if owner.IsUser() {
		sql, key = findUserCartSQL, owner.UserID
	}

	return getCart(ctx, r.pool, sql, key)
}

func getCart(ctx context.Context, q querier, sql, key string) (*cart.Cart, error) {
	rows, err := q.Query(ctx, sql, key)
	if err != nil {
		return nil, fmt.Errorf("finding cart: %w", err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrCartNotFound
		}
		return nil, fmt.Errorf("finding cart: %w", err)
	}
	return &c, nil
}

// Create inserts a new cart.
func (r *CartRepository) Create(ctx context.Context, c *cart.Cart) error {
	items, err := marshalCartItems(c.Items)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, createCartSQL,
		c.ID, c.UserID, c.SessionID, items,
		c.Prices.Items, c.Prices.Shipping, c.Prices.Tax, c.Prices.Total,
	)
	if err != nil {
		return fmt.Errorf("creating cart %q: %w", c.ID, err)
	}
	return nil
}

// Save persists the items and derived prices of c.
func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	items, err := marshalCartItems(c.Items)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, saveCartSQL,
		c.ID, items, c.Prices.Items, c.Prices.Shipping, c.Prices.Tax, c.Prices.Total,
	)
	if err != nil {
		return fmt.Errorf("saving cart %q: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrCartNotFound
	}
	return nil
}

// Claim moves the anonymous session cart to userID. Carts the user already
// had are removed first. Without a session cart nothing changes.
func (r *CartRepository) Claim(ctx context.Context, sessionID, userID string) error {
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var cartID string
		err := tx.QueryRow(ctx, lockSessionCartSQL, sessionID).Scan(&cartID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("locking session cart: %w", err)
		}

		if _, err := tx.Exec(ctx, deleteUserCartsSQL, userID); err != nil {
			return fmt.Errorf("deleting user carts: %w", err)
		}
		if _, err := tx.Exec(ctx, assignCartSQL, cartID, userID); err != nil {
			return fmt.Errorf("assigning cart %q: %w", cartID, err)
		}
		return nil
	})
}

func marshalCartItems(items []cart.Item) ([]byte, error) {
	rows := make([]cartItemJSON, len(items))
	for i, it := range items {
		rows[i] = cartItemJSON(it)
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("marshaling cart items: %w", err)
	}
	return b, nil
}

func scanCart(row pgx.CollectableRow) (cart.Cart, error) {
	var (
		c     cart.Cart
		items []byte
	)
	err := row.Scan(
		&c.ID, &c.UserID, &c.SessionID, &items,
		&c.Prices.Items, &c.Prices.Shipping, &c.Prices.Tax, &c.Prices.Total,
	)
	if err != nil {
		return c, err
	}

	var lines []cartItemJSON
	if err := json.Unmarshal(items, &lines); err != nil {
		return c, fmt.Errorf("unmarshaling cart items: %w", err)
	}
	c.Items = make([]cart.Item, len(lines))
	for i, l := range lines {
		c.Items[i] = cart.Item(l)
	}
	return c, nil
}
