package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/user"
)

const orderColumns = `o.id, o.user_id, COALESCE(u.name, ''), o.shipping_address, o.payment_method,
		o.payment_result, o.items_price, o.shipping_price, o.tax_price, o.total_price,
		o.is_paid, o.paid_at, o.is_delivered, o.delivered_at, o.created_at`

const (
	getOrderSQL = `SELECT ` + orderColumns + `
		FROM orders o LEFT JOIN users u ON u.id = o.user_id
		WHERE o.id = $1`

	lockOrderSQL = `SELECT ` + orderColumns + `
		FROM orders o LEFT JOIN users u ON u.id = o.user_id
		WHERE o.id = $1 FOR UPDATE OF o`

	orderItemsSQL = `SELECT product_id, name, slug, image, price, qty
		FROM order_items WHERE order_id = $1 ORDER BY name, product_id`

	userOrdersSQL = `SELECT ` + orderColumns + `
		FROM orders o LEFT JOIN users u ON u.id = o.user_id
		WHERE o.user_id = $1 ORDER BY o.created_at DESC, o.id LIMIT $2 OFFSET $3`

	countUserOrdersSQL = `SELECT count(*) FROM orders WHERE user_id = $1`

	listOrdersSQL = `SELECT ` + orderColumns + `
		FROM orders o LEFT JOIN users u ON u.id = o.user_id
		WHERE ($1 = '' OR u.name ILIKE $2)
		ORDER BY o.created_at DESC, o.id LIMIT $3 OFFSET $4`

	countOrdersFilteredSQL = `SELECT count(*)
		FROM orders o LEFT JOIN users u ON u.id = o.user_id
		WHERE ($1 = '' OR u.name ILIKE $2)`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`

	insertOrderSQL = `INSERT INTO orders
		(id, user_id, shipping_address, payment_method,
		 items_price, shipping_price, tax_price, total_price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	clearCartSQL = `UPDATE carts SET items = '[]',
		items_price = 0, shipping_price = 0, tax_price = 0, total_price = 0
		WHERE id = $1`

	decrementStockSQL = `WITH cur AS (SELECT stock FROM products WHERE id = $1 FOR UPDATE)
		UPDATE products p SET stock = GREATEST(cur.stock - $2, 0)
		FROM cur WHERE p.id = $1
		RETURNING cur.stock < $2`

	setPaymentResultSQL = `UPDATE orders SET payment_result = $2 WHERE id = $1`

	markPaidSQL = `UPDATE orders SET is_paid = true, paid_at = $2, payment_result = $3
		WHERE id = $1 AND NOT is_paid`

	markDeliveredSQL = `UPDATE orders SET is_delivered = true, delivered_at = $2
		WHERE id = $1 AND is_paid AND NOT is_delivered`
)

var orderItemColumns = []string{"order_id", "product_id", "name", "slug", "image", "price", "qty"}

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Get returns order id with its items.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	return getOrder(ctx, r.pool, getOrderSQL, id)
}

// ListByUser returns a page of the user's orders without items.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]order.Order, int, error) {
	total, err := countRows(ctx, r.pool, countUserOrdersSQL, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("counting orders of %q: %w", userID, err)
	}
	rows, err := r.pool.Query(ctx, userOrdersSQL, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders of %q: %w", userID, err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders of %q: %w", userID, err)
	}
	return orders, total, nil
}

// List returns a page of all orders whose buyer name contains query.
func (r *OrderRepository) List(ctx context.Context, query string, limit, offset int) ([]order.Order, int, error) {
	pattern := likePattern(query)
	total, err := countRows(ctx, r.pool, countOrdersFilteredSQL, query, pattern)
	if err != nil {
		return nil, 0, fmt.Errorf("counting orders: %w", err)
	}
	rows, err := r.pool.Query(ctx, listOrdersSQL, query, pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}
	return orders, total, nil
}

// Delete removes order id and its items.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteOrderSQL, id)
	if err != nil {
		return fmt.Errorf("deleting order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// InTx runs fn inside a single transaction.
func (r *OrderRepository) InTx(ctx context.Context, fn func(tx order.Tx) error) error {
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(&orderTx{tx: tx})
	})
}

type orderTx struct {
	tx pgx.Tx
}

var _ order.Tx = (*orderTx)(nil)

func (t *orderTx) Lock(ctx context.Context, id string) (*order.Order, error) {
	return getOrder(ctx, t.tx, lockOrderSQL, id)
}

func (t *orderTx) LockCart(ctx context.Context, userID string) (*cart.Cart, error) {
	return getCart(ctx, t.tx, lockUserCartSQL, userID)
}

func (t *orderTx) Insert(ctx context.Context, o *order.Order) error {
	address, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}

	_, err = t.tx.Exec(ctx, insertOrderSQL,
		o.ID, o.UserID, address, string(o.PaymentMethod),
		o.Prices.Items, o.Prices.Shipping, o.Prices.Tax, o.Prices.Total, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting order %q: %w", o.ID, err)
	}

	rows := make([][]any, len(o.Items))
	for i, it := range o.Items {
		rows[i] = []any{o.ID, it.ProductID, it.Name, it.Slug, it.Image, it.Price, it.Qty}
	}
	if _, err := t.tx.CopyFrom(ctx, pgx.Identifier{"order_items"}, orderItemColumns, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("inserting items of order %q: %w", o.ID, err)
	}
	return nil
}

func (t *orderTx) ClearCart(ctx context.Context, cartID string) error {
	if _, err := t.tx.Exec(ctx, clearCartSQL, cartID); err != nil {
		return fmt.Errorf("clearing cart %q: %w", cartID, err)
	}
	return nil
}

func (t *orderTx) DecrementStock(ctx context.Context, productID string, qty int) (bool, error) {
	var clamped bool
	if err := t.tx.QueryRow(ctx, decrementStockSQL, productID, qty).Scan(&clamped); err != nil {
		return false, fmt.Errorf("decrementing stock of %q: %w", productID, err)
	}
	return clamped, nil
}

func (t *orderTx) SetPaymentResult(ctx context.Context, id string, res order.PaymentResult) error {
	b, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshaling payment result: %w", err)
	}
	if _, err := t.tx.Exec(ctx, setPaymentResultSQL, id, b); err != nil {
		return fmt.Errorf("setting payment result of %q: %w", id, err)
	}
	return nil
}

func (t *orderTx) MarkPaid(ctx context.Context, id string, at time.Time, res order.PaymentResult) error {
	b, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshaling payment result: %w", err)
	}
	tag, err := t.tx.Exec(ctx, markPaidSQL, id, at, b)
	if err != nil {
		return fmt.Errorf("marking order %q paid: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrAlreadyPaid
	}
	return nil
}

func (t *orderTx) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	tag, err := t.tx.Exec(ctx, markDeliveredSQL, id, at)
	if err != nil {
		return fmt.Errorf("marking order %q delivered: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotPaid
	}
	return nil
}

func getOrder(ctx context.Context, q querier, sql, id string) (*order.Order, error) {
	rows, err := q.Query(ctx, sql, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	rows, err = q.Query(ctx, orderItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting items of order %q: %w", id, err)
	}
	o.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Item, error) {
		var it order.Item
		err := row.Scan(&it.ProductID, &it.Name, &it.Slug, &it.Image, &it.Price, &it.Qty)
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("getting items of order %q: %w", id, err)
	}
	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o       order.Order
		address []byte
		result  []byte
		method  string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.UserName, &address, &method, &result,
		&o.Prices.Items, &o.Prices.Shipping, &o.Prices.Tax, &o.Prices.Total,
		&o.IsPaid, &o.PaidAt, &o.IsDelivered, &o.DeliveredAt, &o.CreatedAt,
	)
	if err != nil {
		return o, err
	}
	o.PaymentMethod = user.PaymentMethod(method)

	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return o, fmt.Errorf("unmarshaling shipping address: %w", err)
	}
	if len(result) > 0 {
		var res order.PaymentResult
		if err := json.Unmarshal(result, &res); err != nil {
			return o, fmt.Errorf("unmarshaling payment result: %w", err)
		}
		o.PaymentResult = &res
	}
	return o, nil
}
