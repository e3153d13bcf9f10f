package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/report"
)

const (
	countOrdersSQL   = `SELECT count(*) FROM orders`
	countProductsSQL = `SELECT count(*) FROM products`
	countUsersSQL    = `SELECT count(*) FROM users`
	totalSalesSQL    = `SELECT COALESCE(sum(total_price), 0) FROM orders`

	monthlySalesSQL = `SELECT to_char(date_trunc('month', created_at), 'MM-YYYY'), sum(total_price)
		FROM orders
		GROUP BY date_trunc('month', created_at)
		ORDER BY date_trunc('month', created_at)`

	latestOrdersSQL = `SELECT o.id, COALESCE(u.name, 'Deleted User'), o.total_price, o.created_at
		FROM orders o LEFT JOIN users u ON u.id = o.user_id
		ORDER BY o.created_at DESC, o.id LIMIT $1`
)

var _ report.Repository = (*ReportRepository)(nil)

// ReportRepository implements report.Repository backed by PostgreSQL.
type ReportRepository struct {
	pool *pgxpool.Pool
}

// NewReportRepository returns a ReportRepository that uses the given pool.
func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

func (r *ReportRepository) CountOrders(ctx context.Context) (int, error) {
	return countRows(ctx, r.pool, countOrdersSQL)
}

func (r *ReportRepository) CountProducts(ctx context.Context) (int, error) {
	return countRows(ctx, r.pool, countProductsSQL)
}

func (r *ReportRepository) CountUsers(ctx context.Context) (int, error) {
	return countRows(ctx, r.pool, countUsersSQL)
}

// TotalSales sums the totals of every order.
func (r *ReportRepository) TotalSales(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := r.pool.QueryRow(ctx, totalSalesSQL).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("summing sales: %w", err)
	}
	return total, nil
}

// MonthlySales groups order totals by calendar month, oldest first.
func (r *ReportRepository) MonthlySales(ctx context.Context) ([]report.MonthlySales, error) {
	rows, err := r.pool.Query(ctx, monthlySalesSQL)
	if err != nil {
		return nil, fmt.Errorf("grouping monthly sales: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (report.MonthlySales, error) {
		var m report.MonthlySales
		err := row.Scan(&m.Month, &m.Total)
		return m, err
	})
}

// LatestOrders returns the newest orders with their buyer's name.
func (r *ReportRepository) LatestOrders(ctx context.Context, limit int) ([]report.RecentOrder, error) {
	rows, err := r.pool.Query(ctx, latestOrdersSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("listing latest orders: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (report.RecentOrder, error) {
		var o report.RecentOrder
		err := row.Scan(&o.ID, &o.BuyerName, &o.Total, &o.CreatedAt)
		return o, err
	})
}
