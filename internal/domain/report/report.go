// Package report aggregates the admin dashboard.
package report

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// LatestOrdersLimit is the number of recent orders shown on the dashboard.
const LatestOrdersLimit = 5

// MonthlySales is revenue for one calendar month, keyed "MM-YYYY".
type MonthlySales struct {
	Month string
	Total decimal.Decimal
}

// RecentOrder is a dashboard row for one of the newest orders.
type RecentOrder struct {
	ID        string
	BuyerName string
	Total     decimal.Decimal
	CreatedAt time.Time
}

// Overview is the admin dashboard.
type Overview struct {
	Orders       int
	Products     int
	Users        int
	TotalSales   decimal.Decimal
	MonthlySales []MonthlySales
	LatestOrders []RecentOrder
}

// Repository provides the dashboard aggregates.
type Repository interface {
	CountOrders(ctx context.Context) (int, error)
	CountProducts(ctx context.Context) (int, error)
	CountUsers(ctx context.Context) (int, error)
	TotalSales(ctx context.Context) (decimal.Decimal, error)
	// MonthlySales returns revenue buckets in chronological order.
	MonthlySales(ctx context.Context) ([]MonthlySales, error)
	LatestOrders(ctx context.Context, limit int) ([]RecentOrder, error)
}

// Service builds the dashboard overview.
type Service struct {
	repo Repository
}

// NewService creates a report Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Overview runs every aggregate concurrently and fails if any of them does.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	var ov Overview
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		ov.Orders, err = s.repo.CountOrders(ctx)
		return errors.Wrap(err, "count orders")
	})
	g.Go(func() (err error) {
		ov.Products, err = s.repo.CountProducts(ctx)
		return errors.Wrap(err, "count products")
	})
	g.Go(func() (err error) {
		ov.Users, err = s.repo.CountUsers(ctx)
		return errors.Wrap(err, "count users")
	})
	g.Go(func() (err error) {
		ov.TotalSales, err = s.repo.TotalSales(ctx)
		return errors.Wrap(err, "total sales")
	})
	g.Go(func() (err error) {
		ov.MonthlySales, err = s.repo.MonthlySales(ctx)
		return errors.Wrap(err, "monthly sales")
	})
	g.Go(func() (err error) {
		ov.LatestOrders, err = s.repo.LatestOrders(ctx, LatestOrdersLimit)
		return errors.Wrap(err, "latest orders")
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &ov, nil
}
