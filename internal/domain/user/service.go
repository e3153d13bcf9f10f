package user

import (
	"context"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
)

// Page is one page of users.
type Page struct {
	Items      []User
	Total      int
	TotalPages int
}

// ProfileInput is the self-service profile form.
type ProfileInput struct {
	Name  string `label:"Name" validate:"min=3"`
	Email string `label:"Email" validate:"required,email"`
}

// AdminInput is the back-office user form.
type AdminInput struct {
	Name string `label:"Name" validate:"min=3"`
	Role string `label:"Role" validate:"oneof=user admin"`
}

// Service implements account self-service and user administration.
type Service struct {
	repo     Repository
	pageSize int
}

// NewService creates a user Service.
func NewService(repo Repository, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &Service{repo: repo, pageSize: pageSize}
}

// Get returns user id.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.repo.Get(ctx, id)
}

// UpdateAddress validates and saves the user's shipping address.
func (s *Service) UpdateAddress(ctx context.Context, id string, a Address) error {
	if err := apperr.ValidateStruct(a); err != nil {
		return err
	}
	if err := s.repo.SetAddress(ctx, id, a); err != nil {
		return errors.Wrap(err, "set address")
	}
	return nil
}

// UpdatePaymentMethod saves the user's preferred payment method.
func (s *Service) UpdatePaymentMethod(ctx context.Context, id string, m PaymentMethod) error {
	if !m.Valid() {
		return apperr.Validation("Invalid payment method")
	}
	if err := s.repo.SetPaymentMethod(ctx, id, m); err != nil {
		return errors.Wrap(err, "set payment method")
	}
	return nil
}

// UpdateProfile changes the user's display name and email.
func (s *Service) UpdateProfile(ctx context.Context, id string, in ProfileInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := apperr.ValidateStruct(in); err != nil {
		return err
	}
	if err := s.repo.SetProfile(ctx, id, in.Name, in.Email); err != nil {
		return errors.Wrap(err, "set profile")
	}
	return nil
}

// List returns one page of users, optionally filtered by name.
func (s *Service) List(ctx context.Context, query string, page int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	q := strings.TrimSpace(query)
	if q == "all" {
		q = ""
	}

	users, total, err := s.repo.List(ctx, q, s.pageSize, (page-1)*s.pageSize)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	return &Page{
		Items:      users,
		Total:      total,
		TotalPages: (total + s.pageSize - 1) / s.pageSize,
	}, nil
}

// Update changes another user's name and role.
func (s *Service) Update(ctx context.Context, id string, in AdminInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if err := apperr.ValidateStruct(in); err != nil {
		return err
	}
	if err := s.repo.SetNameRole(ctx, id, in.Name, auth.Role(in.Role)); err != nil {
		return errors.Wrap(err, "set name and role")
	}
	return nil
}

// Delete removes user id together with their carts and orders.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
