// Package user holds customer profiles and the checkout preferences saved on
// them.
package user

import (
	"context"
	"time"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
)

var (
	// ErrNotFound is returned when a user does not exist.
	ErrNotFound = apperr.NotFound("User not found")
	// ErrEmailTaken is returned when another account already uses the email.
	ErrEmailTaken = apperr.Validation("Email already in use")
)

// PaymentMethod is how the customer intends to pay.
type PaymentMethod string

const (
	PaymentPayPal         PaymentMethod = "PayPal"
	PaymentStripe         PaymentMethod = "Stripe"
	PaymentCashOnDelivery PaymentMethod = "CashOnDelivery"
)

// PaymentMethods lists the accepted payment methods in display order.
var PaymentMethods = []PaymentMethod{PaymentPayPal, PaymentStripe, PaymentCashOnDelivery}

// Valid reports whether m is one of PaymentMethods.
func (m PaymentMethod) Valid() bool {
	for _, v := range PaymentMethods {
		if v == m {
			return true
		}
	}
	return false
}

// Address is a shipping address.
type Address struct {
	FullName      string   `json:"fullName" label:"Full name" validate:"min=3"`
	StreetAddress string   `json:"streetAddress" label:"Address" validate:"min=3"`
	City          string   `json:"city" label:"City" validate:"min=3"`
	PostalCode    string   `json:"postalCode" label:"Postal code" validate:"min=3"`
	Country       string   `json:"country" label:"Country" validate:"min=3"`
	Lat           *float64 `json:"lat,omitempty"`
	Lng           *float64 `json:"lng,omitempty"`
}

// User is a storefront account.
type User struct {
	ID            string
	Name          string
	Email         string
	Role          auth.Role
	Address       *Address
	PaymentMethod PaymentMethod
	CreatedAt     time.Time
}

// HasAddress reports whether a shipping address is saved.
func (u *User) HasAddress() bool { return u.Address != nil }

// HasPaymentMethod reports whether a payment method is saved.
func (u *User) HasPaymentMethod() bool { return u.PaymentMethod != "" }

// Repository defines persistence of users.
type Repository interface {
	Get(ctx context.Context, id string) (*User, error)
	// List returns a page of users whose name contains query and the total
	// match count.
	List(ctx context.Context, query string, limit, offset int) ([]User, int, error)
	Create(ctx context.Context, u *User) error
	SetAddress(ctx context.Context, id string, a Address) error
	SetPaymentMethod(ctx context.Context, id string, m PaymentMethod) error
	SetProfile(ctx context.Context, id, name, email string) error
	SetNameRole(ctx context.Context, id, name string, role auth.Role) error
	Delete(ctx context.Context, id string) error
}
