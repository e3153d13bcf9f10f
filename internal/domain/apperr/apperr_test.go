package apperr

import (
	"fmt"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "validation", err: Validation("bad"), want: KindValidation},
		{name: "not found", err: NotFound("missing"), want: KindNotFound},
		{name: "rule", err: Rule("no stock", ""), want: KindBusinessRule},
		{name: "provider", err: Provider("declined", errors.New("422")), want: KindProvider},
		{name: "wrapped rule", err: fmt.Errorf("add item: %w", Rule("no stock", "")), want: KindBusinessRule},
		{name: "plain error is storage", err: errors.New("connection reset"), want: KindStorage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestFail(t *testing.T) {
	t.Run("rule keeps message and redirect", func(t *testing.T) {
		r := Fail(Rule("Cart is empty", "/cart"))
		assert.False(t, r.Success)
		assert.Equal(t, "Cart is empty", r.Message)
		assert.Equal(t, "/cart", r.RedirectTo)
	})

	t.Run("storage hides cause", func(t *testing.T) {
		r := Fail(errors.New("pq: deadlock detected"))
		assert.False(t, r.Success)
		assert.Equal(t, GenericMessage, r.Message)
	})
}

func TestAsRedirect(t *testing.T) {
	err := fmt.Errorf("create order: %w", RedirectTo("/sign-in"))

	r, ok := AsRedirect(err)
	require.True(t, ok)
	assert.Equal(t, "/sign-in", r.URL)

	_, ok = AsRedirect(Validation("bad"))
	assert.False(t, ok)
}

type sampleInput struct {
	Name   string   `label:"Name" validate:"min=3"`
	Email  string   `label:"Email" validate:"required,email"`
	Price  string   `label:"Price" validate:"money"`
	Images []string `label:"Images" validate:"min=1"`
	Method string   `label:"Payment method" validate:"oneof=PayPal Stripe"`
}

func TestValidateStruct(t *testing.T) {
	ok := sampleInput{
		Name:   "Widget",
		Email:  "a@example.com",
		Price:  "10.00",
		Images: []string{"/a.jpg"},
		Method: "PayPal",
	}
	require.NoError(t, ValidateStruct(ok))

	bad := sampleInput{
		Name:   "ab",
		Email:  "nope",
		Price:  "10.5",
		Method: "Cash",
	}
	err := ValidateStruct(bad)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Contains(t, err.Error(), "Name must be at least 3 characters")
	assert.Contains(t, err.Error(), "Invalid email address")
	assert.Contains(t, err.Error(), "Price must be a valid number with 2 decimal places")
	assert.Contains(t, err.Error(), "At least 1 images required")
	assert.Contains(t, err.Error(), "Payment method must be one of: PayPal, Stripe")
}
