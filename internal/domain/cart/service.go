package cart

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/product"
)

// Change is the outcome of a cart mutation.
type Change struct {
	Cart    *Cart
	Message string
}

// Service implements the cart manager.
type Service struct {
	carts    Repository
	products Products
	pricing  Pricing
}

// NewService creates a cart Service.
func NewService(carts Repository, products Products, pricing Pricing) *Service {
	return &Service{carts: carts, products: products, pricing: pricing}
}

// Pricing returns the shipping and tax policy in use.
func (s *Service) Pricing() Pricing { return s.pricing }

// Get returns the owner's cart, or nil when none exists yet.
func (s *Service) Get(ctx context.Context, owner Owner) (*Cart, error) {
	c, err := s.carts.Find(ctx, owner)
	if errors.Is(err, ErrCartNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find cart")
	}
	return c, nil
}

// AddItem adds one unit of productID to the owner's cart, creating the cart
// on first use. The resulting quantity may not exceed current stock.
func (s *Service) AddItem(ctx context.Context, owner Owner, productID string) (*Change, error) {
	if productID == "" {
		return nil, ErrInvalidItem
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	c, err := s.Get(ctx, owner)
	if err != nil {
		return nil, err
	}

	if c == nil {
		if p.Stock < 1 {
			return nil, ErrNotEnoughStock
		}
		c = &Cart{
			ID:        uuid.New().String(),
			UserID:    owner.UserID,
			SessionID: owner.SessionID,
			Items:     []Item{newItem(p)},
		}
		c.Prices = CalcPrices(c.Items, s.pricing)
		if err := s.carts.Create(ctx, c); err != nil {
			return nil, errors.Wrap(err, "create cart")
		}
		zctx.From(ctx).Debug("Cart created", zap.String("cart_id", c.ID))
		return &Change{Cart: c, Message: fmt.Sprintf("%s added to cart", p.Name)}, nil
	}

	msg := fmt.Sprintf("%s added to cart", p.Name)
	if i := c.find(productID); i >= 0 {
		if p.Stock < c.Items[i].Qty+1 {
			return nil, ErrNotEnoughStock
		}
		c.Items[i].Qty++
		msg = fmt.Sprintf("%s updated in cart", p.Name)
	} else {
		if p.Stock < 1 {
			return nil, ErrNotEnoughStock
		}
		c.Items = append(c.Items, newItem(p))
	}

	c.Prices = CalcPrices(c.Items, s.pricing)
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return &Change{Cart: c, Message: msg}, nil
}

// RemoveItem takes one unit of productID out of the owner's cart and drops
// the line when its last unit goes.
func (s *Service) RemoveItem(ctx context.Context, owner Owner, productID string) (*Change, error) {
	c, err := s.carts.Find(ctx, owner)
	if err != nil {
		return nil, err
	}

	i := c.find(productID)
	if i < 0 {
		return nil, ErrItemNotFound
	}

	name := c.Items[i].Name
	msg := fmt.Sprintf("%s updated in cart", name)
	if c.Items[i].Qty <= 1 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		msg = fmt.Sprintf("%s removed from cart", name)
	} else {
		c.Items[i].Qty--
	}

	c.Prices = CalcPrices(c.Items, s.pricing)
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return &Change{Cart: c, Message: msg}, nil
}

// Claim reassigns the anonymous session cart to userID at sign-in.
func (s *Service) Claim(ctx context.Context, sessionID, userID string) error {
	if sessionID == "" || userID == "" {
		return ErrNoOwner
	}
	if err := s.carts.Claim(ctx, sessionID, userID); err != nil {
		return errors.Wrap(err, "claim cart")
	}
	return nil
}

func newItem(p *product.Product) Item {
	return Item{ProductID: p.ID, Name: p.Name, Slug: p.Slug, Image: p.FirstImage(), Price: p.Price, Qty: 1}
}
