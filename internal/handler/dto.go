package handler

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/report"
	"github.com/xenking/storefront/internal/domain/user"
)

func money(d decimal.Decimal) string { return d.StringFixed(2) }

type pageDTO[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func newPage[S, T any](items []S, total, totalPages int, conv func(S) T) pageDTO[T] {
	out := make([]T, len(items))
	for i, item := range items {
		out[i] = conv(item)
	}
	return pageDTO[T]{Items: out, Total: total, TotalPages: totalPages}
}

type productDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Category    string    `json:"category"`
	Brand       string    `json:"brand"`
	Description string    `json:"description"`
	Images      []string  `json:"images"`
	Price       string    `json:"price"`
	Stock       int       `json:"stock"`
	Rating      string    `json:"rating"`
	NumReviews  int       `json:"numReviews"`
	IsFeatured  bool      `json:"isFeatured"`
	Banner      string    `json:"banner,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// image resolves a stored image path against the configured base URL.
func (h *Handler) image(path string) string {
	if h.imageBaseURL == "" || path == "" || strings.Contains(path, "://") {
		return path
	}
	return strings.TrimRight(h.imageBaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func (h *Handler) product(p product.Product) productDTO {
	images := make([]string, len(p.Images))
	for i, img := range p.Images {
		images[i] = h.image(img)
	}
	return productDTO{
		ID:          p.ID,
		Name:        p.Name,
		Slug:        p.Slug,
		Category:    p.Category,
		Brand:       p.Brand,
		Description: p.Description,
		Images:      images,
		Price:       money(p.Price),
		Stock:       p.Stock,
		Rating:      p.Rating.StringFixed(1),
		NumReviews:  p.NumReviews,
		IsFeatured:  p.IsFeatured,
		Banner:      h.image(p.Banner),
		CreatedAt:   p.CreatedAt,
	}
}

func (h *Handler) products(items []product.Product) []productDTO {
	out := make([]productDTO, len(items))
	for i, p := range items {
		out[i] = h.product(p)
	}
	return out
}

type productRequest struct {
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Category    string   `json:"category"`
	Brand       string   `json:"brand"`
	Description string   `json:"description"`
	Price       string   `json:"price"`
	Stock       int      `json:"stock"`
	Images      []string `json:"images"`
	IsFeatured  bool     `json:"isFeatured"`
	Banner      string   `json:"banner"`
}

func (r productRequest) input() product.Input {
	return product.Input{
		Name:        r.Name,
		Slug:        r.Slug,
		Category:    r.Category,
		Brand:       r.Brand,
		Description: r.Description,
		Price:       r.Price,
		Stock:       r.Stock,
		Images:      r.Images,
		IsFeatured:  r.IsFeatured,
		Banner:      r.Banner,
	}
}

type categoryDTO struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type lineDTO struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	Image     string `json:"image"`
	Price     string `json:"price"`
	Qty       int    `json:"qty"`
}

type pricesDTO struct {
	ItemsPrice    string `json:"itemsPrice"`
	ShippingPrice string `json:"shippingPrice"`
	TaxPrice      string `json:"taxPrice"`
	TotalPrice    string `json:"totalPrice"`
}

func prices(p cart.Prices) pricesDTO {
	return pricesDTO{
		ItemsPrice:    money(p.Items),
		ShippingPrice: money(p.Shipping),
		TaxPrice:      money(p.Tax),
		TotalPrice:    money(p.Total),
	}
}

type cartDTO struct {
	ID    string    `json:"id,omitempty"`
	Items []lineDTO `json:"items"`
	pricesDTO
}

func (h *Handler) cart(c *cart.Cart) cartDTO {
	if c == nil {
		return cartDTO{Items: []lineDTO{}, pricesDTO: prices(cart.Prices{})}
	}
	items := make([]lineDTO, len(c.Items))
	for i, it := range c.Items {
		items[i] = lineDTO{
			ProductID: it.ProductID,
			Name:      it.Name,
			Slug:      it.Slug,
			Image:     h.image(it.Image),
			Price:     money(it.Price),
			Qty:       it.Qty,
		}
	}
	return cartDTO{ID: c.ID, Items: items, pricesDTO: prices(c.Prices)}
}

type orderDTO struct {
	ID              string               `json:"id"`
	UserID          string               `json:"userId"`
	UserName        string               `json:"userName,omitempty"`
	State           string               `json:"state"`
	ShippingAddress user.Address         `json:"shippingAddress"`
	PaymentMethod   string               `json:"paymentMethod"`
	PaymentResult   *order.PaymentResult `json:"paymentResult,omitempty"`
	IsPaid          bool                 `json:"isPaid"`
	PaidAt          *time.Time           `json:"paidAt,omitempty"`
	IsDelivered     bool                 `json:"isDelivered"`
	DeliveredAt     *time.Time           `json:"deliveredAt,omitempty"`
	Items           []lineDTO            `json:"items"`
	CreatedAt       time.Time            `json:"createdAt"`
	pricesDTO
}

func (h *Handler) order(o order.Order) orderDTO {
	items := make([]lineDTO, len(o.Items))
	for i, it := range o.Items {
		items[i] = lineDTO{
			ProductID: it.ProductID,
			Name:      it.Name,
			Slug:      it.Slug,
			Image:     h.image(it.Image),
			Price:     money(it.Price),
			Qty:       it.Qty,
		}
	}
	return orderDTO{
		ID:              o.ID,
		UserID:          o.UserID,
		UserName:        o.UserName,
		State:           o.State().String(),
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   string(o.PaymentMethod),
		PaymentResult:   o.PaymentResult,
		IsPaid:          o.IsPaid,
		PaidAt:          o.PaidAt,
		IsDelivered:     o.IsDelivered,
		DeliveredAt:     o.DeliveredAt,
		Items:           items,
		CreatedAt:       o.CreatedAt,
		pricesDTO:       prices(o.Prices),
	}
}

type userDTO struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Email         string        `json:"email"`
	Role          string        `json:"role"`
	Address       *user.Address `json:"address,omitempty"`
	PaymentMethod string        `json:"paymentMethod,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
}

func userView(u user.User) userDTO {
	return userDTO{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Role:          string(u.Role),
		Address:       u.Address,
		PaymentMethod: string(u.PaymentMethod),
		CreatedAt:     u.CreatedAt,
	}
}

type monthDTO struct {
	Month string `json:"month"`
	Total string `json:"total"`
}

type recentOrderDTO struct {
	ID        string    `json:"id"`
	BuyerName string    `json:"buyerName"`
	Total     string    `json:"totalPrice"`
	CreatedAt time.Time `json:"createdAt"`
}

type overviewDTO struct {
	Orders       int              `json:"ordersCount"`
	Products     int              `json:"productsCount"`
	Users        int              `json:"usersCount"`
	TotalSales   string           `json:"totalSales"`
	MonthlySales []monthDTO       `json:"salesData"`
	LatestOrders []recentOrderDTO `json:"latestSales"`
}

func overviewView(o *report.Overview) overviewDTO {
	out := overviewDTO{
		Orders:       o.Orders,
		Products:     o.Products,
		Users:        o.Users,
		TotalSales:   money(o.TotalSales),
		MonthlySales: make([]monthDTO, len(o.MonthlySales)),
		LatestOrders: make([]recentOrderDTO, len(o.LatestOrders)),
	}
	for i, m := range o.MonthlySales {
		out.MonthlySales[i] = monthDTO{Month: m.Month, Total: money(m.Total)}
	}
	for i, r := range o.LatestOrders {
		out.LatestOrders[i] = recentOrderDTO{ID: r.ID, BuyerName: r.BuyerName, Total: money(r.Total), CreatedAt: r.CreatedAt}
	}
	return out
}
