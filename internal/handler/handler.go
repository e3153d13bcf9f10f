// Package handler exposes the storefront services over JSON HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/report"
	"github.com/xenking/storefront/internal/domain/user"
)

// Catalog is the product service.
type Catalog interface {
	Search(ctx context.Context, raw product.RawSearch) (*product.Page, error)
	Latest(ctx context.Context) ([]product.Product, error)
	Featured(ctx context.Context) ([]product.Product, error)
	Categories(ctx context.Context) ([]product.CategoryCount, error)
	BySlug(ctx context.Context, slug string) (*product.Product, error)
	ByID(ctx context.Context, id string) (*product.Product, error)
	Create(ctx context.Context, in product.Input) (*product.Product, error)
	Update(ctx context.Context, id string, in product.Input) (*product.Product, error)
	Delete(ctx context.Context, id string) error
}

// Carts is the cart service.
type Carts interface {
	Get(ctx context.Context, owner cart.Owner) (*cart.Cart, error)
	AddItem(ctx context.Context, owner cart.Owner, productID string) (*cart.Change, error)
	RemoveItem(ctx context.Context, owner cart.Owner, productID string) (*cart.Change, error)
	Claim(ctx context.Context, sessionID, userID string) error
}

// Orders is the order service.
type Orders interface {
	Create(ctx context.Context, userID string) (*order.Order, error)
	Get(ctx context.Context, p *auth.Principal, id string) (*order.Order, error)
	ListForUser(ctx context.Context, userID string, page int) (*order.Page, error)
	List(ctx context.Context, query string, page int) (*order.Page, error)
	Delete(ctx context.Context, id string) error
}

// Payments is the payment service.
type Payments interface {
	CreatePayPalOrder(ctx context.Context, p *auth.Principal, orderID string) (string, error)
	ApprovePayPalOrder(ctx context.Context, p *auth.Principal, orderID, providerOrderID string) (*order.Order, error)
	CreatePaymentIntent(ctx context.Context, p *auth.Principal, orderID string) (*payment.Intent, error)
	HandleCardWebhook(ctx context.Context, payload []byte, signature string) (string, error)
	MarkPaidOffline(ctx context.Context, orderID string) (*order.Order, error)
	MarkDelivered(ctx context.Context, orderID string) (*order.Order, error)
}

// Users is the account service.
type Users interface {
	Get(ctx context.Context, id string) (*user.User, error)
	UpdateAddress(ctx context.Context, id string, a user.Address) error
	UpdatePaymentMethod(ctx context.Context, id string, m user.PaymentMethod) error
	UpdateProfile(ctx context.Context, id string, in user.ProfileInput) error
	List(ctx context.Context, query string, page int) (*user.Page, error)
	Update(ctx context.Context, id string, in user.AdminInput) error
	Delete(ctx context.Context, id string) error
}

// Reports is the dashboard service.
type Reports interface {
	Overview(ctx context.Context) (*report.Overview, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
	// SessionCookie names the anonymous cart cookie.
	SessionCookie string
	SecureCookie  bool
}

// Services bundles the domain services behind the API.
type Services struct {
	Catalog  Catalog
	Carts    Carts
	Orders   Orders
	Payments Payments
	Users    Users
	Reports  Reports
}

// Handler serves the storefront API.
type Handler struct {
	Services

	imageBaseURL  string
	sessionCookie string
	secureCookie  bool
}

// New constructs a Handler.
func New(cfg Config, s Services) *Handler {
	if cfg.SessionCookie == "" {
		cfg.SessionCookie = "sessionCartId"
	}
	return &Handler{
		Services:      s,
		imageBaseURL:  cfg.ImageBaseURL,
		sessionCookie: cfg.SessionCookie,
		secureCookie:  cfg.SecureCookie,
	}
}

// RegisterWebhooks adds the provider callbacks to mux. They carry their own
// signature and must be mounted outside the session and rate limit layers.
func (h *Handler) RegisterWebhooks(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/webhooks/stripe", h.stripeWebhook)
}

// Register adds every browser and back-office API route to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.searchProducts)
	mux.HandleFunc("GET /api/products/latest", h.latestProducts)
	mux.HandleFunc("GET /api/products/featured", h.featuredProducts)
	mux.HandleFunc("GET /api/products/categories", h.categories)
	mux.HandleFunc("GET /api/products/{slug}", h.productBySlug)

	mux.HandleFunc("GET /api/cart", h.getCart)
	mux.HandleFunc("POST /api/cart/items", h.addCartItem)
	mux.HandleFunc("DELETE /api/cart/items/{productId}", h.removeCartItem)
	mux.HandleFunc("POST /api/cart/claim", h.authed(h.claimCart))

	mux.HandleFunc("GET /api/me", h.authed(h.me))
	mux.HandleFunc("PUT /api/me/address", h.authed(h.updateAddress))
	mux.HandleFunc("PUT /api/me/payment-method", h.authed(h.updatePaymentMethod))
	mux.HandleFunc("PUT /api/me/profile", h.authed(h.updateProfile))
	mux.HandleFunc("GET /api/me/orders", h.authed(h.myOrders))

	// Anonymous checkout is answered with a redirect to sign-in.
	mux.HandleFunc("POST /api/orders", h.createOrder)
	mux.HandleFunc("GET /api/orders/{id}", h.authed(h.getOrder))
	mux.HandleFunc("POST /api/orders/{id}/paypal", h.authed(h.createPayPalOrder))
	mux.HandleFunc("POST /api/orders/{id}/paypal/capture", h.authed(h.capturePayPalOrder))
	mux.HandleFunc("POST /api/orders/{id}/payment-intent", h.authed(h.createPaymentIntent))

	mux.HandleFunc("GET /api/admin/overview", h.admin(h.overview))
	mux.HandleFunc("GET /api/admin/orders", h.admin(h.listOrders))
	mux.HandleFunc("DELETE /api/admin/orders/{id}", h.admin(h.deleteOrder))
	mux.HandleFunc("POST /api/admin/orders/{id}/paid", h.admin(h.markPaid))
	mux.HandleFunc("POST /api/admin/orders/{id}/delivered", h.admin(h.markDelivered))
	mux.HandleFunc("GET /api/admin/products", h.admin(h.listProducts))
	mux.HandleFunc("GET /api/admin/products/{id}", h.admin(h.productByID))
	mux.HandleFunc("POST /api/admin/products", h.admin(h.createProduct))
	mux.HandleFunc("PUT /api/admin/products/{id}", h.admin(h.updateProduct))
	mux.HandleFunc("DELETE /api/admin/products/{id}", h.admin(h.deleteProduct))
	mux.HandleFunc("GET /api/admin/users", h.admin(h.listUsers))
	mux.HandleFunc("GET /api/admin/users/{id}", h.admin(h.getUser))
	mux.HandleFunc("PUT /api/admin/users/{id}", h.admin(h.updateUser))
	mux.HandleFunc("DELETE /api/admin/users/{id}", h.admin(h.deleteUser))
}

// authed rejects anonymous callers with 401.
func (h *Handler) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if auth.PrincipalFrom(r.Context()) == nil {
			failure(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r)
	}
}

// admin rejects callers without the admin role with 401 or 403.
func (h *Handler) admin(next http.HandlerFunc) http.HandlerFunc {
	return h.authed(func(w http.ResponseWriter, r *http.Request) {
		if !auth.PrincipalFrom(r.Context()).IsAdmin() {
			failure(w, http.StatusForbidden, "Admin access required")
			return
		}
		next(w, r)
	})
}
