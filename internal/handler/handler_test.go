package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/report"
	"github.com/xenking/storefront/internal/domain/user"
	"github.com/xenking/storefront/internal/provider/stripe"
)

// --- Fakes ---

type fakeCatalog struct {
	Catalog
	lastSearch product.RawSearch
	bySlug     map[string]*product.Product
	created    product.Input
	deleteErr  error
}

func (f *fakeCatalog) Search(_ context.Context, raw product.RawSearch) (*product.Page, error) {
	f.lastSearch = raw
	return &product.Page{Items: []product.Product{samplePolo()}, Total: 11, TotalPages: 2}, nil
}

func (f *fakeCatalog) BySlug(_ context.Context, slug string) (*product.Product, error) {
	p, ok := f.bySlug[slug]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func (f *fakeCatalog) Create(_ context.Context, in product.Input) (*product.Product, error) {
	f.created = in
	p := samplePolo()
	return &p, nil
}

func (f *fakeCatalog) Delete(context.Context, string) error { return f.deleteErr }

type fakeCarts struct {
	Carts
	owner   cart.Owner
	claimed [2]string
	addErr  error
}

func (f *fakeCarts) Get(_ context.Context, o cart.Owner) (*cart.Cart, error) {
	f.owner = o
	return nil, nil
}

func (f *fakeCarts) AddItem(_ context.Context, o cart.Owner, productID string) (*cart.Change, error) {
	f.owner = o
	if f.addErr != nil {
		return nil, f.addErr
	}
	c := &cart.Cart{
		ID:    "c1",
		Items: []cart.Item{{ProductID: productID, Name: "Polo", Price: decimal.NewFromInt(60), Qty: 2}},
	}
	c.Prices = cart.CalcPrices(c.Items, cart.DefaultPricing)
	return &cart.Change{Cart: c, Message: "Polo updated in cart"}, nil
}

func (f *fakeCarts) Claim(_ context.Context, sessionID, userID string) error {
	f.claimed = [2]string{sessionID, userID}
	return nil
}

type fakeOrders struct {
	Orders
	createdFor string
	createErr  error
}

func (f *fakeOrders) Create(_ context.Context, userID string) (*order.Order, error) {
	f.createdFor = userID
	if userID == "" {
		return nil, apperr.RedirectTo("/sign-in")
	}
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &order.Order{ID: "o1", UserID: userID, CreatedAt: time.Now()}, nil
}

type fakePayments struct {
	Payments
	webhookSig string
	webhookErr error
}

func (f *fakePayments) HandleCardWebhook(_ context.Context, _ []byte, sig string) (string, error) {
	f.webhookSig = sig
	return "Order marked as paid", f.webhookErr
}

func (f *fakePayments) CreatePaymentIntent(context.Context, *auth.Principal, string) (*payment.Intent, error) {
	return &payment.Intent{ID: "pi_1", ClientSecret: "pi_1_secret"}, nil
}

type fakeUsers struct {
	Users
	address user.Address
}

func (f *fakeUsers) UpdateAddress(_ context.Context, _ string, a user.Address) error {
	f.address = a
	return nil
}

type fakeReports struct{}

func (fakeReports) Overview(context.Context) (*report.Overview, error) {
	return &report.Overview{
		Orders:       3,
		TotalSales:   decimal.RequireFromString("159.5"),
		MonthlySales: []report.MonthlySales{{Month: "01-2026", Total: decimal.NewFromInt(10)}},
	}, nil
}

type fakeKeys struct {
	info *auth.APIKeyInfo
}

func (f fakeKeys) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	if f.info == nil || f.info.KeyHash != hash {
		return nil, errors.New("not found")
	}
	return f.info, nil
}

// --- Helpers ---

var secret = []byte("test-secret")

func samplePolo() product.Product {
	return product.Product{
		ID:     "p1",
		Name:   "Polo",
		Slug:   "polo",
		Images: []string{"/images/p1.jpg", "https://cdn.example.com/p1b.jpg"},
		Price:  decimal.RequireFromString("59.9"),
		Rating: decimal.RequireFromString("4.5"),
	}
}

type env struct {
	server   http.Handler
	catalog  *fakeCatalog
	carts    *fakeCarts
	orders   *fakeOrders
	payments *fakePayments
	users    *fakeUsers
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		catalog:  &fakeCatalog{bySlug: map[string]*product.Product{}},
		carts:    &fakeCarts{},
		orders:   &fakeOrders{},
		payments: &fakePayments{},
		users:    &fakeUsers{},
	}
	h := New(Config{ImageBaseURL: "https://img.example.com/"}, Services{
		Catalog:  e.catalog,
		Carts:    e.carts,
		Orders:   e.orders,
		Payments: e.payments,
		Users:    e.users,
		Reports:  fakeReports{},
	})
	api := http.NewServeMux()
	h.Register(api)

	keys := fakeKeys{info: &auth.APIKeyInfo{ID: "k1", KeyHash: HashAPIKey(secret, "ops-key"), Scopes: []string{auth.ScopeAdmin}}}
	authn := NewAuthenticator(auth.NewTokens(secret), keys, secret)

	mux := http.NewServeMux()
	h.RegisterWebhooks(mux)
	mux.Handle("/api/", authn.Middleware(h.Session(api)))
	e.server = mux
	return e
}

func bearer(t *testing.T, userID string, role auth.Role) string {
	t.Helper()
	tok, err := auth.NewTokens(secret).Sign(auth.Principal{UserID: userID, Role: role}, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func (e *env) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.server.ServeHTTP(w, req)
	return w
}

func decodeResult(t *testing.T, w *httptest.ResponseRecorder) apperr.Result {
	t.Helper()
	var r apperr.Result
	require.NoError(t, json.NewDecoder(w.Body).Decode(&r))
	return r
}

// --- Tests ---

func TestSearchProducts(t *testing.T) {
	e := newEnv(t)

	w := e.do(httptest.NewRequest(http.MethodGet, "/api/products?q=polo&category=Shirts&sort=lowest&page=2", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, product.RawSearch{Query: "polo", Category: "Shirts", Sort: "lowest", Page: "2"}, e.catalog.lastSearch)

	var body pageDTO[productDTO]
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, 2, body.TotalPages)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "59.90", body.Items[0].Price)
	assert.Equal(t, "4.5", body.Items[0].Rating)
	assert.Equal(t, []string{"https://img.example.com/images/p1.jpg", "https://cdn.example.com/p1b.jpg"}, body.Items[0].Images)
}

func TestProductNotFound(t *testing.T) {
	e := newEnv(t)

	w := e.do(httptest.NewRequest(http.MethodGet, "/api/products/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	r := decodeResult(t, w)
	assert.False(t, r.Success)
	assert.Equal(t, "Product not found", r.Message)
}

func TestCart_SessionCookie(t *testing.T) {
	e := newEnv(t)

	w := e.do(httptest.NewRequest(http.MethodPost, "/api/cart/items", strings.NewReader(`{"productId":"p1"}`)))
	require.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sessionCartId", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, cookies[0].Value, e.carts.owner.SessionID)
	assert.Empty(t, e.carts.owner.UserID)

	var body struct {
		Success bool    `json:"success"`
		Message string  `json:"message"`
		Data    cartDTO `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, "Polo updated in cart", body.Message)
	assert.Equal(t, "120.00", body.Data.ItemsPrice)
	assert.Equal(t, "0.00", body.Data.ShippingPrice)
	assert.Equal(t, "18.00", body.Data.TaxPrice)
	assert.Equal(t, "138.00", body.Data.TotalPrice)

	// The cookie is reused on the next request.
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.AddCookie(cookies[0])
	w = e.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Result().Cookies())
	assert.Equal(t, cookies[0].Value, e.carts.owner.SessionID)
	assert.JSONEq(t, `{"items":[],"itemsPrice":"0.00","shippingPrice":"0.00","taxPrice":"0.00","totalPrice":"0.00"}`, w.Body.String())
}

func TestCart_UserPreferred(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("Authorization", bearer(t, "u1", auth.RoleUser))
	e.do(req)
	assert.Equal(t, "u1", e.carts.owner.UserID)
	assert.NotEmpty(t, e.carts.owner.SessionID)
}

func TestCart_OutOfStock(t *testing.T) {
	e := newEnv(t)
	e.carts.addErr = cart.ErrNotEnoughStock

	w := e.do(httptest.NewRequest(http.MethodPost, "/api/cart/items", strings.NewReader(`{"productId":"p1"}`)))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Not enough stock", decodeResult(t, w).Message)
}

func TestCart_BadBody(t *testing.T) {
	e := newEnv(t)

	w := e.do(httptest.NewRequest(http.MethodPost, "/api/cart/items", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request body", decodeResult(t, w).Message)
}

func TestClaimCart(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/cart/claim", nil)
	req.AddCookie(&http.Cookie{Name: "sessionCartId", Value: "6f1c2a1e-8a9b-4b1e-9f7d-2a5c0b6d7e8f"})
	req.Header.Set("Authorization", bearer(t, "u1", auth.RoleUser))
	w := e.do(req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, [2]string{"6f1c2a1e-8a9b-4b1e-9f7d-2a5c0b6d7e8f", "u1"}, e.carts.claimed)
}

func TestCreateOrder(t *testing.T) {
	t.Run("anonymous redirects to sign-in", func(t *testing.T) {
		e := newEnv(t)
		w := e.do(httptest.NewRequest(http.MethodPost, "/api/orders", nil))
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/sign-in", w.Header().Get("Location"))
	})

	t.Run("created", func(t *testing.T) {
		e := newEnv(t)
		req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
		req.Header.Set("Authorization", bearer(t, "u1", auth.RoleUser))
		w := e.do(req)

		require.Equal(t, http.StatusOK, w.Code)
		r := decodeResult(t, w)
		assert.True(t, r.Success)
		assert.Equal(t, "/order/o1", r.RedirectTo)
		assert.Equal(t, "u1", e.orders.createdFor)
	})

	t.Run("rule carries redirect hint", func(t *testing.T) {
		e := newEnv(t)
		e.orders.createErr = order.ErrCartEmpty
		req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
		req.Header.Set("Authorization", bearer(t, "u1", auth.RoleUser))
		w := e.do(req)

		assert.Equal(t, http.StatusConflict, w.Code)
		r := decodeResult(t, w)
		assert.False(t, r.Success)
		assert.Equal(t, "/cart", r.RedirectTo)
	})

	t.Run("storage failure hides cause", func(t *testing.T) {
		e := newEnv(t)
		e.orders.createErr = errors.New("deadlock detected")
		req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
		req.Header.Set("Authorization", bearer(t, "u1", auth.RoleUser))
		w := e.do(req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, apperr.GenericMessage, decodeResult(t, w).Message)
	})
}

func TestAuthGuards(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		auth   string
		apiKey string
		want   int
	}{
		{name: "anonymous me", method: http.MethodGet, path: "/api/me", want: http.StatusUnauthorized},
		{name: "bad token", method: http.MethodGet, path: "/api/products", auth: "Bearer nope", want: http.StatusUnauthorized},
		{name: "not bearer", method: http.MethodGet, path: "/api/products", auth: "Basic Zm9v", want: http.StatusUnauthorized},
		{name: "user on admin", method: http.MethodGet, path: "/api/admin/overview", auth: bearer(t, "u1", auth.RoleUser), want: http.StatusForbidden},
		{name: "admin token", method: http.MethodGet, path: "/api/admin/overview", auth: bearer(t, "a1", auth.RoleAdmin), want: http.StatusOK},
		{name: "admin api key", method: http.MethodGet, path: "/api/admin/overview", apiKey: "ops-key", want: http.StatusOK},
		{name: "unknown api key", method: http.MethodGet, path: "/api/admin/overview", apiKey: "guess", want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			if tt.apiKey != "" {
				req.Header.Set(APIKeyHeader, tt.apiKey)
			}
			assert.Equal(t, tt.want, e.do(req).Code)
		})
	}
}

func TestOverview(t *testing.T) {
	e := newEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/admin/overview", nil)
	req.Header.Set("Authorization", bearer(t, "a1", auth.RoleAdmin))
	w := e.do(req)

	require.Equal(t, http.StatusOK, w.Code)
	var body overviewDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, 3, body.Orders)
	assert.Equal(t, "159.50", body.TotalSales)
	assert.Equal(t, []monthDTO{{Month: "01-2026", Total: "10.00"}}, body.MonthlySales)
}

func TestStripeWebhook(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", strings.NewReader(`{}`))
	req.Header.Set(stripe.SignatureHeader, "t=1,v1=abc")
	w := e.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t=1,v1=abc", e.payments.webhookSig)
	assert.Equal(t, "Order marked as paid", decodeResult(t, w).Message)
	assert.Empty(t, w.Result().Cookies())

	e.payments.webhookErr = payment.ErrBadSignature
	w = e.do(httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentIntent(t *testing.T) {
	e := newEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/orders/o1/payment-intent", nil)
	req.Header.Set("Authorization", bearer(t, "u1", auth.RoleUser))
	w := e.do(req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"Payment intent created","data":{"clientSecret":"pi_1_secret"}}`, w.Body.String())
}

func TestUpdateAddress(t *testing.T) {
	e := newEnv(t)
	body := `{"fullName":"Jane Doe","streetAddress":"1 Main St","city":"Springfield","postalCode":"12345","country":"USA"}`
	req := httptest.NewRequest(http.MethodPut, "/api/me/address", strings.NewReader(body))
	req.Header.Set("Authorization", bearer(t, "u1", auth.RoleUser))
	w := e.do(req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Springfield", e.users.address.City)
	assert.Equal(t, "/payment-method", decodeResult(t, w).RedirectTo)
}

func TestAdminProducts(t *testing.T) {
	e := newEnv(t)
	admin := bearer(t, "a1", auth.RoleAdmin)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/products",
		strings.NewReader(`{"name":"Polo","slug":"polo","price":"59.90","stock":3,"images":["/a.jpg"]}`))
	req.Header.Set("Authorization", admin)
	w := e.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "59.90", e.catalog.created.Price)
	assert.Equal(t, 3, e.catalog.created.Stock)

	e.catalog.deleteErr = product.ErrHasOrders
	req = httptest.NewRequest(http.MethodDelete, "/api/admin/products/p1", nil)
	req.Header.Set("Authorization", admin)
	w = e.do(req)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusOf(apperr.KindValidation))
	assert.Equal(t, http.StatusNotFound, statusOf(apperr.KindNotFound))
	assert.Equal(t, http.StatusConflict, statusOf(apperr.KindBusinessRule))
	assert.Equal(t, http.StatusBadGateway, statusOf(apperr.KindProvider))
	assert.Equal(t, http.StatusInternalServerError, statusOf(apperr.KindStorage))
}
