package handler

import (
	"net/http"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
)

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	o, err := h.Reports.Overview(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overviewView(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	n, err := pageParam(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	page, err := h.Orders.List(r.Context(), r.URL.Query().Get("q"), n)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPage(page.Items, page.Total, page.TotalPages, h.order))
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.Orders.Delete(r.Context(), r.PathValue("id")); err != nil {
		fail(w, r, err)
		return
	}
	ok(w, apperr.Result{Message: "Order deleted successfully"})
}

// markPaid records a cash-on-delivery payment.
func (h *Handler) markPaid(w http.ResponseWriter, r *http.Request) {
	o, err := h.Payments.MarkPaidOffline(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, apperr.Result{Message: "Order marked as paid", Data: h.order(*o)})
}

func (h *Handler) markDelivered(w http.ResponseWriter, r *http.Request) {
	o, err := h.Payments.MarkDelivered(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, apperr.Result{Message: "Order marked as delivered", Data: h.order(*o)})
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.Catalog.Search(r.Context(), product.RawSearch{Query: q.Get("q"), Page: q.Get("page")})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPage(page.Items, page.Total, page.TotalPages, h.product))
}

func (h *Handler) productByID(w http.ResponseWriter, r *http.Request) {
	p, err := h.Catalog.ByID(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.product(*p))
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	p, err := h.Catalog.Create(r.Context(), req.input())
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, apperr.Result{Message: "Product created successfully", Data: h.product(*p)})
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	p, err := h.Catalog.Update(r.Context(), r.PathValue("id"), req.input())
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, apperr.Result{Message: "Product updated successfully", Data: h.product(*p)})
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.Delete(r.Context(), r.PathValue("id")); err != nil {
		fail(w, r, err)
		return
	}
	ok(w, apperr.Result{Message: "Product deleted successfully"})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	n, err := pageParam(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	page, err := h.Users.List(r.Context(), r.URL.Query().Get("q"), n)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPage(page.Items, page.Total, page.TotalPages, userView))
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Users.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userView(*u))
}

type adminUserRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	var req adminUserRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if err := h.Users.Update(r.Context(), r.PathValue("id"), user.AdminInput{Name: req.Name, Role: req.Role}); err != nil {
		fail(w, r, err)
		return
	}
	ok(w, apperr.Result{Message: "User updated successfully"})
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.Users.Delete(r.Context(), r.PathValue("id")); err != nil {
		fail(w, r, err)
		return
	}
	ok(w, apperr.Result{Message: "User deleted successfully"})
}
