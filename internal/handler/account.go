package handler

import (
	"net/http"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/user"
)

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	u, err := h.Users.Get(r.Context(), auth.UserIDFrom(r.Context()))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userView(*u))
}

func (h *Handler) updateAddress(w http.ResponseWriter, r *http.Request) {
	var a user.Address
	if err := decode(r, &a); err != nil {
		fail(w, r, err)
		return
	}
	if err := h.Users.UpdateAddress(r.Context(), auth.UserIDFrom(r.Context()), a); err != nil {
		fail(w, r, err)
		return
	}
	ok(w, apperr.Result{Message: "User updated successfully", RedirectTo: "/payment-method"})
}

type paymentMethodRequest struct {
	Type string `json:"type"`
}

func (h *Handler) updatePaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req paymentMethodRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	err := h.Users.UpdatePaymentMethod(r.Context(), auth.UserIDFrom(r.Context()), user.PaymentMethod(req.Type))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, apperr.Result{Message: "User updated successfully", RedirectTo: "/place-order"})
}

type profileRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	in := user.ProfileInput{Name: req.Name, Email: req.Email}
	if err := h.Users.UpdateProfile(r.Context(), auth.UserIDFrom(r.Context()), in); err != nil {
		fail(w, r, err)
		return
	}
	ok(w, apperr.Result{Message: "User updated successfully"})
}

func (h *Handler) myOrders(w http.ResponseWriter, r *http.Request) {
	n, err := pageParam(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	page, err := h.Orders.ListForUser(r.Context(), auth.UserIDFrom(r.Context()), n)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPage(page.Items, page.Total, page.TotalPages, h.order))
}
