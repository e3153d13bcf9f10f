package handler

import (
	"net/http"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
)

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.Create(r.Context(), auth.UserIDFrom(r.Context()))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, apperr.Result{
		Message:    "Order created successfully",
		RedirectTo: "/order/" + o.ID,
		Data:       h.order(*o),
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.Get(r.Context(), auth.PrincipalFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.order(*o))
}
