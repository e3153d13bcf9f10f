package handler

import (
	"net/http"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
)

func owner(r *http.Request) (cart.Owner, error) {
	return cart.ResolveOwner(auth.UserIDFrom(r.Context()), auth.SessionFrom(r.Context()))
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	o, err := owner(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	c, err := h.Carts.Get(r.Context(), o)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cart(c))
}

type addItemRequest struct {
	ProductID string `json:"productId"`
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	o, err := owner(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	change, err := h.Carts.AddItem(r.Context(), o, req.ProductID)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, apperr.Result{Message: change.Message, Data: h.cart(change.Cart)})
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	o, err := owner(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	change, err := h.Carts.RemoveItem(r.Context(), o, r.PathValue("productId"))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, apperr.Result{Message: change.Message, Data: h.cart(change.Cart)})
}

// claimCart hands the anonymous session cart to the signed-in user.
func (h *Handler) claimCart(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFrom(r.Context())
	if session == "" {
		fail(w, r, cart.ErrNoOwner)
		return
	}
	if err := h.Carts.Claim(r.Context(), session, auth.UserIDFrom(r.Context())); err != nil {
		fail(w, r, err)
		return
	}
	ok(w, apperr.Result{Message: "Cart claimed"})
}
