package handler

import (
	"io"
	"net/http"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/provider/stripe"
)

const maxWebhookBody = 64 << 10

func (h *Handler) createPayPalOrder(w http.ResponseWriter, r *http.Request) {
	id, err := h.Payments.CreatePayPalOrder(r.Context(), auth.PrincipalFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, apperr.Result{Message: "PayPal order created successfully", Data: map[string]string{"id": id}})
}

type captureRequest struct {
	OrderID string `json:"orderID"`
}

func (h *Handler) capturePayPalOrder(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if req.OrderID == "" {
		fail(w, r, apperr.Validation("PayPal order id is required"))
		return
	}
	o, err := h.Payments.ApprovePayPalOrder(r.Context(), auth.PrincipalFrom(r.Context()), r.PathValue("id"), req.OrderID)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, apperr.Result{Message: "Your order has been paid", Data: h.order(*o)})
}

func (h *Handler) createPaymentIntent(w http.ResponseWriter, r *http.Request) {
	intent, err := h.Payments.CreatePaymentIntent(r.Context(), auth.PrincipalFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, apperr.Result{Message: "Payment intent created", Data: map[string]string{"clientSecret": intent.ClientSecret}})
}

// stripeWebhook acknowledges provider events. Any 2xx stops redelivery, so
// duplicates and ignored events still answer 200.
func (h *Handler) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		fail(w, r, errBadBody)
		return
	}
	msg, err := h.Payments.HandleCardWebhook(r.Context(), payload, r.Header.Get(stripe.SignatureHeader))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, apperr.Result{Message: msg})
}
