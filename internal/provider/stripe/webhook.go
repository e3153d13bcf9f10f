package stripe

import (
	"encoding/json"
	"strings"

	"github.com/go-faster/errors"
	stripego "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/xenking/storefront/internal/domain/payment"
)

// SignatureHeader carries the webhook signature.
const SignatureHeader = "Stripe-Signature"

// ParseEvent verifies signature over payload and decodes the event. For
// charge events the charge fields and the orderId metadata are filled in.
// Events pinned to another API version are accepted; only the charge fields
// above are read.
func (c *Client) ParseEvent(payload []byte, signature string) (*payment.Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, c.whSecret, webhook.ConstructEventOptions{
		Tolerance:                c.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "verify event")
	}

	out := &payment.Event{ID: ev.ID, Type: string(ev.Type)}
	if !strings.HasPrefix(out.Type, "charge.") || ev.Data == nil {
		return out, nil
	}

	var ch stripego.Charge
	if err := json.Unmarshal(ev.Data.Raw, &ch); err != nil {
		return nil, errors.Wrap(err, "decode charge")
	}
	out.ChargeID = ch.ID
	out.Status = string(ch.Status)
	out.AmountCents = ch.Amount
	out.OrderID = ch.Metadata["orderId"]
	if ch.BillingDetails != nil {
		out.Email = ch.BillingDetails.Email
	}
	return out, nil
}
