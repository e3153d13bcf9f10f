// Package stripe creates card payment intents and verifies signed webhook
// events on top of the official Stripe SDK.
package stripe

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	stripego "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/payment"
)

// DefaultURL is the Stripe API root.
const DefaultURL = stripego.APIURL

var _ payment.CardIntents = (*Client)(nil)

// APIError is a failed Stripe API call.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return "stripe: " + strconv.Itoa(e.StatusCode) + ": " + e.Message
}

// Options configures a Client.
type Options struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
	Currency      string
	// Tolerance is the maximum age of a webhook signature.
	Tolerance  time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to the Stripe payment intents API.
type Client struct {
	intents   paymentintent.Client
	whSecret  string
	currency  string
	tolerance time.Duration
}

// New creates a Stripe client with its own API backend.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultURL
	}
	if opts.Currency == "" {
		opts.Currency = "usd"
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = 5 * time.Minute
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	backend := stripego.GetBackendWithConfig(stripego.APIBackend, &stripego.BackendConfig{
		HTTPClient:      opts.HTTPClient,
		URL:             stripego.String(strings.TrimRight(opts.BaseURL, "/")),
		LeveledLogger:   opts.Logger.Sugar(),
		EnableTelemetry: stripego.Bool(false),
	})
	return &Client{
		intents:   paymentintent.Client{B: backend, Key: opts.SecretKey},
		whSecret:  opts.WebhookSecret,
		currency:  strings.ToLower(opts.Currency),
		tolerance: opts.Tolerance,
	}
}

// CreateIntent creates a payment intent for amountCents tagged with orderID.
// Retries for the same order and amount reuse one intent.
func (c *Client) CreateIntent(ctx context.Context, amountCents int64, orderID string) (*payment.Intent, error) {
	params := &stripego.PaymentIntentParams{
		Amount:   stripego.Int64(amountCents),
		Currency: stripego.String(c.currency),
	}
	params.Context = ctx
	params.AddMetadata("orderId", orderID)
	params.SetIdempotencyKey("order-" + orderID + "-" + strconv.FormatInt(amountCents, 10))

	pi, err := c.intents.New(params)
	if err != nil {
		var serr *stripego.Error
		if errors.As(err, &serr) {
			return nil, &APIError{StatusCode: serr.HTTPStatusCode, Code: string(serr.Code), Message: serr.Msg}
		}
		return nil, errors.Wrap(err, "create payment intent")
	}
	return &payment.Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}
