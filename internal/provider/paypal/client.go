// Package paypal is a minimal client for the PayPal orders v2 API.
package paypal

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/payment"
)

// SandboxURL is the PayPal sandbox API root.
const SandboxURL = "https://api-m.sandbox.paypal.com"

var _ payment.PayPal = (*Client)(nil)

// APIError is a non-2xx PayPal response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return "paypal: " + http.StatusText(e.StatusCode) + ": " + e.Body
}

// Options configures a Client.
type Options struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Currency     string
	HTTPClient   *http.Client
}

// Client calls the PayPal REST API with client-credentials OAuth.
type Client struct {
	http     *http.Client
	baseURL  string
	id       string
	secret   string
	currency string
	now      func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// New creates a PayPal client.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = SandboxURL
	}
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	return &Client{
		http:     opts.HTTPClient,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		id:       opts.ClientID,
		secret:   opts.ClientSecret,
		currency: strings.ToUpper(opts.Currency),
		now:      time.Now,
	}
}

// CreateOrder opens a CAPTURE-intent order for amount and returns its id.
func (c *Client) CreateOrder(ctx context.Context, amount decimal.Decimal) (string, error) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("intent", func(e *jx.Encoder) { e.Str("CAPTURE") })
		e.Field("purchase_units", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("amount", func(e *jx.Encoder) {
						e.Obj(func(e *jx.Encoder) {
							e.Field("currency_code", func(e *jx.Encoder) { e.Str(c.currency) })
							e.Field("value", func(e *jx.Encoder) { e.Str(amount.StringFixed(2)) })
						})
					})
				})
			})
		})
	})

	body, err := c.do(ctx, "/v2/checkout/orders", e.Bytes())
	if err != nil {
		return "", errors.Wrap(err, "create order")
	}

	var id string
	if err := jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "id" {
			return d.Skip()
		}
		v, err := d.Str()
		id = v
		return err
	}); err != nil {
		return "", errors.Wrap(err, "decode order")
	}
	if id == "" {
		return "", errors.New("paypal: order without id")
	}
	return id, nil
}

// CaptureOrder captures payment for a previously approved order.
func (c *Client) CaptureOrder(ctx context.Context, providerOrderID string) (*payment.Capture, error) {
	body, err := c.do(ctx, "/v2/checkout/orders/"+url.PathEscape(providerOrderID)+"/capture", nil)
	if err != nil {
		return nil, errors.Wrap(err, "capture order")
	}

	capture, err := decodeCapture(body)
	if err != nil {
		return nil, errors.Wrap(err, "decode capture")
	}
	return capture, nil
}

// decodeCapture reads id, status, payer email and the first captured amount.
func decodeCapture(body []byte) (*payment.Capture, error) {
	var out payment.Capture
	err := jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "id":
			v, err := d.Str()
			out.ID = v
			return err
		case "status":
			v, err := d.Str()
			out.Status = v
			return err
		case "payer":
			return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				if string(key) != "email_address" {
					return d.Skip()
				}
				v, err := d.Str()
				out.PayerEmail = v
				return err
			})
		case "purchase_units":
			first := true
			return d.Arr(func(d *jx.Decoder) error {
				if !first {
					return d.Skip()
				}
				first = false
				return decodeUnitAmount(d, &out.Amount)
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// decodeUnitAmount reads payments.captures[0].amount.value of a purchase unit.
func decodeUnitAmount(d *jx.Decoder, value *string) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "payments" {
			return d.Skip()
		}
		return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			if string(key) != "captures" {
				return d.Skip()
			}
			first := true
			return d.Arr(func(d *jx.Decoder) error {
				if !first {
					return d.Skip()
				}
				first = false
				return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
					if string(key) != "amount" {
						return d.Skip()
					}
					return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
						if string(key) != "value" {
							return d.Skip()
						}
						v, err := d.Str()
						*value = v
						return err
					})
				})
			})
		})
	})
}

func (c *Client) do(ctx context.Context, path string, payload []byte) ([]byte, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "access token")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	return c.send(req)
}

// accessToken returns a cached OAuth token, fetching a new one shortly before
// the old one expires.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expires) {
		return c.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.id, c.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.send(req)
	if err != nil {
		return "", err
	}

	var (
		token     string
		expiresIn int64
	)
	if err := jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "access_token":
			v, err := d.Str()
			token = v
			return err
		case "expires_in":
			v, err := d.Int64()
			expiresIn = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		return "", errors.Wrap(err, "decode token")
	}
	if token == "" {
		return "", errors.New("paypal: empty access token")
	}

	c.token = token
	c.expires = c.now().Add(time.Duration(expiresIn)*time.Second - time.Minute)
	return token, nil
}

func (c *Client) send(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
