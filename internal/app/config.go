package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/cart"
)

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL string `default:"" usage:"Base URL for product images (e.g. https://cdn.example.com/images)" flag:"image-base-url"`
	Auth         AuthConfig
	Pricing      PricingConfig
	Catalog      CatalogConfig
	PayPal       PayPalConfig
	Stripe       StripeConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// AuthConfig holds the secrets shared with the authentication service.
type AuthConfig struct {
	JWTSecret     string `usage:"HS256 secret of bearer tokens" flag:"jwt-secret"`
	APIKeyPepper  string `usage:"HMAC pepper for API key hashing" flag:"api-key-pepper"`
	SessionCookie string `default:"sessionCartId" usage:"Anonymous cart cookie name"`
	SecureCookie  bool   `default:"true" usage:"Send the cart cookie over HTTPS only"`
}

// PricingConfig holds cart pricing rules as decimal strings.
type PricingConfig struct {
	FreeShippingOver string `default:"100" usage:"Items price above which shipping is free"`
	ShippingFee      string `default:"10" usage:"Flat shipping fee"`
	TaxRate          string `default:"0.15" usage:"Tax rate applied to the items price"`
}

// CatalogConfig controls catalog paging.
type CatalogConfig struct {
	PageSize    int `default:"10" usage:"Search and admin list page size"`
	LatestLimit int `default:"4" usage:"Products on the home page"`
}

// PayPalConfig holds PayPal REST credentials.
type PayPalConfig struct {
	ClientID     string `usage:"PayPal client id"`
	ClientSecret string `usage:"PayPal client secret"`
	APIURL       string `default:"https://api-m.sandbox.paypal.com" usage:"PayPal API base URL"`
}

// StripeConfig holds Stripe credentials.
type StripeConfig struct {
	SecretKey     string `usage:"Stripe secret key"`
	WebhookSecret string `usage:"Stripe webhook signing secret"`
	APIURL        string `default:"https://api.stripe.com" usage:"Stripe API base URL"`
	Currency      string `default:"usd" usage:"Payment intent currency"`
}

// RateLimitConfig controls the per-client token bucket.
type RateLimitConfig struct {
	Rate    float64       `default:"20" usage:"Sustained requests per second per client"`
	Burst   int           `default:"100" usage:"Burst size per client"`
	IdleTTL time.Duration `default:"10m" usage:"Forget clients idle this long"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"true" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/shop/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("jwt secret is required: set SHOP_AUTH_JWTSECRET")
	}
	_, err := c.CartPricing()
	return err
}

// CartPricing parses the pricing rules.
func (c *Config) CartPricing() (cart.Pricing, error) { return c.Pricing.parse() }

func (p PricingConfig) parse() (cart.Pricing, error) {
	var out cart.Pricing
	for _, f := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"free shipping threshold", p.FreeShippingOver, &out.FreeShippingOver},
		{"shipping fee", p.ShippingFee, &out.ShippingFee},
		{"tax rate", p.TaxRate, &out.TaxRate},
	} {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return out, errors.Wrapf(err, "parse %s", f.name)
		}
		if v.IsNegative() {
			return out, errors.Errorf("%s must not be negative", f.name)
		}
		*f.dst = v
	}
	return out, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's SHOP_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
