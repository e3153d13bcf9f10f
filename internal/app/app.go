package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/report"
	"github.com/xenking/storefront/internal/domain/user"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/provider/paypal"
	"github.com/xenking/storefront/internal/provider/stripe"
	"github.com/xenking/storefront/internal/storage/postgres"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

const serviceName = "storefront-api"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pricing, err := cfg.CartPricing()
	if err != nil {
		return errors.Wrap(err, "pricing")
	}

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New(health.Options{Interval: 10 * time.Second, Timeout: 5 * time.Second})
	healthSvc.Add(health.Readiness, "postgres", health.PingCheck(pool))
	healthSvc.Add(health.Liveness, "goroutines", health.GoroutineCheck(10000))
	healthSvc.Add(health.Liveness, "gc", health.GCPauseCheck(time.Second))

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	cartRepo := postgres.NewCartRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	reportRepo := postgres.NewReportRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)

	// Payment providers share an instrumented transport.
	providerHTTP := &http.Client{
		Timeout: 15 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
		),
	}
	paypalClient := paypal.New(paypal.Options{
		BaseURL:      cfg.PayPal.APIURL,
		ClientID:     cfg.PayPal.ClientID,
		ClientSecret: cfg.PayPal.ClientSecret,
		HTTPClient:   providerHTTP,
	})
	stripeClient := stripe.New(stripe.Options{
		BaseURL:       cfg.Stripe.APIURL,
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		Currency:      cfg.Stripe.Currency,
		HTTPClient:    providerHTTP,
		Logger:        lg.Named("stripe"),
	})

	// Domain services.
	catalog := product.NewService(productRepo, product.Config{
		PageSize:    cfg.Catalog.PageSize,
		LatestLimit: cfg.Catalog.LatestLimit,
	})
	carts := cart.NewService(cartRepo, productRepo, pricing)
	users := user.NewService(userRepo, cfg.Catalog.PageSize)
	orders := order.NewService(orderRepo, userRepo, cfg.Catalog.PageSize)
	payments, err := payment.NewService(orders, paypalClient, stripeClient,
		m.MeterProvider().Meter(serviceName),
		m.TracerProvider().Tracer(serviceName),
	)
	if err != nil {
		return errors.Wrap(err, "payment service")
	}
	reports := report.NewService(reportRepo)

	// HTTP handlers.
	h := handler.New(handler.Config{
		ImageBaseURL:  cfg.ImageBaseURL,
		SessionCookie: cfg.Auth.SessionCookie,
		SecureCookie:  cfg.Auth.SecureCookie,
	}, handler.Services{
		Catalog:  catalog,
		Carts:    carts,
		Orders:   orders,
		Payments: payments,
		Users:    users,
		Reports:  reports,
	})
	authn := handler.NewAuthenticator(
		auth.NewTokens([]byte(cfg.Auth.JWTSecret)),
		apikeyRepo,
		[]byte(cfg.Auth.APIKeyPepper),
	)

	limiter := httpmiddleware.NewLimiter(httpmiddleware.RateLimitConfig{
		Rate:    cfg.RateLimit.Rate,
		Burst:   cfg.RateLimit.Burst,
		IdleTTL: cfg.RateLimit.IdleTTL,
	})

	api := http.NewServeMux()
	h.Register(api)

	// Health probes and provider webhooks stay outside authentication, the
	// cart session and the per-client limiter.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.RegisterWebhooks(mux)
	mux.Handle("/api/", httpmiddleware.Wrap(h.Session(api), limiter.Middleware(), authn.Middleware))

	routeFinder := httpmiddleware.ChainRouteFinders(
		httpmiddleware.MakeRouteFinder(api),
		httpmiddleware.MakeRouteFinder(mux),
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", handler.APIKeyHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.Instrument(serviceName, routeFinder, m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return healthSvc.Run(ctx) })
	g.Go(func() error { return limiter.Run(ctx) })
	g.Go(func() error {
		// Graceful shutdown: wait for context cancellation, drain, then stop.
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	g.Go(func() error {
		healthSvc.SetReady(true)
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	return g.Wait()
}
