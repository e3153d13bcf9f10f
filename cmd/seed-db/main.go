package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"

	"github.com/xenking/storefront/db"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/storage/postgres"
)

const tokenTTL = 30 * 24 * time.Hour

type options struct {
	databaseURL  string
	productsFile string
	apiKey       string
	apiKeyPepper string
	jwtSecret    string
}

func main() {
	var opts options

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.productsFile, "products-file", "", "products JSON file, optionally .gz (default: embedded sample catalog)")
	flag.StringVar(&opts.apiKey, "api-key", "", "admin API key to seed (or SHOP_SEED_API_KEY env)")
	flag.StringVar(&opts.apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or SHOP_AUTH_APIKEYPEPPER env)")
	flag.StringVar(&opts.jwtSecret, "jwt-secret", "", "HS256 secret for printed tokens (or SHOP_AUTH_JWTSECRET env)")
	flag.Parse()

	envDefault(&opts.databaseURL, "DATABASE_URL")
	envDefault(&opts.apiKey, "SHOP_SEED_API_KEY")
	envDefault(&opts.apiKeyPepper, "SHOP_AUTH_APIKEYPEPPER")
	envDefault(&opts.jwtSecret, "SHOP_AUTH_JWTSECRET")

	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func envDefault(dst *string, key string) {
	if *dst == "" {
		*dst = os.Getenv(key)
	}
}

func run(ctx context.Context, opts options) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, postgres.NewProductRepository(pool), opts.productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	users, err := seedUsers(ctx, postgres.NewUserRepository(pool))
	if err != nil {
		return errors.Wrap(err, "seed users")
	}

	if opts.apiKey != "" {
		if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), opts.apiKey, opts.apiKeyPepper); err != nil {
			return errors.Wrap(err, "seed api key")
		}
	} else {
		slog.Info("no API key given, skipping")
	}

	if opts.jwtSecret != "" {
		return printTokens(users, opts.jwtSecret)
	}
	return nil
}

// readCatalog returns the products file, gunzipped when it ends in .gz.
func readCatalog(path string) ([]byte, error) {
	if path == "" {
		return db.SeedProducts, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read products file")
	}
	if !strings.HasSuffix(path, ".gz") {
		return raw, nil
	}

	gz, err := pgzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "open gzip")
	}
	defer func() { _ = gz.Close() }()

	data, err := io.ReadAll(gz)
	if err != nil {
		return nil, errors.Wrap(err, "gunzip products file")
	}
	return data, nil
}

func seedProducts(ctx context.Context, repo *postgres.ProductRepository, path string) error {
	slog.Info("reading products", slog.String("path", path))

	data, err := readCatalog(path)
	if err != nil {
		return err
	}

	var records []product.FeedRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	products := make([]product.Product, 0, len(records))
	for _, rec := range records {
		p, err := rec.Product()
		if err != nil {
			return errors.Wrapf(err, "product %s", rec.Slug)
		}
		products = append(products, p)
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	return repo.UpsertBatch(ctx, products)
}

func seedUsers(ctx context.Context, repo *postgres.UserRepository) ([]user.User, error) {
	users := []user.User{
		{Name: "Admin", Email: "admin@example.com", Role: auth.RoleAdmin},
		{Name: "Jane Customer", Email: "user@example.com", Role: auth.RoleUser},
	}
	for i := range users {
		users[i].ID = uuid.NewString()
		if err := repo.Create(ctx, &users[i]); err != nil {
			return nil, errors.Wrapf(err, "upsert user %s", users[i].Email)
		}
		slog.Info("upserted user",
			slog.String("id", users[i].ID),
			slog.String("email", users[i].Email),
			slog.String("role", string(users[i].Role)),
		)
	}
	return users, nil
}

func seedAPIKey(ctx context.Context, repo *postgres.APIKeyRepository, apiKey, pepper string) error {
	slog.Info("seeding admin API key")

	if err := repo.Upsert(ctx, auth.APIKeyInfo{
		ID:      "default",
		KeyHash: handler.HashAPIKey([]byte(pepper), apiKey),
		Name:    "Back-office automation",
		Scopes:  []string{auth.ScopeAdmin},
	}); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", "default"))

	return nil
}

// printTokens writes bearer tokens for the seeded users to stdout.
func printTokens(users []user.User, secret string) error {
	tokens := auth.NewTokens([]byte(secret))
	for _, u := range users {
		tok, err := tokens.Sign(auth.Principal{UserID: u.ID, Role: u.Role}, tokenTTL)
		if err != nil {
			return errors.Wrapf(err, "token for %s", u.Email)
		}
		if _, err := io.WriteString(os.Stdout, u.Email+"\t"+tok+"\n"); err != nil {
			return err
		}
	}
	return nil
}
