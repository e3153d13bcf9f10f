// Command catalog-import merges gzip NDJSON product feeds into the catalog.
//
// Feeds are read concurrently. The first record seen for a slug wins; later
// records with the same slug are skipped. Seen slugs are tracked in a bloom
// filter, and filter hits are re-checked against the database at the end so
// a false positive never drops a product.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/storage/postgres"
)

const (
	bloomFPR      = 0.0001
	progressEvery = 100_000
	maxLine       = 1 << 20
)

type options struct {
	dataDir     string
	databaseURL string
	capacity    uint
	batchSize   int
}

// record is a decoded feed line with its origin.
type record struct {
	feed string
	line int
	p    product.Product
}

// Catalog is the product store the import writes to.
type Catalog interface {
	UpsertBatch(ctx context.Context, products []product.Product) error
	GetBySlug(ctx context.Context, slug string) (*product.Product, error)
}

func main() {
	var opts options

	flag.StringVar(&opts.dataDir, "data-dir", "data", "directory containing *.ndjson.gz feeds")
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&opts.capacity, "expected-products", 1_000_000, "bloom filter capacity")
	flag.IntVar(&opts.batchSize, "batch-size", 500, "products per upsert batch")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog import completed successfully")
}

func run(ctx context.Context, opts options) error {
	feeds, err := filepath.Glob(filepath.Join(opts.dataDir, "*.ndjson.gz"))
	if err != nil {
		return errors.Wrap(err, "list feeds")
	}
	if len(feeds) == 0 {
		return errors.Errorf("no *.ndjson.gz feeds in %s", opts.dataDir)
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	imp := newImporter(postgres.NewProductRepository(pool), opts.capacity, opts.batchSize)
	stats, err := imp.Import(ctx, feeds)
	if err != nil {
		return err
	}

	slog.Info("import summary",
		slog.Int("feeds", len(feeds)),
		slog.Int("upserted", stats.upserted),
		slog.Int("duplicates", stats.duplicates),
		slog.Int("invalid", stats.invalid),
		slog.Int("rechecked", stats.rechecked),
	)
	return nil
}

type stats struct {
	upserted   int
	duplicates int
	invalid    int
	rechecked  int
}

type importer struct {
	catalog   Catalog
	seen      *bloom.BloomFilter
	batchSize int

	batch   []product.Product
	suspect []product.Product
	stats   stats
	// invalid is incremented by reader goroutines.
	invalid atomic.Int64
}

func newImporter(catalog Catalog, capacity uint, batchSize int) *importer {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &importer{
		catalog:   catalog,
		seen:      bloom.NewWithEstimates(capacity, bloomFPR),
		batchSize: batchSize,
	}
}

// Import reads feeds concurrently and writes through a single consumer.
func (imp *importer) Import(ctx context.Context, feeds []string) (stats, error) {
	records := make(chan record, imp.batchSize)

	g, gctx := errgroup.WithContext(ctx)
	readers, rctx := errgroup.WithContext(gctx)
	for _, feed := range feeds {
		readers.Go(func() error {
			return imp.readFeed(rctx, feed, records)
		})
	}
	g.Go(func() error {
		defer close(records)
		return readers.Wait()
	})
	g.Go(func() error {
		for rec := range records {
			if err := imp.accept(gctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	err := g.Wait()
	imp.stats.invalid = int(imp.invalid.Load())
	if err != nil {
		return imp.stats, err
	}

	if err := imp.flush(ctx); err != nil {
		return imp.stats, err
	}
	if err := imp.recheck(ctx); err != nil {
		return imp.stats, err
	}
	return imp.stats, nil
}

func (imp *importer) readFeed(ctx context.Context, path string, out chan<- record) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	name := filepath.Base(path)
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64<<10), maxLine)

	var line int
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}

		var rec product.FeedRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			slog.Warn("skipping malformed line", slog.String("feed", name), slog.Int("line", line))
			imp.invalid.Add(1)
			continue
		}
		p, err := rec.Product()
		if err != nil {
			slog.Warn("skipping invalid product",
				slog.String("feed", name),
				slog.Int("line", line),
				slog.String("slug", rec.Slug),
				slog.String("error", err.Error()),
			)
			imp.invalid.Add(1)
			continue
		}

		select {
		case out <- record{feed: name, line: line, p: p}:
		case <-ctx.Done():
			return ctx.Err()
		}
		if line%progressEvery == 0 {
			slog.Info("feed progress", slog.String("feed", name), slog.Int("lines", line))
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	slog.Info("feed complete", slog.String("feed", name), slog.Int("lines", line))
	return nil
}

// accept runs on the consumer goroutine only.
func (imp *importer) accept(ctx context.Context, rec record) error {
	if imp.seen.TestOrAddString(rec.p.Slug) {
		if imp.inBatch(rec.p.Slug) {
			imp.stats.duplicates++
			return nil
		}
		imp.suspect = append(imp.suspect, rec.p)
		return nil
	}

	imp.batch = append(imp.batch, rec.p)
	if len(imp.batch) >= imp.batchSize {
		return imp.flush(ctx)
	}
	return nil
}

func (imp *importer) inBatch(slug string) bool {
	for _, p := range imp.batch {
		if p.Slug == slug {
			return true
		}
	}
	return false
}

func (imp *importer) flush(ctx context.Context) error {
	if len(imp.batch) == 0 {
		return nil
	}
	if err := imp.catalog.UpsertBatch(ctx, imp.batch); err != nil {
		return errors.Wrap(err, "upsert batch")
	}
	imp.stats.upserted += len(imp.batch)
	imp.batch = imp.batch[:0]
	return nil
}

// recheck stores filter hits whose slug is not in the catalog yet. The
// first record per slug wins among suspects too. A false positive for a slug
// stored by an earlier run is left unchanged.
func (imp *importer) recheck(ctx context.Context) error {
	written := make(map[string]bool)
	for _, p := range imp.suspect {
		if written[p.Slug] {
			imp.stats.duplicates++
			continue
		}
		_, err := imp.catalog.GetBySlug(ctx, p.Slug)
		switch {
		case err == nil:
			imp.stats.duplicates++
			continue
		case !errors.Is(err, product.ErrNotFound):
			return errors.Wrapf(err, "recheck %s", p.Slug)
		}
		written[p.Slug] = true
		imp.stats.rechecked++
		imp.batch = append(imp.batch, p)
	}
	imp.suspect = nil
	return imp.flush(ctx)
}
