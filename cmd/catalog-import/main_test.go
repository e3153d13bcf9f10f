package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	pgzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/product"
)

type memCatalog struct {
	mu      sync.Mutex
	bySlug  map[string]product.Product
	batches int
}

func (m *memCatalog) UpsertBatch(_ context.Context, products []product.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches++
	for _, p := range products {
		m.bySlug[p.Slug] = p
	}
	return nil
}

func (m *memCatalog) GetBySlug(_ context.Context, slug string) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.bySlug[slug]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func line(slug, brand string) string {
	return `{"name":"Shirt ` + slug + `","slug":"` + slug + `","category":"Shirts","brand":"` + brand +
		`","description":"A very fine shirt","images":["/a.jpg"],"price":"10.00","stock":1}`
}

func writeFeed(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(strings.Join(lines, "\n")))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

func TestImporter(t *testing.T) {
	dir := t.TempDir()
	a := writeFeed(t, dir, "a.ndjson.gz",
		line("shirt-one", "Acme"),
		line("shirt-two", "Acme"),
		line("shirt-one", "Acme"),
		"{not json",
		"",
	)
	b := writeFeed(t, dir, "b.ndjson.gz",
		line("shirt-three", "Bolt"),
		`{"name":"x","slug":"bad","price":"1"}`,
	)

	cat := &memCatalog{bySlug: map[string]product.Product{}}
	imp := newImporter(cat, 1000, 2)

	st, err := imp.Import(context.Background(), []string{a, b})
	require.NoError(t, err)

	assert.Len(t, cat.bySlug, 3)
	assert.Equal(t, 3, st.upserted)
	assert.Equal(t, 1, st.duplicates)
	assert.Equal(t, 2, st.invalid)
}

func TestImporter_RecheckFalsePositive(t *testing.T) {
	cat := &memCatalog{bySlug: map[string]product.Product{}}
	imp := newImporter(cat, 1000, 10)

	// A slug the filter already reports as seen but the catalog lacks.
	imp.seen.AddString("ghost")
	p := product.Product{ID: "p1", Slug: "ghost"}
	require.NoError(t, imp.accept(context.Background(), record{p: p}))
	require.Len(t, imp.suspect, 1)

	require.NoError(t, imp.recheck(context.Background()))
	assert.Contains(t, cat.bySlug, "ghost")
	assert.Equal(t, 1, imp.stats.rechecked)
}

func TestImporter_MissingFeed(t *testing.T) {
	imp := newImporter(&memCatalog{bySlug: map[string]product.Product{}}, 10, 10)
	_, err := imp.Import(context.Background(), []string{filepath.Join(t.TempDir(), "nope.ndjson.gz")})
	require.Error(t, err)
}
