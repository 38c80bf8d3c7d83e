//go:build integration

package postgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/karolberezicki/Foundation/internal/domain/catalog"
	"github.com/karolberezicki/Foundation/internal/domain/pricing"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "foundation",
				"POSTGRES_PASSWORD": "foundation",
				"POSTGRES_DB":       "foundation",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := container.Terminate(context.Background()); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	url := fmt.Sprintf("postgres://foundation:foundation@%s:%s/foundation?sslmode=disable", host, port.Port())

	testPool, err = NewPool(ctx, url)
	if err != nil {
		log.Fatalf("create pool: %v", err)
	}
	defer testPool.Close()

	if err := RunMigrations(ctx, testPool); err != nil {
		log.Fatalf("run migrations: %v", err)
	}
	if err := seedFixture(ctx, testPool); err != nil {
		log.Fatalf("seed fixture: %v", err)
	}

	return m.Run()
}

// seedFixture loads a small catalog: Fashion > Men > Shoes, a sneaker
// product with two variations, prices, and stock.
func seedFixture(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []struct {
		sql  string
		args []any
	}{
		{`INSERT INTO markets (market_id, default_language, default_currency) VALUES ($1, $2, $3)`,
			[]any{"US", "en", "USD"}},
		{`INSERT INTO markets (market_id, default_language, default_currency) VALUES ($1, $2, $3)`,
			[]any{"SE", "sv", "SEK"}},

		{`INSERT INTO catalog_nodes (reference, code, name, parent_reference) VALUES ($1, $2, $3, $4)`,
			[]any{"ref-fashion", "Fashion", "Fashion", ""}},
		{`INSERT INTO catalog_nodes (reference, code, name, parent_reference) VALUES ($1, $2, $3, $4)`,
			[]any{"ref-men", "Men", "Men", "ref-fashion"}},
		{`INSERT INTO catalog_nodes (reference, code, name, parent_reference) VALUES ($1, $2, $3, $4)`,
			[]any{"ref-shoes", "Shoes", "Shoes", "ref-men"}},

		{`INSERT INTO catalog_entries (reference, code, name, language, kind, parent_reference) VALUES ($1, $2, $3, $4, $5, $6)`,
			[]any{"ref-sneaker", "sneaker", "Classic Sneaker", "en", "product", "ref-shoes"}},
		{`INSERT INTO catalog_entries (reference, code, name, language, kind, parent_reference) VALUES ($1, $2, $3, $4, $5, $6)`,
			[]any{"ref-sneaker-41", "sneaker-41", "Classic Sneaker 41", "en", "variation", "ref-shoes"}},
		{`INSERT INTO catalog_entries (reference, code, name, language, kind, parent_reference) VALUES ($1, $2, $3, $4, $5, $6)`,
			[]any{"ref-sneaker-42", "sneaker-42", "Classic Sneaker 42", "en", "variation", "ref-shoes"}},

		{`INSERT INTO entry_variants (product_reference, variation_reference, sort_order) VALUES ($1, $2, $3)`,
			[]any{"ref-sneaker", "ref-sneaker-41", 0}},
		{`INSERT INTO entry_variants (product_reference, variation_reference, sort_order) VALUES ($1, $2, $3)`,
			[]any{"ref-sneaker", "ref-sneaker-42", 1}},

		{`INSERT INTO node_relations (entry_reference, parent_reference, sort_order) VALUES ($1, $2, $3)`,
			[]any{"ref-sneaker", "ref-shoes", 3}},

		{`INSERT INTO prices (entry_code, market_id, currency, price_code, amount, valid_from) VALUES ($1, $2, $3, $4, $5, $6)`,
			[]any{"sneaker-41", "US", "USD", "", "59.90", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}},
		{`INSERT INTO prices (entry_code, market_id, currency, price_code, amount, valid_from, valid_until) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			[]any{"sneaker-41", "US", "USD", "SALE", "44.90", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}},
		{`INSERT INTO prices (entry_code, market_id, currency, price_code, amount, valid_from) VALUES ($1, $2, $3, $4, $5, $6)`,
			[]any{"sneaker-42", "SE", "SEK", "", "549.00", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}},

		{`INSERT INTO inventory (entry_code, warehouse_code, quantity) VALUES ($1, $2, $3)`,
			[]any{"sneaker-41", "main", "12"}},
		{`INSERT INTO inventory (entry_code, warehouse_code, quantity) VALUES ($1, $2, $3)`,
			[]any{"sneaker-42", "main", "3"}},
	}
	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s.sql, s.args...); err != nil {
			return fmt.Errorf("exec %q: %w", s.sql, err)
		}
	}
	return nil
}

func TestContentRepository_Get(t *testing.T) {
	repo := NewContentRepository(testPool)
	ctx := context.Background()

	c, err := repo.Get(ctx, "ref-sneaker")
	require.NoError(t, err)
	entry, ok := c.(*catalog.Entry)
	require.True(t, ok)
	assert.Equal(t, "sneaker", entry.Code)
	assert.Equal(t, catalog.KindProduct, entry.Kind)

	c, err = repo.Get(ctx, "ref-shoes")
	require.NoError(t, err)
	node, ok := c.(*catalog.Node)
	require.True(t, ok)
	assert.Equal(t, "Shoes", node.Code)
	assert.Equal(t, catalog.Reference("ref-men"), node.Parent)

	_, err = repo.Get(ctx, "ref-gone")
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestContentRepository_GetManyPreservesOrder(t *testing.T) {
	repo := NewContentRepository(testPool)

	got, err := repo.GetMany(context.Background(),
		[]catalog.Reference{"ref-sneaker-42", "ref-gone", "ref-shoes", "ref-sneaker-41"}, "")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, catalog.Reference("ref-sneaker-42"), got[0].ContentReference())
	assert.Equal(t, catalog.Reference("ref-shoes"), got[1].ContentReference())
	assert.Equal(t, catalog.Reference("ref-sneaker-41"), got[2].ContentReference())
}

func TestContentRepository_GetAncestors(t *testing.T) {
	repo := NewContentRepository(testPool)

	got, err := repo.GetAncestors(context.Background(), "ref-sneaker")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, catalog.Reference("ref-shoes"), got[0].ContentReference())
	assert.Equal(t, catalog.Reference("ref-men"), got[1].ContentReference())
	assert.Equal(t, catalog.Reference("ref-fashion"), got[2].ContentReference())
}

func TestContentRepository_ReferenceConversion(t *testing.T) {
	repo := NewContentRepository(testPool)
	ctx := context.Background()

	code, err := repo.Code(ctx, "ref-sneaker-41")
	require.NoError(t, err)
	assert.Equal(t, "sneaker-41", code)

	code, err = repo.Code(ctx, "ref-gone")
	require.NoError(t, err)
	assert.Empty(t, code)

	ref, err := repo.ContentLink(ctx, "Men")
	require.NoError(t, err)
	assert.Equal(t, catalog.Reference("ref-men"), ref)

	refs, err := repo.ContentLinks(ctx, []string{"sneaker-42", "unknown", "sneaker-41"})
	require.NoError(t, err)
	assert.Equal(t, []catalog.Reference{"ref-sneaker-42", "ref-sneaker-41"}, refs)
}

func TestContentRepository_Relations(t *testing.T) {
	repo := NewContentRepository(testPool)
	ctx := context.Background()

	variants, err := repo.Variants(ctx, "ref-sneaker")
	require.NoError(t, err)
	assert.Equal(t, []catalog.Reference{"ref-sneaker-41", "ref-sneaker-42"}, variants)

	rels, err := repo.NodeRelations(ctx, "ref-sneaker")
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, catalog.Reference("ref-shoes"), rels[0].Parent)
	assert.Equal(t, 3, rels[0].SortOrder)

	parents, err := repo.ParentProducts(ctx, "ref-sneaker-42")
	require.NoError(t, err)
	assert.Equal(t, []catalog.Reference{"ref-sneaker"}, parents)
}

func TestPriceRepository_GetPrices(t *testing.T) {
	repo := NewPriceRepository(testPool)
	asOf := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// The SALE price expired before asOf; only the open-ended one matches.
	got, err := repo.GetPrices(context.Background(), "US", asOf,
		[]string{"sneaker-41"}, pricing.Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, decimal.RequireFromString("59.90").Equal(got[0].UnitPrice))
	assert.Empty(t, got[0].PriceCode)
}

func TestPriceRepository_GetPricesWithinValidityWindow(t *testing.T) {
	repo := NewPriceRepository(testPool)
	asOf := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	filter := pricing.Filter{CustomerPricing: []pricing.CustomerPricing{{PriceCode: "SALE"}}}
	got, err := repo.GetPrices(context.Background(), "US", asOf, []string{"sneaker-41"}, filter)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, decimal.RequireFromString("44.90").Equal(got[0].UnitPrice))
	assert.Equal(t, "SALE", got[0].PriceCode)
}

func TestPriceRepository_GetCatalogEntryPrices(t *testing.T) {
	repo := NewPriceRepository(testPool)

	got, err := repo.GetCatalogEntryPrices(context.Background(), []string{"sneaker-41", "sneaker-42"})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestInventoryRepository_QueryByEntry(t *testing.T) {
	repo := NewInventoryRepository(testPool)

	got, err := repo.QueryByEntry(context.Background(), []string{"sneaker-41", "sneaker-42"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "main", got[0].WarehouseCode)
}

func TestMarketRepository(t *testing.T) {
	ctx := context.Background()

	repo := NewMarketRepository(testPool, "US")
	markets, err := repo.GetAllMarkets(ctx)
	require.NoError(t, err)
	assert.Len(t, markets, 2)

	current, err := repo.GetCurrentMarket(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, pricing.Currency("USD"), current.DefaultCurrency)

	unset := NewMarketRepository(testPool, "")
	current, err = unset.GetCurrentMarket(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	missing := NewMarketRepository(testPool, "JP")
	current, err = missing.GetCurrentMarket(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)
}
