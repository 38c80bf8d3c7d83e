// Command catalog-seed loads a demo catalog fixture (markets, nodes,
// entries, variant and node relations, prices, stock) into PostgreSQL.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/karolberezicki/Foundation/internal/storage/postgres"
)

type fixture struct {
	Markets []marketJSON `json:"markets"`
	Nodes   []nodeJSON   `json:"nodes"`
	Entries []entryJSON  `json:"entries"`
	Prices  []priceJSON  `json:"prices"`
	Stock   []stockJSON  `json:"stock"`
}

type marketJSON struct {
	ID              string `json:"id"`
	DefaultLanguage string `json:"defaultLanguage"`
	DefaultCurrency string `json:"defaultCurrency"`
}

type nodeJSON struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Parent string `json:"parent"`
}

type entryJSON struct {
	Code     string   `json:"code"`
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
	Language string   `json:"language"`
	Node     string   `json:"node"`
	Variants []string `json:"variants"`
}

type priceJSON struct {
	Code       string          `json:"code"`
	Market     string          `json:"market"`
	Currency   string          `json:"currency"`
	PriceCode  string          `json:"priceCode"`
	Amount     decimal.Decimal `json:"amount"`
	ValidFrom  time.Time       `json:"validFrom"`
	ValidUntil *time.Time      `json:"validUntil"`
}

type stockJSON struct {
	Code      string          `json:"code"`
	Warehouse string          `json:"warehouse"`
	Quantity  decimal.Decimal `json:"quantity"`
}

func main() {
	var (
		databaseURL string
		fixtureFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&fixtureFile, "fixture-file", "db/seed/catalog.json", "path to catalog fixture JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, fixtureFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, fixtureFile string) error {
	slog.Info("reading fixture file", slog.String("path", fixtureFile))

	data, err := os.ReadFile(fixtureFile)
	if err != nil {
		return errors.Wrap(err, "read fixture file")
	}

	var fx fixture
	if err := json.Unmarshal(data, &fx); err != nil {
		return errors.Wrap(err, "parse fixture JSON")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	refs := newRefTable()

	if err := seedMarkets(ctx, pool, fx.Markets); err != nil {
		return errors.Wrap(err, "seed markets")
	}
	if err := seedNodes(ctx, pool, refs, fx.Nodes); err != nil {
		return errors.Wrap(err, "seed nodes")
	}
	if err := seedEntries(ctx, pool, refs, fx.Entries); err != nil {
		return errors.Wrap(err, "seed entries")
	}
	if err := seedPrices(ctx, pool, fx.Prices); err != nil {
		return errors.Wrap(err, "seed prices")
	}
	if err := seedStock(ctx, pool, fx.Stock); err != nil {
		return errors.Wrap(err, "seed stock")
	}

	return nil
}

// refTable assigns each seeded code a stable opaque reference so links
// inside the fixture can be expressed by code.
type refTable struct {
	byCode map[string]string
}

func newRefTable() *refTable {
	return &refTable{byCode: make(map[string]string)}
}

func (t *refTable) refFor(code string) string {
	if code == "" {
		return ""
	}
	if ref, ok := t.byCode[code]; ok {
		return ref
	}
	ref := uuid.New().String()
	t.byCode[code] = ref
	return ref
}

func seedMarkets(ctx context.Context, pool *pgxpool.Pool, markets []marketJSON) error {
	slog.Info("upserting markets", slog.Int("count", len(markets)))

	for _, m := range markets {
		if _, err := pool.Exec(ctx,
			`INSERT INTO markets (market_id, default_language, default_currency)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (market_id) DO UPDATE
			 SET default_language = EXCLUDED.default_language,
			     default_currency = EXCLUDED.default_currency`,
			m.ID, m.DefaultLanguage, m.DefaultCurrency,
		); err != nil {
			return errors.Wrapf(err, "upsert market %s", m.ID)
		}

		slog.Info("upserted market", slog.String("id", m.ID))
	}
	return nil
}

func seedNodes(ctx context.Context, pool *pgxpool.Pool, refs *refTable, nodes []nodeJSON) error {
	slog.Info("upserting nodes", slog.Int("count", len(nodes)))

	for _, n := range nodes {
		if _, err := pool.Exec(ctx,
			`INSERT INTO catalog_nodes (reference, code, name, parent_reference)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (code) DO UPDATE
			 SET name = EXCLUDED.name, parent_reference = EXCLUDED.parent_reference`,
			refs.refFor(n.Code), n.Code, n.Name, refs.refFor(n.Parent),
		); err != nil {
			return errors.Wrapf(err, "upsert node %s", n.Code)
		}

		slog.Info("upserted node", slog.String("code", n.Code), slog.String("name", n.Name))
	}
	return nil
}

func seedEntries(ctx context.Context, pool *pgxpool.Pool, refs *refTable, entries []entryJSON) error {
	slog.Info("upserting entries", slog.Int("count", len(entries)))

	for _, e := range entries {
		ref := refs.refFor(e.Code)
		parent := refs.refFor(e.Node)

		if _, err := pool.Exec(ctx,
			`INSERT INTO catalog_entries (reference, code, name, language, kind, parent_reference)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (code) DO UPDATE
			 SET name = EXCLUDED.name, language = EXCLUDED.language,
			     kind = EXCLUDED.kind, parent_reference = EXCLUDED.parent_reference`,
			ref, e.Code, e.Name, e.Language, e.Kind, parent,
		); err != nil {
			return errors.Wrapf(err, "upsert entry %s", e.Code)
		}

		if parent != "" {
			if _, err := pool.Exec(ctx,
				`INSERT INTO node_relations (entry_reference, parent_reference, sort_order)
				 VALUES ($1, $2, 0)
				 ON CONFLICT (entry_reference, parent_reference) DO NOTHING`,
				ref, parent,
			); err != nil {
				return errors.Wrapf(err, "upsert node relation for %s", e.Code)
			}
		}

		for i, variant := range e.Variants {
			if _, err := pool.Exec(ctx,
				`INSERT INTO entry_variants (product_reference, variation_reference, sort_order)
				 VALUES ($1, $2, $3)
				 ON CONFLICT (product_reference, variation_reference) DO UPDATE
				 SET sort_order = EXCLUDED.sort_order`,
				ref, refs.refFor(variant), i,
			); err != nil {
				return errors.Wrapf(err, "upsert variant relation %s -> %s", e.Code, variant)
			}
		}

		slog.Info("upserted entry", slog.String("code", e.Code), slog.String("kind", e.Kind))
	}
	return nil
}

func seedPrices(ctx context.Context, pool *pgxpool.Pool, prices []priceJSON) error {
	slog.Info("upserting prices", slog.Int("count", len(prices)))

	for _, p := range prices {
		if _, err := pool.Exec(ctx,
			`INSERT INTO prices (entry_code, market_id, currency, price_code, amount, valid_from, valid_until)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (entry_code, market_id, currency, price_code, valid_from) DO UPDATE
			 SET amount = EXCLUDED.amount, valid_until = EXCLUDED.valid_until`,
			p.Code, p.Market, p.Currency, p.PriceCode, p.Amount, p.ValidFrom, p.ValidUntil,
		); err != nil {
			return errors.Wrapf(err, "upsert price for %s", p.Code)
		}
	}
	return nil
}

func seedStock(ctx context.Context, pool *pgxpool.Pool, stock []stockJSON) error {
	slog.Info("upserting stock", slog.Int("count", len(stock)))

	for _, s := range stock {
		if _, err := pool.Exec(ctx,
			`INSERT INTO inventory (entry_code, warehouse_code, quantity)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (entry_code, warehouse_code) DO UPDATE
			 SET quantity = EXCLUDED.quantity`,
			s.Code, s.Warehouse, s.Quantity,
		); err != nil {
			return errors.Wrapf(err, "upsert stock for %s", s.Code)
		}
	}
	return nil
}
