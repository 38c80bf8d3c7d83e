package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/karolberezicki/Foundation/internal/domain/pricing"
)

const (
	getAllMarketsSQL = `SELECT market_id, default_language, default_currency
		FROM markets ORDER BY market_id`

	getMarketSQL = `SELECT market_id, default_language, default_currency
		FROM markets WHERE market_id = $1`
)

var _ pricing.MarketRegistry = (*MarketRepository)(nil)

// MarketRepository implements pricing.MarketRegistry backed by PostgreSQL.
// The current market is fixed at construction; deciding which market a
// visitor is in happens outside this library.
type MarketRepository struct {
	pool    *pgxpool.Pool
	current pricing.MarketID
}

// NewMarketRepository returns a MarketRepository using the given pool, with
// current as the configured visitor market (may be empty).
func NewMarketRepository(pool *pgxpool.Pool, current pricing.MarketID) *MarketRepository {
	return &MarketRepository{pool: pool, current: current}
}

// GetAllMarkets returns every configured market.
func (r *MarketRepository) GetAllMarkets(ctx context.Context) ([]pricing.Market, error) {
	rows, err := r.pool.Query(ctx, getAllMarketsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing markets: %w", err)
	}
	return pgx.CollectRows(rows, scanMarket)
}

// GetCurrentMarket returns the configured visitor market, or nil when none
// is configured or the configured one does not exist.
func (r *MarketRepository) GetCurrentMarket(ctx context.Context) (*pricing.Market, error) {
	if r.current.IsEmpty() {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, getMarketSQL, string(r.current))
	if err != nil {
		return nil, fmt.Errorf("getting market %q: %w", r.current, err)
	}
	m, err := pgx.CollectExactlyOneRow(rows, scanMarket)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting market %q: %w", r.current, err)
	}
	return &m, nil
}

func scanMarket(row pgx.CollectableRow) (pricing.Market, error) {
	var (
		m        pricing.Market
		id       string
		language string
		currency string
	)
	err := row.Scan(&id, &language, &currency)
	m.ID = pricing.MarketID(id)
	m.DefaultLanguage = language
	m.DefaultCurrency = pricing.Currency(currency)
	return m, err
}
