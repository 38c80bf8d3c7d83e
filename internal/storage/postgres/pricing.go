package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/karolberezicki/Foundation/internal/domain/pricing"
)

const (
	getPricesSQL = `SELECT entry_code, amount, currency, market_id, price_code, valid_from, valid_until
		FROM prices
		WHERE entry_code = ANY($1)
		  AND market_id = $2
		  AND valid_from <= $3
		  AND (valid_until IS NULL OR valid_until >= $3)
		  AND (cardinality($4::text[]) = 0 OR currency = ANY($4))
		  AND (cardinality($5::text[]) = 0 OR price_code = ANY($5))`

	getCatalogEntryPricesSQL = `SELECT entry_code, amount, currency, market_id, price_code, valid_from, valid_until
		FROM prices
		WHERE entry_code = ANY($1)`
)

var _ pricing.Provider = (*PriceRepository)(nil)

// PriceRepository implements pricing.Provider backed by PostgreSQL.
type PriceRepository struct {
	pool *pgxpool.Pool
}

// NewPriceRepository returns a PriceRepository that uses the given pool.
func NewPriceRepository(pool *pgxpool.Pool) *PriceRepository {
	return &PriceRepository{pool: pool}
}

// GetPrices returns the prices for the given catalog codes valid in market
// at asOf. A filter with nil CustomerPricing places no segment
// restriction; otherwise rows must match one of the selectors, with an
// empty PriceCode selector matching unscoped rows.
func (r *PriceRepository) GetPrices(ctx context.Context, market pricing.MarketID, asOf time.Time, codes []string, filter pricing.Filter) ([]pricing.Price, error) {
	currencies := make([]string, len(filter.Currencies))
	for i, c := range filter.Currencies {
		currencies[i] = string(c)
	}

	// nil means unrestricted; a non-nil list restricts to its selectors,
	// the empty selector standing for all-customers rows.
	priceCodes := []string{}
	if filter.CustomerPricing != nil {
		priceCodes = make([]string, len(filter.CustomerPricing))
		for i, cp := range filter.CustomerPricing {
			priceCodes[i] = cp.PriceCode
		}
	}

	rows, err := r.pool.Query(ctx, getPricesSQL, codes, string(market), asOf, currencies, priceCodes)
	if err != nil {
		return nil, fmt.Errorf("getting prices: %w", err)
	}
	return pgx.CollectRows(rows, scanPrice)
}

// GetCatalogEntryPrices returns every price on record for the given
// catalog codes.
func (r *PriceRepository) GetCatalogEntryPrices(ctx context.Context, codes []string) ([]pricing.Price, error) {
	rows, err := r.pool.Query(ctx, getCatalogEntryPricesSQL, codes)
	if err != nil {
		return nil, fmt.Errorf("getting catalog entry prices: %w", err)
	}
	return pgx.CollectRows(rows, scanPrice)
}

func scanPrice(row pgx.CollectableRow) (pricing.Price, error) {
	var (
		p          pricing.Price
		amount     decimal.Decimal
		currency   string
		marketID   string
		validUntil *time.Time
	)
	err := row.Scan(&p.Code, &amount, &currency, &marketID, &p.PriceCode, &p.ValidFrom, &validUntil)
	p.UnitPrice = amount
	p.Currency = pricing.Currency(currency)
	p.MarketID = pricing.MarketID(marketID)
	p.ValidUntil = validUntil
	return p, err
}
