package pricing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// MarketID identifies a market. The empty value is the unset market used
// by catalog-wide lookups.
type MarketID string

// IsEmpty reports whether the market is unset.
func (m MarketID) IsEmpty() bool { return m == "" }

// Currency is an ISO 4217 currency code.
type Currency string

// Market describes a sales market. Exactly one market owns an entry's
// default price: the one whose DefaultLanguage matches the entry's
// language.
type Market struct {
	ID              MarketID
	DefaultLanguage string
	DefaultCurrency Currency
}

// CustomerPricing selects a customer segment. An empty PriceCode means all
// customers.
type CustomerPricing struct {
	PriceCode string
}

// AllCustomers selects prices not scoped to any customer segment.
var AllCustomers = CustomerPricing{}

// Filter restricts a price lookup. Nil slices mean no restriction.
type Filter struct {
	Currencies      []Currency
	CustomerPricing []CustomerPricing
}

// PriceCodes returns the non-empty price codes carried by the filter's
// customer pricing selectors.
func (f Filter) PriceCodes() []string {
	var codes []string
	for _, cp := range f.CustomerPricing {
		if cp.PriceCode != "" {
			codes = append(codes, cp.PriceCode)
		}
	}
	return codes
}

// Price is a single price record for a catalog entry. A zero UnitPrice is
// the legacy "no price found" sentinel and is never distinguished from a
// genuinely free item.
type Price struct {
	// Code is the catalog code of the entry the price belongs to.
	Code      string
	UnitPrice decimal.Decimal
	Currency  Currency
	MarketID  MarketID
	// PriceCode scopes the price to a customer segment, empty for all
	// customers.
	PriceCode string
	ValidFrom time.Time
	// ValidUntil is nil for open-ended prices.
	ValidUntil *time.Time
}

// ValidAt reports whether the price's validity window contains t.
func (p Price) ValidAt(t time.Time) bool {
	if p.ValidFrom.After(t) {
		return false
	}
	return p.ValidUntil == nil || !p.ValidUntil.Before(t)
}

// Provider is the external pricing source.
type Provider interface {
	// GetPrices returns prices for the given catalog codes scoped to a
	// market, a point in time, and a filter. A filter with nil
	// CustomerPricing places no segment restriction; otherwise prices must
	// match one of the selectors (an empty PriceCode selector matches
	// unscoped prices).
	GetPrices(ctx context.Context, market MarketID, asOf time.Time, codes []string, filter Filter) ([]Price, error)
	// GetCatalogEntryPrices returns every price on record for the given
	// catalog codes, with no market, time, or segment restriction.
	GetCatalogEntryPrices(ctx context.Context, codes []string) ([]Price, error)
}

// MarketRegistry is the external market source.
type MarketRegistry interface {
	GetAllMarkets(ctx context.Context) ([]Market, error)
	// GetCurrentMarket returns the visitor's market, or nil when none is
	// established.
	GetCurrentMarket(ctx context.Context) (*Market, error)
}
