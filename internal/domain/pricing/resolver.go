package pricing

import (
	"context"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/karolberezicki/Foundation/internal/domain/catalog"
)

// UnitResolver expands catalog content to the references price records
// attach to.
type UnitResolver interface {
	SellableUnits(ctx context.Context, c catalog.Content) ([]catalog.Reference, error)
}

// Resolver computes effective and default prices for catalog entries.
type Resolver struct {
	provider Provider
	markets  MarketRegistry
	refs     catalog.ReferenceConverter
	units    UnitResolver
	now      func() time.Time
}

// NewResolver creates a Resolver with the required collaborators.
func NewResolver(provider Provider, markets MarketRegistry, refs catalog.ReferenceConverter, units UnitResolver) *Resolver {
	return &Resolver{
		provider: provider,
		markets:  markets,
		refs:     refs,
		units:    units,
		now:      time.Now,
	}
}

// DefaultPrice returns the entry's baseline price: the minimum positive
// default price across its sellable units, in the default currency of the
// market whose default language matches the entry's language. It returns
// zero when no market owns the entry or no unit has a positive price; a
// zero result is indistinguishable from a free item.
func (r *Resolver) DefaultPrice(ctx context.Context, entry *catalog.Entry) (decimal.Decimal, error) {
	owning, err := r.owningMarket(ctx, entry)
	if err != nil {
		return decimal.Zero, err
	}
	if owning == nil {
		return decimal.Zero, nil
	}

	units, err := r.units.SellableUnits(ctx, entry)
	if err != nil {
		return decimal.Zero, err
	}

	asOf := r.now().UTC()
	amounts := make([]decimal.Decimal, len(units))

	// Unit fetches are independent and side-effect-free; fan out, then
	// fold in unit order once all have completed.
	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range units {
		g.Go(func() error {
			p, err := r.DefaultPriceFor(gctx, ref, owning.ID, owning.DefaultCurrency, asOf)
			if err != nil {
				return err
			}
			amounts[i] = p.UnitPrice
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return decimal.Zero, err
	}

	min := decimal.Zero
	for _, amount := range amounts {
		min = minPositive(min, amount)
	}
	return min, nil
}

// DefaultPriceFor returns the lowest price on record for a single
// reference in the given market and currency as of asOf, or the zero Price
// when none exists.
func (r *Resolver) DefaultPriceFor(ctx context.Context, ref catalog.Reference, market MarketID, currency Currency, asOf time.Time) (Price, error) {
	code, err := r.refs.Code(ctx, ref)
	if err != nil {
		return Price{}, errors.Wrap(err, "resolve code")
	}
	if code == "" {
		return Price{}, nil
	}

	values, err := r.provider.GetPrices(ctx, market, asOf, []string{code}, Filter{
		Currencies: []Currency{currency},
	})
	if err != nil {
		return Price{}, errors.Wrap(err, "fetch prices")
	}
	if len(values) == 0 {
		return Price{}, nil
	}

	sort.SliceStable(values, func(i, j int) bool {
		return values[i].UnitPrice.LessThan(values[j].UnitPrice)
	})
	return values[0], nil
}

// Prices returns the effective price records for an entry's sellable units
// in the given market, applying the two-tier fallback of PricesFor. The
// result is unsorted; callers needing an order must sort themselves.
func (r *Resolver) Prices(ctx context.Context, entry *catalog.Entry, market MarketID, filter Filter) ([]Price, error) {
	units, err := r.units.SellableUnits(ctx, entry)
	if err != nil {
		return nil, err
	}
	return r.PricesFor(ctx, units, market, filter)
}

// CurrentPrices returns the effective prices for the visitor's current
// market with no customer segment restriction. It returns an empty result
// when no current market is established.
func (r *Resolver) CurrentPrices(ctx context.Context, entry *catalog.Entry) ([]Price, error) {
	market, err := r.markets.GetCurrentMarket(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "resolve current market")
	}
	if market == nil {
		return nil, nil
	}
	return r.Prices(ctx, entry, market.ID, Filter{CustomerPricing: []CustomerPricing{AllCustomers}})
}

// PricesFor fetches price records for the given references.
//
// With an unset market and no price-code-bearing selectors the lookup is
// catalog-wide. Otherwise the filter is narrowed to its price-code-bearing
// selectors (when any exist) and a market/date-scoped fetch runs; if that
// yields nothing, the catalog-wide prices restricted to the market and the
// current validity window serve as fallback. The fallback reads the clock
// independently from the primary fetch; the resulting skew is inherited
// behaviour, kept on purpose.
func (r *Resolver) PricesFor(ctx context.Context, refs []catalog.Reference, market MarketID, filter Filter) ([]Price, error) {
	codes, err := r.codesFor(ctx, refs)
	if err != nil {
		return nil, err
	}
	if len(codes) == 0 {
		return nil, nil
	}

	customerPricing := filter.CustomerPricing
	if market.IsEmpty() && (len(customerPricing) == 0 || anyWithoutPriceCode(customerPricing)) {
		values, err := r.provider.GetCatalogEntryPrices(ctx, codes)
		if err != nil {
			return nil, errors.Wrap(err, "fetch catalog prices")
		}
		return values, nil
	}

	withPriceCode := make([]CustomerPricing, 0, len(customerPricing))
	for _, cp := range customerPricing {
		if cp.PriceCode != "" {
			withPriceCode = append(withPriceCode, cp)
		}
	}
	if len(withPriceCode) != 0 {
		filter.CustomerPricing = withPriceCode
	}

	values, err := r.provider.GetPrices(ctx, market, r.now().UTC(), codes, filter)
	if err != nil {
		return nil, errors.Wrap(err, "fetch prices")
	}

	// The entry may have no price under the requested segment; fall back
	// to catalog-wide prices currently valid in this market.
	if len(values) == 0 {
		now := r.now()
		all, err := r.provider.GetCatalogEntryPrices(ctx, codes)
		if err != nil {
			return nil, errors.Wrap(err, "fetch fallback prices")
		}
		for _, v := range all {
			if v.ValidAt(now) && v.MarketID == market {
				values = append(values, v)
			}
		}
	}

	return values, nil
}

func (r *Resolver) owningMarket(ctx context.Context, entry *catalog.Entry) (*Market, error) {
	markets, err := r.markets.GetAllMarkets(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list markets")
	}
	for _, m := range markets {
		if m.DefaultLanguage == entry.Language {
			return &m, nil
		}
	}
	return nil, nil
}

func (r *Resolver) codesFor(ctx context.Context, refs []catalog.Reference) ([]string, error) {
	codes := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref.IsEmpty() {
			continue
		}
		code, err := r.refs.Code(ctx, ref)
		if err != nil {
			return nil, errors.Wrap(err, "resolve code")
		}
		if code != "" {
			codes = append(codes, code)
		}
	}
	return codes, nil
}

func anyWithoutPriceCode(cps []CustomerPricing) bool {
	for _, cp := range cps {
		if cp.PriceCode == "" {
			return true
		}
	}
	return false
}

// minPositive folds a candidate amount into a running minimum: the first
// positive amount seeds the minimum, a strictly smaller positive amount
// replaces it, and a zero candidate never displaces a positive minimum.
func minPositive(running, candidate decimal.Decimal) decimal.Decimal {
	if (candidate.LessThan(running) && candidate.IsPositive()) || running.IsZero() {
		return candidate
	}
	return running
}
