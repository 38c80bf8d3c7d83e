// Package inventory aggregates stock-placement records across the sellable
// units of a catalog entry.
package inventory

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/karolberezicki/Foundation/internal/domain/catalog"
)

// Record is a single stock placement for a sellable unit.
type Record struct {
	// EntryReference is the reference of the entry the record was
	// aggregated for. When a product expands to variations this is the
	// product's reference, not the variation's, so callers can correlate
	// stock back to the entry they queried.
	EntryReference catalog.Reference
	// Code is the catalog code of the sellable unit holding the stock.
	Code          string
	WarehouseCode string
	Quantity      decimal.Decimal
}

// Provider is the external inventory source.
type Provider interface {
	// QueryByEntry returns the stock placements for the given catalog
	// codes.
	QueryByEntry(ctx context.Context, codes []string) ([]Record, error)
}

// UnitResolver expands catalog content to the references stock attaches to.
type UnitResolver interface {
	SellableUnits(ctx context.Context, c catalog.Content) ([]catalog.Reference, error)
}

// Aggregator maps catalog entries to their stock placements.
type Aggregator struct {
	provider Provider
	refs     catalog.ReferenceConverter
	units    UnitResolver
}

// NewAggregator creates an Aggregator with the required collaborators.
func NewAggregator(provider Provider, refs catalog.ReferenceConverter, units UnitResolver) *Aggregator {
	return &Aggregator{provider: provider, refs: refs, units: units}
}

// Inventories returns the stock placements for an entry, expanding
// products to their variations. Each record is tagged with the queried
// entry's reference. An entry with no resolvable sellable-unit codes
// yields an empty result, never an error.
func (a *Aggregator) Inventories(ctx context.Context, entry *catalog.Entry) ([]Record, error) {
	units, err := a.units.SellableUnits(ctx, entry)
	if err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(units))
	for _, ref := range units {
		if ref.IsEmpty() {
			continue
		}
		code, err := a.refs.Code(ctx, ref)
		if err != nil {
			return nil, errors.Wrap(err, "resolve code")
		}
		if code != "" {
			codes = append(codes, code)
		}
	}
	if len(codes) == 0 {
		return nil, nil
	}

	records, err := a.provider.QueryByEntry(ctx, codes)
	if err != nil {
		return nil, errors.Wrap(err, "query inventory")
	}

	for i := range records {
		records[i].EntryReference = entry.Reference
	}
	return records, nil
}
