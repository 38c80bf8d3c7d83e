// Package commerce exposes the catalog entry commerce resolution engine:
// variant-aware price, stock, outline, and browse-history operations over
// a hierarchical product catalog. All collaborators are injected; the
// engine holds no mutable state beyond the outline cache and performs
// read-only resolution.
package commerce

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/karolberezicki/Foundation/internal/domain/browse"
	"github.com/karolberezicki/Foundation/internal/domain/catalog"
	"github.com/karolberezicki/Foundation/internal/domain/inventory"
	"github.com/karolberezicki/Foundation/internal/domain/pricing"
)

// Dependencies holds the external collaborators the engine resolves
// against. All fields are required except Logger and TracerProvider.
type Dependencies struct {
	Loader         catalog.Loader
	Refs           catalog.ReferenceConverter
	Relations      catalog.RelationRepository
	Prices         pricing.Provider
	Markets        pricing.MarketRegistry
	Inventory      inventory.Provider
	Store          browse.Store
	Logger         *zap.Logger
	TracerProvider trace.TracerProvider
}

// Engine resolves derived commerce attributes for catalog entries.
type Engine struct {
	loader    catalog.Loader
	refs      catalog.ReferenceConverter
	variants  *catalog.VariantResolver
	outline   *catalog.OutlineBuilder
	pricing   *pricing.Resolver
	inventory *inventory.Aggregator
	history   *browse.History
	tracer    trace.Tracer
	lg        *zap.Logger
}

// New wires an Engine from its collaborators.
func New(deps Dependencies) *Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	tp := deps.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	variants := catalog.NewVariantResolver(deps.Loader, deps.Relations)
	return &Engine{
		loader:    deps.Loader,
		refs:      deps.Refs,
		variants:  variants,
		outline:   catalog.NewOutlineBuilder(deps.Loader, deps.Relations),
		pricing:   pricing.NewResolver(deps.Prices, deps.Markets, deps.Refs, variants),
		inventory: inventory.NewAggregator(deps.Inventory, deps.Refs, variants),
		history:   browse.NewHistory(deps.Store, deps.Loader, deps.Refs),
		tracer:    tp.Tracer("commerce"),
		lg:        deps.Logger,
	}
}

// SellableUnits normalizes content to the references price and stock
// attach to.
func (e *Engine) SellableUnits(ctx context.Context, c catalog.Content) ([]catalog.Reference, error) {
	return e.variants.SellableUnits(ctx, c)
}

// DefaultPrice returns the entry's baseline price in its owning market's
// default currency, zero when no market or no positive price exists.
func (e *Engine) DefaultPrice(ctx context.Context, entry *catalog.Entry) (decimal.Decimal, error) {
	ctx, span := e.startSpan(ctx, "commerce.DefaultPrice", entry)
	defer span.End()

	price, err := e.pricing.DefaultPrice(ctx, entry)
	if err != nil {
		return decimal.Zero, err
	}
	e.lg.Debug("resolved default price",
		zap.String("code", entry.Code),
		zap.String("price", price.String()),
	)
	return price, nil
}

// Prices returns the effective price records for an entry in the given
// market, applying the customer-segment and catalog-wide fallback tiers.
func (e *Engine) Prices(ctx context.Context, entry *catalog.Entry, market pricing.MarketID, filter pricing.Filter) ([]pricing.Price, error) {
	ctx, span := e.startSpan(ctx, "commerce.Prices", entry)
	defer span.End()

	return e.pricing.Prices(ctx, entry, market, filter)
}

// CurrentPrices returns the effective prices for the visitor's current
// market, empty when none is established.
func (e *Engine) CurrentPrices(ctx context.Context, entry *catalog.Entry) ([]pricing.Price, error) {
	ctx, span := e.startSpan(ctx, "commerce.CurrentPrices", entry)
	defer span.End()

	return e.pricing.CurrentPrices(ctx, entry)
}

// Inventories returns the stock placements for an entry's sellable units,
// tagged with the entry's own reference.
func (e *Engine) Inventories(ctx context.Context, entry *catalog.Entry) ([]inventory.Record, error) {
	ctx, span := e.startSpan(ctx, "commerce.Inventories", entry)
	defer span.End()

	return e.inventory.Inventories(ctx, entry)
}

// Outline returns the slash-delimited ancestor path of each node the entry
// belongs to.
func (e *Engine) Outline(ctx context.Context, entry *catalog.Entry) ([]string, error) {
	ctx, span := e.startSpan(ctx, "commerce.Outline", entry)
	defer span.End()

	return e.outline.Outline(ctx, entry)
}

// SortOrder returns the sort order of the entry's first node relation.
func (e *Engine) SortOrder(ctx context.Context, entry *catalog.Entry) (int, error) {
	return e.variants.SortOrder(ctx, entry)
}

// Variations returns the loaded variation entries of a product.
func (e *Engine) Variations(ctx context.Context, product *catalog.Entry) ([]*catalog.Entry, error) {
	return e.variants.Variations(ctx, product)
}

// AllVariants expands a reference to all terminal variation entries below
// it.
func (e *Engine) AllVariants(ctx context.Context, ref catalog.Reference) ([]*catalog.Entry, error) {
	return e.variants.AllVariants(ctx, ref)
}

// PrimaryParentProduct returns the owning product of a variation, or the
// entry's own reference for products and packages.
func (e *Engine) PrimaryParentProduct(ctx context.Context, entry *catalog.Entry) (catalog.Reference, error) {
	return e.variants.PrimaryParentProduct(ctx, entry)
}

// EntryByCode resolves a catalog code to its entry.
func (e *Engine) EntryByCode(ctx context.Context, code string) (*catalog.Entry, error) {
	ref, err := e.refs.ContentLink(ctx, code)
	if err != nil {
		return nil, errors.Wrap(err, "resolve code")
	}
	if ref.IsEmpty() {
		return nil, catalog.ErrNotFound
	}

	c, err := e.loader.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	entry, ok := c.(*catalog.Entry)
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return entry, nil
}

// Ancestors returns the ancestor chain of a reference, ordered entry to
// root as received from the content loader.
func (e *Engine) Ancestors(ctx context.Context, ref catalog.Reference) ([]catalog.Content, error) {
	return e.loader.GetAncestors(ctx, ref)
}

// AddBrowseHistory records that the entry was viewed.
func (e *Engine) AddBrowseHistory(ctx context.Context, entry *catalog.Entry) error {
	return e.history.Add(ctx, entry.Code)
}

// BrowseHistory returns the recently viewed entries in insertion order.
func (e *Engine) BrowseHistory(ctx context.Context) ([]*catalog.Entry, error) {
	return e.history.List(ctx)
}

func (e *Engine) startSpan(ctx context.Context, name string, entry *catalog.Entry) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("entry.code", entry.Code),
		attribute.String("entry.kind", string(entry.Kind)),
	))
}
