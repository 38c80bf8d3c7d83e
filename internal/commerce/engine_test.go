package commerce

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karolberezicki/Foundation/internal/domain/browse"
	"github.com/karolberezicki/Foundation/internal/domain/catalog"
	"github.com/karolberezicki/Foundation/internal/domain/inventory"
	"github.com/karolberezicki/Foundation/internal/domain/pricing"
)

// memCatalog is an in-memory catalog backing Loader, ReferenceConverter,
// and RelationRepository for wiring tests.
type memCatalog struct {
	byRef    map[catalog.Reference]catalog.Content
	byCode   map[string]catalog.Reference
	variants map[catalog.Reference][]catalog.Reference
	nodeRels map[catalog.Reference][]catalog.NodeRelation
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		byRef:    make(map[catalog.Reference]catalog.Content),
		byCode:   make(map[string]catalog.Reference),
		variants: make(map[catalog.Reference][]catalog.Reference),
		nodeRels: make(map[catalog.Reference][]catalog.NodeRelation),
	}
}

func (m *memCatalog) addEntry(e *catalog.Entry) {
	m.byRef[e.Reference] = e
	m.byCode[e.Code] = e.Reference
}

func (m *memCatalog) addNode(n *catalog.Node) {
	m.byRef[n.Reference] = n
	m.byCode[n.Code] = n.Reference
}

func (m *memCatalog) Get(_ context.Context, ref catalog.Reference) (catalog.Content, error) {
	c, ok := m.byRef[ref]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return c, nil
}

func (m *memCatalog) GetMany(_ context.Context, refs []catalog.Reference, _ string) ([]catalog.Content, error) {
	var out []catalog.Content
	for _, ref := range refs {
		if c, ok := m.byRef[ref]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memCatalog) GetChildren(_ context.Context, _ catalog.Reference, _ string) ([]catalog.Content, error) {
	return nil, nil
}

func (m *memCatalog) GetAncestors(_ context.Context, _ catalog.Reference) ([]catalog.Content, error) {
	return nil, nil
}

func (m *memCatalog) Code(_ context.Context, ref catalog.Reference) (string, error) {
	switch c := m.byRef[ref].(type) {
	case *catalog.Entry:
		return c.Code, nil
	case *catalog.Node:
		return c.Code, nil
	}
	return "", nil
}

func (m *memCatalog) ContentLink(_ context.Context, code string) (catalog.Reference, error) {
	return m.byCode[code], nil
}

func (m *memCatalog) ContentLinks(_ context.Context, codes []string) ([]catalog.Reference, error) {
	var out []catalog.Reference
	for _, code := range codes {
		if ref, ok := m.byCode[code]; ok {
			out = append(out, ref)
		}
	}
	return out, nil
}

func (m *memCatalog) Variants(_ context.Context, ref catalog.Reference) ([]catalog.Reference, error) {
	return m.variants[ref], nil
}

func (m *memCatalog) NodeRelations(_ context.Context, ref catalog.Reference) ([]catalog.NodeRelation, error) {
	return m.nodeRels[ref], nil
}

func (m *memCatalog) ParentProducts(_ context.Context, _ catalog.Reference) ([]catalog.Reference, error) {
	return nil, nil
}

type memPrices struct {
	prices []pricing.Price
}

func (m *memPrices) GetPrices(_ context.Context, market pricing.MarketID, asOf time.Time, codes []string, filter pricing.Filter) ([]pricing.Price, error) {
	var out []pricing.Price
	for _, p := range m.prices {
		if p.MarketID != market || !p.ValidAt(asOf) {
			continue
		}
		for _, code := range codes {
			if p.Code == code {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (m *memPrices) GetCatalogEntryPrices(_ context.Context, codes []string) ([]pricing.Price, error) {
	var out []pricing.Price
	for _, p := range m.prices {
		for _, code := range codes {
			if p.Code == code {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

type memMarkets struct {
	markets []pricing.Market
	current *pricing.Market
}

func (m *memMarkets) GetAllMarkets(_ context.Context) ([]pricing.Market, error) {
	return m.markets, nil
}

func (m *memMarkets) GetCurrentMarket(_ context.Context) (*pricing.Market, error) {
	return m.current, nil
}

type memInventory struct {
	records []inventory.Record
}

func (m *memInventory) QueryByEntry(_ context.Context, codes []string) ([]inventory.Record, error) {
	var out []inventory.Record
	for _, rec := range m.records {
		for _, code := range codes {
			if rec.Code == code {
				out = append(out, rec)
			}
		}
	}
	return out, nil
}

type memStore struct {
	values map[string]string
}

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	return m.values[key], nil
}

func (m *memStore) Set(_ context.Context, key, value string) error {
	m.values[key] = value
	return nil
}

var _ browse.Store = (*memStore)(nil)

// newTestEngine wires an Engine over an in-memory fixture: a US market,
// a Fashion > Men > Shoes chain, and a sneaker product with two priced and
// stocked variations.
func newTestEngine() *Engine {
	cat := newMemCatalog()

	fashion := &catalog.Node{Code: "Fashion", Reference: "ref-fashion", Language: "en"}
	men := &catalog.Node{Code: "Men", Reference: "ref-men", Language: "en", Parent: fashion.Reference}
	shoes := &catalog.Node{Code: "Shoes", Reference: "ref-shoes", Language: "en", Parent: men.Reference}
	cat.addNode(fashion)
	cat.addNode(men)
	cat.addNode(shoes)

	sneaker := &catalog.Entry{Code: "sneaker", Reference: "ref-sneaker", Language: "en", Kind: catalog.KindProduct, Parent: shoes.Reference}
	v41 := &catalog.Entry{Code: "sneaker-41", Reference: "ref-sneaker-41", Language: "en", Kind: catalog.KindVariation, Parent: shoes.Reference}
	v42 := &catalog.Entry{Code: "sneaker-42", Reference: "ref-sneaker-42", Language: "en", Kind: catalog.KindVariation, Parent: shoes.Reference}
	cat.addEntry(sneaker)
	cat.addEntry(v41)
	cat.addEntry(v42)

	cat.variants[sneaker.Reference] = []catalog.Reference{v41.Reference, v42.Reference}
	cat.nodeRels[sneaker.Reference] = []catalog.NodeRelation{{Parent: shoes.Reference}}

	validFrom := time.Now().AddDate(-1, 0, 0)
	prices := &memPrices{prices: []pricing.Price{
		{Code: "sneaker-41", UnitPrice: decimal.RequireFromString("59.90"), Currency: "USD", MarketID: "US", ValidFrom: validFrom},
		{Code: "sneaker-42", UnitPrice: decimal.RequireFromString("54.90"), Currency: "USD", MarketID: "US", ValidFrom: validFrom},
	}}

	us := pricing.Market{ID: "US", DefaultLanguage: "en", DefaultCurrency: "USD"}

	engine := New(Dependencies{
		Loader:    cat,
		Refs:      cat,
		Relations: cat,
		Prices:    prices,
		Markets:   &memMarkets{markets: []pricing.Market{us}, current: &us},
		Inventory: &memInventory{records: []inventory.Record{
			{Code: "sneaker-41", WarehouseCode: "main", Quantity: decimal.NewFromInt(12)},
			{Code: "sneaker-42", WarehouseCode: "main", Quantity: decimal.NewFromInt(3)},
		}},
		Store: &memStore{values: make(map[string]string)},
	})
	return engine
}

func TestEngine_DefaultPrice(t *testing.T) {
	engine := newTestEngine()

	entry, err := engine.EntryByCode(context.Background(), "sneaker")
	require.NoError(t, err)

	price, err := engine.DefaultPrice(context.Background(), entry)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("54.90").Equal(price))
}

func TestEngine_EntryByCode_NotFound(t *testing.T) {
	engine := newTestEngine()

	_, err := engine.EntryByCode(context.Background(), "missing")
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestEngine_EntryByCode_NodeIsNotAnEntry(t *testing.T) {
	engine := newTestEngine()

	_, err := engine.EntryByCode(context.Background(), "Shoes")
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestEngine_Outline(t *testing.T) {
	engine := newTestEngine()

	entry, err := engine.EntryByCode(context.Background(), "sneaker")
	require.NoError(t, err)

	got, err := engine.Outline(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, []string{"Shoes/Men"}, got)
}

func TestEngine_Inventories(t *testing.T) {
	engine := newTestEngine()

	entry, err := engine.EntryByCode(context.Background(), "sneaker")
	require.NoError(t, err)

	got, err := engine.Inventories(context.Background(), entry)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, rec := range got {
		assert.Equal(t, entry.Reference, rec.EntryReference)
	}
}

func TestEngine_CurrentPrices(t *testing.T) {
	engine := newTestEngine()

	entry, err := engine.EntryByCode(context.Background(), "sneaker")
	require.NoError(t, err)

	got, err := engine.CurrentPrices(context.Background(), entry)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestEngine_BrowseHistoryRoundTrip(t *testing.T) {
	engine := newTestEngine()
	ctx := context.Background()

	for _, code := range []string{"sneaker-41", "sneaker-42", "sneaker-41"} {
		entry, err := engine.EntryByCode(ctx, code)
		require.NoError(t, err)
		require.NoError(t, engine.AddBrowseHistory(ctx, entry))
	}

	got, err := engine.BrowseHistory(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "sneaker-41", got[0].Code)
	assert.Equal(t, "sneaker-42", got[1].Code)
}
