package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/karolberezicki/Foundation/internal/domain/catalog"
)

const (
	getEntrySQL = `SELECT reference, code, name, language, kind, parent_reference
		FROM catalog_entries WHERE reference = $1`

	getNodeSQL = `SELECT reference, code, name, language, parent_reference
		FROM catalog_nodes WHERE reference = $1`

	getEntriesSQL = `SELECT reference, code, name, language, kind, parent_reference
		FROM catalog_entries WHERE reference = ANY($1)`

	getNodesSQL = `SELECT reference, code, name, language, parent_reference
		FROM catalog_nodes WHERE reference = ANY($1)`

	getChildEntriesSQL = `SELECT reference, code, name, language, kind, parent_reference
		FROM catalog_entries WHERE parent_reference = $1 ORDER BY code`

	getChildNodesSQL = `SELECT reference, code, name, language, parent_reference
		FROM catalog_nodes WHERE parent_reference = $1 ORDER BY code`

	// depth guard mirrors the resolver-side cycle cutoff
	getAncestorNodesSQL = `WITH RECURSIVE chain AS (
			SELECT n.reference, n.code, n.name, n.language, n.parent_reference, 1 AS depth
			FROM catalog_nodes n WHERE n.reference = $1
		UNION ALL
			SELECT n.reference, n.code, n.name, n.language, n.parent_reference, c.depth + 1
			FROM catalog_nodes n
			JOIN chain c ON n.reference = c.parent_reference
			WHERE c.depth < 64
		)
		SELECT reference, code, name, language, parent_reference FROM chain ORDER BY depth`

	entryCodeSQL = `SELECT code FROM catalog_entries WHERE reference = $1`
	nodeCodeSQL  = `SELECT code FROM catalog_nodes WHERE reference = $1`

	entryLinkSQL = `SELECT reference FROM catalog_entries WHERE code = $1`
	nodeLinkSQL  = `SELECT reference FROM catalog_nodes WHERE code = $1`

	entryLinksSQL = `SELECT code, reference FROM catalog_entries WHERE code = ANY($1)`

	variantsSQL = `SELECT variation_reference FROM entry_variants
		WHERE product_reference = $1 ORDER BY sort_order, variation_reference`

	nodeRelationsSQL = `SELECT parent_reference, sort_order FROM node_relations
		WHERE entry_reference = $1 ORDER BY sort_order, parent_reference`

	parentProductsSQL = `SELECT product_reference FROM entry_variants
		WHERE variation_reference = $1 ORDER BY sort_order, product_reference`
)

var (
	_ catalog.Loader             = (*ContentRepository)(nil)
	_ catalog.ReferenceConverter = (*ContentRepository)(nil)
	_ catalog.RelationRepository = (*ContentRepository)(nil)
)

// ContentRepository implements the catalog content loader, reference
// converter, and relation repository backed by PostgreSQL.
//
// The schema stores one localized row per reference, so the language
// parameter of the loader methods selects nothing here; language fallback
// is the content authoring side's concern.
type ContentRepository struct {
	pool *pgxpool.Pool
}

// NewContentRepository returns a ContentRepository that uses the given pool.
func NewContentRepository(pool *pgxpool.Pool) *ContentRepository {
	return &ContentRepository{pool: pool}
}

// Get returns the entry or node behind ref, or catalog.ErrNotFound.
func (r *ContentRepository) Get(ctx context.Context, ref catalog.Reference) (catalog.Content, error) {
	rows, err := r.pool.Query(ctx, getEntrySQL, string(ref))
	if err != nil {
		return nil, fmt.Errorf("getting entry %q: %w", ref, err)
	}
	entry, err := pgx.CollectExactlyOneRow(rows, scanEntry)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("getting entry %q: %w", ref, err)
	}

	rows, err = r.pool.Query(ctx, getNodeSQL, string(ref))
	if err != nil {
		return nil, fmt.Errorf("getting node %q: %w", ref, err)
	}
	node, err := pgx.CollectExactlyOneRow(rows, scanNode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting node %q: %w", ref, err)
	}
	return node, nil
}

// GetMany batch-loads references, preserving input order and skipping
// unresolvable ones.
func (r *ContentRepository) GetMany(ctx context.Context, refs []catalog.Reference, _ string) ([]catalog.Content, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	ids := make([]string, len(refs))
	for i, ref := range refs {
		ids[i] = string(ref)
	}

	byRef := make(map[catalog.Reference]catalog.Content, len(refs))

	rows, err := r.pool.Query(ctx, getEntriesSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting entries: %w", err)
	}
	entries, err := pgx.CollectRows(rows, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("getting entries: %w", err)
	}
	for _, e := range entries {
		byRef[e.Reference] = e
	}

	rows, err = r.pool.Query(ctx, getNodesSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting nodes: %w", err)
	}
	nodes, err := pgx.CollectRows(rows, scanNode)
	if err != nil {
		return nil, fmt.Errorf("getting nodes: %w", err)
	}
	for _, n := range nodes {
		byRef[n.Reference] = n
	}

	out := make([]catalog.Content, 0, len(refs))
	for _, ref := range refs {
		if c, ok := byRef[ref]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// GetChildren returns the direct child nodes and entries of a catalog node.
func (r *ContentRepository) GetChildren(ctx context.Context, ref catalog.Reference, _ string) ([]catalog.Content, error) {
	rows, err := r.pool.Query(ctx, getChildNodesSQL, string(ref))
	if err != nil {
		return nil, fmt.Errorf("getting child nodes of %q: %w", ref, err)
	}
	nodes, err := pgx.CollectRows(rows, scanNode)
	if err != nil {
		return nil, fmt.Errorf("getting child nodes of %q: %w", ref, err)
	}

	rows, err = r.pool.Query(ctx, getChildEntriesSQL, string(ref))
	if err != nil {
		return nil, fmt.Errorf("getting child entries of %q: %w", ref, err)
	}
	entries, err := pgx.CollectRows(rows, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("getting child entries of %q: %w", ref, err)
	}

	out := make([]catalog.Content, 0, len(nodes)+len(entries))
	for _, n := range nodes {
		out = append(out, n)
	}
	for _, e := range entries {
		out = append(out, e)
	}
	return out, nil
}

// GetAncestors returns the node chain above ref ordered entry-to-root,
// the content's direct parent first.
func (r *ContentRepository) GetAncestors(ctx context.Context, ref catalog.Reference) ([]catalog.Content, error) {
	c, err := r.Get(ctx, ref)
	if err != nil {
		return nil, err
	}

	var parent catalog.Reference
	switch v := c.(type) {
	case *catalog.Entry:
		parent = v.Parent
	case *catalog.Node:
		parent = v.Parent
	}
	if parent.IsEmpty() {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, getAncestorNodesSQL, string(parent))
	if err != nil {
		return nil, fmt.Errorf("getting ancestors of %q: %w", ref, err)
	}
	nodes, err := pgx.CollectRows(rows, scanNode)
	if err != nil {
		return nil, fmt.Errorf("getting ancestors of %q: %w", ref, err)
	}

	out := make([]catalog.Content, len(nodes))
	for i, n := range nodes {
		out[i] = n
	}
	return out, nil
}

// Code returns the catalog code behind a reference, empty when unknown.
func (r *ContentRepository) Code(ctx context.Context, ref catalog.Reference) (string, error) {
	for _, q := range []string{entryCodeSQL, nodeCodeSQL} {
		var code string
		err := r.pool.QueryRow(ctx, q, string(ref)).Scan(&code)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("resolving code of %q: %w", ref, err)
		}
	}
	return "", nil
}

// ContentLink returns the reference registered for a code, empty when the
// code is unknown.
func (r *ContentRepository) ContentLink(ctx context.Context, code string) (catalog.Reference, error) {
	for _, q := range []string{entryLinkSQL, nodeLinkSQL} {
		var ref string
		err := r.pool.QueryRow(ctx, q, code).Scan(&ref)
		if err == nil {
			return catalog.Reference(ref), nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("resolving link of %q: %w", code, err)
		}
	}
	return "", nil
}

// ContentLinks batch-resolves entry codes to references, preserving input
// order and skipping unknown codes.
func (r *ContentRepository) ContentLinks(ctx context.Context, codes []string) ([]catalog.Reference, error) {
	if len(codes) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, entryLinksSQL, codes)
	if err != nil {
		return nil, fmt.Errorf("resolving links: %w", err)
	}

	byCode := make(map[string]catalog.Reference, len(codes))
	var (
		code string
		ref  string
	)
	if _, err := pgx.ForEachRow(rows, []any{&code, &ref}, func() error {
		byCode[code] = catalog.Reference(ref)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("resolving links: %w", err)
	}

	out := make([]catalog.Reference, 0, len(codes))
	for _, c := range codes {
		if r, ok := byCode[c]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// Variants returns a product's variation references in catalog sort order.
func (r *ContentRepository) Variants(ctx context.Context, productRef catalog.Reference) ([]catalog.Reference, error) {
	return r.collectRefs(ctx, variantsSQL, string(productRef))
}

// NodeRelations returns an entry's node memberships ordered by sort order.
func (r *ContentRepository) NodeRelations(ctx context.Context, entryRef catalog.Reference) ([]catalog.NodeRelation, error) {
	rows, err := r.pool.Query(ctx, nodeRelationsSQL, string(entryRef))
	if err != nil {
		return nil, fmt.Errorf("getting node relations of %q: %w", entryRef, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.NodeRelation, error) {
		var (
			rel    catalog.NodeRelation
			parent string
		)
		err := row.Scan(&parent, &rel.SortOrder)
		rel.Parent = catalog.Reference(parent)
		return rel, err
	})
}

// ParentProducts returns the products a variation belongs to.
func (r *ContentRepository) ParentProducts(ctx context.Context, variationRef catalog.Reference) ([]catalog.Reference, error) {
	return r.collectRefs(ctx, parentProductsSQL, string(variationRef))
}

func (r *ContentRepository) collectRefs(ctx context.Context, sql, arg string) ([]catalog.Reference, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting relations of %q: %w", arg, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Reference, error) {
		var ref string
		err := row.Scan(&ref)
		return catalog.Reference(ref), err
	})
}

func scanEntry(row pgx.CollectableRow) (*catalog.Entry, error) {
	var (
		e         catalog.Entry
		reference string
		kind      string
		parentRef string
	)
	err := row.Scan(&reference, &e.Code, &e.Name, &e.Language, &kind, &parentRef)
	e.Reference = catalog.Reference(reference)
	e.Kind = catalog.EntryKind(kind)
	e.Parent = catalog.Reference(parentRef)
	return &e, err
}

func scanNode(row pgx.CollectableRow) (*catalog.Node, error) {
	var (
		n         catalog.Node
		reference string
		parentRef string
	)
	err := row.Scan(&reference, &n.Code, &n.Name, &n.Language, &parentRef)
	n.Reference = catalog.Reference(reference)
	n.Parent = catalog.Reference(parentRef)
	return &n, err
}
