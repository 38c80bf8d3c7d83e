package catalog

import (
	"context"

	"github.com/go-faster/errors"
)

// VariantResolver normalizes catalog content to its sellable units and
// resolves variation relations.
type VariantResolver struct {
	loader    Loader
	relations RelationRepository
}

// NewVariantResolver creates a VariantResolver over the given collaborators.
func NewVariantResolver(loader Loader, relations RelationRepository) *VariantResolver {
	return &VariantResolver{loader: loader, relations: relations}
}

// SellableUnits resolves content to the references price and stock attach
// to: a variation or package maps to itself, a product to its variation
// relations, and a node to all its descendant variations. Unrecognized
// entry kinds resolve to an empty result.
func (r *VariantResolver) SellableUnits(ctx context.Context, c Content) ([]Reference, error) {
	switch v := c.(type) {
	case *Entry:
		switch v.Kind {
		case KindVariation, KindPackage:
			return []Reference{v.Reference}, nil
		case KindProduct:
			refs, err := r.relations.Variants(ctx, v.Reference)
			if err != nil {
				return nil, errors.Wrap(err, "resolve variants")
			}
			return refs, nil
		default:
			return nil, nil
		}
	case *Node:
		variants, err := r.AllVariants(ctx, v.Reference)
		if err != nil {
			return nil, err
		}
		refs := make([]Reference, len(variants))
		for i, e := range variants {
			refs[i] = e.Reference
		}
		return refs, nil
	default:
		return nil, nil
	}
}

// Variations loads the variation entries of a product in relation order.
// Non-product entries have no variations.
func (r *VariantResolver) Variations(ctx context.Context, product *Entry) ([]*Entry, error) {
	if product.Kind != KindProduct {
		return nil, nil
	}

	refs, err := r.relations.Variants(ctx, product.Reference)
	if err != nil {
		return nil, errors.Wrap(err, "resolve variants")
	}

	contents, err := r.loader.GetMany(ctx, refs, product.Language)
	if err != nil {
		return nil, errors.Wrap(err, "load variations")
	}

	return filterVariations(contents), nil
}

// AllVariants expands a reference to all terminal variation entries below
// it. A node yields its direct variation children plus every child
// product's variations; a product yields its variations; a variation
// yields itself. Packages and products are never part of the result, and a
// product with zero resolvable variations contributes nothing.
func (r *VariantResolver) AllVariants(ctx context.Context, ref Reference) ([]*Entry, error) {
	c, err := r.loader.Get(ctx, ref)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "load content")
	}

	switch v := c.(type) {
	case *Node:
		children, err := r.loader.GetChildren(ctx, v.Reference, v.Language)
		if err != nil {
			return nil, errors.Wrap(err, "load children")
		}

		variants := filterVariations(children)
		for _, child := range children {
			e, ok := child.(*Entry)
			if !ok || e.Kind != KindProduct {
				continue
			}
			more, err := r.Variations(ctx, e)
			if err != nil {
				return nil, err
			}
			variants = append(variants, more...)
		}
		return variants, nil

	case *Entry:
		switch v.Kind {
		case KindProduct:
			return r.Variations(ctx, v)
		case KindVariation:
			return []*Entry{v}, nil
		}
	}

	return nil, nil
}

// PrimaryParentProduct returns the reference of the product that owns a
// variation; for products and packages it is the entry's own reference.
// An orphaned variation resolves to an empty reference.
func (r *VariantResolver) PrimaryParentProduct(ctx context.Context, entry *Entry) (Reference, error) {
	if entry.Kind != KindVariation {
		return entry.Reference, nil
	}

	parents, err := r.relations.ParentProducts(ctx, entry.Reference)
	if err != nil {
		return "", errors.Wrap(err, "resolve parent products")
	}
	if len(parents) == 0 {
		return "", nil
	}
	return parents[0], nil
}

// SortOrder returns the sort order of the entry's first node relation,
// 0 when the entry has none.
func (r *VariantResolver) SortOrder(ctx context.Context, entry *Entry) (int, error) {
	rels, err := r.relations.NodeRelations(ctx, entry.Reference)
	if err != nil {
		return 0, errors.Wrap(err, "resolve node relations")
	}
	if len(rels) == 0 {
		return 0, nil
	}
	return rels[0].SortOrder, nil
}

func filterVariations(contents []Content) []*Entry {
	var out []*Entry
	for _, c := range contents {
		if e, ok := c.(*Entry); ok && e.Kind == KindVariation {
			out = append(out, e)
		}
	}
	return out
}
