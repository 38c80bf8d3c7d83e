package catalog

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"golang.org/x/sync/singleflight"
)

// ErrMalformedHierarchy is returned when an ancestor walk exceeds the depth
// cap or revisits a reference, instead of looping forever on a broken
// parent chain.
var ErrMalformedHierarchy = errors.New("malformed catalog hierarchy")

// defaultMaxDepth bounds ancestor walks. Real catalogs are a handful of
// levels deep; anything past this is a broken parent chain.
const defaultMaxDepth = 64

// OutlineBuilder computes the slash-delimited ancestor path of an entry's
// containing nodes. Outline strings are cached process-wide per node code,
// populated at most once per key; eviction, if any, is the embedder's
// concern.
type OutlineBuilder struct {
	loader    Loader
	relations RelationRepository
	maxDepth  int

	cache sync.Map // node code -> string
	group singleflight.Group
}

// NewOutlineBuilder creates an OutlineBuilder over the given collaborators.
func NewOutlineBuilder(loader Loader, relations RelationRepository) *OutlineBuilder {
	return &OutlineBuilder{
		loader:    loader,
		relations: relations,
		maxDepth:  defaultMaxDepth,
	}
}

// Outline returns one outline string per node the entry belongs to, in node
// relation order. The join order is deepest ancestor first, root last:
// for a chain root > Men > Shoes the entry's outline is "Shoes/Men". An
// entry with no node relations yields an empty result.
func (b *OutlineBuilder) Outline(ctx context.Context, entry *Entry) ([]string, error) {
	rels, err := b.relations.NodeRelations(ctx, entry.Reference)
	if err != nil {
		return nil, errors.Wrap(err, "resolve node relations")
	}
	if len(rels) == 0 {
		return nil, nil
	}

	parents := make([]Reference, len(rels))
	for i, rel := range rels {
		parents[i] = rel.Parent
	}

	contents, err := b.loader.GetMany(ctx, parents, entry.Language)
	if err != nil {
		return nil, errors.Wrap(err, "load nodes")
	}

	var outlines []string
	for _, c := range contents {
		node, ok := c.(*Node)
		if !ok {
			continue
		}
		o, err := b.outlineForNode(ctx, node)
		if err != nil {
			return nil, err
		}
		outlines = append(outlines, o)
	}
	return outlines, nil
}

// outlineForNode builds (or returns the cached) outline string for a node.
func (b *OutlineBuilder) outlineForNode(ctx context.Context, node *Node) (string, error) {
	if node.Code == "" {
		return "", nil
	}
	if cached, ok := b.cache.Load(node.Code); ok {
		return cached.(string), nil
	}

	v, err, _ := b.group.Do(node.Code, func() (interface{}, error) {
		o, err := b.walk(ctx, node)
		if err != nil {
			return "", err
		}
		b.cache.Store(node.Code, o)
		return o, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// walk climbs the parent chain, appending each ancestor's identifier. An
// ancestor whose own parent is empty is the catalog root container and is
// not part of the outline.
func (b *OutlineBuilder) walk(ctx context.Context, node *Node) (string, error) {
	outline := node.Code
	next := node.Parent
	seen := map[Reference]struct{}{node.Reference: {}}

	for depth := 0; !next.IsEmpty(); depth++ {
		if depth >= b.maxDepth {
			return "", errors.Wrapf(ErrMalformedHierarchy, "depth cap exceeded at node %q", node.Code)
		}
		if _, ok := seen[next]; ok {
			return "", errors.Wrapf(ErrMalformedHierarchy, "cycle through %q", next)
		}
		seen[next] = struct{}{}

		c, err := b.loader.Get(ctx, next)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return outline, nil
			}
			return "", errors.Wrap(err, "load ancestor")
		}

		switch v := c.(type) {
		case *Node:
			if v.Parent.IsEmpty() {
				return outline, nil
			}
			outline += "/" + v.Code
			next = v.Parent
		case *Entry:
			if v.Parent.IsEmpty() {
				return outline, nil
			}
			outline += "/" + v.Name
			next = v.Parent
		default:
			return outline, nil
		}
	}
	return outline, nil
}
