package catalog

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested catalog content does not exist.
var ErrNotFound = errors.New("catalog content not found")

// Reference is an opaque identifier for stored catalog content.
type Reference string

// IsEmpty reports whether the reference points at nothing.
func (r Reference) IsEmpty() bool { return r == "" }

// EntryKind enumerates the entry variants an Entry can be. The set is
// closed: price, stock, and variant resolution dispatch exhaustively over
// it and treat anything else as an empty result.
type EntryKind string

const (
	// KindProduct is a sellable item with one or more purchasable variations.
	KindProduct EntryKind = "product"
	// KindPackage is a fixed bundle sold as a single unit.
	KindPackage EntryKind = "package"
	// KindVariation is a concrete purchasable SKU belonging to a product.
	KindVariation EntryKind = "variation"
)

// Content is the closed set of catalog content a Loader can return:
// an *Entry or a *Node.
type Content interface {
	// ContentReference returns the content's opaque reference.
	ContentReference() Reference

	sealed()
}

// Entry is a read-only projection of a sellable catalog entry.
type Entry struct {
	// Code is the catalog-unique string identifier.
	Code      string
	Reference Reference
	Name      string
	Language  string
	Kind      EntryKind
	// Parent links the entry to its containing catalog node, empty when
	// the entry sits at catalog root.
	Parent Reference
}

// ContentReference implements Content.
func (e *Entry) ContentReference() Reference { return e.Reference }

func (*Entry) sealed() {}

// Node is a hierarchical catalog container. An empty Parent denotes the
// catalog root.
type Node struct {
	Code      string
	Reference Reference
	Name      string
	Language  string
	Parent    Reference
}

// ContentReference implements Content.
func (n *Node) ContentReference() Reference { return n.Reference }

func (*Node) sealed() {}

// NodeRelation links an entry to one of its containing nodes.
type NodeRelation struct {
	Parent    Reference
	SortOrder int
}

// Loader provides read access to stored catalog content.
type Loader interface {
	// Get returns the content behind ref, or ErrNotFound.
	Get(ctx context.Context, ref Reference) (Content, error)
	// GetMany batch-loads the given references, preserving input order and
	// skipping unresolvable ones. An empty language loads any language.
	GetMany(ctx context.Context, refs []Reference, language string) ([]Content, error)
	// GetChildren returns the direct children of a catalog node.
	GetChildren(ctx context.Context, ref Reference, language string) ([]Content, error)
	// GetAncestors returns the ancestor chain of ref ordered entry-to-root.
	GetAncestors(ctx context.Context, ref Reference) ([]Content, error)
}

// ReferenceConverter maps between catalog codes and content references.
type ReferenceConverter interface {
	// Code returns the catalog code behind ref, or an empty string when
	// the reference does not resolve.
	Code(ctx context.Context, ref Reference) (string, error)
	// ContentLink returns the reference registered for code, or an empty
	// reference when the code is unknown.
	ContentLink(ctx context.Context, code string) (Reference, error)
	// ContentLinks batch-resolves codes to references, preserving input
	// order and skipping unknown codes.
	ContentLinks(ctx context.Context, codes []string) ([]Reference, error)
}

// RelationRepository provides the entry relation lookups the resolution
// engine depends on.
type RelationRepository interface {
	// Variants returns the variation references of a product in the
	// relation store's native order.
	Variants(ctx context.Context, productRef Reference) ([]Reference, error)
	// NodeRelations returns the node memberships of an entry ordered by
	// sort order.
	NodeRelations(ctx context.Context, entryRef Reference) ([]NodeRelation, error)
	// ParentProducts returns the products a variation belongs to.
	ParentProducts(ctx context.Context, variationRef Reference) ([]Reference, error)
}
