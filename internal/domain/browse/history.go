// Package browse tracks the entry codes a visitor recently viewed in an
// external key-value store.
package browse

import (
	"context"
	"strings"

	"github.com/go-faster/errors"

	"github.com/karolberezicki/Foundation/internal/domain/catalog"
)

const (
	// historyKey is the fixed store key browse history lives under.
	historyKey = "BrowseHistory"
	// delimiter is the legacy wire delimiter; it is kept for compatibility
	// with stores written by earlier versions.
	delimiter = "^!!^"
	// maxHistory bounds the list length.
	maxHistory = 10
)

// Store is the external key-value store. Get returns an empty string for
// an absent key.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// History is a bounded, order-preserving, deduplicated list of recently
// viewed entry codes, lazily materialized from the store on each call.
type History struct {
	store  Store
	loader catalog.Loader
	refs   catalog.ReferenceConverter
}

// NewHistory creates a History over the given collaborators.
func NewHistory(store Store, loader catalog.Loader, refs catalog.ReferenceConverter) *History {
	return &History{store: store, loader: loader, refs: refs}
}

// Add appends an entry code to the history. A code already present is left
// where it is; when the list is at capacity the oldest code is evicted
// before the append.
func (h *History) Add(ctx context.Context, code string) error {
	values, err := h.read(ctx)
	if err != nil {
		return err
	}

	for _, v := range values {
		if v == code {
			return nil
		}
	}

	if len(values) == maxHistory {
		values = values[1:]
	}
	values = append(values, code)

	if err := h.store.Set(ctx, historyKey, strings.Join(values, delimiter)); err != nil {
		return errors.Wrap(err, "write history")
	}
	return nil
}

// List resolves the stored codes to catalog entries, preserving insertion
// order and dropping codes that no longer resolve.
func (h *History) List(ctx context.Context) ([]*catalog.Entry, error) {
	values, err := h.read(ctx)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}

	links, err := h.refs.ContentLinks(ctx, values)
	if err != nil {
		return nil, errors.Wrap(err, "resolve codes")
	}

	contents, err := h.loader.GetMany(ctx, links, "")
	if err != nil {
		return nil, errors.Wrap(err, "load entries")
	}

	entries := make([]*catalog.Entry, 0, len(contents))
	for _, c := range contents {
		if e, ok := c.(*catalog.Entry); ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (h *History) read(ctx context.Context) ([]string, error) {
	raw, err := h.store.Get(ctx, historyKey)
	if err != nil {
		return nil, errors.Wrap(err, "read history")
	}
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, delimiter)
	values := parts[:0]
	for _, p := range parts {
		if p != "" {
			values = append(values, p)
		}
	}
	return values, nil
}
