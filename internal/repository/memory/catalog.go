package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/utafrali/shopcatalog/internal/domain"
)

// CatalogSource serves a fixed, replaceable list of catalog items.
type CatalogSource struct {
	mu    sync.RWMutex
	items []domain.CatalogItem
}

// NewCatalogSource creates a catalog source holding a copy of items.
func NewCatalogSource(items []domain.CatalogItem) *CatalogSource {
	return &CatalogSource{items: slices.Clone(items)}
}

// FetchAll returns a snapshot of the current items.
func (s *CatalogSource) FetchAll(_ context.Context) ([]domain.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Clone(s.items)
	if out == nil {
		out = []domain.CatalogItem{}
	}
	return out, nil
}

// Replace swaps the served items. Snapshots already handed out are unaffected.
func (s *CatalogSource) Replace(items []domain.CatalogItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = slices.Clone(items)
}
