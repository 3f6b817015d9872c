package repository

import (
	"context"

	"github.com/utafrali/shopcatalog/internal/domain"
)

// FilterStateRepository is the key-value store that keeps filter criteria
// between sessions.
type FilterStateRepository interface {
	// Get returns the criteria stored under key. A missing key yields an
	// error wrapping apperrors.ErrNotFound.
	Get(ctx context.Context, key string) (*domain.FilterCriteria, error)

	// Save stores criteria under key, replacing any previous value.
	Save(ctx context.Context, key string, criteria *domain.FilterCriteria) error

	// Delete removes the entry under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// CatalogSource provides point-in-time snapshots of the catalog.
type CatalogSource interface {
	// FetchAll returns every catalog item, active or not, in the source's
	// natural listing order.
	FetchAll(ctx context.Context) ([]domain.CatalogItem, error)
}
