package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/shopcatalog/internal/domain"
	"github.com/utafrali/shopcatalog/internal/engine"
	"github.com/utafrali/shopcatalog/internal/metrics"
	"github.com/utafrali/shopcatalog/internal/repository"
	"github.com/utafrali/shopcatalog/internal/state"
	apperrors "github.com/utafrali/shopcatalog/pkg/errors"
	"github.com/utafrali/shopcatalog/pkg/tracing"
)

// CatalogService answers catalog queries against a snapshot from a
// CatalogSource and manages each browsing session's filter state.
type CatalogService struct {
	source   repository.CatalogSource
	registry *state.Registry
	metrics  *metrics.Catalog
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(source repository.CatalogSource, registry *state.Registry, m *metrics.Catalog, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		source:   source,
		registry: registry,
		metrics:  m,
		tracer:   tracing.Tracer("github.com/utafrali/shopcatalog/internal/service"),
		logger:   logger,
	}
}

// Overrides adjusts a session's criteria for a single query. Zero fields
// leave the stored value alone.
type Overrides struct {
	Page     int
	PageSize int
	SortKey  domain.SortKey
}

func (o Overrides) apply(c *domain.FilterCriteria) {
	if o.Page > 0 {
		c.Page = o.Page
	}
	if o.PageSize > 0 {
		c.PageSize = o.PageSize
	}
	if o.SortKey != "" {
		c.SortKey = o.SortKey
	}
}

// Browse runs the session's current criteria against a fresh snapshot.
func (s *CatalogService) Browse(ctx context.Context, sessionID string) (*domain.QueryResult, error) {
	store, release := s.registry.Acquire(sessionID)
	criteria := store.Current(ctx)
	release()
	return s.query(ctx, metrics.KindBrowse, criteria)
}

// Preview is Browse with one-off overrides that are not persisted.
func (s *CatalogService) Preview(ctx context.Context, sessionID string, o Overrides) (*domain.QueryResult, error) {
	store, release := s.registry.Acquire(sessionID)
	criteria := store.Current(ctx)
	release()
	o.apply(&criteria)
	return s.query(ctx, metrics.KindPreview, criteria)
}

// Facets summarizes the values a filter panel can offer.
func (s *CatalogService) Facets(ctx context.Context) (summary *domain.FacetSummary, err error) {
	ctx, span := s.tracer.Start(ctx, "CatalogService.Facets")
	start := time.Now()
	defer func() {
		s.metrics.ObserveQuery(metrics.KindFacets, start, 0, err)
		endSpan(span, err)
	}()

	items, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := engine.Facets(items)
	span.SetAttributes(attribute.Int("catalog.active_items", out.TotalActive))
	return &out, nil
}

func (s *CatalogService) query(ctx context.Context, kind string, criteria domain.FilterCriteria) (result *domain.QueryResult, err error) {
	ctx, span := s.tracer.Start(ctx, "CatalogService.Query", trace.WithAttributes(
		attribute.String("catalog.query_kind", kind),
		attribute.String("catalog.sort_key", string(criteria.SortKey)),
		attribute.Int("catalog.page", criteria.Page),
	))
	start := time.Now()
	defer func() {
		matched := 0
		if result != nil {
			matched = result.TotalMatched
		}
		s.metrics.ObserveQuery(kind, start, matched, err)
		endSpan(span, err)
	}()

	items, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	out := engine.Query(items, criteria)
	span.SetAttributes(attribute.Int("catalog.matched", out.TotalMatched))
	return &out, nil
}

func (s *CatalogService) snapshot(ctx context.Context) ([]domain.CatalogItem, error) {
	items, err := s.source.FetchAll(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to fetch catalog snapshot", slog.String("error", err.Error()))
		return nil, apperrors.Wrap(err, "fetch catalog snapshot")
	}
	s.metrics.SetSnapshotSize(len(items))
	return items, nil
}

// ---------------------------------------------------------------------------
// Filter state
// ---------------------------------------------------------------------------

// Filters returns the session's current criteria.
func (s *CatalogService) Filters(ctx context.Context, sessionID string) domain.FilterCriteria {
	store, release := s.registry.Acquire(sessionID)
	defer release()
	return store.Current(ctx)
}

// ReplaceFilters swaps in criteria wholesale. Malformed values are normalized
// rather than rejected; see normalizeCriteria.
func (s *CatalogService) ReplaceFilters(ctx context.Context, sessionID string, criteria domain.FilterCriteria) domain.FilterCriteria {
	store, release := s.registry.Acquire(sessionID)
	defer release()

	criteria = normalizeCriteria(criteria)
	if criteria.PageSize <= 0 {
		criteria.PageSize = store.Current(ctx).PageSize
	}
	return store.Replace(ctx, criteria)
}

// UpdateSearch sets the free-text query.
func (s *CatalogService) UpdateSearch(ctx context.Context, sessionID, text string) domain.FilterCriteria {
	store, release := s.registry.Acquire(sessionID)
	defer release()
	return store.UpdateSearchText(ctx, text)
}

// UpdateCategories sets the category restriction.
func (s *CatalogService) UpdateCategories(ctx context.Context, sessionID string, categories []string) domain.FilterCriteria {
	store, release := s.registry.Acquire(sessionID)
	defer release()
	return store.UpdateCategories(ctx, categories)
}

// UpdateBrands sets the brand restriction.
func (s *CatalogService) UpdateBrands(ctx context.Context, sessionID string, brands []string) domain.FilterCriteria {
	store, release := s.registry.Acquire(sessionID)
	defer release()
	return store.UpdateBrands(ctx, brands)
}

// UpdatePrice sets the price bounds. A nil max removes the ceiling. A
// negative floor counts as 0. An inverted range is stored as given and
// matches nothing.
func (s *CatalogService) UpdatePrice(ctx context.Context, sessionID string, minPrice float64, maxPrice *float64) domain.FilterCriteria {
	ceiling := domain.NoUpperBound
	if maxPrice != nil {
		ceiling = *maxPrice
	}

	store, release := s.registry.Acquire(sessionID)
	defer release()
	return store.UpdatePriceRange(ctx, max(minPrice, 0), ceiling)
}

// UpdateSort sets the sort key.
func (s *CatalogService) UpdateSort(ctx context.Context, sessionID string, key domain.SortKey) (domain.FilterCriteria, error) {
	if !domain.IsValidSortKey(string(key)) {
		return domain.FilterCriteria{}, apperrors.InvalidInput(fmt.Sprintf("unknown sort key %q", key))
	}
	store, release := s.registry.Acquire(sessionID)
	defer release()
	return store.UpdateSort(ctx, key), nil
}

// UpdatePage moves to another page. Pages below 1 become 1; pages past the
// end are clamped when the query runs.
func (s *CatalogService) UpdatePage(ctx context.Context, sessionID string, page int) domain.FilterCriteria {
	store, release := s.registry.Acquire(sessionID)
	defer release()
	return store.UpdatePage(ctx, max(page, 1))
}

// ResetFilters restores the defaults.
func (s *CatalogService) ResetFilters(ctx context.Context, sessionID string) domain.FilterCriteria {
	store, release := s.registry.Acquire(sessionID)
	defer release()
	return store.Reset(ctx)
}

// Sessions returns the number of live session stores and refreshes the gauge.
func (s *CatalogService) Sessions() int {
	n := s.registry.Len()
	s.metrics.SetActiveSessions(n)
	return n
}

// normalizeCriteria repairs values that would otherwise be stored as
// nonsense. Negative bounds become 0, a page below 1 becomes 1, and an
// unknown or empty sort key becomes the default. An inverted price range and
// a rating above 5 are kept: they match nothing, which is what the shopper
// asked for.
func normalizeCriteria(c domain.FilterCriteria) domain.FilterCriteria {
	c.MinPrice = max(c.MinPrice, 0)
	c.MinRating = max(c.MinRating, 0)
	c.Page = max(c.Page, 1)
	if !domain.IsValidSortKey(string(c.SortKey)) {
		c.SortKey = domain.SortDefault
	}
	return c
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
