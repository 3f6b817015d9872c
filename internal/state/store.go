// Package state keeps the shopper's current filter criteria, persists it
// through a key-value repository, and fans out change notifications.
package state

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/utafrali/shopcatalog/internal/domain"
	"github.com/utafrali/shopcatalog/internal/repository"
	apperrors "github.com/utafrali/shopcatalog/pkg/errors"
)

// DefaultKey is the repository key a Store persists under unless WithKey is given.
const DefaultKey = "catalog_filter_state"

// Subscriber receives a copy of the criteria after every successful mutation.
// A returned error or a panic is logged and does not affect other subscribers.
type Subscriber func(ctx context.Context, criteria domain.FilterCriteria) error

// Recorder receives failure signals for metrics. All methods must be cheap
// and must not block.
type Recorder interface {
	PersistFailed(op string)
	SubscriberFailed()
}

type nopRecorder struct{}

func (nopRecorder) PersistFailed(string) {}
func (nopRecorder) SubscriberFailed()    {}

// Option configures a Store.
type Option func(*Store)

// WithKey sets the repository key.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithPageSize sets the page size of the default criteria.
func WithPageSize(n int) Option {
	return func(s *Store) { s.pageSize = n }
}

// WithMaxAge discards persisted criteria whose LastUpdated is older than d.
// Zero keeps persisted criteria regardless of age.
func WithMaxAge(d time.Duration) Option {
	return func(s *Store) { s.maxAge = d }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithRecorder attaches a failure recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Store) { s.recorder = r }
}

type subscription struct {
	id uint64
	fn Subscriber
}

// Store is the single source of truth for one browsing context's filter
// criteria. It starts uninitialized and loads persisted criteria on first use.
//
// Every operation runs under one mutex, covering the lazy load and the whole
// read-modify-persist-notify sequence, so interleaved callers cannot persist
// stale values over each other. Subscribers run inside that critical section
// and must not call back into the same Store.
//
// No method returns an error: repository failures are logged and the
// in-memory value stays authoritative for the session.
type Store struct {
	repo     repository.FilterStateRepository
	logger   *slog.Logger
	recorder Recorder
	key      string
	pageSize int
	maxAge   time.Duration
	now      func() time.Time

	mu      sync.Mutex
	ready   bool
	current domain.FilterCriteria

	subMu  sync.RWMutex
	subs   []subscription
	nextID uint64
}

// NewStore creates a Store backed by repo.
func NewStore(repo repository.FilterStateRepository, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		repo:     repo,
		logger:   logger,
		recorder: nopRecorder{},
		key:      DefaultKey,
		pageSize: domain.DefaultPageSize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("state_key", s.key))
	return s
}

// Key returns the repository key this store persists under.
func (s *Store) Key() string {
	return s.key
}

// Current returns a copy of the current criteria.
func (s *Store) Current(ctx context.Context) domain.FilterCriteria {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureReady(ctx)
	return s.current.Clone()
}

// HasActiveFilters reports whether any restrictive field is set.
func (s *Store) HasActiveFilters(ctx context.Context) bool {
	return !s.Current(ctx).IsEmpty()
}

// Replace swaps in criteria wholesale.
func (s *Store) Replace(ctx context.Context, criteria domain.FilterCriteria) domain.FilterCriteria {
	return s.mutate(ctx, "replace", func(c *domain.FilterCriteria) {
		*c = criteria.Clone()
	})
}

// UpdateSearchText sets the free-text query and returns to the first page.
// The text is stored as given; matching is an exact case-insensitive substring.
func (s *Store) UpdateSearchText(ctx context.Context, text string) domain.FilterCriteria {
	return s.mutate(ctx, "update_search_text", func(c *domain.FilterCriteria) {
		c.SearchText = text
		c.Page = 1
	})
}

// UpdateCategories sets the category restriction and returns to the first page.
func (s *Store) UpdateCategories(ctx context.Context, categories []string) domain.FilterCriteria {
	return s.mutate(ctx, "update_categories", func(c *domain.FilterCriteria) {
		c.Categories = cloneStrings(categories)
		c.Page = 1
	})
}

// UpdateBrands sets the brand restriction and returns to the first page.
func (s *Store) UpdateBrands(ctx context.Context, brands []string) domain.FilterCriteria {
	return s.mutate(ctx, "update_brands", func(c *domain.FilterCriteria) {
		c.Brands = cloneStrings(brands)
		c.Page = 1
	})
}

// UpdatePriceRange sets the inclusive price bounds and returns to the first
// page. Use domain.NoUpperBound for an open ceiling.
func (s *Store) UpdatePriceRange(ctx context.Context, minPrice, maxPrice float64) domain.FilterCriteria {
	return s.mutate(ctx, "update_price_range", func(c *domain.FilterCriteria) {
		c.MinPrice = minPrice
		c.MaxPrice = maxPrice
		c.Page = 1
	})
}

// UpdateSort sets the sort key and returns to the first page.
func (s *Store) UpdateSort(ctx context.Context, key domain.SortKey) domain.FilterCriteria {
	return s.mutate(ctx, "update_sort", func(c *domain.FilterCriteria) {
		c.SortKey = key
		c.Page = 1
	})
}

// UpdatePage moves to another page. Out-of-range pages are clamped at query time.
func (s *Store) UpdatePage(ctx context.Context, page int) domain.FilterCriteria {
	return s.mutate(ctx, "update_page", func(c *domain.FilterCriteria) {
		c.Page = page
	})
}

// Reset restores the default criteria and removes the persisted entry.
func (s *Store) Reset(ctx context.Context) domain.FilterCriteria {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureReady(ctx)

	next := domain.DefaultCriteriaWithPageSize(s.pageSize)
	next.LastUpdated = s.now().UTC()
	s.current = next

	if err := s.repo.Delete(ctx, s.key); err != nil {
		s.persistFailed(ctx, "reset", err)
	}

	s.notify(ctx, next)
	return next.Clone()
}

// Subscribe registers fn for change notifications and returns a function that
// removes it again.
func (s *Store) Subscribe(fn Subscriber) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			s.subs = slices.DeleteFunc(s.subs, func(sub subscription) bool { return sub.id == id })
		})
	}
}

// mutate runs the read-modify-persist-notify sequence for a partial update
// and returns a copy of the committed value.
func (s *Store) mutate(ctx context.Context, op string, fn func(c *domain.FilterCriteria)) domain.FilterCriteria {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureReady(ctx)

	next := s.current.Clone()
	fn(&next)
	next.LastUpdated = s.now().UTC()
	s.current = next

	if err := s.repo.Save(ctx, s.key, &next); err != nil {
		s.persistFailed(ctx, op, err)
	}

	s.notify(ctx, next)
	return next.Clone()
}

// ensureReady performs the one-time load. Callers hold s.mu.
func (s *Store) ensureReady(ctx context.Context) {
	if s.ready {
		return
	}
	s.current = s.load(ctx)
	s.ready = true
}

func (s *Store) load(ctx context.Context) domain.FilterCriteria {
	defaults := domain.DefaultCriteriaWithPageSize(s.pageSize)

	stored, err := s.repo.Get(ctx, s.key)
	switch {
	case err == nil && stored != nil:
	case err == nil, apperrors.IsNotFound(err):
		s.logger.DebugContext(ctx, "no persisted filter state, using defaults")
		return defaults
	default:
		s.logger.WarnContext(ctx, "failed to load filter state, using defaults",
			slog.String("error", err.Error()),
		)
		s.recorder.PersistFailed("load")
		return defaults
	}

	if s.maxAge > 0 && !stored.LastUpdated.IsZero() && s.now().Sub(stored.LastUpdated) > s.maxAge {
		s.logger.InfoContext(ctx, "persisted filter state expired, using defaults",
			slog.Time("last_updated", stored.LastUpdated),
			slog.Duration("max_age", s.maxAge),
		)
		if err := s.repo.Delete(ctx, s.key); err != nil {
			s.persistFailed(ctx, "expire", err)
		}
		return defaults
	}

	loaded := stored.Clone()
	if loaded.PageSize <= 0 {
		loaded.PageSize = defaults.PageSize
	}
	if loaded.Page < 1 {
		loaded.Page = 1
	}
	return loaded
}

func (s *Store) persistFailed(ctx context.Context, op string, err error) {
	s.logger.WarnContext(ctx, "failed to persist filter state",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	s.recorder.PersistFailed(op)
}

// notify delivers criteria to every subscriber in registration order.
func (s *Store) notify(ctx context.Context, criteria domain.FilterCriteria) {
	s.subMu.RLock()
	subs := slices.Clone(s.subs)
	s.subMu.RUnlock()

	for _, sub := range subs {
		if err := s.deliver(ctx, sub, criteria.Clone()); err != nil {
			s.logger.ErrorContext(ctx, "filter state subscriber failed",
				slog.Uint64("subscriber", sub.id),
				slog.String("error", err.Error()),
			)
			s.recorder.SubscriberFailed()
		}
	}
}

func (s *Store) deliver(ctx context.Context, sub subscription, criteria domain.FilterCriteria) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("subscriber panic: %v", rec)
		}
	}()
	return sub.fn(ctx, criteria)
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return slices.Clone(in)
}
