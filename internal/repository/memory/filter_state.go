// Package memory provides process-local repository implementations for
// development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/utafrali/shopcatalog/internal/domain"
	apperrors "github.com/utafrali/shopcatalog/pkg/errors"
)

type filterStateEntry struct {
	criteria  domain.FilterCriteria
	expiresAt time.Time // zero means no expiry
}

func (e filterStateEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// FilterStateRepository is an in-memory repository.FilterStateRepository.
// Entries expire like the Redis implementation's keys: each Save restarts
// the TTL, and an expired entry reads as not found.
type FilterStateRepository struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]filterStateEntry
}

// Option configures a FilterStateRepository.
type Option func(*FilterStateRepository)

// WithTTL sets how long an entry lives after its last Save. Zero disables
// expiry.
func WithTTL(d time.Duration) Option {
	return func(r *FilterStateRepository) { r.ttl = d }
}

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(r *FilterStateRepository) { r.now = now }
}

// NewFilterStateRepository creates an empty in-memory filter state repository.
func NewFilterStateRepository(opts ...Option) *FilterStateRepository {
	r := &FilterStateRepository{
		now:     time.Now,
		entries: make(map[string]filterStateEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns a copy of the criteria stored under key.
func (r *FilterStateRepository) Get(_ context.Context, key string) (*domain.FilterCriteria, error) {
	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()

	if ok && e.expired(r.now()) {
		r.mu.Lock()
		if cur, still := r.entries[key]; still && cur.expired(r.now()) {
			delete(r.entries, key)
		}
		r.mu.Unlock()
		ok = false
	}
	if !ok {
		return nil, apperrors.NotFound("filter state", key)
	}

	out := e.criteria.Clone()
	return &out, nil
}

// Save stores a normalized copy of criteria under key and restarts its TTL.
func (r *FilterStateRepository) Save(_ context.Context, key string, criteria *domain.FilterCriteria) error {
	e := filterStateEntry{criteria: criteria.Normalized()}
	if r.ttl > 0 {
		e.expiresAt = r.now().Add(r.ttl)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[key] = e
	return nil
}

// Delete removes the entry under key.
func (r *FilterStateRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, key)
	return nil
}

// Cleanup drops expired entries and returns how many were removed.
func (r *FilterStateRepository) Cleanup() int {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, e := range r.entries {
		if e.expired(now) {
			delete(r.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of unexpired entries.
func (r *FilterStateRepository) Len() int {
	now := r.now()

	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, e := range r.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}
