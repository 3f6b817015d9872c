package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/shopcatalog/internal/domain"
	"github.com/utafrali/shopcatalog/internal/repository"
)

// SessionSubscriber is a Subscriber that also learns which session changed.
type SessionSubscriber func(ctx context.Context, sessionID string, criteria domain.FilterCriteria) error

// KeyFor returns the repository key for a browsing session.
func KeyFor(sessionID string) string {
	if sessionID == "" {
		return DefaultKey
	}
	return DefaultKey + ":" + sessionID
}

type entry struct {
	store    *Store
	lastSeen time.Time
	// inUse counts Acquire calls not yet released. Pinned entries are never swept.
	inUse int
}

// Registry hands out one Store per browsing session. Stores share the
// repository, options, and registry-level subscribers.
type Registry struct {
	repo   repository.FilterStateRepository
	logger *slog.Logger
	opts   []Option
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	subs    []SessionSubscriber
}

// NewRegistry creates an empty Registry. opts are applied to every Store it
// creates; WithKey is overridden per session.
func NewRegistry(repo repository.FilterStateRepository, logger *slog.Logger, opts ...Option) *Registry {
	return &Registry{
		repo:    repo,
		logger:  logger,
		opts:    opts,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Store returns the Store for sessionID, creating it on first use. The store
// is not pinned: a caller that keeps it across an idle sweep may end up with a
// store the registry has already replaced. Request paths use Acquire.
func (r *Registry) Store(sessionID string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entryLocked(sessionID).store
}

// Acquire returns the Store for sessionID and pins it until release is
// called, so Sweep cannot evict it while the caller works on it. release is
// idempotent and refreshes the idle clock.
func (r *Registry) Acquire(sessionID string) (store *Store, release func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entryLocked(sessionID)
	e.inUse++

	var once sync.Once
	return e.store, func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			e.inUse--
			e.lastSeen = r.now()
		})
	}
}

// entryLocked returns the entry for sessionID, creating it if needed, and
// marks it seen. Callers hold r.mu.
func (r *Registry) entryLocked(sessionID string) *entry {
	if e, ok := r.entries[sessionID]; ok {
		e.lastSeen = r.now()
		return e
	}

	opts := append(append([]Option{}, r.opts...), WithKey(KeyFor(sessionID)))
	s := NewStore(r.repo, r.logger.With(slog.String("session_id", sessionID)), opts...)
	for _, fn := range r.subs {
		s.Subscribe(bindSession(sessionID, fn))
	}

	e := &entry{store: s, lastSeen: r.now()}
	r.entries[sessionID] = e
	return e
}

// Subscribe registers fn on every current and future Store.
func (r *Registry) Subscribe(fn SessionSubscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subs = append(r.subs, fn)
	for id, e := range r.entries {
		e.store.Subscribe(bindSession(id, fn))
	}
}

// Len returns the number of live stores.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep drops stores not used within idle and not currently acquired. Their
// persisted state is kept, so a returning session reloads it lazily.
func (r *Registry) Sweep(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-idle)
	removed := 0
	for id, e := range r.entries {
		if e.inUse == 0 && e.lastSeen.Before(cutoff) {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (r *Registry) RunSweeper(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(idle); n > 0 {
				r.logger.Debug("swept idle filter state sessions", slog.Int("removed", n))
			}
		}
	}
}

func bindSession(sessionID string, fn SessionSubscriber) Subscriber {
	return func(ctx context.Context, c domain.FilterCriteria) error {
		return fn(ctx, sessionID, c)
	}
}
