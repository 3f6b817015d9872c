package state

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/shopcatalog/internal/domain"
	"github.com/utafrali/shopcatalog/internal/repository"
	"github.com/utafrali/shopcatalog/internal/repository/memory"
	redisrepo "github.com/utafrali/shopcatalog/internal/repository/redis"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// countingRepo wraps the in-memory repository and can be told to fail.
type countingRepo struct {
	inner *memory.FilterStateRepository

	gets    atomic.Int32
	saves   atomic.Int32
	deletes atomic.Int32

	failGet    error
	failSave   error
	failDelete error
	getDelay   time.Duration
}

func newCountingRepo() *countingRepo {
	return &countingRepo{inner: memory.NewFilterStateRepository()}
}

func (r *countingRepo) Get(ctx context.Context, key string) (*domain.FilterCriteria, error) {
	r.gets.Add(1)
	if r.getDelay > 0 {
		time.Sleep(r.getDelay)
	}
	if r.failGet != nil {
		return nil, r.failGet
	}
	return r.inner.Get(ctx, key)
}

func (r *countingRepo) Save(ctx context.Context, key string, c *domain.FilterCriteria) error {
	r.saves.Add(1)
	if r.failSave != nil {
		return r.failSave
	}
	return r.inner.Save(ctx, key, c)
}

func (r *countingRepo) Delete(ctx context.Context, key string) error {
	r.deletes.Add(1)
	if r.failDelete != nil {
		return r.failDelete
	}
	return r.inner.Delete(ctx, key)
}

type fakeRecorder struct {
	mu             sync.Mutex
	persistOps     []string
	subscriberFail int
}

func (f *fakeRecorder) PersistFailed(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.persistOps = append(f.persistOps, op)
}

func (f *fakeRecorder) SubscriberFailed() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscriberFail++
}

func newTestStore(repo *countingRepo, opts ...Option) *Store {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewStore(repo, discardLogger(), opts...)
}

// ---------------------------------------------------------------------------
// Initialization
// ---------------------------------------------------------------------------

func TestStore_Current_DefaultsWhenNothingPersisted(t *testing.T) {
	repo := newCountingRepo()
	s := newTestStore(repo)

	c := s.Current(context.Background())
	assert.True(t, c.Equal(domain.DefaultCriteria()))
	assert.Equal(t, DefaultKey, s.Key())
	assert.False(t, s.HasActiveFilters(context.Background()))
}

func TestStore_Current_LoadsPersistedState(t *testing.T) {
	ctx := context.Background()
	repo := newCountingRepo()

	persisted := domain.DefaultCriteria()
	persisted.Categories = []string{"Shoes"}
	persisted.Page = 2
	persisted.LastUpdated = fixedNow.Add(-time.Hour)
	require.NoError(t, repo.inner.Save(ctx, DefaultKey, &persisted))

	s := newTestStore(repo)
	c := s.Current(ctx)

	assert.Equal(t, []string{"Shoes"}, c.Categories)
	assert.Equal(t, 2, c.Page)
	assert.True(t, s.HasActiveFilters(ctx))
}

func TestStore_Current_LoadsOnlyOnce(t *testing.T) {
	repo := newCountingRepo()
	s := newTestStore(repo)

	for range 5 {
		s.Current(context.Background())
	}
	assert.Equal(t, int32(1), repo.gets.Load())
}

func TestStore_Current_ConcurrentFirstUseLoadsOnce(t *testing.T) {
	repo := newCountingRepo()
	repo.getDelay = 10 * time.Millisecond
	s := newTestStore(repo)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Current(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), repo.gets.Load())
}

func TestStore_Current_LoadFailureFallsBackToDefaults(t *testing.T) {
	repo := newCountingRepo()
	repo.failGet = errors.New("connection refused")
	rec := &fakeRecorder{}
	s := newTestStore(repo, WithRecorder(rec))

	c := s.Current(context.Background())
	assert.True(t, c.IsEmpty())
	assert.Equal(t, []string{"load"}, rec.persistOps)
}

func TestStore_Current_ExpiredStateIsDiscarded(t *testing.T) {
	ctx := context.Background()
	repo := newCountingRepo()

	persisted := domain.DefaultCriteria()
	persisted.Brands = []string{"Nike"}
	persisted.LastUpdated = fixedNow.Add(-48 * time.Hour)
	require.NoError(t, repo.inner.Save(ctx, DefaultKey, &persisted))

	s := newTestStore(repo, WithMaxAge(24*time.Hour))
	c := s.Current(ctx)

	assert.True(t, c.IsEmpty())
	assert.Equal(t, 0, repo.inner.Len())
}

func TestStore_Current_FreshStateWithinMaxAge(t *testing.T) {
	ctx := context.Background()
	repo := newCountingRepo()

	persisted := domain.DefaultCriteria()
	persisted.Brands = []string{"Nike"}
	persisted.LastUpdated = fixedNow.Add(-time.Hour)
	require.NoError(t, repo.inner.Save(ctx, DefaultKey, &persisted))

	s := newTestStore(repo, WithMaxAge(24*time.Hour))
	assert.Equal(t, []string{"Nike"}, s.Current(ctx).Brands)
}

func TestStore_Current_CustomPageSize(t *testing.T) {
	s := newTestStore(newCountingRepo(), WithPageSize(domain.CatalogPageSize))
	assert.Equal(t, domain.CatalogPageSize, s.Current(context.Background()).PageSize)
}

func TestStore_Current_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(newCountingRepo())
	s.UpdateCategories(ctx, []string{"Shoes"})

	c := s.Current(ctx)
	c.Categories[0] = "Hats"

	assert.Equal(t, []string{"Shoes"}, s.Current(ctx).Categories)
}

// ---------------------------------------------------------------------------
// Mutations
// ---------------------------------------------------------------------------

func TestStore_UpdateCategories_PersistsAndResetsPage(t *testing.T) {
	ctx := context.Background()
	repo := newCountingRepo()
	s := newTestStore(repo)
	s.UpdatePage(ctx, 4)

	s.UpdateCategories(ctx, []string{"Shoes"})

	c := s.Current(ctx)
	assert.Equal(t, []string{"Shoes"}, c.Categories)
	assert.Equal(t, 1, c.Page)
	assert.True(t, c.LastUpdated.Equal(fixedNow))

	stored, err := repo.inner.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.True(t, c.Equal(*stored))
}

func TestStore_UpdateCategories_CallerSliceNotAliased(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(newCountingRepo())

	in := []string{"Shoes"}
	s.UpdateCategories(ctx, in)
	in[0] = "Hats"

	assert.Equal(t, []string{"Shoes"}, s.Current(ctx).Categories)
}

func TestStore_PartialUpdates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(newCountingRepo())

	s.UpdateSearchText(ctx, "  runner  ")
	s.UpdateBrands(ctx, []string{"Nike", "Adidas"})
	s.UpdatePriceRange(ctx, 1000, 5000)
	s.UpdateSort(ctx, domain.SortPriceAsc)
	s.UpdatePage(ctx, 3)

	c := s.Current(ctx)
	assert.Equal(t, "  runner  ", c.SearchText)
	assert.ElementsMatch(t, []string{"Nike", "Adidas"}, c.Brands)
	assert.Equal(t, 1000.0, c.MinPrice)
	assert.Equal(t, 5000.0, c.MaxPrice)
	assert.Equal(t, domain.SortPriceAsc, c.SortKey)
	assert.Equal(t, 3, c.Page)
}

func TestStore_UpdateSort_ResetsPage(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(newCountingRepo())
	s.UpdatePage(ctx, 5)

	s.UpdateSort(ctx, domain.SortRatingDesc)

	assert.Equal(t, 1, s.Current(ctx).Page)
}

func TestStore_Replace(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(newCountingRepo())

	next := domain.DefaultCriteria()
	next.OnSaleOnly = true
	next.MinRating = 4
	s.Replace(ctx, next)

	next.OnSaleOnly = false
	c := s.Current(ctx)
	assert.True(t, c.OnSaleOnly)
	assert.Equal(t, 4.0, c.MinRating)
}

func TestStore_UpdateSearchText_KeepsTextVerbatim(t *testing.T) {
	ctx := context.Background()
	repo := newCountingRepo()
	s := newTestStore(repo)

	s.UpdateSearchText(ctx, "\tRunner 07 ")

	assert.Equal(t, "\tRunner 07 ", s.Current(ctx).SearchText)
	stored, err := repo.inner.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, "\tRunner 07 ", stored.SearchText)
}

func TestStore_MutatorsReturnCommittedState(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(newCountingRepo())

	replaced := domain.DefaultCriteria()
	replaced.MinRating = 3

	steps := []struct {
		name   string
		mutate func() domain.FilterCriteria
	}{
		{"replace", func() domain.FilterCriteria { return s.Replace(ctx, replaced) }},
		{"search", func() domain.FilterCriteria { return s.UpdateSearchText(ctx, "jacket") }},
		{"categories", func() domain.FilterCriteria { return s.UpdateCategories(ctx, []string{"Coats"}) }},
		{"brands", func() domain.FilterCriteria { return s.UpdateBrands(ctx, []string{"Zara"}) }},
		{"price", func() domain.FilterCriteria { return s.UpdatePriceRange(ctx, 100, 900) }},
		{"sort", func() domain.FilterCriteria { return s.UpdateSort(ctx, domain.SortNewest) }},
		{"page", func() domain.FilterCriteria { return s.UpdatePage(ctx, 4) }},
		{"reset", func() domain.FilterCriteria { return s.Reset(ctx) }},
	}
	for _, step := range steps {
		got := step.mutate()
		assert.True(t, got.Equal(s.Current(ctx)), step.name)
	}
}

func TestStore_MutatorResultIsDetached(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(newCountingRepo())

	got := s.UpdateCategories(ctx, []string{"Shoes"})
	got.Categories[0] = "Hats"
	got.Page = 9

	c := s.Current(ctx)
	assert.Equal(t, []string{"Shoes"}, c.Categories)
	assert.Equal(t, 1, c.Page)
}

func TestStore_Replace_RoundTripsThroughNewStore(t *testing.T) {
	repos := []struct {
		name string
		repo func(t *testing.T) repository.FilterStateRepository
	}{
		{"memory", func(*testing.T) repository.FilterStateRepository {
			return memory.NewFilterStateRepository()
		}},
		{"redis", func(t *testing.T) repository.FilterStateRepository {
			mr := miniredis.RunT(t)
			client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { client.Close() })
			return redisrepo.NewFilterStateRepository(client, time.Hour)
		}},
	}

	bounded := domain.FilterCriteria{
		SearchText:       " Linen Shirt",
		Categories:       []string{"tops", "dresses", "tops"},
		Brands:           []string{"Zara", "Mango", "Zara"},
		MinRating:        3.5,
		MinPrice:         1500,
		MaxPrice:         12500,
		OnSaleOnly:       true,
		FreeShippingOnly: true,
		SortKey:          domain.SortNewest,
		Page:             3,
		PageSize:         domain.CatalogPageSize,
	}
	unbounded := bounded.Clone()
	unbounded.MinPrice = 0
	unbounded.MaxPrice = domain.NoUpperBound
	unbounded.SortKey = domain.SortPriceDesc
	unbounded.Page = 2

	cases := []struct {
		name     string
		criteria domain.FilterCriteria
	}{
		{"finite max price", bounded},
		{"no upper bound", unbounded},
	}

	for _, rc := range repos {
		for _, tc := range cases {
			t.Run(rc.name+"/"+tc.name, func(t *testing.T) {
				ctx := context.Background()
				repo := rc.repo(t)
				opts := []Option{
					WithKey("catalog_filter_state:round-trip"),
					WithClock(func() time.Time { return fixedNow }),
				}

				first := NewStore(repo, discardLogger(), opts...)
				committed := first.Replace(ctx, tc.criteria)
				require.True(t, fixedNow.Equal(committed.LastUpdated))

				second := NewStore(repo, discardLogger(), opts...)
				got := second.Current(ctx)

				want := tc.criteria.Clone()
				want.LastUpdated = fixedNow
				assert.True(t, want.Equal(got), "want %+v, got %+v", want, got)
				assert.True(t, first.Current(ctx).Equal(got))
				assert.Equal(t, []string{"dresses", "tops"}, got.Categories)
				assert.Equal(t, []string{"Mango", "Zara"}, got.Brands)
				assert.Equal(t, tc.criteria.MaxPrice, got.MaxPrice)
			})
		}
	}
}

func TestStore_Reset_RestoresDefaultsAndDeletesEntry(t *testing.T) {
	ctx := context.Background()
	repo := newCountingRepo()
	s := newTestStore(repo, WithPageSize(domain.CatalogPageSize))

	s.UpdateBrands(ctx, []string{"Nike"})
	require.Equal(t, 1, repo.inner.Len())

	s.Reset(ctx)

	c := s.Current(ctx)
	assert.True(t, c.IsEmpty())
	assert.Equal(t, domain.CatalogPageSize, c.PageSize)
	assert.Equal(t, 0, repo.inner.Len())
	assert.Equal(t, int32(1), repo.deletes.Load())
}

func TestStore_SaveFailureKeepsInMemoryValueAndNotifies(t *testing.T) {
	ctx := context.Background()
	repo := newCountingRepo()
	repo.failSave = errors.New("disk full")
	rec := &fakeRecorder{}
	s := newTestStore(repo, WithRecorder(rec))

	var notified int
	s.Subscribe(func(context.Context, domain.FilterCriteria) error {
		notified++
		return nil
	})

	s.UpdateSearchText(ctx, "boots")

	assert.Equal(t, "boots", s.Current(ctx).SearchText)
	assert.Equal(t, 1, notified)
	assert.Equal(t, []string{"update_search_text"}, rec.persistOps)
}

func TestStore_ResetDeleteFailureStillNotifies(t *testing.T) {
	ctx := context.Background()
	repo := newCountingRepo()
	repo.failDelete = errors.New("timeout")
	s := newTestStore(repo)

	var got domain.FilterCriteria
	s.Subscribe(func(_ context.Context, c domain.FilterCriteria) error {
		got = c
		return nil
	})
	s.UpdateBrands(ctx, []string{"Nike"})
	s.Reset(ctx)

	assert.True(t, got.IsEmpty())
}

func TestStore_ConcurrentMutationsAreSerialized(t *testing.T) {
	ctx := context.Background()
	repo := newCountingRepo()
	s := newTestStore(repo)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.UpdatePage(ctx, i+1)
		}()
	}
	wg.Wait()

	stored, err := repo.inner.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, s.Current(ctx).Page, stored.Page)
	assert.Equal(t, int32(50), repo.saves.Load())
}

// ---------------------------------------------------------------------------
// Subscribers
// ---------------------------------------------------------------------------

func TestStore_Subscribe_NotifiedInRegistrationOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(newCountingRepo())

	var order []int
	for i := range 3 {
		s.Subscribe(func(context.Context, domain.FilterCriteria) error {
			order = append(order, i)
			return nil
		})
	}

	s.UpdatePage(ctx, 2)
	s.UpdatePage(ctx, 3)

	assert.Equal(t, []int{0, 1, 2, 0, 1, 2}, order)
}

func TestStore_Subscribe_ReceivesNewValue(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(newCountingRepo())

	var got []domain.FilterCriteria
	s.Subscribe(func(_ context.Context, c domain.FilterCriteria) error {
		got = append(got, c)
		return nil
	})

	s.UpdateCategories(ctx, []string{"Shoes"})

	require.Len(t, got, 1)
	assert.Equal(t, []string{"Shoes"}, got[0].Categories)
	assert.True(t, got[0].Equal(s.Current(ctx)))
}

func TestStore_Subscribe_FailingSubscribersAreIsolated(t *testing.T) {
	ctx := context.Background()
	rec := &fakeRecorder{}
	s := newTestStore(newCountingRepo(), WithRecorder(rec))

	var calls []string
	s.Subscribe(func(context.Context, domain.FilterCriteria) error {
		calls = append(calls, "first")
		return errors.New("boom")
	})
	s.Subscribe(func(context.Context, domain.FilterCriteria) error {
		calls = append(calls, "second")
		panic("subscriber exploded")
	})
	s.Subscribe(func(context.Context, domain.FilterCriteria) error {
		calls = append(calls, "third")
		return nil
	})

	assert.NotPanics(t, func() { s.UpdateSearchText(ctx, "x") })
	assert.Equal(t, []string{"first", "second", "third"}, calls)
	assert.Equal(t, 2, rec.subscriberFail)
	assert.Equal(t, "x", s.Current(ctx).SearchText)
}

func TestStore_Subscribe_MutatingPayloadDoesNotAffectOthers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(newCountingRepo())

	s.Subscribe(func(_ context.Context, c domain.FilterCriteria) error {
		c.Categories[0] = "Hats"
		return nil
	})
	var seen []string
	s.Subscribe(func(_ context.Context, c domain.FilterCriteria) error {
		seen = c.Categories
		return nil
	})

	s.UpdateCategories(ctx, []string{"Shoes"})

	assert.Equal(t, []string{"Shoes"}, seen)
	assert.Equal(t, []string{"Shoes"}, s.Current(ctx).Categories)
}

func TestStore_Subscribe_Unsubscribe(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(newCountingRepo())

	var calls int
	unsubscribe := s.Subscribe(func(context.Context, domain.FilterCriteria) error {
		calls++
		return nil
	})

	s.UpdatePage(ctx, 2)
	unsubscribe()
	unsubscribe()
	s.UpdatePage(ctx, 3)

	assert.Equal(t, 1, calls)
}

func TestStore_Subscribe_ResetNotifies(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(newCountingRepo())

	var got []domain.FilterCriteria
	s.Subscribe(func(_ context.Context, c domain.FilterCriteria) error {
		got = append(got, c)
		return nil
	})

	s.Reset(ctx)

	require.Len(t, got, 1)
	assert.True(t, got[0].IsEmpty())
}

func TestStore_LogsPersistenceFailure(t *testing.T) {
	var buf bytes.Buffer
	repo := newCountingRepo()
	repo.failSave = errors.New("disk full")
	s := NewStore(repo, slog.New(slog.NewJSONHandler(&buf, nil)), WithKey("catalog_filter_state:abc"))

	s.UpdatePage(context.Background(), 2)

	out := buf.String()
	assert.Contains(t, out, "failed to persist filter state")
	assert.Contains(t, out, `"state_key":"catalog_filter_state:abc"`)
	assert.Contains(t, out, "disk full")
}
