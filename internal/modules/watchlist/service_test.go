package watchlist

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aristath/finfolio/internal/clientdata"
	"github.com/aristath/finfolio/internal/database"
	"github.com/aristath/finfolio/internal/domain"
	"github.com/aristath/finfolio/internal/storage"
	testutil "github.com/aristath/finfolio/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(overviews domain.OverviewProvider) *Service {
	return NewService(storage.NewMemoryStore(), overviews, nil, 0, zerolog.Nop())
}

func symbolsOf(items []domain.WatchlistItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Symbol)
	}
	return out
}

type recordingListener struct {
	mu      sync.Mutex
	removed []string
}

func (l *recordingListener) ItemRemoved(ownerID, symbol string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.removed = append(l.removed, ownerID+"/"+symbol)
}

func TestAdd_UsesCompanyOverview(t *testing.T) {
	overviews := testutil.NewMockOverviewProvider()
	overviews.SetOverview(domain.CompanyOverview{Symbol: "MSFT", Name: "Microsoft Corporation", Sector: "TECHNOLOGY"})
	svc := newTestService(overviews)

	item, err := svc.Add(context.Background(), "u1", " msft ")
	require.NoError(t, err)

	assert.Equal(t, "MSFT", item.Symbol)
	assert.Equal(t, "Microsoft Corporation", item.DisplayName)
	assert.Equal(t, "TECHNOLOGY", item.Sector)
	assert.NotEmpty(t, item.ID)
	assert.False(t, item.AddedDate.IsZero())
}

func TestAdd_DuplicateIsConflictAndLeavesListUnchanged(t *testing.T) {
	overviews := testutil.NewMockOverviewProvider()
	overviews.SetOverview(domain.CompanyOverview{Symbol: "AAPL", Name: "Apple Inc", Sector: "TECHNOLOGY"})
	overviews.SetOverview(domain.CompanyOverview{Symbol: "IBM", Name: "IBM", Sector: "TECHNOLOGY"})
	svc := newTestService(overviews)
	ctx := context.Background()

	first, err := svc.Add(ctx, "u1", "AAPL")
	require.NoError(t, err)
	_, err = svc.Add(ctx, "u1", "IBM")
	require.NoError(t, err)
	before, err := svc.List(ctx, "u1")
	require.NoError(t, err)

	_, err = svc.Add(ctx, "u1", "aapl")
	assert.ErrorIs(t, err, domain.ErrConflict)

	after, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, first.ID, after[0].ID)
	assert.Equal(t, 2, overviews.Calls(), "duplicate add must not look up the overview")
}

func TestAdd_SameSymbolDifferentOwners(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	_, err := svc.Add(ctx, "u1", "AAPL")
	require.NoError(t, err)
	_, err = svc.Add(ctx, "u2", "AAPL")
	require.NoError(t, err)
}

func TestAdd_OverviewFailureDegrades(t *testing.T) {
	overviews := testutil.NewMockOverviewProvider()
	overviews.SetError(domain.ErrUpstreamRateLimited)
	svc := newTestService(overviews)

	item, err := svc.Add(context.Background(), "u1", "TSLA")
	require.NoError(t, err)
	assert.Equal(t, "TSLA", item.DisplayName)
	assert.Equal(t, "Unknown", item.Sector)
}

func TestAdd_UnknownSymbolIsNotFound(t *testing.T) {
	svc := newTestService(testutil.NewMockOverviewProvider())
	ctx := context.Background()

	_, err := svc.Add(ctx, "u1", "ZZZZ")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	items, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestAdd_Validation(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	_, err := svc.Add(ctx, "", "AAPL")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Add(ctx, "u1", "not a ticker")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAdd_ConcurrentDuplicatesOnlyOneWins(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Add(ctx, "u1", "NVDA")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrConflict)
	}
	assert.Equal(t, 1, succeeded)

	items, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestRemove_MissingIsNotFoundAndLeavesListUnchanged(t *testing.T) {
	svc := newTestService(nil)
	listener := &recordingListener{}
	svc.AddRemovalListener(listener)
	ctx := context.Background()

	_, err := svc.Add(ctx, "u1", "AAPL")
	require.NoError(t, err)

	err = svc.Remove(ctx, "u1", "MSFT")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	items, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, symbolsOf(items))
	assert.Empty(t, listener.removed)
}

func TestRemove_NotifiesListeners(t *testing.T) {
	svc := newTestService(nil)
	listener := &recordingListener{}
	svc.AddRemovalListener(listener)
	ctx := context.Background()

	for _, s := range []string{"AAPL", "MSFT", "IBM"} {
		_, err := svc.Add(ctx, "u1", s)
		require.NoError(t, err)
	}

	require.NoError(t, svc.Remove(ctx, "u1", "msft"))

	items, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "IBM"}, symbolsOf(items))
	assert.Equal(t, []string{"u1/MSFT"}, listener.removed)
}

func TestOverviewCache_SurvivesServiceRestart(t *testing.T) {
	db := testutil.NewTestDB(t, database.NameClientData)
	cache := clientdata.NewRepository(db.Conn())
	store := storage.NewMemoryStore()

	overviews := testutil.NewMockOverviewProvider()
	overviews.SetOverview(domain.CompanyOverview{Symbol: "IBM", Name: "International Business Machines", Sector: "TECHNOLOGY"})

	first := NewService(store, overviews, cache, 0, zerolog.Nop())
	_, err := first.Add(context.Background(), "u1", "IBM")
	require.NoError(t, err)
	require.Equal(t, 1, overviews.Calls())

	overviews.SetError(errors.New("should not be called"))
	second := NewService(store, overviews, cache, 0, zerolog.Nop())
	item, err := second.Add(context.Background(), "u2", "IBM")
	require.NoError(t, err)

	assert.Equal(t, "International Business Machines", item.DisplayName)
	assert.Equal(t, 1, overviews.Calls())
}
