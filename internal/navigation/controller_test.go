package navigation

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendloop/internal/circulation"
	"lendloop/internal/query"
	"lendloop/internal/store"
)

type recordingActivator struct {
	mu     sync.Mutex
	scopes []query.Scope
}

func (r *recordingActivator) Activate(_ context.Context, scope query.Scope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scopes = append(r.scopes, scope)
	return nil
}

func (r *recordingActivator) activated() []query.Scope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]query.Scope(nil), r.scopes...)
}

type fixedAuth bool

func (f fixedAuth) Authenticated(context.Context) bool { return bool(f) }

func TestHistoryActivatesOnlyCurrentTab(t *testing.T) {
	repo := store.NewRepository()
	o := query.NewOrchestrator(repo, nil)
	calls := map[query.Name]int{}
	var mu sync.Mutex
	for _, name := range []query.Name{
		query.AllListings, query.MyListings,
		query.BoughtOrders, query.SoldOrders,
		query.BorrowedOrders, query.LentOrders,
	} {
		o.Register(name, query.OrderFetcher(name, func(context.Context) ([]circulation.OrderPatch, error) {
			mu.Lock()
			calls[name]++
			mu.Unlock()
			return nil, nil
		}))
	}
	DefineRoutes(o)
	c := NewController(o, fixedAuth(true), nil)
	ctx := context.Background()

	require.NoError(t, c.SetView(ctx, ViewHistory))
	assert.Equal(t, map[query.Name]int{query.BoughtOrders: 1}, calls)
	assert.Equal(t, TabBought, c.Tab())

	require.NoError(t, c.SetHistoryTab(ctx, TabLent))
	assert.Equal(t, map[query.Name]int{query.BoughtOrders: 1, query.LentOrders: 1}, calls)

	require.NoError(t, c.SetHistoryTab(ctx, TabBought))
	assert.Equal(t, 1, calls[query.BoughtOrders], "fresh tab is not refetched")
}

func TestIntentIsConsumedOnce(t *testing.T) {
	a := &recordingActivator{}
	c := NewController(a, fixedAuth(true), nil)
	ctx := context.Background()

	c.OnNavigationIntent(LandOn(ViewHistory, TabBorrowed))
	_, ok := c.Pending()
	require.True(t, ok)

	v, err := c.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, ViewHistory, v)
	assert.Equal(t, TabBorrowed, c.Tab())

	require.NoError(t, c.SetView(ctx, ViewAllListings))

	v, err = c.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, ViewAllListings, v, "a re-render does not replay the intent")
	assert.Equal(t, []query.Scope{"HISTORY/BORROWED", "ALL_LISTINGS"}, a.activated())

	_, ok = c.Pending()
	assert.False(t, ok)
}

func TestIntentWithoutTab(t *testing.T) {
	a := &recordingActivator{}
	c := NewController(a, nil, nil)

	c.OnNavigationIntent(LandOn(ViewMyListings, TabSold))
	v, err := c.Sync(context.Background())

	require.NoError(t, err)
	assert.Equal(t, ViewMyListings, v)
	assert.Equal(t, []query.Scope{"MY_LISTINGS"}, a.activated())
}

func TestGuardBlocksUnauthenticated(t *testing.T) {
	a := &recordingActivator{}
	c := NewController(a, fixedAuth(false), nil)
	ctx := context.Background()

	assert.ErrorIs(t, c.SetView(ctx, ViewMyListings), ErrUnauthenticated)
	assert.ErrorIs(t, c.SetHistoryTab(ctx, TabSold), ErrUnauthenticated)
	assert.Empty(t, a.activated())
	assert.Equal(t, ViewAllListings, c.View())
}

func TestUnknownViewAndTab(t *testing.T) {
	c := NewController(&recordingActivator{}, nil, nil)
	assert.ErrorIs(t, c.SetView(context.Background(), "SETTINGS"), ErrUnknownView)
	assert.ErrorIs(t, c.SetHistoryTab(context.Background(), "RETURNED"), ErrUnknownTab)
}

func TestScopeFor(t *testing.T) {
	assert.Equal(t, query.Scope("HISTORY/BOUGHT"), ScopeFor(ViewHistory, ""))
	assert.Equal(t, query.Scope("MY_LISTINGS"), ScopeFor(ViewMyListings, TabLent))
	assert.Len(t, DefaultRoutes, 6)
}
