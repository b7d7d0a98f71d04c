package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendloop/internal/catalog"
	"lendloop/internal/circulation"
	"lendloop/internal/store"
)

// countingFetcher returns fixed listings and counts its calls.
func countingFetcher(name Name, ids ...string) (Fetcher, *atomic.Int32) {
	var calls atomic.Int32
	return ListingFetcher(name, func(context.Context) ([]catalog.ListingPatch, error) {
		calls.Add(1)
		out := make([]catalog.ListingPatch, len(ids))
		for i, id := range ids {
			out[i] = catalog.ListingPatch{ID: id}
		}
		return out, nil
	}), &calls
}

type pending struct {
	reply chan []catalog.ListingPatch
}

// gatedFetcher blocks each call until the test releases it through the pending value
// delivered on the returned channel.
func gatedFetcher(name Name) (Fetcher, chan pending) {
	calls := make(chan pending)
	return ListingFetcher(name, func(ctx context.Context) ([]catalog.ListingPatch, error) {
		p := pending{reply: make(chan []catalog.ListingPatch)}
		calls <- p
		select {
		case res := <-p.reply:
			return res, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}), calls
}

func newTestOrchestrator() (*Orchestrator, *store.Repository) {
	repo := store.NewRepository()
	return NewOrchestrator(repo, nil), repo
}

func TestActivateSkipsFreshQueries(t *testing.T) {
	o, repo := newTestOrchestrator()
	f, calls := countingFetcher(AllListings, "1", "2")
	o.Register(AllListings, f)
	o.Define("all", AllListings)
	ctx := context.Background()

	require.NoError(t, o.Activate(ctx, "all"))
	require.NoError(t, o.Activate(ctx, "all"))

	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, o.Ready("all"))
	ids, _ := repo.QueryIDs(string(AllListings))
	assert.Equal(t, []string{"1", "2"}, ids)
}

func TestInvalidateNeverFetches(t *testing.T) {
	o, _ := newTestOrchestrator()
	f, calls := countingFetcher(MyListings, "1")
	o.Register(MyListings, f)
	o.Define("mine", MyListings)
	ctx := context.Background()

	require.NoError(t, o.Activate(ctx, "mine"))
	o.Invalidate(MyListings)

	assert.Equal(t, int32(1), calls.Load())
	st, _ := o.State(MyListings)
	assert.True(t, st.Stale)
	assert.Equal(t, StatusReady, st.Status)
	assert.False(t, o.Ready("mine"))

	got, err := o.Listings(MyListings)
	assert.ErrorIs(t, err, ErrStale)
	assert.Len(t, got, 1, "stale data is still readable")

	require.NoError(t, o.Activate(ctx, "mine"))
	assert.Equal(t, int32(2), calls.Load())
	st, _ = o.State(MyListings)
	assert.False(t, st.Stale)
}

func TestInvalidateUnknownIsNoop(t *testing.T) {
	o, _ := newTestOrchestrator()
	o.Invalidate("nope")
	_, ok := o.State("nope")
	assert.False(t, ok)
}

func TestActivateOnlyFetchesQueriesOfScope(t *testing.T) {
	o, _ := newTestOrchestrator()
	bought, boughtCalls := countingFetcher(BoughtOrders)
	sold, soldCalls := countingFetcher(SoldOrders)
	o.Register(BoughtOrders, bought)
	o.Register(SoldOrders, sold)
	o.Define("bought", BoughtOrders)
	o.Define("sold", SoldOrders)

	require.NoError(t, o.Activate(context.Background(), "bought"))

	assert.Equal(t, int32(1), boughtCalls.Load())
	assert.Equal(t, int32(0), soldCalls.Load())
	st, _ := o.State(SoldOrders)
	assert.Equal(t, StatusIdle, st.Status)
}

func TestLastIssuedFetchWins(t *testing.T) {
	o, repo := newTestOrchestrator()
	f, calls := gatedFetcher(AllListings)
	o.Register(AllListings, f)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = o.Refetch(ctx, AllListings) }()
	first := <-calls
	go func() { defer wg.Done(); _ = o.Refetch(ctx, AllListings) }()
	second := <-calls

	second.reply <- []catalog.ListingPatch{{ID: "new"}}
	first.reply <- []catalog.ListingPatch{{ID: "old"}}
	wg.Wait()

	ids, ok := repo.QueryIDs(string(AllListings))
	require.True(t, ok)
	assert.Equal(t, []string{"new"}, ids)
	st, _ := o.State(AllListings)
	assert.Equal(t, StatusReady, st.Status)
}

func TestSupersededFailureIsIgnored(t *testing.T) {
	o, repo := newTestOrchestrator()
	boom := errors.New("network down")
	var n atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})
	o.Register(AllListings, ListingFetcher(AllListings, func(context.Context) ([]catalog.ListingPatch, error) {
		if n.Add(1) == 1 {
			close(started)
			<-release
			return nil, boom
		}
		return []catalog.ListingPatch{{ID: "1"}}, nil
	}))
	ctx := context.Background()

	done := make(chan error)
	go func() { done <- o.Refetch(ctx, AllListings) }()
	<-started
	require.NoError(t, o.Refetch(ctx, AllListings))
	close(release)
	assert.NoError(t, <-done)

	st, _ := o.State(AllListings)
	assert.Equal(t, StatusReady, st.Status)
	assert.NoError(t, st.Err)
	ids, _ := repo.QueryIDs(string(AllListings))
	assert.Equal(t, []string{"1"}, ids)
}

func TestInvalidateDuringFetchKeepsStale(t *testing.T) {
	o, _ := newTestOrchestrator()
	f, calls := gatedFetcher(MyListings)
	o.Register(MyListings, f)
	o.Define("mine", MyListings)
	ctx := context.Background()

	done := make(chan error)
	go func() { done <- o.Activate(ctx, "mine") }()
	p := <-calls
	o.Invalidate(MyListings)
	p.reply <- []catalog.ListingPatch{{ID: "1"}}
	require.NoError(t, <-done)

	st, _ := o.State(MyListings)
	assert.Equal(t, StatusReady, st.Status)
	assert.True(t, st.Stale)
}

func TestLoadingQueryIsNotFetchedAgain(t *testing.T) {
	o, _ := newTestOrchestrator()
	f, calls := gatedFetcher(AllListings)
	o.Register(AllListings, f)
	o.Define("all", AllListings)
	ctx := context.Background()

	done := make(chan error)
	go func() { done <- o.Activate(ctx, "all") }()
	p := <-calls

	require.NoError(t, o.Activate(ctx, "all"), "a loading, fresh query is left alone")

	p.reply <- nil
	require.NoError(t, <-done)
	assert.True(t, o.Ready("all"))
}

func TestErroredQueryIsRetriedOnActivate(t *testing.T) {
	o, _ := newTestOrchestrator()
	boom := errors.New("boom")
	fail := true
	o.Register(LentOrders, OrderFetcher(LentOrders, func(context.Context) ([]circulation.OrderPatch, error) {
		if fail {
			return nil, boom
		}
		return []circulation.OrderPatch{{ID: "o1"}}, nil
	}))
	o.Define("lent", LentOrders)
	ctx := context.Background()

	err := o.Activate(ctx, "lent")
	require.ErrorIs(t, err, boom)
	st, _ := o.State(LentOrders)
	assert.Equal(t, StatusErrored, st.Status)
	_, err = o.Orders(LentOrders)
	assert.ErrorIs(t, err, boom)

	fail = false
	require.NoError(t, o.Activate(ctx, "lent"))
	orders, err := o.Orders(LentOrders)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "o1", orders[0].ID)
}

func TestUnknownScopeAndQuery(t *testing.T) {
	o, _ := newTestOrchestrator()
	assert.ErrorIs(t, o.Activate(context.Background(), "nope"), ErrUnknownScope)
	assert.ErrorIs(t, o.Refetch(context.Background(), "nope"), ErrUnknownQuery)

	o.Define("broken", "missing")
	assert.ErrorIs(t, o.Activate(context.Background(), "broken"), ErrUnknownQuery)
	assert.False(t, o.Ready("broken"))

	f, _ := countingFetcher(AllListings)
	o.Register(AllListings, f)
	_, err := o.Listings(AllListings)
	assert.ErrorIs(t, err, ErrNotLoaded)
}
