package mutation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendloop/internal/catalog"
	"lendloop/internal/circulation"
	"lendloop/internal/clients"
	"lendloop/internal/navigation"
	"lendloop/internal/query"
	"lendloop/internal/store"
)

type fakeAPI struct {
	mu    sync.Mutex
	calls []string

	create func(catalog.ListingInput) (catalog.ListingPatch, error)
	update func(string, catalog.ListingInput) (catalog.ListingPatch, error)
	del    func(string) error
	buy    func(string) (circulation.OrderPatch, error)
	rent   func(string, time.Time, time.Time) (circulation.OrderPatch, error)
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) CreateListing(_ context.Context, in catalog.ListingInput) (catalog.ListingPatch, error) {
	f.record("create")
	return f.create(in)
}

func (f *fakeAPI) UpdateListing(_ context.Context, id string, in catalog.ListingInput) (catalog.ListingPatch, error) {
	f.record("update")
	return f.update(id, in)
}

func (f *fakeAPI) DeleteListing(_ context.Context, id string) error {
	f.record("delete")
	return f.del(id)
}

func (f *fakeAPI) BuyListing(_ context.Context, id string) (circulation.OrderPatch, error) {
	f.record("buy")
	return f.buy(id)
}

func (f *fakeAPI) RentListing(_ context.Context, id string, from, to time.Time) (circulation.OrderPatch, error) {
	f.record("rent")
	return f.rent(id, from, to)
}

type recordingInvalidator struct {
	names []query.Name
}

func (r *recordingInvalidator) Invalidate(name query.Name) { r.names = append(r.names, name) }

func ptr[T any](v T) *T { return &v }

func seeded(t *testing.T) *store.Repository {
	t.Helper()
	repo := store.NewRepository()
	repo.LoadListings(string(query.AllListings), []catalog.ListingPatch{{ID: "41"}, {ID: "42"}, {ID: "43"}})
	repo.LoadListings(string(query.MyListings), []catalog.ListingPatch{{ID: "42"}, {ID: "44"}})
	return repo
}

func TestDeleteRemovesFromEntityMapAndBothQueries(t *testing.T) {
	repo := seeded(t)
	api := &fakeAPI{del: func(string) error { return nil }}
	c := NewCoordinator(api, repo, &recordingInvalidator{}, nil)

	_, err := c.Delete(context.Background(), "42")
	require.NoError(t, err)

	_, ok := repo.Listing("42")
	assert.False(t, ok)
	all, _ := repo.QueryIDs(string(query.AllListings))
	assert.Equal(t, []string{"41", "43"}, all)
	mine, _ := repo.QueryIDs(string(query.MyListings))
	assert.Equal(t, []string{"44"}, mine)
}

func TestDeleteKeepsOrderWithSameID(t *testing.T) {
	repo := seeded(t)
	buy := circulation.OrderBuy
	repo.LoadOrders(string(query.BoughtOrders), []circulation.OrderPatch{{ID: "42", Type: &buy}})
	api := &fakeAPI{del: func(string) error { return nil }}
	c := NewCoordinator(api, repo, &recordingInvalidator{}, nil)

	_, err := c.Delete(context.Background(), "42")
	require.NoError(t, err)

	_, ok := repo.Order("42")
	assert.True(t, ok)
	bought, _ := repo.QueryIDs(string(query.BoughtOrders))
	assert.Equal(t, []string{"42"}, bought)
	assert.Len(t, repo.Orders(string(query.BoughtOrders)), 1)
}

func TestDeleteFailureLeavesCache(t *testing.T) {
	repo := seeded(t)
	api := &fakeAPI{del: func(string) error {
		return &clients.RequestError{Op: clients.OpDeleteListing, Message: "You are not the owner of this product"}
	}}
	c := NewCoordinator(api, repo, &recordingInvalidator{}, nil)

	_, err := c.Delete(context.Background(), "42")

	require.EqualError(t, err, "You are not the owner of this product")
	_, ok := repo.Listing("42")
	assert.True(t, ok)
	mine, _ := repo.QueryIDs(string(query.MyListings))
	assert.Equal(t, []string{"42", "44"}, mine)
}

func TestUpdatePutsReturnedPatch(t *testing.T) {
	repo := seeded(t)
	repo.PutListing(catalog.ListingPatch{ID: "42", Description: ptr("Old")})
	api := &fakeAPI{update: func(id string, in catalog.ListingInput) (catalog.ListingPatch, error) {
		return catalog.ListingPatch{ID: id, Title: ptr(in.Title), Price: ptr(in.Price)}, nil
	}}
	c := NewCoordinator(api, repo, &recordingInvalidator{}, nil)

	out, err := c.Update(context.Background(), "42", catalog.ListingInput{Title: "Drill", Price: decimal.NewFromInt(30)})
	require.NoError(t, err)

	got, _ := repo.Listing("42")
	assert.Equal(t, "Drill", got.Title)
	assert.Equal(t, "Old", got.Description, "fields the server did not return survive")
	assert.Equal(t, got, *out.Listing)
	assert.Nil(t, out.Redirect)
}

func TestCreateInvalidatesMyListingsOnly(t *testing.T) {
	repo := store.NewRepository()
	inv := &recordingInvalidator{}
	api := &fakeAPI{create: func(in catalog.ListingInput) (catalog.ListingPatch, error) {
		return catalog.ListingPatch{ID: "99", Title: ptr(in.Title)}, nil
	}}
	c := NewCoordinator(api, repo, inv, nil)

	out, err := c.Create(context.Background(), catalog.ListingInput{Title: "Tent"})
	require.NoError(t, err)

	assert.Equal(t, []query.Name{query.MyListings}, inv.names)
	assert.Equal(t, &navigation.Intent{View: navigation.ViewMyListings}, out.Redirect)
	_, cached := repo.Listing("99")
	assert.False(t, cached, "create does not insert into the cache")
}

func TestBuyStoresOrderAndRedirects(t *testing.T) {
	repo := seeded(t)
	inv := &recordingInvalidator{}
	buy := circulation.OrderBuy
	api := &fakeAPI{buy: func(id string) (circulation.OrderPatch, error) {
		return circulation.OrderPatch{ID: "o1", ListingID: ptr(id), Type: &buy}, nil
	}}
	c := NewCoordinator(api, repo, inv, nil)

	out, err := c.Buy(context.Background(), "42")
	require.NoError(t, err)

	assert.Equal(t, []query.Name{query.BoughtOrders}, inv.names)
	assert.Equal(t, &navigation.Intent{View: navigation.ViewHistory, Tab: navigation.TabBought}, out.Redirect)
	require.NotNil(t, out.Order)
	assert.Equal(t, "42", out.Order.ListingID)
	assert.Nil(t, out.Listing)
	all, _ := repo.QueryIDs(string(query.AllListings))
	assert.Contains(t, all, "42", "buying does not patch listing state")
}

func TestRentRequiresBothDates(t *testing.T) {
	api := &fakeAPI{}
	c := NewCoordinator(api, store.NewRepository(), &recordingInvalidator{}, nil)
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err := c.Rent(context.Background(), "42", &day, nil)
	assert.ErrorIs(t, err, ErrRentDatesRequired)
	_, err = c.Rent(context.Background(), "42", nil, &day)
	assert.ErrorIs(t, err, ErrRentDatesRequired)
	assert.Empty(t, api.calls)
}

func TestRentEndBeforeStartIsDispatched(t *testing.T) {
	inv := &recordingInvalidator{}
	const serverText = "Rent end date must be after start date"
	api := &fakeAPI{rent: func(string, time.Time, time.Time) (circulation.OrderPatch, error) {
		return circulation.OrderPatch{}, &clients.RequestError{Op: clients.OpRentListing, Message: serverText}
	}}
	c := NewCoordinator(api, store.NewRepository(), inv, nil)
	from := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, -2)

	_, err := c.Rent(context.Background(), "42", &from, &to)

	assert.Equal(t, []string{"rent"}, api.calls)
	var re *clients.RequestError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, serverText, re.Error())
	assert.Empty(t, inv.names)
	assert.False(t, c.InFlight(KindRent))
}

func TestRentSuccess(t *testing.T) {
	repo := store.NewRepository()
	inv := &recordingInvalidator{}
	api := &fakeAPI{rent: func(id string, from, to time.Time) (circulation.OrderPatch, error) {
		rent := circulation.OrderRent
		return circulation.OrderPatch{ID: "o2", ListingID: &id, Type: &rent, RentStart: &from, RentEnd: &to}, nil
	}}
	c := NewCoordinator(api, repo, inv, nil)
	from := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 3)

	out, err := c.Rent(context.Background(), "42", &from, &to)
	require.NoError(t, err)

	assert.Equal(t, []query.Name{query.BorrowedOrders}, inv.names)
	assert.Equal(t, navigation.TabBorrowed, out.Redirect.Tab)
	stored, ok := repo.Order("o2")
	require.True(t, ok)
	assert.NoError(t, stored.Validate())
}

func TestSecondDispatchOfSameKindIsRefused(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	api := &fakeAPI{
		buy: func(string) (circulation.OrderPatch, error) {
			close(started)
			<-release
			return circulation.OrderPatch{ID: "o1"}, nil
		},
		del: func(string) error { return nil },
	}
	c := NewCoordinator(api, store.NewRepository(), &recordingInvalidator{}, nil)
	ctx := context.Background()

	done := make(chan error)
	go func() {
		_, err := c.Buy(ctx, "42")
		done <- err
	}()
	<-started

	assert.True(t, c.InFlight(KindBuy))
	_, err := c.Buy(ctx, "43")
	assert.ErrorIs(t, err, ErrInFlight)
	_, err = c.Delete(ctx, "43")
	assert.NoError(t, err, "other kinds are independent")

	close(release)
	require.NoError(t, <-done)
	assert.False(t, c.InFlight(KindBuy))
}

func TestPlainErrorsBecomeRequestErrors(t *testing.T) {
	cause := errors.New("connection reset")
	api := &fakeAPI{create: func(catalog.ListingInput) (catalog.ListingPatch, error) {
		return catalog.ListingPatch{}, cause
	}}
	c := NewCoordinator(api, store.NewRepository(), &recordingInvalidator{}, nil)

	_, err := c.Create(context.Background(), catalog.ListingInput{})

	assert.True(t, clients.IsRequestError(err))
	assert.ErrorIs(t, err, cause)
}
