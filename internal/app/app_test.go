package app

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendloop/internal/catalog"
	"lendloop/internal/circulation"
	"lendloop/internal/clients"
	"lendloop/internal/config"
	"lendloop/internal/membership"
	"lendloop/internal/mockapi"
	"lendloop/internal/navigation"
	"lendloop/internal/query"
	"lendloop/internal/session"
	"lendloop/internal/wizard"
)

func serve(t *testing.T, srv *mockapi.Server) string {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL + "/graphql"
}

// signedIn wires a client with its own token slot and signs a fresh account in.
func signedIn(t *testing.T, endpoint, email string) *App {
	t.Helper()
	ctx := context.Background()
	a := Wire(endpoint, session.NewMemoryStore(), nil)

	_, err := a.Session.Register(ctx, membership.Registration{
		Email:           email,
		Password:        "secret1",
		ConfirmPassword: "secret1",
		FirstName:       "Test",
		LastName:        "User",
		Address:         "1 Main St",
		PhoneNumber:     "01234567890",
	})
	require.NoError(t, err)
	require.NoError(t, a.Session.Login(ctx, membership.Credentials{Email: email, Password: "secret1"}))
	return a
}

func listingInput(title string) catalog.ListingInput {
	return catalog.ListingInput{
		Title:       title,
		Description: "works fine",
		Categories:  []catalog.Category{catalog.CategorySportingGoods},
		Price:       decimal.NewFromInt(100),
		RentPrice:   decimal.NewFromInt(5),
		RentUnit:    catalog.RentUnitWeek,
	}
}

func ids(ls []catalog.Listing) []string {
	out := make([]string, 0, len(ls))
	for _, l := range ls {
		out = append(out, l.ID)
	}
	return out
}

func TestViewsRequireSignIn(t *testing.T) {
	a := Wire(serve(t, mockapi.New()), session.NewMemoryStore(), nil)

	_, err := a.Navigate(context.Background(), navigation.LandOn(navigation.ViewAllListings, ""))
	assert.ErrorIs(t, err, navigation.ErrUnauthenticated)
}

func TestWizardCreateLandsOnMyListings(t *testing.T) {
	a := signedIn(t, serve(t, mockapi.New()), "ana@example.com")
	ctx := context.Background()

	view, err := a.Navigate(ctx, navigation.LandOn(navigation.ViewAllListings, ""))
	require.NoError(t, err)
	assert.Equal(t, navigation.ViewAllListings, view)

	w := a.NewWizard()
	w.SetTitle("Tennis racket")
	require.NoError(t, w.Next())
	w.SetCategories(catalog.CategorySportingGoods)
	require.NoError(t, w.Next())
	w.SetDescription("Strung last month")
	require.NoError(t, w.Next())
	require.NoError(t, w.SetField(wizard.FieldPrice, "80"))
	require.NoError(t, w.SetField(wizard.FieldRentPrice, "3.50"))
	require.NoError(t, w.SetField(wizard.FieldRentUnit, "DAY"))
	require.NoError(t, w.Next())
	assert.Equal(t, wizard.StepSummary, w.Step())

	intent, err := w.Submit(ctx)
	require.NoError(t, err)
	view, err = a.Navigate(ctx, intent)
	require.NoError(t, err)
	assert.Equal(t, navigation.ViewMyListings, view)

	mine, err := a.Queries.Listings(query.MyListings)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Tennis racket", mine[0].Title)
	assert.True(t, decimal.RequireFromString("3.5").Equal(mine[0].RentPrice))

	all, err := a.Queries.Listings(query.AllListings)
	require.NoError(t, err)
	assert.Empty(t, all, "creating does not touch the all-listings cache")
}

func TestDeleteCleansEveryListingQuery(t *testing.T) {
	endpoint := serve(t, mockapi.New())
	a := signedIn(t, endpoint, "ana@example.com")
	ctx := context.Background()

	keep, err := a.Mutations.Create(ctx, listingInput("Bike"))
	require.NoError(t, err)
	doomed, err := a.Mutations.Create(ctx, listingInput("Skis"))
	require.NoError(t, err)

	_, err = a.Navigate(ctx, navigation.LandOn(navigation.ViewAllListings, ""))
	require.NoError(t, err)
	_, err = a.Navigate(ctx, navigation.LandOn(navigation.ViewMyListings, ""))
	require.NoError(t, err)

	_, err = a.Mutations.Delete(ctx, doomed.Listing.ID)
	require.NoError(t, err)

	all, err := a.Queries.Listings(query.AllListings)
	require.NoError(t, err)
	assert.Equal(t, []string{keep.Listing.ID}, ids(all))
	mine, err := a.Queries.Listings(query.MyListings)
	require.NoError(t, err)
	assert.Equal(t, []string{keep.Listing.ID}, ids(mine))
	_, cached := a.Repo.Listing(doomed.Listing.ID)
	assert.False(t, cached)
}

func TestDeleteOfForeignListingKeepsCache(t *testing.T) {
	endpoint := serve(t, mockapi.New())
	ana := signedIn(t, endpoint, "ana@example.com")
	bo := signedIn(t, endpoint, "bo@example.com")
	ctx := context.Background()

	created, err := ana.Mutations.Create(ctx, listingInput("Bike"))
	require.NoError(t, err)
	_, err = bo.Navigate(ctx, navigation.LandOn(navigation.ViewAllListings, ""))
	require.NoError(t, err)

	_, err = bo.Mutations.Delete(ctx, created.Listing.ID)
	assert.EqualError(t, err, "You are not the owner of this product")

	all, err := bo.Queries.Listings(query.AllListings)
	require.NoError(t, err)
	assert.Equal(t, []string{created.Listing.ID}, ids(all))
}

func TestBuyLandsOnBoughtHistory(t *testing.T) {
	endpoint := serve(t, mockapi.New())
	ana := signedIn(t, endpoint, "ana@example.com")
	bo := signedIn(t, endpoint, "bo@example.com")
	ctx := context.Background()

	created, err := ana.Mutations.Create(ctx, listingInput("Bike"))
	require.NoError(t, err)

	out, err := bo.Mutations.Buy(ctx, created.Listing.ID)
	require.NoError(t, err)
	view, err := bo.Follow(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, navigation.ViewHistory, view)
	assert.Equal(t, navigation.TabBought, bo.Nav.Tab())

	bought, err := bo.Queries.Orders(query.BoughtOrders)
	require.NoError(t, err)
	require.Len(t, bought, 1)
	assert.Equal(t, circulation.OrderBuy, bought[0].Type)
	assert.Equal(t, "Bike", bought[0].ListingTitle)

	_, loaded := bo.Queries.State(query.SoldOrders)
	assert.True(t, loaded, "registered but never fetched")
	_, err = bo.Queries.Orders(query.SoldOrders)
	assert.ErrorIs(t, err, query.ErrNotLoaded)
}

func TestRentalFormLeavesOrderingToServer(t *testing.T) {
	endpoint := serve(t, mockapi.New())
	ana := signedIn(t, endpoint, "ana@example.com")
	bo := signedIn(t, endpoint, "bo@example.com")
	ctx := context.Background()

	created, err := ana.Mutations.Create(ctx, listingInput("Kayak"))
	require.NoError(t, err)

	form := bo.RentalForm(created.Listing.ID)
	require.NoError(t, form.SetField(wizard.FieldFrom, "2025-03-10"))
	require.NoError(t, form.SetField(wizard.FieldTo, "2025-03-05"))
	_, err = form.Submit(ctx)
	assert.EqualError(t, err, "Rent end date must be after start date")
	assert.True(t, clients.IsRequestError(err))

	require.NoError(t, form.SetField(wizard.FieldTo, "2025-03-15"))
	intent, err := form.Submit(ctx)
	require.NoError(t, err)
	view, err := bo.Navigate(ctx, intent)
	require.NoError(t, err)
	assert.Equal(t, navigation.ViewHistory, view)

	borrowed, err := bo.Queries.Orders(query.BorrowedOrders)
	require.NoError(t, err)
	require.Len(t, borrowed, 1)
	assert.Equal(t, time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC), *borrowed[0].RentEnd)
}

func TestEditFormLoadsMissingListing(t *testing.T) {
	endpoint := serve(t, mockapi.New())
	a := signedIn(t, endpoint, "ana@example.com")
	ctx := context.Background()

	created, err := a.Mutations.Create(ctx, listingInput("Bike"))
	require.NoError(t, err)
	_, cached := a.Repo.Listing(created.Listing.ID)
	require.False(t, cached, "create does not insert into the cache")

	form, err := a.EditForm(ctx, created.Listing.ID)
	require.NoError(t, err)
	require.NoError(t, form.SetField(wizard.FieldTitle, "Road bike"))
	updated, err := form.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Road bike", updated.Title)

	cachedListing, ok := a.Repo.Listing(created.Listing.ID)
	require.True(t, ok)
	assert.Equal(t, "Road bike", cachedListing.Title)
	assert.Equal(t, "works fine", cachedListing.Description)
}

// listingSpy reports each all-listings read after it has been resolved.
type listingSpy struct {
	catalog.Service
	served chan struct{}
}

func (s *listingSpy) ListListings(ctx context.Context) ([]*catalog.Listing, error) {
	ls, err := s.Service.ListListings(ctx)
	s.served <- struct{}{}
	return ls, err
}

func TestSlowRefetchIsSuperseded(t *testing.T) {
	cat := catalog.NewService()
	spy := &listingSpy{Service: cat, served: make(chan struct{}, 8)}
	srv := mockapi.NewServer(spy, circulation.NewService(cat, nil), membership.NewService())
	a := signedIn(t, serve(t, srv), "ana@example.com")
	ctx := context.Background()

	_, err := a.Mutations.Create(ctx, listingInput("Tent"))
	require.NoError(t, err)

	srv.Faults().Inject(mockapi.Fault{
		Type:    mockapi.FaultLatency,
		Target:  clients.OpAllListings,
		Latency: 300 * time.Millisecond,
		Times:   1,
	})
	slow := make(chan error, 1)
	go func() { slow <- a.Queries.Refetch(ctx, query.AllListings) }()
	<-spy.served

	_, err = a.Mutations.Create(ctx, listingInput("Kayak"))
	require.NoError(t, err)
	require.NoError(t, a.Queries.Refetch(ctx, query.AllListings))
	require.NoError(t, <-slow)

	all, err := a.Queries.Listings(query.AllListings)
	require.NoError(t, err)
	assert.Len(t, all, 2, "the older, slower response must not overwrite the newer one")
}

func TestTransientFailureIsRetriedOnNextActivation(t *testing.T) {
	srv := mockapi.New()
	a := signedIn(t, serve(t, srv), "ana@example.com")
	ctx := context.Background()

	srv.Faults().Inject(mockapi.Fault{Type: mockapi.FaultFailure, Target: clients.OpAllListings, Times: 1})
	_, err := a.Navigate(ctx, navigation.LandOn(navigation.ViewAllListings, ""))
	assert.ErrorContains(t, err, mockapi.DefaultFailureMessage)
	state, _ := a.Queries.State(query.AllListings)
	assert.Equal(t, query.StatusErrored, state.Status)

	_, err = a.Navigate(ctx, navigation.LandOn(navigation.ViewAllListings, ""))
	require.NoError(t, err)
	assert.True(t, a.Queries.Ready(navigation.ScopeFor(navigation.ViewAllListings, "")))
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	s, closeFn, err := OpenStore(ctx, &config.Config{Session: config.SessionConfig{Backend: "memory"}})
	require.NoError(t, err)
	assert.IsType(t, &session.MemoryStore{}, s)
	require.NoError(t, closeFn())

	_, _, err = OpenStore(ctx, &config.Config{Session: config.SessionConfig{Backend: "file", Home: t.TempDir()}})
	assert.ErrorIs(t, err, ErrPassphraseRequired)

	s, _, err = OpenStore(ctx, &config.Config{Session: config.SessionConfig{Backend: "file", Home: t.TempDir(), Passphrase: "pw"}})
	require.NoError(t, err)
	assert.IsType(t, &session.FileStore{}, s)

	mr := miniredis.RunT(t)
	s, closeFn, err = OpenStore(ctx, &config.Config{Session: config.SessionConfig{Backend: "redis", RedisAddr: mr.Addr(), Profile: "p:"}})
	require.NoError(t, err)
	require.NoError(t, s.SetToken(ctx, "tok"))
	assert.True(t, mr.Exists("lendloop:p:authToken"))
	require.NoError(t, closeFn())

	_, _, err = OpenStore(ctx, &config.Config{Session: config.SessionConfig{Backend: "etcd"}})
	assert.EqualError(t, err, `unknown session backend "etcd"`)
}
