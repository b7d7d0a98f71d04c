package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendloop/internal/catalog"
	"lendloop/internal/circulation"
	"lendloop/internal/membership"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

type recorded struct {
	Auth string
	Req  gqlRequest
}

type recorder struct {
	mu   sync.Mutex
	seen []recorded
}

func (r *recorder) all() []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recorded(nil), r.seen...)
}

// fakeServer answers every operation with the body registered for it.
func fakeServer(t *testing.T, replies map[string]string) (*httptest.Server, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req gqlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		rec.mu.Lock()
		rec.seen = append(rec.seen, recorded{Auth: r.Header.Get("Authorization"), Req: req})
		rec.mu.Unlock()
		body, ok := replies[req.OperationName]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestAllListingsDecodesPartialEntities(t *testing.T) {
	srv, seen := fakeServer(t, map[string]string{
		OpAllListings: `{"data":{"products":[
			{"id":"1","title":"Drill","price":25.5,"categories":["ELECTRONICS"],"owner":{"id":"u1","email":"a@b.co"}},
			{"id":"2","title":"Kayak"}
		]}}`,
	})
	c := NewGraphQLClient(srv.URL, staticToken("tok-123"))

	got, err := c.AllListings(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "Drill", *got[0].Title)
	assert.True(t, decimal.RequireFromString("25.5").Equal(*got[0].Price))
	assert.Equal(t, []catalog.Category{catalog.CategoryElectronics}, got[0].Categories)
	assert.Equal(t, "u1", *got[0].OwnerID)

	assert.Nil(t, got[1].Description, "absent fields stay absent")
	assert.Nil(t, got[1].Price)
	assert.Nil(t, got[1].Categories)

	calls := seen.all()
	require.Len(t, calls, 1)
	assert.Equal(t, "tok-123", calls[0].Auth, "token is sent raw")
	assert.Equal(t, OpAllListings, calls[0].Req.OperationName)
	assert.Contains(t, calls[0].Req.Query, "products")
}

func TestServerMessageIsKeptVerbatim(t *testing.T) {
	srv, _ := fakeServer(t, map[string]string{
		OpRentListing: `{"errors":[{"message":"Rent end date must be after start date","extensions":{"code":"BAD_USER_INPUT"}}],"data":null}`,
	})
	c := NewGraphQLClient(srv.URL, staticToken(""))

	from := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	_, err := c.RentListing(context.Background(), "42", from, from.AddDate(0, 0, -3))

	var re *RequestError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "Rent end date must be after start date", re.Error())
	assert.Equal(t, "BAD_USER_INPUT", re.Code)
	assert.Equal(t, OpRentListing, re.Op)
}

func TestUnexpectedStatus(t *testing.T) {
	srv, _ := fakeServer(t, map[string]string{})
	c := NewGraphQLClient(srv.URL, nil)

	err := c.DeleteListing(context.Background(), "42")

	var re *RequestError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusNotFound, re.StatusCode)
	assert.Equal(t, "unexpected status code: 404", re.Message)
}

func TestTransportFailure(t *testing.T) {
	srv, _ := fakeServer(t, map[string]string{})
	url := srv.URL
	srv.Close()

	_, err := NewGraphQLClient(url, nil).MyListings(context.Background())
	assert.True(t, IsRequestError(err))
}

func TestRentSendsPeriodAndDefaultsType(t *testing.T) {
	srv, seen := fakeServer(t, map[string]string{
		OpRentListing: `{"data":{"rentProduct":{"id":"o9","rentStart":"2025-06-10","rentEnd":"2025-06-12T00:00:00Z"}}}`,
	})
	c := NewGraphQLClient(srv.URL, nil)
	from := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 2)

	p, err := c.RentListing(context.Background(), "42", from, to)
	require.NoError(t, err)

	assert.Equal(t, "o9", p.ID)
	assert.Equal(t, circulation.OrderRent, *p.Type)
	assert.Equal(t, "42", *p.ListingID)
	assert.True(t, from.Equal(*p.RentStart))
	assert.True(t, to.Equal(*p.RentEnd))

	vars := seen.all()[0].Req.Variables
	assert.Equal(t, "42", vars["id"])
	assert.Equal(t, "2025-06-10T00:00:00Z", vars["from"])
	assert.Equal(t, "2025-06-12T00:00:00Z", vars["to"])
}

func TestHistoryQueriesDefaultOrderType(t *testing.T) {
	srv, _ := fakeServer(t, map[string]string{
		OpSoldOrders:   `{"data":{"ownerSoldBoughtOrders":[{"id":"o1","product":{"id":"1","title":"Drill"}}]}}`,
		OpLentOrders:   `{"data":{"ownerSoldRentedOrders":[{"id":"o2","rentStart":"2025-01-01","rentEnd":"2025-01-04"}]}}`,
		OpBoughtOrders: `{"data":{"buyerBoughtOrders":[{"id":"o3","type":"BUY"}]}}`,
	})
	c := NewGraphQLClient(srv.URL, nil)
	ctx := context.Background()

	sold, err := c.SoldOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, circulation.OrderBuy, *sold[0].Type)
	assert.Equal(t, "Drill", *sold[0].ListingTitle)

	lent, err := c.LentOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, circulation.OrderRent, *lent[0].Type)
	assert.NotNil(t, lent[0].RentEnd)

	bought, err := c.BoughtOrders(ctx)
	require.NoError(t, err)
	assert.Nil(t, bought[0].RentStart)
}

func TestMalformedDateIsRequestError(t *testing.T) {
	srv, _ := fakeServer(t, map[string]string{
		OpBorrowedOrders: `{"data":{"buyerRentedOrders":[{"id":"o2","rentStart":"yesterday"}]}}`,
	})

	_, err := NewGraphQLClient(srv.URL, nil).BorrowedOrders(context.Background())
	assert.True(t, IsRequestError(err))
}

func TestLoginAndCreate(t *testing.T) {
	srv, seen := fakeServer(t, map[string]string{
		OpLogin:         `{"data":{"login":"jwt-abc"}}`,
		OpCreateListing: `{"data":{"createProduct":{"id":"7","title":"Tent","owner":{"id":"u1"}}}}`,
	})
	c := NewGraphQLClient(srv.URL, nil)
	ctx := context.Background()

	token, err := c.Login(ctx, membership.Credentials{Email: "a@b.co", Password: "pw1"})
	require.NoError(t, err)
	assert.Equal(t, "jwt-abc", token)

	p, err := c.CreateListing(ctx, catalog.ListingInput{
		Title:     "Tent",
		Price:     decimal.NewFromInt(100),
		RentPrice: decimal.RequireFromString("7.50"),
		RentUnit:  catalog.RentUnitDay,
	})
	require.NoError(t, err)
	assert.Equal(t, "7", p.ID)

	input, ok := seen.all()[1].Req.Variables["input"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(100), input["price"], "prices travel as JSON numbers")
	assert.Equal(t, 7.5, input["rentPrice"])
	assert.Equal(t, []any{}, input["categories"])
}

func TestParseInstant(t *testing.T) {
	for _, s := range []string{"2025-03-05", "2025-03-05T00:00:00Z", "2025-03-05T00:00:00", "2025-03-05T00:00:00.000"} {
		got, err := ParseInstant(s)
		require.NoError(t, err, s)
		assert.True(t, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC).Equal(got), s)
	}
	_, err := ParseInstant("05/03/2025")
	assert.Error(t, err)
}

func TestRequestErrorUnwraps(t *testing.T) {
	cause := errors.New("boom")
	err := error(&RequestError{Op: OpLogin, Message: "nope", Err: cause})
	assert.ErrorIs(t, err, cause)
}
