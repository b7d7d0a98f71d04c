// internal/clients/api.go
package clients

import (
	"context"
	"fmt"
	"time"

	"lendloop/internal/catalog"
	"lendloop/internal/circulation"
	"lendloop/internal/membership"
)

// API is the remote marketplace boundary. Every method is one named operation.
type API interface {
	Login(ctx context.Context, creds membership.Credentials) (string, error)
	Register(ctx context.Context, reg membership.Registration) (*membership.User, error)
	CurrentUser(ctx context.Context) (*membership.User, error)

	AllListings(ctx context.Context) ([]catalog.ListingPatch, error)
	MyListings(ctx context.Context) ([]catalog.ListingPatch, error)
	Listing(ctx context.Context, id string) (catalog.ListingPatch, error)
	CreateListing(ctx context.Context, in catalog.ListingInput) (catalog.ListingPatch, error)
	UpdateListing(ctx context.Context, id string, in catalog.ListingInput) (catalog.ListingPatch, error)
	DeleteListing(ctx context.Context, id string) error

	BuyListing(ctx context.Context, id string) (circulation.OrderPatch, error)
	RentListing(ctx context.Context, id string, from, to time.Time) (circulation.OrderPatch, error)
	BoughtOrders(ctx context.Context) ([]circulation.OrderPatch, error)
	SoldOrders(ctx context.Context) ([]circulation.OrderPatch, error)
	BorrowedOrders(ctx context.Context) ([]circulation.OrderPatch, error)
	LentOrders(ctx context.Context) ([]circulation.OrderPatch, error)
}

// TokenSource yields the auth token attached to every request. An empty token is sent as-is.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// RequestError is a failed remote operation. Message is readable text, taken verbatim
// from the server when it supplied one.
type RequestError struct {
	Op         string
	Message    string
	Code       string
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	return e.Message
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func transportError(op string, err error) *RequestError {
	return &RequestError{
		Op:      op,
		Message: fmt.Sprintf("could not reach the marketplace: %v", err),
		Err:     err,
	}
}
