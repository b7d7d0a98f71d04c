// internal/circulation/service.go
package circulation

import (
	"context"
	"errors"
	"time"

	"lendloop/internal/catalog"
)

var (
	ErrOwnListing       = errors.New("You cannot buy or rent your own product")
	ErrListingSold      = errors.New("Product has already been sold")
	ErrRentEndNotAfter  = errors.New("Rent end date must be after start date")
	ErrRentPeriodBooked = errors.New("Product is already rented for the selected dates")
)

// Party identifies the account placing an order.
type Party struct {
	ID    string
	Email string
}

// ListingLookup resolves the listing an order is placed against.
type ListingLookup interface {
	GetListing(ctx context.Context, id string) (*catalog.Listing, error)
}

// Service records buy and rent orders and answers the four history queries.
type Service interface {
	Buy(ctx context.Context, buyer Party, listingID string) (*Order, error)
	Rent(ctx context.Context, buyer Party, listingID string, from, to time.Time) (*Order, error)
	BoughtBy(ctx context.Context, buyerID string) ([]*Order, error)
	SoldBy(ctx context.Context, ownerID string) ([]*Order, error)
	RentedBy(ctx context.Context, buyerID string) ([]*Order, error)
	LentBy(ctx context.Context, ownerID string) ([]*Order, error)
}
