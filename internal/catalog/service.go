// internal/catalog/service.go
package catalog

import (
	"context"
	"errors"
)

var (
	ErrListingNotFound = errors.New("Product not found")
	ErrNotOwner        = errors.New("You are not the owner of this product")
)

// Service is the marketplace's listing book, as served by the development API.
type Service interface {
	AddListing(ctx context.Context, ownerID, ownerEmail string, in ListingInput) (*Listing, error)
	GetListing(ctx context.Context, id string) (*Listing, error)
	UpdateListing(ctx context.Context, callerID, id string, in ListingInput) (*Listing, error)
	RemoveListing(ctx context.Context, callerID, id string) error
	ListListings(ctx context.Context) ([]*Listing, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*Listing, error)
}
