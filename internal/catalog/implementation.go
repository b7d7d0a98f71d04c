// internal/catalog/implementation.go
package catalog

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// problemOrder fixes which rule violation a rejected write reports.
var problemOrder = []string{"title", "categories", "description", "price", "rentPrice", "rentUnit"}

// service implements the Service interface in memory.
type service struct {
	mu       sync.RWMutex
	listings map[string]*Listing
	order    []string
	tracer   trace.Tracer
}

// NewService creates an empty catalog.
func NewService() Service {
	return &service{
		listings: make(map[string]*Listing),
		tracer:   otel.Tracer("lendloop/catalog"),
	}
}

// AddListing publishes a new listing owned by ownerID.
func (s *service) AddListing(ctx context.Context, ownerID, ownerEmail string, in ListingInput) (*Listing, error) {
	_, span := s.tracer.Start(ctx, "catalog.add_listing")
	defer span.End()

	if err := validateInput(in); err != nil {
		return nil, err
	}

	l := &Listing{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		OwnerEmail: ownerEmail,
	}
	l.setInput(in)

	s.mu.Lock()
	s.listings[l.ID] = l
	s.order = append(s.order, l.ID)
	s.mu.Unlock()

	span.SetAttributes(attribute.String("listing.id", l.ID))
	return l.clone(), nil
}

// GetListing retrieves a listing by its ID.
func (s *service) GetListing(ctx context.Context, id string) (*Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.listings[id]
	if !ok {
		return nil, ErrListingNotFound
	}
	return l.clone(), nil
}

// UpdateListing replaces the editable fields of a listing the caller owns.
func (s *service) UpdateListing(ctx context.Context, callerID, id string, in ListingInput) (*Listing, error) {
	_, span := s.tracer.Start(ctx, "catalog.update_listing",
		trace.WithAttributes(attribute.String("listing.id", id)),
	)
	defer span.End()

	if err := validateInput(in); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[id]
	if !ok {
		return nil, ErrListingNotFound
	}
	if l.OwnerID != callerID {
		return nil, ErrNotOwner
	}
	l.setInput(in)
	return l.clone(), nil
}

// RemoveListing deletes a listing the caller owns.
func (s *service) RemoveListing(ctx context.Context, callerID, id string) error {
	_, span := s.tracer.Start(ctx, "catalog.remove_listing",
		trace.WithAttributes(attribute.String("listing.id", id)),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[id]
	if !ok {
		return ErrListingNotFound
	}
	if l.OwnerID != callerID {
		return ErrNotOwner
	}
	delete(s.listings, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return nil
}

// ListListings returns every listing in publication order.
func (s *service) ListListings(ctx context.Context) ([]*Listing, error) {
	return s.collect(func(*Listing) bool { return true }), nil
}

// ListByOwner returns the listings published by ownerID.
func (s *service) ListByOwner(ctx context.Context, ownerID string) ([]*Listing, error) {
	return s.collect(func(l *Listing) bool { return l.OwnerID == ownerID }), nil
}

func (s *service) collect(keep func(*Listing) bool) []*Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Listing, 0, len(s.order))
	for _, id := range s.order {
		if l := s.listings[id]; keep(l) {
			out = append(out, l.clone())
		}
	}
	return out
}

func validateInput(in ListingInput) error {
	problems := in.Problems()
	for _, field := range problemOrder {
		if msg, ok := problems[field]; ok {
			return errors.New(msg)
		}
	}
	return nil
}

func (l *Listing) setInput(in ListingInput) {
	l.Title = in.Title
	l.Description = in.Description
	l.Categories = slices.Clone(in.Categories)
	l.Price = in.Price
	l.RentPrice = in.RentPrice
	l.RentUnit = in.RentUnit
}

func (l *Listing) clone() *Listing {
	c := *l
	c.Categories = slices.Clone(l.Categories)
	return &c
}
