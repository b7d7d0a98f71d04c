// internal/circulation/implementation.go
package circulation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"lendloop/internal/catalog"
)

type record struct {
	order   Order
	ownerID string
}

// service implements the Service interface in memory.
type service struct {
	mu       sync.RWMutex
	listings ListingLookup
	records  []record
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewService creates a circulation service that checks orders against listings.
func NewService(listings ListingLookup, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		listings: listings,
		logger:   logger,
		tracer:   otel.Tracer("lendloop/circulation"),
	}
}

// Buy records a purchase of listingID by buyer.
func (s *service) Buy(ctx context.Context, buyer Party, listingID string) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.buy",
		trace.WithAttributes(attribute.String("listing.id", listingID)),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.eligible(ctx, buyer, listingID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return s.place(l, Order{BuyerID: buyer.ID, BuyerEmail: buyer.Email, Type: OrderBuy})
}

// Rent records a rental of listingID by buyer over [from, to).
func (s *service) Rent(ctx context.Context, buyer Party, listingID string, from, to time.Time) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.rent",
		trace.WithAttributes(attribute.String("listing.id", listingID)),
	)
	defer span.End()

	if !to.After(from) {
		span.SetStatus(codes.Error, ErrRentEndNotAfter.Error())
		return nil, ErrRentEndNotAfter
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.eligible(ctx, buyer, listingID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	for _, r := range s.records {
		o := r.order
		if o.ListingID == listingID && o.Type == OrderRent && from.Before(*o.RentEnd) && o.RentStart.Before(to) {
			s.logger.Info("rejected overlapping rental",
				zap.String("listing", listingID), zap.String("conflicts_with", o.ID))
			return nil, ErrRentPeriodBooked
		}
	}
	from, to = from.UTC(), to.UTC()
	return s.place(l, Order{
		BuyerID:    buyer.ID,
		BuyerEmail: buyer.Email,
		Type:       OrderRent,
		RentStart:  &from,
		RentEnd:    &to,
	})
}

// eligible loads the listing and applies the rules shared by buy and rent. Callers hold mu.
func (s *service) eligible(ctx context.Context, buyer Party, listingID string) (*catalog.Listing, error) {
	l, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if l.OwnerID == buyer.ID {
		return nil, ErrOwnListing
	}
	for _, r := range s.records {
		if r.order.ListingID == listingID && r.order.Type == OrderBuy {
			return nil, ErrListingSold
		}
	}
	return l, nil
}

// place completes o against l and appends it. Callers hold mu.
func (s *service) place(l *catalog.Listing, o Order) (*Order, error) {
	o.ID = uuid.NewString()
	o.ListingID = l.ID
	o.ListingTitle = l.Title
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("failed to place order: %w", err)
	}
	s.records = append(s.records, record{order: o, ownerID: l.OwnerID})
	s.logger.Debug("order placed",
		zap.String("order", o.ID), zap.String("type", string(o.Type)), zap.String("listing", l.ID))
	out := o
	return &out, nil
}

func (s *service) BoughtBy(ctx context.Context, buyerID string) ([]*Order, error) {
	return s.collect(func(r record) bool { return r.order.Type == OrderBuy && r.order.BuyerID == buyerID }), nil
}

func (s *service) SoldBy(ctx context.Context, ownerID string) ([]*Order, error) {
	return s.collect(func(r record) bool { return r.order.Type == OrderBuy && r.ownerID == ownerID }), nil
}

func (s *service) RentedBy(ctx context.Context, buyerID string) ([]*Order, error) {
	return s.collect(func(r record) bool { return r.order.Type == OrderRent && r.order.BuyerID == buyerID }), nil
}

func (s *service) LentBy(ctx context.Context, ownerID string) ([]*Order, error) {
	return s.collect(func(r record) bool { return r.order.Type == OrderRent && r.ownerID == ownerID }), nil
}

func (s *service) collect(keep func(record) bool) []*Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Order, 0)
	for _, r := range s.records {
		if keep(r) {
			o := r.order
			out = append(out, &o)
		}
	}
	return out
}
