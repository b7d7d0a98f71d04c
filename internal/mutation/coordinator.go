// Package mutation dispatches marketplace writes and reconciles the local cache with
// their results.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"lendloop/internal/catalog"
	"lendloop/internal/circulation"
	"lendloop/internal/clients"
	"lendloop/internal/navigation"
	"lendloop/internal/query"
	"lendloop/internal/store"
)

// Kind names a mutation. At most one mutation of each kind is in flight.
type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
	KindBuy    Kind = "buy"
	KindRent   Kind = "rent"
)

var (
	ErrInFlight          = errors.New("a request of this kind is already in progress")
	ErrRentDatesRequired = errors.New("select both a start and an end date")
)

// API is the part of the remote marketplace the coordinator writes through.
type API interface {
	CreateListing(ctx context.Context, in catalog.ListingInput) (catalog.ListingPatch, error)
	UpdateListing(ctx context.Context, id string, in catalog.ListingInput) (catalog.ListingPatch, error)
	DeleteListing(ctx context.Context, id string) error
	BuyListing(ctx context.Context, id string) (circulation.OrderPatch, error)
	RentListing(ctx context.Context, id string, from, to time.Time) (circulation.OrderPatch, error)
}

// Invalidator marks cached queries stale.
type Invalidator interface {
	Invalidate(name query.Name)
}

// Outcome is the result of a successful mutation. Redirect is nil when the caller stays put.
type Outcome struct {
	Listing  *catalog.Listing
	Order    *circulation.Order
	Redirect *navigation.Intent
}

type Coordinator struct {
	api         API
	repo        *store.Repository
	invalidator Invalidator
	logger      *zap.Logger
	tracer      trace.Tracer
	outcomes    metric.Int64Counter

	mu       sync.Mutex
	inFlight map[Kind]bool
}

func NewCoordinator(api API, repo *store.Repository, invalidator Invalidator, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	outcomes, _ := otel.Meter("lendloop/mutation").Int64Counter("mutation.outcomes",
		metric.WithDescription("Mutations dispatched, by kind and result"))
	return &Coordinator{
		api:         api,
		repo:        repo,
		invalidator: invalidator,
		logger:      logger,
		tracer:      otel.Tracer("lendloop/mutation"),
		outcomes:    outcomes,
		inFlight:    make(map[Kind]bool),
	}
}

// InFlight reports whether a mutation of kind is waiting for the server.
func (c *Coordinator) InFlight(kind Kind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight[kind]
}

// Create dispatches a new listing. The cache is not patched; myListings is marked stale
// and the caller is sent to the user's listings.
func (c *Coordinator) Create(ctx context.Context, in catalog.ListingInput) (Outcome, error) {
	var created catalog.ListingPatch
	err := c.dispatch(ctx, KindCreate, "", func(ctx context.Context) (err error) {
		created, err = c.api.CreateListing(ctx, in)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}

	c.invalidator.Invalidate(query.MyListings)
	intent := navigation.LandOn(navigation.ViewMyListings, "")
	out := Outcome{Redirect: &intent}
	if created.ID != "" {
		l := catalog.Listing{}.Apply(created)
		out.Listing = &l
	}
	return out, nil
}

// Update dispatches an edit and writes the returned fields into the cache.
func (c *Coordinator) Update(ctx context.Context, id string, in catalog.ListingInput) (Outcome, error) {
	var updated catalog.ListingPatch
	err := c.dispatch(ctx, KindUpdate, id, func(ctx context.Context) (err error) {
		updated, err = c.api.UpdateListing(ctx, id, in)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}

	if updated.ID == "" {
		updated.ID = id
	}
	l := c.repo.PutListing(updated)
	return Outcome{Listing: &l}, nil
}

// Delete dispatches a removal. On success the listing leaves the cache and both listing
// query results.
func (c *Coordinator) Delete(ctx context.Context, id string) (Outcome, error) {
	err := c.dispatch(ctx, KindDelete, id, func(ctx context.Context) error {
		return c.api.DeleteListing(ctx, id)
	})
	if err != nil {
		return Outcome{}, err
	}

	c.repo.RemoveListing(id)
	c.repo.RemoveFromQuery(string(query.AllListings), id)
	c.repo.RemoveFromQuery(string(query.MyListings), id)
	return Outcome{}, nil
}

// Buy purchases listing id. Only the buyer's bought history is marked stale.
func (c *Coordinator) Buy(ctx context.Context, id string) (Outcome, error) {
	var placed circulation.OrderPatch
	err := c.dispatch(ctx, KindBuy, id, func(ctx context.Context) (err error) {
		placed, err = c.api.BuyListing(ctx, id)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}

	c.invalidator.Invalidate(query.BoughtOrders)
	intent := navigation.LandOn(navigation.ViewHistory, navigation.TabBought)
	return Outcome{Order: c.storeOrder(placed), Redirect: &intent}, nil
}

// Rent books listing id for [from, to]. Both dates are required; their order and any
// overlap with other rentals are left to the server.
func (c *Coordinator) Rent(ctx context.Context, id string, from, to *time.Time) (Outcome, error) {
	if from == nil || to == nil {
		return Outcome{}, ErrRentDatesRequired
	}

	var placed circulation.OrderPatch
	err := c.dispatch(ctx, KindRent, id, func(ctx context.Context) (err error) {
		placed, err = c.api.RentListing(ctx, id, *from, *to)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}

	c.invalidator.Invalidate(query.BorrowedOrders)
	intent := navigation.LandOn(navigation.ViewHistory, navigation.TabBorrowed)
	return Outcome{Order: c.storeOrder(placed), Redirect: &intent}, nil
}

func (c *Coordinator) storeOrder(p circulation.OrderPatch) *circulation.Order {
	if p.ID == "" {
		return nil
	}
	o := c.repo.PutOrder(p)
	return &o
}

// dispatch runs call unless a mutation of the same kind is in flight. Failures are
// reported as *clients.RequestError and never retried.
func (c *Coordinator) dispatch(ctx context.Context, kind Kind, id string, call func(context.Context) error) error {
	c.mu.Lock()
	if c.inFlight[kind] {
		c.mu.Unlock()
		return ErrInFlight
	}
	c.inFlight[kind] = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inFlight, kind)
		c.mu.Unlock()
	}()

	ctx, span := c.tracer.Start(ctx, "mutation."+string(kind))
	defer span.End()
	span.SetAttributes(attribute.String("mutation.kind", string(kind)), attribute.String("listing.id", id))

	err := call(ctx)
	result := "ok"
	if err != nil {
		result = "error"
		err = asRequestError(kind, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("mutation failed",
			zap.String("kind", string(kind)),
			zap.String("id", id),
			zap.Error(err),
		)
	}
	c.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("result", result),
	))
	return err
}

func asRequestError(kind Kind, err error) error {
	var re *clients.RequestError
	if errors.As(err, &re) {
		return re
	}
	return &clients.RequestError{
		Op:      string(kind),
		Message: fmt.Sprintf("%s failed: %v", kind, err),
		Err:     err,
	}
}
