// Package query keeps named remote queries in the store fresh.
//
// Each query has a status and a stale flag. Activating a scope fetches only the
// queries whose cached result cannot be used; invalidating marks a query stale
// without touching the network. When several fetches of one query overlap, the
// last one issued decides the cached result.
package query

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lendloop/internal/catalog"
	"lendloop/internal/circulation"
	"lendloop/internal/store"
)

// Name identifies a cached query. It doubles as the store query id.
type Name string

const (
	AllListings    Name = "allListings"
	MyListings     Name = "myListings"
	BoughtOrders   Name = "boughtOrders"
	SoldOrders     Name = "soldOrders"
	BorrowedOrders Name = "borrowedOrders"
	LentOrders     Name = "lentOrders"
)

// Scope names a group of queries activated together.
type Scope string

type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusErrored
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusErrored:
		return "errored"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// State is the observable lifecycle of one query.
type State struct {
	Status Status
	Stale  bool
	Err    error
}

var (
	ErrUnknownQuery = errors.New("unknown query")
	ErrUnknownScope = errors.New("unknown scope")
	ErrStale        = errors.New("query result is stale")
	ErrNotLoaded    = errors.New("query result not loaded")
)

// Fetcher performs the network half of a query and returns the store write for its
// result. The write is dropped when a newer fetch of the same query was issued meanwhile.
type Fetcher func(ctx context.Context) (func(*store.Repository), error)

// ListingFetcher adapts a remote listings call. The result replaces the query's id list.
func ListingFetcher(name Name, fetch func(context.Context) ([]catalog.ListingPatch, error)) Fetcher {
	return func(ctx context.Context) (func(*store.Repository), error) {
		patches, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return func(r *store.Repository) { r.LoadListings(string(name), patches) }, nil
	}
}

// OrderFetcher adapts a remote orders call. The result replaces the query's id list.
func OrderFetcher(name Name, fetch func(context.Context) ([]circulation.OrderPatch, error)) Fetcher {
	return func(ctx context.Context) (func(*store.Repository), error) {
		patches, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return func(r *store.Repository) { r.LoadOrders(string(name), patches) }, nil
	}
}

type entry struct {
	fetch  Fetcher
	state  State
	issued uint64 // sequence of the newest fetch issued
	epoch  uint64 // bumped by every invalidation
}

// Orchestrator decides when queries hit the network and keeps their state.
type Orchestrator struct {
	mu      sync.Mutex
	repo    *store.Repository
	queries map[Name]*entry
	scopes  map[Scope][]Name
	active  Scope
	logger  *zap.Logger
	tracer  trace.Tracer

	issuedCounter     metric.Int64Counter
	supersededCounter metric.Int64Counter
}

func NewOrchestrator(repo *store.Repository, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	meter := otel.Meter("lendloop/query")
	issued, _ := meter.Int64Counter("query.fetch.issued", metric.WithDescription("Fetches sent to the marketplace"))
	superseded, _ := meter.Int64Counter("query.fetch.superseded", metric.WithDescription("Fetch results dropped for a newer fetch"))
	return &Orchestrator{
		repo:              repo,
		queries:           make(map[Name]*entry),
		scopes:            make(map[Scope][]Name),
		logger:            logger,
		tracer:            otel.Tracer("lendloop/query"),
		issuedCounter:     issued,
		supersededCounter: superseded,
	}
}

// Register declares query name. Registering again replaces its fetch and resets its state.
func (o *Orchestrator) Register(name Name, f Fetcher) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queries[name] = &entry{fetch: f}
}

// Define binds scope to the queries it needs.
func (o *Orchestrator) Define(scope Scope, names ...Name) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scopes[scope] = slices.Clone(names)
}

// Activate fetches every query of scope that is idle, errored or stale, and waits for
// them. A query that is ready, or already loading, and not stale is left alone.
func (o *Orchestrator) Activate(ctx context.Context, scope Scope) error {
	o.mu.Lock()
	names, ok := o.scopes[scope]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownScope, scope)
	}
	o.active = scope
	type job struct {
		name       Name
		seq, epoch uint64
	}
	var jobs []job
	for _, name := range names {
		e, ok := o.queries[name]
		if !ok {
			o.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrUnknownQuery, name)
		}
		if e.state.Stale || e.state.Status == StatusIdle || e.state.Status == StatusErrored {
			jobs = append(jobs, job{name: name, seq: o.issue(name, e), epoch: e.epoch})
		}
	}
	o.mu.Unlock()

	if len(jobs) == 0 {
		return nil
	}

	ctx, span := o.tracer.Start(ctx, "query.Activate")
	defer span.End()
	span.SetAttributes(attribute.String("scope", string(scope)), attribute.Int("fetches", len(jobs)))

	var g errgroup.Group
	for _, j := range jobs {
		g.Go(func() error {
			return o.run(ctx, j.name, j.seq, j.epoch)
		})
	}

	err := g.Wait()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// Invalidate marks name stale. It never fetches; the next activation of a scope that
// contains name does.
func (o *Orchestrator) Invalidate(name Name) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.queries[name]
	if !ok {
		return
	}
	e.state.Stale = true
	e.epoch++
	o.logger.Debug("query invalidated", zap.String("query", string(name)))
}

// Refetch issues a fetch for name regardless of its state.
func (o *Orchestrator) Refetch(ctx context.Context, name Name) error {
	o.mu.Lock()
	e, ok := o.queries[name]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownQuery, name)
	}
	seq, epoch := o.issue(name, e), e.epoch
	o.mu.Unlock()

	return o.run(ctx, name, seq, epoch)
}

// issue records a new fetch of e. Caller holds o.mu.
func (o *Orchestrator) issue(name Name, e *entry) uint64 {
	e.issued++
	e.state.Status = StatusLoading
	o.issuedCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("query", string(name))))
	return e.issued
}

// run performs fetch seq of name and applies its outcome unless a newer fetch was issued.
// epoch is the invalidation count seen when the fetch was issued; an invalidation after
// that keeps the result stale.
func (o *Orchestrator) run(ctx context.Context, name Name, seq, epoch uint64) error {
	o.mu.Lock()
	e := o.queries[name]
	fetch := e.fetch
	o.mu.Unlock()

	ctx, span := o.tracer.Start(ctx, "query.fetch")
	defer span.End()
	span.SetAttributes(attribute.String("query", string(name)), attribute.Int64("seq", int64(seq)))

	write, err := fetch(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()

	if e.issued != seq {
		o.supersededCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("query", string(name))))
		o.logger.Debug("dropping superseded fetch",
			zap.String("query", string(name)),
			zap.Uint64("seq", seq),
			zap.Uint64("latest", e.issued),
		)
		return nil
	}

	if err != nil {
		e.state.Status = StatusErrored
		e.state.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Warn("query fetch failed", zap.String("query", string(name)), zap.Error(err))
		return fmt.Errorf("failed to fetch %s: %w", name, err)
	}

	write(o.repo)
	e.state.Status = StatusReady
	e.state.Err = nil
	e.state.Stale = e.epoch != epoch
	return nil
}

// State returns the lifecycle of name.
func (o *Orchestrator) State(name Name) (State, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.queries[name]
	if !ok {
		return State{}, false
	}
	return e.state, true
}

// Active returns the scope most recently activated.
func (o *Orchestrator) Active() Scope {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// Result returns the cached id list of name. A stale list is returned with ErrStale.
func (o *Orchestrator) Result(name Name) ([]string, error) {
	err := o.usable(name)
	if err != nil && !errors.Is(err, ErrStale) {
		return nil, err
	}
	ids, _ := o.repo.QueryIDs(string(name))
	return ids, err
}

// Ready reports whether every query of scope is ready and not stale.
func (o *Orchestrator) Ready(scope Scope) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	names, ok := o.scopes[scope]
	if !ok {
		return false
	}
	for _, name := range names {
		e, ok := o.queries[name]
		if !ok || e.state.Status != StatusReady || e.state.Stale {
			return false
		}
	}
	return true
}

// Listings returns the cached listings of name. Stale results are still returned, with ErrStale.
func (o *Orchestrator) Listings(name Name) ([]catalog.Listing, error) {
	err := o.usable(name)
	if err != nil && !errors.Is(err, ErrStale) {
		return nil, err
	}
	return o.repo.Listings(string(name)), err
}

// Orders returns the cached orders of name. Stale results are still returned, with ErrStale.
func (o *Orchestrator) Orders(name Name) ([]circulation.Order, error) {
	err := o.usable(name)
	if err != nil && !errors.Is(err, ErrStale) {
		return nil, err
	}
	return o.repo.Orders(string(name)), err
}

func (o *Orchestrator) usable(name Name) error {
	st, ok := o.State(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuery, name)
	}
	if _, cached := o.repo.QueryIDs(string(name)); !cached {
		if st.Err != nil {
			return st.Err
		}
		return ErrNotLoaded
	}
	if st.Stale {
		return ErrStale
	}
	return nil
}
