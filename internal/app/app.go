// Package app wires the client layer: remote API, token slot, entity
// repository, query orchestrator, mutation coordinator and view controller.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"lendloop/internal/catalog"
	"lendloop/internal/clients"
	"lendloop/internal/config"
	"lendloop/internal/mutation"
	"lendloop/internal/navigation"
	"lendloop/internal/query"
	"lendloop/internal/session"
	"lendloop/internal/store"
	"lendloop/internal/wizard"
)

var ErrPassphraseRequired = errors.New("the file session backend needs LENDLOOP_PASSPHRASE")

// App is one signed-in (or anonymous) client session.
type App struct {
	Logger    *zap.Logger
	API       *clients.GraphQLClient
	Session   *session.Service
	Repo      *store.Repository
	Queries   *query.Orchestrator
	Mutations *mutation.Coordinator
	Nav       *navigation.Controller

	closers []func() error
}

// New opens the configured token slot and wires a client against cfg.API.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	slot, closeSlot, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{Timeout: cfg.API.Timeout}
	a := Wire(cfg.API.URL, slot, logger,
		clients.WithHTTPClient(httpClient),
		clients.WithRateLimit(cfg.API.RateLimit, cfg.API.Burst),
	)
	a.closers = append(a.closers, closeSlot)
	return a, nil
}

// Wire builds an App over an already opened token slot.
func Wire(endpoint string, slot session.Store, logger *zap.Logger, opts ...clients.Option) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	api := clients.NewGraphQLClient(endpoint, slot, append([]clients.Option{clients.WithLogger(logger)}, opts...)...)
	repo := store.NewRepository()
	queries := query.NewOrchestrator(repo, logger)

	queries.Register(query.AllListings, query.ListingFetcher(query.AllListings, api.AllListings))
	queries.Register(query.MyListings, query.ListingFetcher(query.MyListings, api.MyListings))
	queries.Register(query.BoughtOrders, query.OrderFetcher(query.BoughtOrders, api.BoughtOrders))
	queries.Register(query.SoldOrders, query.OrderFetcher(query.SoldOrders, api.SoldOrders))
	queries.Register(query.BorrowedOrders, query.OrderFetcher(query.BorrowedOrders, api.BorrowedOrders))
	queries.Register(query.LentOrders, query.OrderFetcher(query.LentOrders, api.LentOrders))
	navigation.DefineRoutes(queries)

	sessions := session.NewService(api, slot, logger)
	return &App{
		Logger:    logger,
		API:       api,
		Session:   sessions,
		Repo:      repo,
		Queries:   queries,
		Mutations: mutation.NewCoordinator(api, repo, queries, logger),
		Nav:       navigation.NewController(queries, sessions, logger),
	}
}

// Navigate delivers an intent and lets the controller act on it.
func (a *App) Navigate(ctx context.Context, in navigation.Intent) (navigation.View, error) {
	a.Nav.OnNavigationIntent(in)
	return a.Nav.Sync(ctx)
}

// Follow navigates to the redirect of a successful mutation, if it has one.
func (a *App) Follow(ctx context.Context, out mutation.Outcome) (navigation.View, error) {
	if out.Redirect == nil {
		return a.Nav.View(), nil
	}
	return a.Navigate(ctx, *out.Redirect)
}

// NewWizard starts an empty create-listing wizard.
func (a *App) NewWizard() *wizard.Wizard {
	return wizard.New(a.Mutations)
}

// EditForm seeds an edit form from the cache, fetching the listing when it is not cached.
func (a *App) EditForm(ctx context.Context, id string) (*wizard.EditForm, error) {
	l, err := a.Listing(ctx, id)
	if err != nil {
		return nil, err
	}
	return wizard.NewEditForm(l, a.Mutations), nil
}

// Listing returns the cached listing id, loading it from the marketplace on a miss.
func (a *App) Listing(ctx context.Context, id string) (catalog.Listing, error) {
	if l, ok := a.Repo.Listing(id); ok {
		return l, nil
	}
	p, err := a.API.Listing(ctx, id)
	if err != nil {
		return catalog.Listing{}, err
	}
	return a.Repo.PutListing(p), nil
}

func (a *App) RentalForm(listingID string) *wizard.RentalForm {
	return wizard.NewRentalForm(listingID, a.Mutations)
}

// Close releases the token slot's connections.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenStore opens the token slot named by cfg.Session.Backend.
func OpenStore(ctx context.Context, cfg *config.Config) (session.Store, func() error, error) {
	noop := func() error { return nil }
	sc := cfg.Session

	switch strings.ToLower(sc.Backend) {
	case "memory":
		return session.NewMemoryStore(), noop, nil
	case "", "file":
		if sc.Passphrase == "" {
			return nil, nil, ErrPassphraseRequired
		}
		return session.NewFileStore(cfg.HomeDir(), sc.Passphrase), noop, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: sc.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return session.NewRedisStore(client, "lendloop:"+sc.Profile, sc.RedisTTL), client.Close, nil
	case "postgres":
		db, err := sql.Open("postgres", sc.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s := session.NewPostgresStore(db, sc.Profile)
		if err := s.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return s, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", sc.Backend)
	}
}
