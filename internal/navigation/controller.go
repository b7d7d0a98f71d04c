// internal/navigation/controller.go
package navigation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"lendloop/internal/query"
)

type View string

const (
	ViewAllListings View = "ALL_LISTINGS"
	ViewMyListings  View = "MY_LISTINGS"
	ViewHistory     View = "HISTORY"
)

func (v View) Valid() bool {
	switch v {
	case ViewAllListings, ViewMyListings, ViewHistory:
		return true
	}
	return false
}

// Tab selects one order list inside the history view.
type Tab string

const (
	TabBought   Tab = "BOUGHT"
	TabSold     Tab = "SOLD"
	TabBorrowed Tab = "BORROWED"
	TabLent     Tab = "LENT"
)

// DefaultTab is shown when the history view is opened without a tab.
const DefaultTab = TabBought

func (t Tab) Valid() bool {
	switch t {
	case TabBought, TabSold, TabBorrowed, TabLent:
		return true
	}
	return false
}

// Intent asks for a view, and a tab when the view is HISTORY, after a cross-view action.
type Intent struct {
	View View `json:"view"`
	Tab  Tab  `json:"tab,omitempty"`
}

var (
	ErrUnauthenticated = errors.New("sign in to continue")
	ErrUnknownView     = errors.New("unknown view")
	ErrUnknownTab      = errors.New("unknown history tab")
)

// Activator makes the queries of a scope fresh.
type Activator interface {
	Activate(ctx context.Context, scope query.Scope) error
}

// Authenticator reports whether a session token is present.
type Authenticator interface {
	Authenticated(ctx context.Context) bool
}

// Controller tracks the active view and history tab and keeps their queries fresh.
type Controller struct {
	mu        sync.Mutex
	activator Activator
	auth      Authenticator
	logger    *zap.Logger

	view    View
	tab     Tab
	pending *Intent
}

// NewController starts on the all-listings view. auth may be nil, which disables the guard.
func NewController(activator Activator, auth Authenticator, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		activator: activator,
		auth:      auth,
		logger:    logger,
		view:      ViewAllListings,
		tab:       DefaultTab,
	}
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *Controller) Tab() Tab {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tab
}

// SetView switches to v and activates its scope. Opening HISTORY activates only the
// query of the current tab.
func (c *Controller) SetView(ctx context.Context, v View) error {
	if !v.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownView, v)
	}
	if err := c.guard(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.view = v
	scope := ScopeFor(v, c.tab)
	c.mu.Unlock()

	return c.activate(ctx, scope)
}

// SetHistoryTab shows tab inside the history view and activates only that tab's query.
func (c *Controller) SetHistoryTab(ctx context.Context, tab Tab) error {
	if !tab.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTab, tab)
	}
	if err := c.guard(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.view = ViewHistory
	c.tab = tab
	c.mu.Unlock()

	return c.activate(ctx, ScopeFor(ViewHistory, tab))
}

// OnNavigationIntent records a landing intent. It replaces any intent not yet synced.
func (c *Controller) OnNavigationIntent(in Intent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = &in
}

// Pending reports the intent waiting for Sync, if any.
func (c *Controller) Pending() (Intent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return Intent{}, false
	}
	return *c.pending, true
}

// Sync applies the pending intent once and returns the resulting view. Without a pending
// intent it changes nothing.
func (c *Controller) Sync(ctx context.Context) (View, error) {
	c.mu.Lock()
	in := c.pending
	c.pending = nil
	current := c.view
	c.mu.Unlock()

	if in == nil {
		return current, nil
	}

	c.logger.Debug("applying navigation intent", zap.String("view", string(in.View)), zap.String("tab", string(in.Tab)))
	if in.View == ViewHistory && in.Tab != "" {
		if err := c.SetHistoryTab(ctx, in.Tab); err != nil {
			return c.View(), err
		}
		return ViewHistory, nil
	}
	if err := c.SetView(ctx, in.View); err != nil {
		return c.View(), err
	}
	return in.View, nil
}

func (c *Controller) guard(ctx context.Context) error {
	if c.auth != nil && !c.auth.Authenticated(ctx) {
		return ErrUnauthenticated
	}
	return nil
}

func (c *Controller) activate(ctx context.Context, scope query.Scope) error {
	if err := c.activator.Activate(ctx, scope); err != nil {
		c.logger.Warn("view activation failed", zap.String("scope", string(scope)), zap.Error(err))
		return err
	}
	return nil
}
