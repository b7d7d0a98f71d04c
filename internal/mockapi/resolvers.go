package mockapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"lendloop/internal/catalog"
	"lendloop/internal/circulation"
	"lendloop/internal/clients"
	"lendloop/internal/membership"
)

var errBadVariables = errors.New("bad variables")

func (s *Server) routes() map[string]resolver {
	return map[string]resolver{
		clients.OpLogin:          s.login,
		clients.OpRegister:       s.register,
		clients.OpCurrentUser:    s.currentUser,
		clients.OpAllListings:    s.allListings,
		clients.OpMyListings:     s.myListings,
		clients.OpListing:        s.listing,
		clients.OpCreateListing:  s.createListing,
		clients.OpUpdateListing:  s.updateListing,
		clients.OpDeleteListing:  s.deleteListing,
		clients.OpBuyListing:     s.buyListing,
		clients.OpRentListing:    s.rentListing,
		clients.OpBoughtOrders:   s.history(circulation.Service.BoughtBy),
		clients.OpSoldOrders:     s.history(circulation.Service.SoldBy),
		clients.OpBorrowedOrders: s.history(circulation.Service.RentedBy),
		clients.OpLentOrders:     s.history(circulation.Service.LentBy),
	}
}

// variable decodes vars[name] into dst. Missing and null variables are refused.
func variable(vars map[string]json.RawMessage, name string, dst any) error {
	raw, ok := vars[name]
	if !ok || string(raw) == "null" {
		return fmt.Errorf("%w: Variable \"$%s\" is required", errBadVariables, name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: Variable \"$%s\" got invalid value", errBadVariables, name)
	}
	return nil
}

func (s *Server) login(ctx context.Context, vars map[string]json.RawMessage) (any, error) {
	var creds membership.Credentials
	if err := variable(vars, "input", &creds); err != nil {
		return nil, err
	}
	return s.membership.Authenticate(ctx, creds)
}

func (s *Server) register(ctx context.Context, vars map[string]json.RawMessage) (any, error) {
	var reg membership.Registration
	if err := variable(vars, "input", &reg); err != nil {
		return nil, err
	}
	return s.membership.Register(ctx, reg)
}

// currentUser answers null for anonymous callers.
func (s *Server) currentUser(ctx context.Context, _ map[string]json.RawMessage) (any, error) {
	u, err := userFrom(ctx)
	if err != nil {
		return nil, nil
	}
	return u, nil
}

func (s *Server) allListings(ctx context.Context, _ map[string]json.RawMessage) (any, error) {
	ls, err := s.catalog.ListListings(ctx)
	if err != nil {
		return nil, err
	}
	return viewListings(ls), nil
}

func (s *Server) myListings(ctx context.Context, _ map[string]json.RawMessage) (any, error) {
	u, err := userFrom(ctx)
	if err != nil {
		return nil, err
	}
	ls, err := s.catalog.ListByOwner(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return viewListings(ls), nil
}

func (s *Server) listing(ctx context.Context, vars map[string]json.RawMessage) (any, error) {
	var id string
	if err := variable(vars, "productId", &id); err != nil {
		return nil, err
	}
	l, err := s.catalog.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}
	return viewListing(l), nil
}

func (s *Server) createListing(ctx context.Context, vars map[string]json.RawMessage) (any, error) {
	u, err := userFrom(ctx)
	if err != nil {
		return nil, err
	}
	var in catalog.ListingInput
	if err := variable(vars, "input", &in); err != nil {
		return nil, err
	}
	l, err := s.catalog.AddListing(ctx, u.ID, u.Email, in)
	if err != nil {
		return nil, err
	}
	return viewListing(l), nil
}

func (s *Server) updateListing(ctx context.Context, vars map[string]json.RawMessage) (any, error) {
	u, err := userFrom(ctx)
	if err != nil {
		return nil, err
	}
	var id string
	var in catalog.ListingInput
	if err := variable(vars, "productId", &id); err != nil {
		return nil, err
	}
	if err := variable(vars, "input", &in); err != nil {
		return nil, err
	}
	l, err := s.catalog.UpdateListing(ctx, u.ID, id, in)
	if err != nil {
		return nil, err
	}
	return viewListing(l), nil
}

func (s *Server) deleteListing(ctx context.Context, vars map[string]json.RawMessage) (any, error) {
	u, err := userFrom(ctx)
	if err != nil {
		return nil, err
	}
	var id string
	if err := variable(vars, "productId", &id); err != nil {
		return nil, err
	}
	if err := s.catalog.RemoveListing(ctx, u.ID, id); err != nil {
		return nil, err
	}
	return true, nil
}

func (s *Server) buyListing(ctx context.Context, vars map[string]json.RawMessage) (any, error) {
	u, err := userFrom(ctx)
	if err != nil {
		return nil, err
	}
	var id string
	if err := variable(vars, "id", &id); err != nil {
		return nil, err
	}
	o, err := s.circulation.Buy(ctx, circulation.Party{ID: u.ID, Email: u.Email}, id)
	if err != nil {
		return nil, err
	}
	return viewOrder(o), nil
}

func (s *Server) rentListing(ctx context.Context, vars map[string]json.RawMessage) (any, error) {
	u, err := userFrom(ctx)
	if err != nil {
		return nil, err
	}
	var id, from, to string
	if err := variable(vars, "id", &id); err != nil {
		return nil, err
	}
	if err := variable(vars, "from", &from); err != nil {
		return nil, err
	}
	if err := variable(vars, "to", &to); err != nil {
		return nil, err
	}
	start, err := parseDate(from)
	if err != nil {
		return nil, err
	}
	end, err := parseDate(to)
	if err != nil {
		return nil, err
	}
	o, err := s.circulation.Rent(ctx, circulation.Party{ID: u.ID, Email: u.Email}, id, start, end)
	if err != nil {
		return nil, err
	}
	return viewOrder(o), nil
}

func (s *Server) history(list func(circulation.Service, context.Context, string) ([]*circulation.Order, error)) resolver {
	return func(ctx context.Context, _ map[string]json.RawMessage) (any, error) {
		u, err := userFrom(ctx)
		if err != nil {
			return nil, err
		}
		orders, err := list(s.circulation, ctx, u.ID)
		if err != nil {
			return nil, err
		}
		return viewOrders(orders), nil
	}
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("Invalid date %q", s)
}
