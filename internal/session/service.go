package session

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"lendloop/internal/membership"
)

var ErrNotSignedIn = errors.New("not signed in")

// AuthAPI is the part of the remote marketplace dealing with accounts.
type AuthAPI interface {
	Login(ctx context.Context, creds membership.Credentials) (string, error)
	Register(ctx context.Context, reg membership.Registration) (*membership.User, error)
	CurrentUser(ctx context.Context) (*membership.User, error)
}

// Service signs users in and out by filling and clearing the token slot.
type Service struct {
	api    AuthAPI
	store  Store
	logger *zap.Logger
}

func NewService(api AuthAPI, store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{api: api, store: store, logger: logger}
}

// Login validates creds locally, then stores the token the marketplace returns.
func (s *Service) Login(ctx context.Context, creds membership.Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	token, err := s.api.Login(ctx, creds)
	if err != nil {
		return err
	}
	if err := s.store.SetToken(ctx, token); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	s.logger.Info("signed in", zap.String("email", creds.Email))
	return nil
}

// Register validates reg locally and creates the account. It does not sign in.
func (s *Service) Register(ctx context.Context, reg membership.Registration) (*membership.User, error) {
	if reg.UserType == "" {
		reg.UserType = membership.DefaultUserType
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return s.api.Register(ctx, reg)
}

func (s *Service) Logout(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// CurrentUser asks the marketplace who the stored token belongs to.
func (s *Service) CurrentUser(ctx context.Context) (*membership.User, error) {
	if !s.Authenticated(ctx) {
		return nil, ErrNotSignedIn
	}
	return s.api.CurrentUser(ctx)
}

// Authenticated reports whether a token is stored. The token itself is not checked.
func (s *Service) Authenticated(ctx context.Context) bool {
	token, err := s.store.Token(ctx)
	if err != nil {
		s.logger.Warn("failed to read session", zap.Error(err))
		return false
	}
	return token != ""
}
