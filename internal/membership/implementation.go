// internal/membership/implementation.go
package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

type account struct {
	user         User
	passwordHash string
}

// service implements the Service interface in memory.
type service struct {
	mu          sync.RWMutex
	accounts    map[string]*account
	byEmail     map[string]string
	tokens      map[string]string
	rateLimiter *rate.Limiter
	tracer      trace.Tracer
}

// Option configures the membership service.
type Option func(*service)

// WithRateLimit paces register and login attempts. A limit of rate.Inf disables pacing.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(s *service) {
		s.rateLimiter = rate.NewLimiter(limit, burst)
	}
}

// NewService creates a new membership service instance.
func NewService(opts ...Option) Service {
	s := &service{
		accounts:    make(map[string]*account),
		byEmail:     make(map[string]string),
		tokens:      make(map[string]string),
		rateLimiter: rate.NewLimiter(rate.Every(6*time.Second), 10),
		tracer:      otel.Tracer("lendloop/membership"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account. Emails are unique ignoring case.
func (s *service) Register(ctx context.Context, reg Registration) (*User, error) {
	_, span := s.tracer.Start(ctx, "membership.register")
	defer span.End()

	if !s.rateLimiter.Allow() {
		return nil, ErrRateLimited
	}
	if !emailPattern.MatchString(reg.Email) {
		return nil, errors.New("Invalid email format")
	}
	if len(reg.Password) < minRegisterPasswordLength {
		return nil, fmt.Errorf("Password must be at least %d characters", minRegisterPasswordLength)
	}

	passwordHash, err := hashPassword(reg.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	userType := reg.UserType
	if userType == "" {
		userType = DefaultUserType
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(reg.Email)
	if _, taken := s.byEmail[key]; taken {
		return nil, ErrEmailTaken
	}
	a := &account{
		user: User{
			ID:          uuid.NewString(),
			Email:       reg.Email,
			FirstName:   reg.FirstName,
			LastName:    reg.LastName,
			UserType:    userType,
			Address:     reg.Address,
			PhoneNumber: reg.PhoneNumber,
		},
		passwordHash: passwordHash,
	}
	s.accounts[a.user.ID] = a
	s.byEmail[key] = a.user.ID
	span.SetAttributes(attribute.String("user.id", a.user.ID))

	u := a.user
	return &u, nil
}

// Authenticate verifies creds and issues a fresh opaque token.
func (s *service) Authenticate(ctx context.Context, creds Credentials) (string, error) {
	_, span := s.tracer.Start(ctx, "membership.authenticate")
	defer span.End()

	if !s.rateLimiter.Allow() {
		return "", ErrRateLimited
	}

	s.mu.RLock()
	id, ok := s.byEmail[strings.ToLower(creds.Email)]
	var hash string
	if ok {
		hash = s.accounts[id].passwordHash
	}
	s.mu.RUnlock()
	if !ok {
		return "", ErrInvalidCredentials
	}

	match, err := verifyPassword(creds.Password, hash)
	if err != nil {
		return "", fmt.Errorf("authentication failed: %w", err)
	}
	if !match {
		return "", ErrInvalidCredentials
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = id
	s.mu.Unlock()
	return token, nil
}

// ResolveToken returns the account a token was issued to.
func (s *service) ResolveToken(ctx context.Context, token string) (*User, error) {
	s.mu.RLock()
	id, ok := s.tokens[token]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrUnauthorized
	}
	return s.GetUser(ctx, id)
}

// GetUser retrieves an account by its ID.
func (s *service) GetUser(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := a.user
	return &u, nil
}
