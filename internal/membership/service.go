// internal/membership/service.go
package membership

import (
	"context"
	"errors"
)

var (
	ErrEmailTaken         = errors.New("User with this email already exists")
	ErrInvalidCredentials = errors.New("Invalid email or password")
	ErrUnauthorized       = errors.New("Unauthorized")
	ErrUserNotFound       = errors.New("User not found")
	ErrRateLimited        = errors.New("Too many attempts, please try again later")
)

// Service holds marketplace accounts and the tokens issued to them.
type Service interface {
	Register(ctx context.Context, reg Registration) (*User, error)
	Authenticate(ctx context.Context, creds Credentials) (string, error)
	ResolveToken(ctx context.Context, token string) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
}
