package membership

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func registration(email string) Registration {
	return Registration{
		Email:       email,
		Password:    "secret1",
		FirstName:   "Ana",
		LastName:    "Silva",
		Address:     "1 Main St",
		PhoneNumber: "01234567890",
	}
}

func TestRegisterAuthenticateResolve(t *testing.T) {
	svc := NewService(WithRateLimit(rate.Inf, 0))
	ctx := context.Background()

	u, err := svc.Register(ctx, registration("ana@example.com"))
	require.NoError(t, err)
	assert.Equal(t, DefaultUserType, u.UserType)

	_, err = svc.Register(ctx, registration("ANA@example.com"))
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.Authenticate(ctx, Credentials{Email: "ana@example.com", Password: "wrong!"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, Credentials{Email: "nobody@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	token, err := svc.Authenticate(ctx, Credentials{Email: "ana@example.com", Password: "secret1"})
	require.NoError(t, err)

	who, err := svc.ResolveToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, who.ID)

	_, err = svc.ResolveToken(ctx, "forged")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRegisterServerRules(t *testing.T) {
	svc := NewService(WithRateLimit(rate.Inf, 0))

	reg := registration("not-an-email")
	_, err := svc.Register(context.Background(), reg)
	assert.EqualError(t, err, "Invalid email format")

	reg = registration("ana@example.com")
	reg.Password = "abc"
	_, err = svc.Register(context.Background(), reg)
	assert.EqualError(t, err, "Password must be at least 6 characters")
}

func TestRateLimit(t *testing.T) {
	svc := NewService(WithRateLimit(rate.Limit(0), 2))
	creds := Credentials{Email: "ana@example.com", Password: "secret1"}

	for range 2 {
		_, err := svc.Authenticate(context.Background(), creds)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err := svc.Authenticate(context.Background(), creds)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestPasswordHash(t *testing.T) {
	encoded, err := hashPassword("hunter22")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$"))

	other, err := hashPassword("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, encoded, other, "salts differ")

	ok, err := verifyPassword("hunter22", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = verifyPassword("hunter23", encoded)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = verifyPassword("hunter22", "plain")
	assert.ErrorIs(t, err, errMalformedHash)
}
