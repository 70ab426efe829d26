// Package jwt issues and verifies the HS512 access tokens the API serves, and
// carries verified claims through request contexts.
package jwt

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidSigningMethod = errors.New("invalid JWT signing method")

	ErrSigningKeyTooShort = errors.New("HS512 signing key must be at least 64 bytes (512 bits)")

	// ErrInvalidToken is the only verification failure callers see. Expired,
	// malformed, bad-signature and wrong-claim tokens are indistinguishable.
	ErrInvalidToken = errors.New("invalid token")
)

// JWT is the token surface the service needs: mint and check.
type JWT interface {
	Generate(uid uint64, email string) (string, error)
	Verify(tokenStr string) (Claims, error)
}

type clocker interface {
	Now() time.Time
}

type generator interface {
	Generate() string
}

// Config holds the signing inputs. Clock and UUID are injected so expiry and
// jti values are deterministic in tests.
type Config struct {
	Secret    []byte
	Issuer    string
	Audiences []string
	TTL       time.Duration
	Clock     clocker
	UUID      generator
}

// Claims wraps the registered claims with the authenticated user ID. Subject
// carries the account email, the primary login identity.
type Claims struct {
	jwt.RegisteredClaims
	UserID uint64 `json:"user_id,string"`
}

type jwtContextKey struct{}

// GetAuth returns claims previously stored by the auth middleware, or nil for
// unauthenticated contexts.
func GetAuth(ctx context.Context) *Claims {
	clm, ok := ctx.Value(jwtContextKey{}).(Claims)
	if !ok {
		return nil
	}
	return &clm
}

// SetAuth stores verified claims in the context.
func SetAuth(ctx context.Context, clm Claims) context.Context {
	return context.WithValue(ctx, jwtContextKey{}, clm)
}
