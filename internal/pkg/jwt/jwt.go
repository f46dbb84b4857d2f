// Package jwt issues and checks the identity token handed out after a phone
// number is verified. Tokens are HS512 signed; the authenticated claims
// travel through request contexts via SetAuth and GetAuth.
package jwt

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidSigningMethod = errors.New("jwt: unexpected signing method")
	ErrSigningKeyTooShort   = errors.New("jwt: HS512 key must be at least 64 bytes")
	ErrTokenExpired         = errors.New("jwt: token expired")
	ErrInvalidToken         = errors.New("jwt: invalid token")
)

type JWT interface {
	Generate(identityID int64, phoneNumber string) (string, error)
	Verify(token string) (Claims, error)
}

type Config struct {
	Secret    []byte
	Issuer    string
	Audiences []string
	TTL       time.Duration
	Clock     interface{ Now() time.Time } // stamps iat, nbf and exp
	UUID      interface{ Generate() string }
}

// Claims names the verified phone number twice: sub holds the identity id
// as a string, the private claims hold the typed values.
type Claims struct {
	jwt.RegisteredClaims
	IdentityID  int64  `json:"identity_id,string"`
	PhoneNumber string `json:"phone_number"`
}

type authKey struct{}

func SetAuth(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, authKey{}, c)
}

// GetAuth returns the claims of an authenticated request, or nil.
func GetAuth(ctx context.Context) *Claims {
	if c, ok := ctx.Value(authKey{}).(Claims); ok {
		return &c
	}
	return nil
}
