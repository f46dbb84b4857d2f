package jwt

import (
	"errors"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

const minHS512KeyLen = 64

type Symmetric struct {
	cfg    Config
	parser *jwt.Parser
}

func NewHS512(cfg Config) (*Symmetric, error) {
	if len(cfg.Secret) < minHS512KeyLen {
		return nil, ErrSigningKeyTooShort
	}

	return &Symmetric{
		cfg: cfg,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithAudience(cfg.Audiences...),
			jwt.WithIssuedAt(),
			jwt.WithExpirationRequired(),
		),
	}, nil
}

func (s *Symmetric) Generate(identityID int64, phoneNumber string) (string, error) {
	now := s.cfg.Clock.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.cfg.UUID.Generate(),
			Subject:   strconv.FormatInt(identityID, 10),
			Issuer:    s.cfg.Issuer,
			Audience:  s.cfg.Audiences,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TTL)),
		},
		IdentityID:  identityID,
		PhoneNumber: phoneNumber,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(s.cfg.Secret)
}

// Verify checks signature, issuer, audience and lifetime against wall time.
func (s *Symmetric) Verify(token string) (Claims, error) {
	var claims Claims
	parsed, err := s.parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS512 {
			return nil, ErrInvalidSigningMethod
		}
		return s.cfg.Secret, nil
	})

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrTokenExpired
	case err != nil:
		return Claims{}, errors.Join(ErrInvalidToken, err)
	case !parsed.Valid:
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
