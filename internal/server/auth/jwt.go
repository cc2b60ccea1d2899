// Package auth issues and decodes the bearer tokens handed to clients.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/homeserver/internal/clock"
	"github.com/dmitrijs2005/homeserver/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

var ErrorEmptySecret = errors.New("empty signing secret")

// Claims are the registered claims (sub = username, iat, exp) plus the
// numeric account id.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"user_id"`
}

// TokenService signs HS256 tokens with one process-wide secret.
// Tokens are not stored; validity is signature plus expiry.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
	parser *jwt.Parser
}

func NewTokenService(secret []byte, ttl time.Duration, c clock.Clock) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, ErrorEmptySecret
	}
	if c == nil {
		c = clock.Real()
	}
	return &TokenService{
		secret: secret,
		ttl:    ttl,
		clock:  c,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(c.Now),
		),
	}, nil
}

// TTL is the lifetime given to new tokens.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue signs a token for identity valid for the configured TTL.
func (s *TokenService) Issue(identity *models.Identity) (string, error) {
	now := s.clock.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		UserID: identity.ID,
	})

	return token.SignedString(s.secret)
}

// Decode verifies tokenString and returns its claims. Any failure (bad
// signature, other algorithm, malformed payload, missing subject or user
// id, expiry) yields false.
func (s *TokenService) Decode(tokenString string) (*Claims, bool) {
	if tokenString == "" {
		return nil, false
	}

	claims := &Claims{}
	token, err := s.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}
	if claims.Subject == "" || claims.UserID <= 0 {
		return nil, false
	}

	return claims, true
}
