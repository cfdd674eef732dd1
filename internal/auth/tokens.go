// Package auth issues and verifies the service's JWTs, hashes passwords and provides the gin
// middleware that resolves the current user.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token scopes. A token is only accepted for the purpose it was issued for.
const (
	ScopeAccess  = "access_token"
	ScopeRefresh = "refresh_token"
	ScopeEmail   = "email_token"
)

const issuer = "address-book"

var (
	// ErrInvalidToken is returned for tokens that are malformed, expired or badly signed.
	ErrInvalidToken = errors.New("invalid token")
	// ErrWrongScope is returned for valid tokens presented for another purpose.
	ErrWrongScope = errors.New("invalid scope for token")
)

// Claims are the JWT claims of all tokens. The subject is the user's email address.
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies HS256 tokens.
type TokenService struct {
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	emailExpiry   time.Duration
	now           func() time.Time
}

// NewTokenService creates a token service with the given signing secret and lifetimes.
func NewTokenService(secret string, accessExpiry, refreshExpiry, emailExpiry time.Duration) *TokenService {
	return &TokenService{
		secret:        []byte(secret),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		emailExpiry:   emailExpiry,
		now:           time.Now,
	}
}

// CreateAccessToken issues a short-lived token for API calls.
func (s *TokenService) CreateAccessToken(email string) (string, error) {
	return s.sign(email, ScopeAccess, s.accessExpiry)
}

// CreateRefreshToken issues a long-lived token that can be exchanged for a new token pair.
func (s *TokenService) CreateRefreshToken(email string) (string, error) {
	return s.sign(email, ScopeRefresh, s.refreshExpiry)
}

// CreateEmailToken issues the token embedded in the verification email.
func (s *TokenService) CreateEmailToken(email string) (string, error) {
	return s.sign(email, ScopeEmail, s.emailExpiry)
}

// DecodeAccessToken returns the email address of a valid access token.
func (s *TokenService) DecodeAccessToken(token string) (string, error) {
	return s.decode(token, ScopeAccess)
}

// DecodeRefreshToken returns the email address of a valid refresh token.
func (s *TokenService) DecodeRefreshToken(token string) (string, error) {
	return s.decode(token, ScopeRefresh)
}

// DecodeEmailToken returns the email address of a valid verification token.
func (s *TokenService) DecodeEmailToken(token string) (string, error) {
	return s.decode(token, ScopeEmail)
}

func (s *TokenService) sign(email, scope string, lifetime time.Duration) (string, error) {
	now := s.now().UTC()
	claims := Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			Issuer:    issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("could not sign %s: %w", scope, err)
	}
	return signed, nil
}

func (s *TokenService) decode(token, scope string) (string, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Scope != scope {
		return "", ErrWrongScope
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}
