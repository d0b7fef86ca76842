package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/herdwatch/herdwatch/pkg/cryptox"
)

// Default token TTL constants.
const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	DefaultAccessTokenTTL = 15 * time.Minute

	// RefreshTokenTTL is the hard cap on refresh token lifetime. The session
	// store uses the same value for its own expiry.
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// Token types carried in the "typ" claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Claims are the claims carried by both access and refresh tokens. The two
// are told apart by Type and by being signed with different secrets.
type Claims struct {
	jwt.RegisteredClaims

	// Type is "access" or "refresh".
	Type string `json:"typ,omitempty"`
}

// NewClaims builds minimally-correct claims for subject.
func NewClaims(subject, typ, issuer string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Type: typ,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim. Two tokens
// minted for the same subject within the same second still differ because of it.
func NewJTI() string {
	return cryptox.MustGenerateToken(cryptox.TokenSize128)
}

// ValidateType checks that the token is of the expected kind.
func (c *Claims) ValidateType(expected string) error {
	if c.Type != expected {
		return ErrWrongType
	}
	return nil
}
