// Package token persists the access/refresh token pair of the current session.
package token

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrEmptyToken indicates an attempt to store a pair without an access token.
	ErrEmptyToken = errors.New("access token cannot be empty")

	// ErrUnsupportedStore indicates an unknown store type in Config.
	ErrUnsupportedStore = errors.New("unsupported token store type")
)

// Pair is the credential pair used to authenticate requests.
type Pair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// IsZero reports whether the pair holds no credentials.
func (p Pair) IsZero() bool {
	return p.Access == "" && p.Refresh == ""
}

// Store holds at most one token pair.
//
// Readers never observe a refresh token paired with a stale access token: SetTokens replaces
// both values in a single write and Tokens reads both values together.
type Store interface {
	// AccessToken returns the current access token, or "" when absent.
	AccessToken(ctx context.Context) string

	// RefreshToken returns the current refresh token, or "" when absent.
	RefreshToken(ctx context.Context) string

	// Tokens returns the current pair and whether one is stored.
	Tokens(ctx context.Context) (Pair, bool)

	// SetTokens overwrites the stored pair.
	SetTokens(ctx context.Context, pair Pair) error

	// Clear removes the stored pair. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// AccessExpiry returns the exp claim of a JWT access token without verifying its signature.
// Opaque tokens, or tokens without exp, report false.
func AccessExpiry(access string) (time.Time, bool) {
	if access == "" {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// ExpiresWithin reports whether the access token is a JWT that expires within d from now.
func ExpiresWithin(access string, d time.Duration) bool {
	exp, ok := AccessExpiry(access)
	if !ok {
		return false
	}
	return time.Until(exp) <= d
}

func validate(pair Pair) error {
	if pair.Access == "" {
		return ErrEmptyToken
	}
	return nil
}
