package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials exchanged at the token endpoint.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest exchanges a refresh token for a new pair.
type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// TokenPair is the wire shape of the token endpoints and the persisted session value.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Empty reports whether the pair carries no access token.
func (p TokenPair) Empty() bool {
	return p.Access == ""
}

// Claims represents the identity attributes decoded from an access token.
type Claims struct {
	UserID    int64  `json:"user_id,omitempty"`
	Username  string `json:"username,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	jwt.RegisteredClaims
}

// Expiry returns the expiry instant, or the zero time when the claim is absent.
func (c *Claims) Expiry() time.Time {
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Session bundles the credential pair with its derived claims.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
	Claims       *Claims
}

// Pair returns the persisted representation of the session.
func (s *Session) Pair() TokenPair {
	if s == nil {
		return TokenPair{}
	}
	return TokenPair{Access: s.AccessToken, Refresh: s.RefreshToken}
}

// Clone returns a deep copy, nil for a nil session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Claims != nil {
		claims := *s.Claims
		out.Claims = &claims
	}
	return &out
}
