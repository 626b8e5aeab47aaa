package session

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/tutor-admin/internal/models"
)

var parser = jwt.NewParser(jwt.WithoutClaimsValidation())

// DecodeClaims reads the claims of an access token without verifying its
// signature. The client never holds the signing key; the server stays the
// authority on validity.
func DecodeClaims(token string) (*models.Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("empty token")
	}
	claims := &models.Claims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("decode access token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("decode access token: missing exp claim")
	}
	return claims, nil
}
