// Package testutil holds helpers shared by package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/tutor-admin/internal/models"
)

// TestSecret signs every token produced by SignToken.
const TestSecret = "test-secret"

// SignToken issues an HS256 access token for username expiring at exp.
func SignToken(t testing.TB, username string, exp time.Time) string {
	t.Helper()
	claims := &models.Claims{
		UserID:    7,
		Username:  username,
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(exp.Add(-5 * time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(TestSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
