package models

import "time"

// RefreshToken is a refresh token issued by the development backend.
type RefreshToken struct {
	ID        string
	Username  string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}
