// Package auth is the thin identity adapter in front of the transactional
// core. It verifies credentials, hands out opaque bearer tokens kept in
// Redis and injects the principal into request context. The core itself
// never re-authenticates.
package auth

import (
	"time"

	"github.com/opentill/opentill/internal/shared"
)

// User is an account that can operate a till.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	LocationID   int64     `json:"location_id"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LoginRequest carries credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginResponse returns the bearer token and the principal it maps to.
type LoginResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Principal shared.Principal `json:"principal"`
}

// ErrInvalidCredentials hides whether the email or the password was wrong.
var ErrInvalidCredentials = shared.NewError(shared.KindForbidden, "invalid credentials")

// ErrTokenExpired is returned for unknown or expired tokens.
var ErrTokenExpired = shared.NewError(shared.KindForbidden, "session expired")
