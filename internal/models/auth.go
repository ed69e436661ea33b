package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims represents the bearer token payload supplied by the auth provider.
// TenantID is set for pro and staff identities.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	TenantID string   `json:"tenant_id,omitempty"`
	jwt.RegisteredClaims
}

// IssueTokenRequest is used by tooling and tests to mint tokens locally.
type IssueTokenRequest struct {
	UserID   string   `json:"user_id" validate:"required"`
	Role     UserRole `json:"role" validate:"required,oneof=client pro staff"`
	Email    string   `json:"email" validate:"omitempty,email"`
	TenantID string   `json:"tenant_id" validate:"required_unless=Role client"`
}

// TokenResponse returns an issued access token.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
}
