package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds role-qualified credentials for authenticating a principal.
type LoginRequest struct {
	Role     UserRole `json:"role" validate:"required,oneof=ADMIN TEACHER"`
	Username string   `json:"username" validate:"required"`
	Password string   `json:"password" validate:"required"`
}

// LoginResponse returns the issued token and principal info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
	Principal   Principal `json:"principal"`
}

// Principal describes the authenticated identity attached to a request.
type Principal struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Username string   `json:"username"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Principal projects the claims into the request-scoped identity.
func (c *JWTClaims) Principal() Principal {
	return Principal{
		ID:       c.UserID,
		Username: c.Username,
		FullName: c.FullName,
		Role:     c.Role,
	}
}
