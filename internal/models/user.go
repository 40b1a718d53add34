package models

import (
	"github.com/golang-jwt/jwt/v4"
)

// Roles carried in access tokens.
const (
	RoleVolunteer   = "volunteer"
	RoleCoordinator = "coordinator"
	RoleAdmin       = "admin"
)

// Identity is the authenticated caller resolved from a bearer token.
type Identity struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}
