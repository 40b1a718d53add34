package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/models"
)

// Context keys set by Auth.
const (
	ContextUserID   = "userID"
	ContextRole     = "role"
	ContextIdentity = "identity"
)

// ErrInvalidToken is returned by verifiers for any token they reject.
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenVerifier resolves a bearer token to the caller's identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.Identity, error)
}

// Auth verifies the bearer token of every request. Websocket clients cannot
// set headers from the browser, so a token query parameter is accepted too.
func Auth(verifier TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := bearerToken(c)
			if err != nil {
				return err
			}

			identity, err := verifier.Verify(c.Request().Context(), token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}

			c.Set(ContextUserID, identity.UserID)
			c.Set(ContextRole, identity.Role)
			c.Set(ContextIdentity, identity)
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		if token := c.QueryParam("token"); token != "" {
			return token, nil
		}
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
	}

	// Expecting "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
	}
	return parts[1], nil
}

// RequireRole rejects callers whose role is not one of roles. It must run
// after Auth.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(ContextRole).(string)
			if !slices.Contains(roles, role) {
				return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
			}
			return next(c)
		}
	}
}

// UserID returns the authenticated user id, or "" outside Auth.
func UserID(c echo.Context) string {
	id, _ := c.Get(ContextUserID).(string)
	return id
}

// Identity returns the authenticated identity, or nil outside Auth.
func Identity(c echo.Context) *models.Identity {
	identity, _ := c.Get(ContextIdentity).(*models.Identity)
	return identity
}
