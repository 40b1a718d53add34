package middleware

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/models"
)

// JWTVerifier checks HMAC-signed access tokens carrying JwtCustomClaims.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(_ context.Context, tokenString string) (*models.Identity, error) {
	claims := &models.JwtCustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	role := claims.Role
	if role == "" {
		role = models.RoleVolunteer
	}
	return &models.Identity{UserID: claims.UserID, Email: claims.Email, Role: role}, nil
}

// SignToken issues a token for identity. Login is handled elsewhere; this
// serves tooling and tests.
func (v *JWTVerifier) SignToken(identity models.Identity, claims jwt.RegisteredClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JwtCustomClaims{
		UserID:           identity.UserID,
		Email:            identity.Email,
		Role:             identity.Role,
		RegisteredClaims: claims,
	})
	return token.SignedString(v.secret)
}
