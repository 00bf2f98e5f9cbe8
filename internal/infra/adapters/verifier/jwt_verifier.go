// File: internal/infra/adapters/verifier/jwt_verifier.go
package verifier

import (
	"context"

	"github.com/imagerestore/controlplane/internal/domain"
	"github.com/imagerestore/controlplane/internal/domain/ports/adapter"

	"github.com/golang-jwt/jwt/v5"
)

var _ adapter.TokenVerifier = (*JWTVerifier)(nil)

// JWTVerifier validates an HMAC-signed bearer token and resolves the "sub"
// claim to a user id (spec.md §6: verify(bearer) -> {user_id, email?,
// verified}). This is the production stand-in for whatever identity
// provider issues the caller's tokens.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(ctx context.Context, bearer string) (adapter.Identity, error) {
	token, err := jwt.Parse(bearer, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return adapter.Identity{}, domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return adapter.Identity{}, domain.ErrUnauthorized
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return adapter.Identity{}, domain.ErrUnauthorized
	}
	email, _ := claims["email"].(string)

	return adapter.Identity{UserID: sub, Email: email, Verified: true}, nil
}
