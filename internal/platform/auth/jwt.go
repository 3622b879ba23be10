// Package auth resolves the identity behind a request. Identities are issued
// by an external provider; this service only verifies HS256 bearer tokens
// and otherwise trusts the uid asserted by the client.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/example/discussion/internal/platform/api"
	"github.com/example/discussion/internal/platform/httpserver"
)

// ErrIdentityMismatch is returned when the asserted uid differs from the
// verified token subject.
var ErrIdentityMismatch = errors.New("uid does not match the authenticated user")

type ctxKeyUserID struct{}

func UserIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyUserID{}).(string)
	return v, ok
}

// WithUserID injects user_id into context. Useful for testing.
func WithUserID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, ctxKeyUserID{}, uid)
}

type Claims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

type JWTVerifier struct {
	Secret []byte
}

func (v JWTVerifier) Parse(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return v.Secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// OptionalUser validates a Bearer token when one is sent and injects its
// subject into the context. Requests without an Authorization header pass
// through untouched; a present but invalid token is rejected with 401.
func OptionalUser(verifier JWTVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := strings.TrimSpace(r.Header.Get("Authorization"))
			if authz == "" {
				next.ServeHTTP(w, r)
				return
			}
			parts := strings.SplitN(authz, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				api.Unauthorized(w, "INVALID_TOKEN", "invalid bearer token", httpserver.RequestIDFromContext(r.Context()))
				return
			}
			claims, err := verifier.Parse(strings.TrimSpace(parts[1]))
			if err != nil || strings.TrimSpace(claims.Subject) == "" {
				api.Unauthorized(w, "INVALID_TOKEN", "invalid bearer token", httpserver.RequestIDFromContext(r.Context()))
				return
			}
			ctx := WithUserID(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ResolveUID picks the acting user id. A verified subject in ctx wins over a
// missing assertion and must equal a present one.
func ResolveUID(ctx context.Context, asserted string) (string, error) {
	asserted = strings.TrimSpace(asserted)
	subject, ok := UserIDFromContext(ctx)
	if !ok || subject == "" {
		return asserted, nil
	}
	if asserted != "" && asserted != subject {
		return "", ErrIdentityMismatch
	}
	return subject, nil
}
