package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"crowdtrack-backend/pkg/config"
	"crowdtrack-backend/pkg/models"
	"crowdtrack-backend/pkg/policy"
	"crowdtrack-backend/pkg/utils"
)

// ContextKey is the type for values this package stores on the request
// context.
type ContextKey string

const IdentityContextKey ContextKey = "identity"

// AuthMiddleware validates the bearer token and stores the resolved identity
// on the request context. Only access tokens pass; refresh tokens are
// rejected here.
func AuthMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.WriteUnauthorizedResponse(w, "Missing authorization header")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				utils.WriteUnauthorizedResponse(w, "Invalid authorization header format")
				return
			}

			token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(cfg.JWTSecret), nil
			})
			if err != nil || !token.Valid {
				utils.WriteUnauthorizedResponse(w, "Invalid token")
				return
			}

			claims, ok := token.Claims.(*models.TokenClaims)
			if !ok {
				utils.WriteUnauthorizedResponse(w, "Invalid token claims")
				return
			}
			if claims.Type != "access" {
				utils.WriteUnauthorizedResponse(w, "Invalid token type")
				return
			}
			if time.Now().Unix() > claims.Exp {
				utils.WriteUnauthorizedResponse(w, "Token expired")
				return
			}

			identity := policy.Identity{
				LoginName: claims.LoginName,
				Role:      claims.Role,
			}
			ctx := context.WithValue(r.Context(), IdentityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects callers whose identity does not carry the given role.
// Mounted per route group so role violations are reported before the handler
// looks anything up.
func RequireRole(role models.AccountRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := GetIdentityFromContext(r.Context())
			if !ok {
				utils.WriteUnauthorizedResponse(w, "Not authenticated")
				return
			}
			if identity.Role != role {
				utils.WriteForbiddenResponse(w, fmt.Sprintf("%s role required", role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetIdentityFromContext returns the identity AuthMiddleware stored.
func GetIdentityFromContext(ctx context.Context) (policy.Identity, bool) {
	identity, ok := ctx.Value(IdentityContextKey).(policy.Identity)
	return identity, ok
}

// RequireIdentity returns the caller's identity or an error when the request
// was not authenticated.
func RequireIdentity(ctx context.Context) (policy.Identity, error) {
	identity, ok := GetIdentityFromContext(ctx)
	if !ok {
		return policy.Identity{}, fmt.Errorf("not authenticated")
	}
	return identity, nil
}
