package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/campuskeep/lostfound/internal/http/response"
	"github.com/campuskeep/lostfound/internal/platform/auth"
	"github.com/campuskeep/lostfound/pkg/logger"
)

type claimsKeyType struct{}

var claimsKey claimsKeyType

// RequireJWT rejects requests without a valid bearer token and stores the
// parsed claims on the context.
func RequireJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				response.Unauthorized(w, "Missing or invalid authorization header")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := auth.Parse(token, secret)
			if err != nil {
				response.WriteError(w, http.StatusUnauthorized, "Invalid token", "INVALID_TOKEN")
				return
			}

			ctx := context.WithValue(r.Context(), logger.UserIDKey, claims.Sub)
			ctx = context.WithValue(ctx, claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClaims returns the authenticated claims, or nil on public routes.
func GetClaims(r *http.Request) *auth.Claims {
	if claims, ok := r.Context().Value(claimsKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}
