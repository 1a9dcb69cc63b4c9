package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/vortexplay/arena-server/services"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// Authenticate validates the bearer token and stores its claims in the
// request context.
func Authenticate(auth services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				http.Error(w, "missing or malformed Authorization header", http.StatusUnauthorized)
				return
			}

			claims, err := auth.ParseToken(token)
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func UserIDFromContext(ctx context.Context) (int, error) {
	claims, ok := ctx.Value(claimsContextKey).(*services.Claims)
	if !ok || claims.UserID <= 0 {
		return 0, errors.New("user claims not found in context")
	}
	return claims.UserID, nil
}
