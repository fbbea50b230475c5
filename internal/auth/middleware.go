package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/taiwoajasa245/verse-collections-api/pkg/response"
	"github.com/taiwoajasa245/verse-collections-api/pkg/util"
)

type contextKey string

const (
	userContextKey   contextKey = "user"
	userIDContextKey contextKey = "user_id"
)

// AuthMiddleware rejects requests without a valid bearer token and stores the
// token's claims on the request context.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			response.Error(w, http.StatusUnauthorized, "Missing Authorization header", "user not logged in")
			return
		}

		// Must start with "Bearer "
		tokenStr, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			response.Error(w, http.StatusUnauthorized, "Invalid token format", "")
			return
		}

		claims, err := util.ValidateJWT(tokenStr)
		if err != nil {
			response.Error(w, http.StatusUnauthorized, "Invalid or expired token", "")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func WithClaims(ctx context.Context, claims *util.Claims) context.Context {
	ctx = context.WithValue(ctx, userContextKey, claims)
	return context.WithValue(ctx, userIDContextKey, claims.UserID)
}

func GetUserFromContext(r *http.Request) (*util.Claims, bool) {
	claims, ok := r.Context().Value(userContextKey).(*util.Claims)
	return claims, ok
}

func GetUserIDFromContext(r *http.Request) (int, bool) {
	id, ok := r.Context().Value(userIDContextKey).(int)
	return id, ok
}
