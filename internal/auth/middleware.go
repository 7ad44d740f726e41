package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"notably-ai/internal/contextutil"
)

type contextKey string

const ownerKey contextKey = "owner_id"

// Middleware extracts the owner identity from a Bearer token when one is
// present. A missing or invalid token downgrades the request to anonymous
// rather than rejecting it; trial mode is a first-class state, not an error.
func Middleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ownerID, ok := ownerFromHeader(r, secret)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			logger := contextutil.LoggerFromContext(r.Context()).With("owner_id", ownerID)
			ctx := contextutil.WithLogger(r.Context(), logger)
			ctx = context.WithValue(ctx, ownerKey, ownerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OwnerFromContext returns the authenticated owner ID, if any.
func OwnerFromContext(ctx context.Context) (string, bool) {
	ownerID, ok := ctx.Value(ownerKey).(string)
	return ownerID, ok && ownerID != ""
}

func ownerFromHeader(r *http.Request, secret string) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", false
	}

	// "sub" is the standard subject claim; "user_id" is accepted for
	// tokens minted by older clients.
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub, true
	}
	if userID, ok := claims["user_id"].(string); ok && userID != "" {
		return userID, true
	}
	return "", false
}
