package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/render"

	"meme-studio/handlers/auth"
)

type contextKey string

const ClaimsContextKey = contextKey("claims")

// ClaimsFromContext returns the claims stored by AuthJWT or OptionalAuthJWT.
func ClaimsFromContext(ctx context.Context) (*auth.AppClaims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*auth.AppClaims)
	return claims, ok && claims != nil
}

func bearerToken(r *http.Request) (string, string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", "Authorization header is required"
	}
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", "Authorization header format must be Bearer {token}"
	}
	return parts[1], ""
}

// AuthJWT rejects requests without a valid bearer token.
func AuthJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, problem := bearerToken(r)
		if problem != "" {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": problem})
			return
		}

		claims, err := auth.ParseJWT(tokenString)
		if err != nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Invalid token"})
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuthJWT attaches claims when a valid token is present and lets
// anonymous requests through.
func OptionalAuthJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, problem := bearerToken(r)
		if problem == "" {
			if claims, err := auth.ParseJWT(tokenString); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), ClaimsContextKey, claims))
			}
		}
		next.ServeHTTP(w, r)
	})
}
