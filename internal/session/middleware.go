// Package session resolves who is using the storefront. A request either
// carries a valid bearer token, is anonymous, or is rejected.
package session

import (
	"context"
	"net/http"
	"strings"

	"CandleShop/pkg/kit"
)

type ctxKey struct{}

type User struct {
	ID    string
	Email string
}

func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(ctxKey{}).(User)
	return u, ok
}

func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// Optional attaches the session user when a bearer token is present. A
// malformed or expired token is rejected; no token means anonymous.
func Optional(tm *TokenMaker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if authz == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !strings.HasPrefix(authz, "Bearer ") {
				kit.WriteError(w, r, http.StatusUnauthorized, "invalid token", nil)
				return
			}

			claims, err := tm.Parse(strings.TrimPrefix(authz, "Bearer "))
			if err != nil {
				kit.WriteError(w, r, http.StatusUnauthorized, "invalid token", nil)
				return
			}

			ctx := WithUser(r.Context(), User{ID: claims.UserID, Email: claims.Email})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Required rejects requests without a session user. It must run after
// Optional.
func Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			kit.WriteError(w, r, http.StatusUnauthorized, "login required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
