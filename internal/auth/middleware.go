package auth

import (
	"context"
	"net/http"
	"strings"

	"PharmaStore/pkg/web"
)

type ctxKey string

const identityKey ctxKey = "identity"

// Identity is the authenticated caller, carried in the request context.
// It replaces any notion of a process-wide "current user".
type Identity struct {
	UserID string
	Email  string
	Role   Role
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// WithIdentity attaches the caller to the context. Handlers read it back
// with IdentityFromContext; tests can inject a caller without minting a token.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// RequireUser rejects requests without a valid bearer token and stores the
// caller's identity in the context.
func RequireUser(jwt *TokenMaker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(authz, "Bearer ") {
				web.WriteError(w, r, http.StatusUnauthorized, "missing token")
				return
			}

			claims, err := jwt.Parse(strings.TrimPrefix(authz, "Bearer "))
			if err != nil || claims.UserID == "" {
				web.WriteError(w, r, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := WithIdentity(r.Context(), Identity{
				UserID: claims.UserID,
				Email:  claims.Email,
				Role:   claims.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin must be chained after RequireUser.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			web.WriteError(w, r, http.StatusUnauthorized, "no user")
			return
		}
		if !id.IsAdmin() {
			web.WriteError(w, r, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
