package api

import (
	"context"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/warp/leave-dashboard/auth"
	"github.com/warp/leave-dashboard/ledger"
)

type actorKey struct{}

// AuthRequired rejects requests without a valid session token and stores the
// token's actor in the request context. Runs after jwtauth.Verifier.
func AuthRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, _, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			writeError(w, http.StatusUnauthorized, "Authentication required", err)
			return
		}

		actor, err := auth.ActorFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Authentication required", err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

// RequireRole allows only actors with the given role.
func RequireRole(role ledger.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if actorFrom(r).Role != role {
				writeError(w, http.StatusForbidden, "Permission denied", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
