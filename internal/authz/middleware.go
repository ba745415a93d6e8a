package authz

import (
	"log/slog"
	"net/http"

	"github.com/meridian-ip/meridian/internal/authz/catalog"
	"github.com/meridian-ip/meridian/internal/shared"
)

// Middleware wires authorization helpers for HTTP handlers.
type Middleware struct {
	Resolver *Resolver
	Logger   *slog.Logger
}

// WithMemo installs a fresh per-request resolution memo. Mount it once at
// the top of the router so every check within one request shares it and
// nothing survives the request.
func (m Middleware) WithMemo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithMemo(r.Context())))
	})
}

// RequireAny ensures the current actor holds at least one of the permissions.
func (m Middleware) RequireAny(perms ...catalog.Permission) func(http.Handler) http.Handler {
	return m.require(perms, func(ok []bool) bool {
		for _, v := range ok {
			if v {
				return true
			}
		}
		return false
	})
}

// RequireAll ensures the current actor holds every one of the permissions.
func (m Middleware) RequireAll(perms ...catalog.Permission) func(http.Handler) http.Handler {
	return m.require(perms, func(ok []bool) bool {
		for _, v := range ok {
			if !v {
				return false
			}
		}
		return true
	})
}

func (m Middleware) require(perms []catalog.Permission, decide func([]bool) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(perms) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			userID, ok := shared.ActorFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			held, err := m.Resolver.EffectivePermissions(r.Context(), userID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("authz middleware", slog.Int64("user_id", userID), slog.Any("error", err))
				}
				// Resolution failure is a closed door, not a 500 leak of
				// authority state.
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			results := make([]bool, len(perms))
			for i, p := range perms {
				results[i] = holds(held, p)
			}
			if decide(results) {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}
