package httpx

import (
	"net/http"

	"github.com/ariefcatur/drone-orders/internal/auth"
	"github.com/ariefcatur/drone-orders/internal/orders"
)

type tokenVerifier interface {
	Verify(token string) (orders.Principal, error)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller in the request context.
func RequireAuth(v tokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.BearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			p, err := v.Verify(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := auth.FromContext(r.Context()); !ok || !p.IsAdmin {
			writeError(w, http.StatusForbidden, string(orders.CodeForbidden), "administrator access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
