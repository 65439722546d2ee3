package authz

import (
	"errors"
	"net/http"

	"quicksend/internal/httpx"
	obsmw "quicksend/internal/observability/middleware"
)

// Require rejects requests that do not authenticate with scheme and stores
// the resulting principal on the request context.
func (a *Authenticator) Require(scheme Scheme) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := a.Authenticate(r, scheme)
			if err != nil {
				log := obsmw.Logger(r.Context())
				var aerr *Error
				if errors.As(err, &aerr) {
					if aerr.Challenge != "" {
						w.Header().Set("WWW-Authenticate", aerr.Challenge)
					}
					log.Info("authorization rejected", "scheme", scheme, "status", aerr.Status, "reason", aerr.Error())
					httpx.WriteError(w, aerr.Status, aerr.Message)
					return
				}
				log.Error("authorization failed", "scheme", scheme, "error", err)
				httpx.WriteError(w, http.StatusInternalServerError, "Unexpected error")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}
