package middleware

import (
	"log/slog"
	"net/http"

	"go-messenger/internal/trust"
)

func RequireGateway(gate *trust.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !gate.AuthorizeRequest(r) {
				slog.Warn("unauthorized internal request",
					"client_ip", trust.ClientIP(r),
					"method", r.Method,
					"path", r.URL.Path,
					"secret_present", r.Header.Get(trust.HeaderGatewaySecret) != "",
				)
				writeJSONError(w, http.StatusForbidden, "FORBIDDEN", "Access denied")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequirePrincipal treats a missing or non-numeric X-User-ID as a broken
// gateway contract, not an anonymous caller.
func RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := trust.ForwardedPrincipal(r.Header)
		if !ok {
			slog.Warn("internal request without forwarded principal", "path", r.URL.Path, "client_ip", trust.ClientIP(r))
			writeJSONError(w, http.StatusBadRequest, "BAD_REQUEST", "missing user information from gateway")
			return
		}

		next.ServeHTTP(w, r.WithContext(trust.WithPrincipal(r.Context(), principal)))
	})
}
