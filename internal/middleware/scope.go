package middleware

import "net/http"

// RequireScope rejects requests whose token does not carry scope. It must run
// after Auth.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if scope != "" && !claims.HasScope(scope) {
				http.Error(w, "missing required scope", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
