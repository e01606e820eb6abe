package auth

import (
	"context"
	"encoding/json"
	"net/http"
)

// HeaderRole carries the caller's role as set by the authenticating proxy.
const HeaderRole = "X-User-Role"

type ctxKey struct{}

func RoleFrom(ctx context.Context) (Role, bool) {
	r, ok := ctx.Value(ctxKey{}).(Role)
	return r, ok
}

// Require rejects requests whose role lacks c: 401 without a known role, 403 otherwise.
func Require(c Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := ParseRole(r.Header.Get(HeaderRole))
			if !ok {
				deny(w, http.StatusUnauthorized, "missing or unknown role")
				return
			}
			if !Can(role, c) {
				deny(w, http.StatusForbidden, "role "+string(role)+" cannot "+string(c))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, role)))
		})
	}
}

func deny(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
