package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	perr "rolesync/internal/platform/errors"
	pnet "rolesync/internal/platform/net"
)

// AdminPrincipal is the principal recorded for callers holding the admin token
const AdminPrincipal = "admin"

// AdminToken guards a route group with a static bearer token.
// An empty token disables the group: every call is Forbidden
func AdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				writeErr(w, r, perr.Forbiddenf("admin api disabled"))
				return
			}
			got, ok := bearer(r)
			if !ok {
				writeErr(w, r, perr.Unauthorizedf("missing bearer token"))
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeErr(w, r, perr.Unauthorizedf("invalid bearer token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(pnet.WithPrincipal(r.Context(), AdminPrincipal)))
		})
	}
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status, body := pnet.Error(err, pnet.RequestID(r.Context()))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
