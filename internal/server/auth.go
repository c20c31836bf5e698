package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/54b3r/resumechat/internal/logging"
)

// authRealm is the realm advertised in WWW-Authenticate challenges.
const authRealm = "resumechat"

// authMiddleware requires "Authorization: Bearer <apiKey>" on the wrapped
// handler. An empty apiKey disables the check entirely; New logs that once at
// startup. Token values are never logged.
func authMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	want := []byte(apiKey)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, present := bearerToken(r)
		switch {
		case !present:
			logging.FromContext(r.Context()).Warn("auth: missing bearer token")
			challenge(w, r, "")
		case subtle.ConstantTimeCompare([]byte(token), want) != 1:
			logging.FromContext(r.Context()).Warn("auth: invalid bearer token", slog.Bool("token_present", true))
			challenge(w, r, "invalid_token")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// challenge writes a 401 with a Bearer challenge and a JSON error body.
func challenge(w http.ResponseWriter, r *http.Request, errCode string) {
	v := `Bearer realm="` + authRealm + `"`
	msg := "authorization required"
	if errCode != "" {
		v += ` error="` + errCode + `"`
		msg = "invalid token"
	}
	w.Header().Set("WWW-Authenticate", v)
	writeError(w, r, http.StatusUnauthorized, msg)
}

// bearerToken extracts the token of a Bearer Authorization header. The
// scheme is case-insensitive. ok is false when the header is absent, uses
// another scheme, or carries an empty token.
func bearerToken(r *http.Request) (token string, ok bool) {
	scheme, rest, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(rest)
	return token, token != ""
}
