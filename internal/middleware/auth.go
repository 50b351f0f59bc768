package middleware

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// AuthCookie is the cookie set by a successful login.
const AuthCookie = "authenticated"

// sessionKey is regenerated on every start, so restarts log everyone out.
var sessionKey = newSessionKey()

func newSessionKey() []byte {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic("failed to generate session key: " + err.Error())
	}
	return key
}

// SessionToken is the auth cookie value issued for password.
func SessionToken(password string) string {
	mac := hmac.New(sha256.New, sessionKey)
	mac.Write([]byte(password))
	return hex.EncodeToString(mac.Sum(nil))
}

// AuthMiddleware checks that the user is logged in with a session token
// issued for password. An empty password disables the check.
func AuthMiddleware(password string, next http.Handler) http.Handler {
	if password == "" {
		return next
	}

	token := []byte(SessionToken(password))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		// Login page, static assets, metrics and the detector feed are public
		if r.URL.Path == "/login" ||
			r.URL.Path == "/auth/login" ||
			r.URL.Path == "/metrics" ||
			r.URL.Path == "/api/detector" ||
			strings.HasPrefix(r.URL.Path, "/css/") ||
			strings.HasPrefix(r.URL.Path, "/js/") ||
			strings.HasPrefix(r.URL.Path, "/static/") {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(AuthCookie)
		if err != nil || subtle.ConstantTimeCompare([]byte(cookie.Value), token) != 1 {
			// API calls get 401, pages get redirected to the login form
			if strings.HasPrefix(r.URL.Path, "/api/") ||
				r.Header.Get("X-Requested-With") == "XMLHttpRequest" ||
				r.Header.Get("Content-Type") == "application/json" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
