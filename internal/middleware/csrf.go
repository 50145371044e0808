package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/templui/twinboard/internal/ctxkeys"
	"github.com/templui/twinboard/internal/render"
)

const (
	csrfCookieName = "csrf_token"
	csrfHeader     = "X-CSRF-Token"
	csrfTokenLen   = 32
)

// CSRFProtection applies double-submit validation to state-changing requests
// that were authenticated by cookie. Bearer-token clients are not exposed to
// cross-site requests and skip the check.
func CSRFProtection(isProduction bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ctxkeys.CookieAuth(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}

			token := getOrGenerateCSRFToken(w, r, isProduction)

			// Skip CSRF check for safe methods (GET, HEAD, OPTIONS)
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			if !validCSRFToken(token, r.Header.Get(csrfHeader)) {
				slog.Warn("csrf validation failed",
					"path", r.URL.Path,
					"method", r.Method,
					"ip", getClientIP(r),
				)
				render.Error(w, r, http.StatusForbidden, "csrf", "invalid CSRF token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getOrGenerateCSRFToken retrieves existing token or generates new one.
// The cookie is readable by scripts so the browser client can echo it in the header.
func getOrGenerateCSRFToken(w http.ResponseWriter, r *http.Request, isProduction bool) string {
	cookie, err := r.Cookie(csrfCookieName)
	if err == nil && cookie.Value != "" && len(cookie.Value) == base64.RawURLEncoding.EncodedLen(csrfTokenLen) {
		return cookie.Value
	}

	token := generateCSRFToken()

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   86400 * 7, // 7 days
	})

	return token
}

// generateCSRFToken creates cryptographically secure random token
func generateCSRFToken() string {
	bytes := make([]byte, csrfTokenLen)
	_, err := rand.Read(bytes)
	if err != nil {
		panic("failed to generate csrf token: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(bytes)
}

// validCSRFToken performs constant-time comparison of tokens
func validCSRFToken(expected, actual string) bool {
	if expected == "" || actual == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(actual)) == 1
}
