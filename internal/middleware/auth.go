package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/templui/twinboard/internal/ctxkeys"
	"github.com/templui/twinboard/internal/render"
	"github.com/templui/twinboard/internal/service"
)

const authCookieName = "auth_token"

// AuthMiddleware checks for a JWT and adds the user to the context if valid.
// The Authorization header wins over the auth_token cookie.
func AuthMiddleware(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, fromCookie := bearerToken(r), false
			if token == "" {
				cookie, err := r.Cookie(authCookieName)
				if err != nil {
					// No credentials, continue without auth
					next.ServeHTTP(w, r)
					return
				}
				token, fromCookie = cookie.Value, true
			}

			user, err := authService.VerifyJWT(token)
			if err != nil {
				slog.Debug("rejected token", "error", err, "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			ctx := ctxkeys.WithUser(r.Context(), user)
			if fromCookie {
				ctx = ctxkeys.WithCookieAuth(ctx)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth ensures the user is authenticated
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ctxkeys.User(r.Context()) == nil {
			render.Error(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
