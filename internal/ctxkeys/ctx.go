package ctxkeys

import (
	"context"

	"github.com/templui/twinboard/internal/model"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const (
	UserKey       contextKey = "user"
	CookieAuthKey contextKey = "cookie_auth"
	RequestIDKey  contextKey = "request_id"
)

func User(ctx context.Context) *model.User {
	user, _ := ctx.Value(UserKey).(*model.User)
	return user
}

func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// CookieAuth reports whether the user was authenticated from the auth_token
// cookie rather than a bearer header.
func CookieAuth(ctx context.Context) bool {
	v, _ := ctx.Value(CookieAuthKey).(bool)
	return v
}

func WithCookieAuth(ctx context.Context) context.Context {
	return context.WithValue(ctx, CookieAuthKey, true)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}
