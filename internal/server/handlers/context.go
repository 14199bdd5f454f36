package handlers

import "context"

// contextKey тип для ключей контекста, чтобы избежать коллизий
type contextKey string

const (
	// UserIDKey ключ для user ID в контексте, заполняется AuthMiddleware
	UserIDKey contextKey = "user_id"
	// UsernameKey ключ для username в контексте
	UsernameKey contextKey = "username"
)

// UserFromContext returns the authenticated user id and username.
func UserFromContext(ctx context.Context) (userID, username string, ok bool) {
	userID, ok = ctx.Value(UserIDKey).(string)
	if !ok || userID == "" {
		return "", "", false
	}
	username, _ = ctx.Value(UsernameKey).(string)
	return userID, username, true
}

// WithUser stores the authenticated user in ctx.
func WithUser(ctx context.Context, userID, username string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, UsernameKey, username)
}
