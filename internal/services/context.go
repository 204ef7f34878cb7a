package services

import "context"

type ctxKey string

const userIDKey ctxKey = "auth_user_id"

// WithUserID attaches the authenticated portal user id to the context.
// The auth middleware calls this after verifying the bearer token.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}
