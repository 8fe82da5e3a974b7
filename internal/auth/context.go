package auth

import (
	"context"

	"github.com/shopdesk/apiserver/types"
)

type contextKey string

const contextUserKey contextKey = "user"

// WithUser binds the authenticated user to ctx.
func WithUser(ctx context.Context, user types.User) context.Context {
	return context.WithValue(ctx, contextUserKey, user)
}

// UserFromContext returns the user bound by WithUser.
func UserFromContext(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	return user, ok
}
