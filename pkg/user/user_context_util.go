package user

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
)

type contextKey string

const userKey contextKey = "user"

// ErrNoUser means the context carries no resolved user. Requests get one from
// the X-User-Id middleware; everything reaching a service without it is a bug
// or an unauthenticated call.
var ErrNoUser = errors.New("user not found")

// CurrentId returns the id every series and calendar query is scoped by.
func CurrentId(ctx context.Context) (int, error) {
	u, ok := ctx.Value(userKey).(User)
	if !ok {
		log.Trace("user not found in context")
		return 0, ErrNoUser
	}
	return u.Id, nil
}

// WithUser attaches the resolved user to the context.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey, u)
}
