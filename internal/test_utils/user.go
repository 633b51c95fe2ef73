package test_utils

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/schedr/schedr/pkg/user"
)

// SeedTestUser inserts a user row and returns a context scoped to it,
// ready for repository integration tests.
func SeedTestUser(ctx context.Context, db *pgxpool.Pool) (context.Context, user.User, error) {
	u := user.User{
		Uid:         "test-user-uid",
		Username:    "test_user",
		DisplayName: "Test User",
		Timezone:    "Europe/Warsaw",
	}
	created, err := user.NewUserService(user.NewUserRepo(db)).CreateUser(ctx, u)
	if err != nil {
		return ctx, user.User{}, err
	}
	return user.WithUser(ctx, created), created, nil
}
