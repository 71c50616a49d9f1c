package auth

import (
	"context"
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"relay/infrastructure"
	"relay/internal/database"
	"relay/internal/user"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(context.Background(), db, zerolog.Nop()))
	return db
}

func newTestService(t *testing.T) (*Service, user.Repository) {
	t.Helper()

	cfg := testTokenConfig()
	cfg.BcryptCost = bcrypt.MinCost
	cfg.PasswordMinEntropy = 40

	users := user.NewRepository(newTestDB(t), cfg.BcryptCost)
	return NewService(cfg, users, NewTokenManager(cfg)), users
}

func registration(username, email string) user.Registration {
	return user.Registration{
		Username: username,
		Email:    email,
		Password: "correct-horse-battery",
	}
}

func TestRegisterIssuesToken(t *testing.T) {
	req := require.New(t)
	svc, users := newTestService(t)
	ctx := context.Background()

	u, token, err := svc.Register(ctx, registration("alice", "alice@example.com"))
	req.NoError(err)
	req.NotEmpty(u.ID)
	req.False(u.IsOnline)
	req.NotEmpty(token)

	claims, err := svc.tokens.Verify(token)
	req.NoError(err)
	req.Equal(u.ID, claims.UserID)

	stored, err := users.FindByEmail(ctx, "alice@example.com")
	req.NoError(err)
	req.Equal(u.ID, stored.ID)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		reg  user.Registration
	}{
		{"short username", user.Registration{Username: "ab", Email: "a@example.com", Password: "correct-horse-battery"}},
		{"bad username chars", user.Registration{Username: "bad name!", Email: "a@example.com", Password: "correct-horse-battery"}},
		{"bad email", user.Registration{Username: "alice", Email: "not-an-email", Password: "correct-horse-battery"}},
		{"weak password", user.Registration{Username: "alice", Email: "a@example.com", Password: "aaa"}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, _, err := svc.Register(ctx, c.reg)
			require.ErrorIs(t, err, infrastructure.ErrInvalidInput)
		})
	}
}

func TestRegisterDuplicates(t *testing.T) {
	req := require.New(t)
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, registration("alice", "alice@example.com"))
	req.NoError(err)

	_, _, err = svc.Register(ctx, registration("alice2", "alice@example.com"))
	req.ErrorIs(err, infrastructure.ErrEmailTaken)

	_, _, err = svc.Register(ctx, registration("alice", "other@example.com"))
	req.ErrorIs(err, infrastructure.ErrUsernameTaken)
}

func TestLoginMarksUserOnline(t *testing.T) {
	req := require.New(t)
	svc, users := newTestService(t)
	ctx := context.Background()

	created, _, err := svc.Register(ctx, registration("alice", "alice@example.com"))
	req.NoError(err)

	u, token, err := svc.Login(ctx, "alice@example.com", "correct-horse-battery")
	req.NoError(err)
	req.True(u.IsOnline)
	req.NotEmpty(token)

	stored, err := users.FindByID(ctx, created.ID)
	req.NoError(err)
	req.True(stored.IsOnline)
}

func TestLoginWrongPasswordLeavesUserOffline(t *testing.T) {
	req := require.New(t)
	svc, users := newTestService(t)
	ctx := context.Background()

	created, _, err := svc.Register(ctx, registration("alice", "alice@example.com"))
	req.NoError(err)

	_, _, err = svc.Login(ctx, "alice@example.com", "wrong-password")
	req.ErrorIs(err, infrastructure.ErrInvalidCredentials)

	stored, err := users.FindByID(ctx, created.ID)
	req.NoError(err)
	req.False(stored.IsOnline)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, err := svc.Login(context.Background(), "nobody@example.com", "whatever-password")
	require.ErrorIs(t, err, infrastructure.ErrInvalidCredentials)
}

func TestLogout(t *testing.T) {
	req := require.New(t)
	svc, users := newTestService(t)
	ctx := context.Background()

	created, _, err := svc.Register(ctx, registration("alice", "alice@example.com"))
	req.NoError(err)
	_, _, err = svc.Login(ctx, "alice@example.com", "correct-horse-battery")
	req.NoError(err)

	req.NoError(svc.Logout(ctx, created.ID))

	stored, err := users.FindByID(ctx, created.ID)
	req.NoError(err)
	req.False(stored.IsOnline)
}

func TestChangePassword(t *testing.T) {
	req := require.New(t)
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, _, err := svc.Register(ctx, registration("alice", "alice@example.com"))
	req.NoError(err)

	err = svc.ChangePassword(ctx, created.ID, "wrong-password", "staple-gun-sunrise")
	req.ErrorIs(err, infrastructure.ErrInvalidCredentials)

	err = svc.ChangePassword(ctx, created.ID, "correct-horse-battery", "aaa")
	req.ErrorIs(err, infrastructure.ErrInvalidInput)

	req.NoError(svc.ChangePassword(ctx, created.ID, "correct-horse-battery", "staple-gun-sunrise"))

	_, _, err = svc.Login(ctx, "alice@example.com", "correct-horse-battery")
	req.ErrorIs(err, infrastructure.ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "alice@example.com", "staple-gun-sunrise")
	req.NoError(err)
}
