package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"relay/infrastructure"
)

// Repository is the persistence contract for users. Absence is reported as
// infrastructure.ErrUserNotFound; any other error is a storage failure.
type Repository interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindAll(ctx context.Context) ([]*User, error)
	FindOnline(ctx context.Context) ([]*User, error)
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, id string, upd Update) (*User, error)
	UpdateOnlineStatus(ctx context.Context, id string, online bool) (*User, error)
	Exists(ctx context.Context, email string) (bool, error)
	Count(ctx context.Context) (int, error)
}

type repository struct {
	db         *sql.DB
	bcryptCost int
}

// NewRepository creates a SQL-backed user repository.
func NewRepository(db *sql.DB, bcryptCost int) Repository {
	return &repository{db: db, bcryptCost: bcryptCost}
}

const userColumns = `id, username, email, password, avatar, is_online, last_seen, created_at`

func (r *repository) FindByID(ctx context.Context, id string) (*User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *repository) FindByUsername(ctx context.Context, username string) (*User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *repository) findOne(ctx context.Context, query string, arg any) (*User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, infrastructure.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (r *repository) FindAll(ctx context.Context) ([]*User, error) {
	return r.findMany(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
}

func (r *repository) FindOnline(ctx context.Context) ([]*User, error) {
	return r.findMany(ctx, `SELECT `+userColumns+` FROM users WHERE is_online = TRUE ORDER BY last_seen DESC`)
}

func (r *repository) findMany(ctx context.Context, query string) ([]*User, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *repository) Create(ctx context.Context, u *User) error {
	return infrastructure.WithTransaction(r.db, ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, username, email, password, avatar, is_online, last_seen, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			u.ID, u.Username, u.Email, u.PasswordHash, nullable(u.Avatar),
			u.IsOnline, u.LastSeen, u.CreatedAt)
		if err != nil {
			return fmt.Errorf("create user %s: %w", u.Username, err)
		}
		return nil
	})
}

// Update merges the provided fields into the stored user. A supplied password
// is re-hashed before persisting.
func (r *repository) Update(ctx context.Context, id string, upd Update) (*User, error) {
	u, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Username != nil {
		u.Username = *upd.Username
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.Avatar != nil {
		u.Avatar = *upd.Avatar
	}
	if upd.Password != nil {
		if err := u.UpdatePassword(*upd.Password, r.bcryptCost); err != nil {
			return nil, err
		}
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE users SET username = $1, email = $2, password = $3, avatar = $4
		WHERE id = $5`,
		u.Username, u.Email, u.PasswordHash, nullable(u.Avatar), id)
	if err != nil {
		return nil, fmt.Errorf("update user %s: %w", id, err)
	}
	return u, nil
}

func (r *repository) UpdateOnlineStatus(ctx context.Context, id string, online bool) (*User, error) {
	u, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if online {
		u.SetOnline()
	} else {
		u.SetOffline()
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE users SET is_online = $1, last_seen = $2 WHERE id = $3`,
		u.IsOnline, u.LastSeen, id)
	if err != nil {
		return nil, fmt.Errorf("update online status %s: %w", id, err)
	}
	return u, nil
}

func (r *repository) Exists(ctx context.Context, email string) (bool, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return true, nil
}

func (r *repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	u := &User{}
	var avatar sql.NullString
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &avatar,
		&u.IsOnline, &u.LastSeen, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.Avatar = avatar.String
	return u, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
