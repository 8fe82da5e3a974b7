package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopdesk/apiserver/types"
)

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, email, role, avatar, password_hash, created_at, updated_at`

func scanUser(row rowScanner) (types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Role,
		&user.Avatar,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail returns the user including the password hash.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// ExistsByEmailOrUsername reports whether any user holds the email or the username.
func (r *UserRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 OR username = $2)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, email, username).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (id, username, email, role, avatar, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Username,
		user.Email,
		user.Role,
		user.Avatar,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	); err != nil {
		return types.User{}, translate(err)
	}
	return user, nil
}

// UpdateProfile applies the non-nil fields of update.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, update types.ProfileUpdate) (types.User, error) {
	query := `
		UPDATE users
		SET username = COALESCE($1, username),
			avatar = COALESCE($2, avatar),
			updated_at = $3
		WHERE id = $4
		RETURNING ` + userColumns
	user, err := scanUser(r.db.QueryRowContext(
		ctx,
		query,
		update.Username,
		update.Avatar,
		time.Now().UTC(),
		id,
	))
	if err != nil {
		return types.User{}, translate(err)
	}
	return user, nil
}
