package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-messenger/internal/model"
)

const uniqueViolation = "23505"

// UserRepository lookups by id only see enabled users.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) UserExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM app_user WHERE id = $1 AND enabled = true)`, id).
		Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) Username(ctx context.Context, id int64) (string, bool, error) {
	var username string
	err := r.pool.QueryRow(ctx,
		`SELECT username FROM app_user WHERE id = $1 AND enabled = true`, id).
		Scan(&username)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("find username: %w", err)
	}
	return username, true, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, enabled, created_at, last_login_at
		 FROM app_user WHERE id = $1 AND enabled = true`, id))

	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

// FindByUsernameOrEmail returns disabled users too.
func (r *UserRepository) FindByUsernameOrEmail(ctx context.Context, login string) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, enabled, created_at, last_login_at
		 FROM app_user WHERE lower(username) = lower($1) OR lower(email) = lower($1)
		 ORDER BY id LIMIT 1`, strings.TrimSpace(login)))

	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by login: %w", err)
	}
	return u, nil
}

func (r *UserRepository) Create(ctx context.Context, u model.User) (model.User, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO app_user (username, email, password_hash, enabled, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		u.Username, u.Email, u.PasswordHash, u.Enabled, u.CreatedAt).
		Scan(&u.ID)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		if strings.Contains(pgErr.ConstraintName, "email") {
			return model.User{}, model.ErrEmailAlreadyExists
		}
		return model.User{}, model.ErrUserAlreadyExists
	}
	if err != nil {
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE app_user SET last_login_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Enabled, &u.CreatedAt, &u.LastLoginAt)
	return u, err
}
