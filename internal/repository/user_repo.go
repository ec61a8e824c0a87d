package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"taskflow/internal/model"
)

var (
	// ErrNotFound is returned when a lookup misses.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail is returned when the unique email index rejects an insert.
	ErrDuplicateEmail = errors.New("email already registered")
)

const uniqueViolation = "23505"

type UserRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewUserRepository(db *pgxpool.Pool, logger *zap.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger}
}

// Create inserts a new user. Email uniqueness is enforced by the store.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	query := `
        INSERT INTO users (name, email, password_hash)
        VALUES ($1, $2, $3)
        RETURNING id, active, created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query, u.Name, u.Email, u.PasswordHash).Scan(
		&u.ID, &u.Active, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateEmail
		}
		r.logger.Error("failed to insert user", zap.Error(err))
		return err
	}
	r.logger.Info("user created", zap.Int64("user_id", u.ID))
	return nil
}

// FindByEmail looks a user up by case-normalized email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
        SELECT id, name, email, password_hash, active, created_at, updated_at
        FROM users
        WHERE lower(email) = lower($1)
    `
	return r.scanUser(r.db.QueryRow(ctx, query, email))
}

// FindByID looks a user up by id.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	query := `
        SELECT id, name, email, password_hash, active, created_at, updated_at
        FROM users
        WHERE id = $1
    `
	return r.scanUser(r.db.QueryRow(ctx, query, id))
}

func (r *UserRepository) scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Active, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("failed to scan user row", zap.Error(err))
		return nil, err
	}
	return &u, nil
}
