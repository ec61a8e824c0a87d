package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// RefreshTokenRepository stores hashed refresh tokens in their own table so
// rows can carry independent expiry and be consumed atomically on rotation.
type RefreshTokenRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewRefreshTokenRepository(db *pgxpool.Pool, logger *zap.Logger) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db, logger: logger}
}

// Save records a newly issued refresh token hash for the user.
func (r *RefreshTokenRepository) Save(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	query := `
        INSERT INTO refresh_tokens (token_hash, user_id, expires_at)
        VALUES ($1, $2, $3)
    `
	if _, err := r.db.Exec(ctx, query, tokenHash, userID, expiresAt); err != nil {
		r.logger.Error("failed to save refresh token", zap.Int64("user_id", userID), zap.Error(err))
		return err
	}
	return nil
}

// Consume removes the token in a single conditional delete and reports whether
// a live row was actually removed. Two concurrent rotations of the same token
// race here; at most one sees true.
func (r *RefreshTokenRepository) Consume(ctx context.Context, userID int64, tokenHash string) (bool, error) {
	query := `
        DELETE FROM refresh_tokens
        WHERE token_hash = $1 AND user_id = $2 AND expires_at > now()
    `
	tag, err := r.db.Exec(ctx, query, tokenHash, userID)
	if err != nil {
		r.logger.Error("failed to consume refresh token", zap.Int64("user_id", userID), zap.Error(err))
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Delete removes the token if present. Missing rows are a no-op, so logout is
// idempotent.
func (r *RefreshTokenRepository) Delete(ctx context.Context, userID int64, tokenHash string) error {
	query := `DELETE FROM refresh_tokens WHERE token_hash = $1 AND user_id = $2`
	if _, err := r.db.Exec(ctx, query, tokenHash, userID); err != nil {
		r.logger.Error("failed to delete refresh token", zap.Int64("user_id", userID), zap.Error(err))
		return err
	}
	return nil
}

// DeleteExpired sweeps rows past their expiry.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
