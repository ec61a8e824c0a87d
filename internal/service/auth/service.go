// Package auth issues and rotates token pairs and resolves authenticated
// identities. It never touches task data.
package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"taskflow/internal/apperr"
	"taskflow/internal/model"
	"taskflow/internal/repository"
	"taskflow/internal/util"
	"taskflow/pkg/metrics"
)

// UserStore is the identity persistence the service depends on.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id int64) (*model.User, error)
}

// TokenStore persists hashed refresh tokens.
type TokenStore interface {
	Save(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error
	Consume(ctx context.Context, userID int64, tokenHash string) (bool, error)
	Delete(ctx context.Context, userID int64, tokenHash string) error
}

// TokenPair is one issued access/refresh pair.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type Service struct {
	users  UserStore
	tokens TokenStore
	tm     *util.TokenManager
	hasher *util.PasswordHasher
	logger *zap.Logger
}

func NewService(users UserStore, tokens TokenStore, tm *util.TokenManager, hasher *util.PasswordHasher, logger *zap.Logger) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		tm:     tm,
		hasher: hasher,
		logger: logger,
	}
}

// Register creates an account and issues its first token pair.
func (s *Service) Register(ctx context.Context, name, email, password string) (*model.User, *TokenPair, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)

	if fields := validateRegistration(name, email, password); len(fields) > 0 {
		return nil, nil, apperr.Validation("invalid registration input", fields...)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, nil, apperr.Internal(err)
	}

	u := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			metrics.IncrementAuthAttempt("register", "failure")
			return nil, nil, apperr.Conflict("email already registered")
		}
		return nil, nil, apperr.Internal(err)
	}

	pair, err := s.issuePair(ctx, u.ID)
	if err != nil {
		return nil, nil, err
	}

	metrics.IncrementAuthAttempt("register", "success")
	s.logger.Info("user registered", zap.Int64("user_id", u.ID))
	return u, pair, nil
}

// Login verifies credentials and issues a new token pair. Prior refresh
// tokens stay valid; a login never revokes other sessions.
// Account absence and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, *TokenPair, error) {
	email = normalizeEmail(email)

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.IncrementAuthAttempt("login", "failure")
			return nil, nil, apperr.Unauthorized("invalid email or password")
		}
		return nil, nil, apperr.Internal(err)
	}
	if !u.Active || !s.hasher.Verify(password, u.PasswordHash) {
		metrics.IncrementAuthAttempt("login", "failure")
		return nil, nil, apperr.Unauthorized("invalid email or password")
	}

	pair, err := s.issuePair(ctx, u.ID)
	if err != nil {
		return nil, nil, err
	}

	metrics.IncrementAuthAttempt("login", "success")
	s.logger.Info("user logged in", zap.Int64("user_id", u.ID))
	return u, pair, nil
}

// Refresh rotates a one-time-use refresh token. The stored token is consumed
// before the replacement is issued, so concurrent refreshes of the same token
// succeed at most once; a second attempt (including replay of an already
// rotated token) fails authentication.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, err := s.tm.ParseRefreshToken(refreshToken)
	if err != nil {
		metrics.IncrementAuthAttempt("refresh", "failure")
		return nil, apperr.Unauthorized("invalid refresh token")
	}

	consumed, err := s.tokens.Consume(ctx, userID, util.HashToken(refreshToken))
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !consumed {
		metrics.IncrementAuthAttempt("refresh", "failure")
		s.logger.Warn("refresh token not in stored set, possible replay", zap.Int64("user_id", userID))
		return nil, apperr.Unauthorized("invalid refresh token")
	}

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.IncrementAuthAttempt("refresh", "failure")
			return nil, apperr.Unauthorized("invalid refresh token")
		}
		return nil, apperr.Internal(err)
	}
	if !u.Active {
		metrics.IncrementAuthAttempt("refresh", "failure")
		return nil, apperr.Unauthorized("invalid refresh token")
	}

	pair, err := s.issuePair(ctx, userID)
	if err != nil {
		return nil, err
	}
	metrics.IncrementAuthAttempt("refresh", "success")
	return pair, nil
}

// Logout removes the refresh token from the user's valid set. Absent user or
// token is a no-op.
func (s *Service) Logout(ctx context.Context, userID int64, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.tokens.Delete(ctx, userID, util.HashToken(refreshToken)); err != nil {
		return apperr.Internal(err)
	}
	s.logger.Info("user logged out", zap.Int64("user_id", userID))
	return nil
}

// Profile returns the sanitized account record.
func (s *Service) Profile(ctx context.Context, userID int64) (*model.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal(err)
	}
	return u, nil
}

// Authenticate resolves an access token to its active user. Used by the
// request middleware on every authenticated call.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*model.User, error) {
	userID, err := s.tm.ParseAccessToken(accessToken)
	if err != nil {
		return nil, apperr.Unauthorized("invalid or expired token")
	}

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Unauthorized("invalid or expired token")
		}
		return nil, apperr.Internal(err)
	}
	if !u.Active {
		return nil, apperr.Unauthorized("account disabled")
	}
	return u, nil
}

func (s *Service) issuePair(ctx context.Context, userID int64) (*TokenPair, error) {
	access, err := s.tm.GenerateAccessToken(userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	refresh, err := s.tm.GenerateRefreshToken(userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if err := s.tokens.Save(ctx, userID, util.HashToken(refresh), time.Now().Add(s.tm.RefreshTTL())); err != nil {
		return nil, apperr.Internal(err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateRegistration(name, email, password string) []apperr.FieldError {
	var fields []apperr.FieldError
	if name == "" {
		fields = append(fields, apperr.FieldError{Field: "name", Message: "name is required"})
	}
	if _, err := mail.ParseAddress(email); err != nil {
		fields = append(fields, apperr.FieldError{Field: "email", Message: "invalid email address"})
	}
	if len(password) < 8 {
		fields = append(fields, apperr.FieldError{Field: "password", Message: "password must be at least 8 characters"})
	}
	if len(password) > 72 {
		// bcrypt truncates beyond 72 bytes
		fields = append(fields, apperr.FieldError{Field: "password", Message: "password must be at most 72 characters"})
	}
	return fields
}
