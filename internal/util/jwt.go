package util

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taskflow/config"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carries only the user identifier. Authorization is ownership-based,
// so no role or permission claims exist.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies the two token classes. Access and refresh
// tokens use distinct secrets so a leaked key compromises only one class.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewTokenManager(cfg config.JWTConfig) *TokenManager {
	return &TokenManager{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL.Std(),
		refreshTTL:    cfg.RefreshTTL.Std(),
	}
}

// GenerateAccessToken issues a short-lived access token for userID.
func (m *TokenManager) GenerateAccessToken(userID int64) (string, error) {
	return generate(userID, m.accessSecret, m.accessTTL)
}

// GenerateRefreshToken issues a long-lived refresh token for userID.
func (m *TokenManager) GenerateRefreshToken(userID int64) (string, error) {
	return generate(userID, m.refreshSecret, m.refreshTTL)
}

// ParseAccessToken verifies signature and expiry against the access secret.
func (m *TokenManager) ParseAccessToken(tokenStr string) (int64, error) {
	return parse(tokenStr, m.accessSecret)
}

// ParseRefreshToken verifies signature and expiry against the refresh secret.
func (m *TokenManager) ParseRefreshToken(tokenStr string) (int64, error) {
	return parse(tokenStr, m.refreshSecret)
}

// AccessTTL returns the access token lifetime.
func (m *TokenManager) AccessTTL() time.Duration { return m.accessTTL }

// RefreshTTL returns the refresh token lifetime.
func (m *TokenManager) RefreshTTL() time.Duration { return m.refreshTTL }

func generate(userID int64, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			// Random jti keeps two tokens issued in the same second distinct,
			// which rotation depends on.
			ID:        randomID(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func randomID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func parse(tokenStr string, secret []byte) (int64, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return 0, ErrInvalidToken
	}
	return claims.UserID, nil
}
