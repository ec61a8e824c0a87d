package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/config"
)

func newTestManager(accessTTL, refreshTTL time.Duration) *TokenManager {
	return NewTokenManager(config.JWTConfig{
		AccessSecret:  "test-access-secret",
		RefreshSecret: "test-refresh-secret",
		AccessTTL:     config.Duration(accessTTL),
		RefreshTTL:    config.Duration(refreshTTL),
	})
}

func TestAccessTokenRoundTrip(t *testing.T) {
	tm := newTestManager(15*time.Minute, 7*24*time.Hour)

	token, err := tm.GenerateAccessToken(42)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := tm.ParseAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	tm := newTestManager(15*time.Minute, 7*24*time.Hour)

	token, err := tm.GenerateRefreshToken(7)
	require.NoError(t, err)

	userID, err := tm.ParseRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), userID)
}

func TestTokenClassesUseDistinctSecrets(t *testing.T) {
	tm := newTestManager(15*time.Minute, 7*24*time.Hour)

	access, err := tm.GenerateAccessToken(1)
	require.NoError(t, err)
	refresh, err := tm.GenerateRefreshToken(1)
	require.NoError(t, err)

	_, err = tm.ParseRefreshToken(access)
	assert.ErrorIs(t, err, ErrInvalidToken, "access token must not verify as refresh token")

	_, err = tm.ParseAccessToken(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken, "refresh token must not verify as access token")
}

func TestExpiredTokenRejected(t *testing.T) {
	tm := newTestManager(-time.Minute, -time.Minute)

	token, err := tm.GenerateAccessToken(1)
	require.NoError(t, err)

	_, err = tm.ParseAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMalformedTokenRejected(t *testing.T) {
	tm := newTestManager(15*time.Minute, 7*24*time.Hour)

	for _, tok := range []string{"", "garbage", "a.b.c"} {
		_, err := tm.ParseAccessToken(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	}
}

func TestTokensIssuedInSameSecondDiffer(t *testing.T) {
	tm := newTestManager(15*time.Minute, 7*24*time.Hour)

	t1, err := tm.GenerateRefreshToken(9)
	require.NoError(t, err)
	t2, err := tm.GenerateRefreshToken(9)
	require.NoError(t, err)

	assert.NotEqual(t, t1, t2)
}
