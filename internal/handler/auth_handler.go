package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskflow/internal/apperr"
	"taskflow/internal/service/auth"
)

// Cookie names for the two token classes. The cookie is preferred over the
// Authorization header when both are present.
const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

type AuthHandler struct {
	svc           *auth.Service
	accessTTL     time.Duration
	refreshTTL    time.Duration
	secureCookies bool
	logger        *zap.Logger
}

func NewAuthHandler(svc *auth.Service, accessTTL, refreshTTL time.Duration, secureCookies bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		svc:           svc,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.Validation("invalid request body"))
		return
	}

	u, pair, err := h.svc.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.setTokenCookies(c, pair)
	respond(c, http.StatusCreated, "registered", gin.H{
		"user":          u,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.Validation("invalid request body"))
		return
	}

	u, pair, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.setTokenCookies(c, pair)
	respond(c, http.StatusOK, "logged in", gin.H{
		"user":          u,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh handles POST /api/auth/refresh-token. The refresh token is read
// from the cookie first, then the body. Failure is terminal for the chain;
// the client must log in again rather than retry.
func (h *AuthHandler) Refresh(c *gin.Context) {
	token := h.refreshTokenFrom(c)
	if token == "" {
		respondError(c, h.logger, apperr.Unauthorized("refresh token required"))
		return
	}

	pair, err := h.svc.Refresh(c.Request.Context(), token)
	if err != nil {
		h.clearTokenCookies(c)
		respondError(c, h.logger, err)
		return
	}

	h.setTokenCookies(c, pair)
	respond(c, http.StatusOK, "token refreshed", gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

// Logout handles POST /api/auth/logout. Requires authentication; removing an
// already-absent token is a no-op.
func (h *AuthHandler) Logout(c *gin.Context) {
	userID := CurrentUserID(c)
	token := h.refreshTokenFrom(c)

	if err := h.svc.Logout(c.Request.Context(), userID, token); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.clearTokenCookies(c)
	respond(c, http.StatusOK, "logged out", nil)
}

// Profile handles GET /api/auth/profile.
func (h *AuthHandler) Profile(c *gin.Context) {
	u, err := h.svc.Profile(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"user": u})
}

func (h *AuthHandler) refreshTokenFrom(c *gin.Context) string {
	if cookie, err := c.Cookie(RefreshTokenCookie); err == nil && cookie != "" {
		return cookie
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err == nil {
		return req.RefreshToken
	}
	return ""
}

func (h *AuthHandler) setTokenCookies(c *gin.Context, pair *auth.TokenPair) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(AccessTokenCookie, pair.AccessToken, int(h.accessTTL.Seconds()), "/", "", h.secureCookies, true)
	c.SetCookie(RefreshTokenCookie, pair.RefreshToken, int(h.refreshTTL.Seconds()), "/", "", h.secureCookies, true)
}

func (h *AuthHandler) clearTokenCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(AccessTokenCookie, "", -1, "/", "", h.secureCookies, true)
	c.SetCookie(RefreshTokenCookie, "", -1, "/", "", h.secureCookies, true)
}
