package httpserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"taskflow/internal/handler"
	"taskflow/internal/model"
)

// Authenticator resolves an access token to an active user.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*model.User, error)
}

// Auth verifies the request credential and loads the user into the gin
// context. Requests without a valid credential are rejected with 401.
func Auth(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractAccessToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "authentication required",
			})
			return
		}

		u, err := authn.Authenticate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "invalid or expired token",
			})
			return
		}

		c.Set(handler.ContextUserIDKey, u.ID)
		c.Set(handler.ContextUserKey, u)
		c.Next()
	}
}

// OptionalAuth performs the same resolution as Auth but proceeds anonymously
// on any failure. Handlers behind it must tolerate a zero user id.
func OptionalAuth(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := extractAccessToken(c); token != "" {
			if u, err := authn.Authenticate(c.Request.Context(), token); err == nil {
				c.Set(handler.ContextUserIDKey, u.ID)
				c.Set(handler.ContextUserKey, u)
			}
		}
		c.Next()
	}
}

// extractAccessToken prefers the HttpOnly cookie over the Authorization
// header when both are present.
func extractAccessToken(c *gin.Context) string {
	if cookie, err := c.Cookie(handler.AccessTokenCookie); err == nil && cookie != "" {
		return cookie
	}

	auth := c.GetHeader("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
