package handler

import "github.com/gin-gonic/gin"

// Context keys set by the auth middleware.
const (
	ContextUserIDKey = "user_id"
	ContextUserKey   = "user"
)

// CurrentUserID returns the authenticated user id set by the auth middleware,
// or 0 for anonymous requests.
func CurrentUserID(c *gin.Context) int64 {
	if id, ok := c.Get(ContextUserIDKey); ok {
		if userID, ok := id.(int64); ok {
			return userID
		}
	}
	return 0
}
