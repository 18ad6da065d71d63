package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UserID returns the authenticated user's id from the gin context.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	raw := c.GetString("user_id")
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Role returns the authenticated user's role from the gin context.
func Role(c *gin.Context) string {
	return c.GetString("role")
}
