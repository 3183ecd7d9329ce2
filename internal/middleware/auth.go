package middleware

import (
	"net/http"
	"strings"

	"creditbot/config"
	"creditbot/internal/auth"

	"github.com/gin-gonic/gin"
)

// AuthRequired validates the bearer JWT and sets admin_id and role in context.
func AuthRequired(cfg *config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		claims, err := auth.ParseAccessToken(cfg, parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set("admin_id", claims.AdminID)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// GetAdminID returns the authenticated admin id (must be used after AuthRequired).
func GetAdminID(c *gin.Context) int64 {
	v, ok := c.Get("admin_id")
	if !ok {
		return 0
	}
	id, _ := v.(int64)
	return id
}
