package middleware

import (
	"net/http"

	"creditbot/config"
	"creditbot/internal/domain"

	"github.com/gin-gonic/gin"
)

// AdminRequired checks the ADMIN role and, when admin ids are configured, that the
// token's admin is still on the list.
func AdminRequired(admins config.AdminConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get("role")
		if r, _ := role.(string); r != domain.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		if len(admins.IDs) > 0 && !admins.IsAdmin(GetAdminID(c)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access revoked"})
			return
		}
		c.Next()
	}
}
