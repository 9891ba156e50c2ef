package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/techsoc/backend/internal/models"
	"github.com/techsoc/backend/pkg/response"
)

// RequireRole returns a middleware that allows only the given roles.
func RequireRole(allowedRoles ...models.Role) gin.HandlerFunc {
	allowed := make(map[string]struct{})
	for _, r := range allowedRoles {
		allowed[string(r)] = struct{}{}
	}
	return func(c *gin.Context) {
		roleVal, ok := c.Get(ContextUserRole)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		role, _ := roleVal.(string)
		if _, ok := allowed[role]; !ok {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireStaff allows admins and the super admin.
func RequireStaff() gin.HandlerFunc {
	return RequireRole(models.RoleAdmin, models.RoleSuperAdmin)
}
