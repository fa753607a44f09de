package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"jadwa/internal/domain"
	"jadwa/internal/pkg/response"
)

// RequireRole ensures that the authenticated user has one of roles.
func RequireRole(roles ...domain.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := IdentityFrom(c)
		if identity == nil {
			response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			c.Abort()
			return
		}

		if !identity.HasRole(roles...) {
			response.Error(c, http.StatusForbidden, "FORBIDDEN", "Access denied: insufficient permissions")
			c.Abort()
			return
		}

		c.Next()
	}
}

// AdminOnly admits active administrators only.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := IdentityFrom(c)
		if identity == nil {
			response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			c.Abort()
			return
		}
		if !identity.IsAdmin() {
			response.Error(c, http.StatusForbidden, "FORBIDDEN", "Active administrator required")
			c.Abort()
			return
		}
		c.Next()
	}
}
