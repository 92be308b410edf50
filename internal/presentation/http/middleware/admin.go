package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sharpline/sharpline-go/internal/application/services"
)

// AdminCookieName holds the admin token for browser sessions.
const AdminCookieName = "admin_auth"

// AdminAuthMiddleware rejects requests without a valid admin token in the
// Authorization header or the admin cookie.
func AdminAuthMiddleware(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			if cookie, err := c.Cookie(AdminCookieName); err == nil {
				token = cookie
			}
		}
		if !authService.ValidateAdminToken(token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Admin authentication required"})
			return
		}
		c.Next()
	}
}
