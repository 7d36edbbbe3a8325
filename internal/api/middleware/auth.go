package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"nguide/admin/internal/auth"
)

const (
	// ContextKeyUserID holds the key for user ID in Gin context.
	ContextKeyUserID = "userID"
	// ContextKeyRole holds the key for the staff role in Gin context.
	ContextKeyRole = "role"
)

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) (string, bool) {
	parts := strings.Fields(c.GetHeader("Authorization"))
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", false
	}
	return parts[1], true
}

// AuthMiddleware creates a Gin middleware for staff JWT authentication.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			AbortWithError(c, http.StatusUnauthorized, CodeUnauthorized, "Authorization header required")
			return
		}
		tokenString, ok := BearerToken(c)
		if !ok {
			AbortWithError(c, http.StatusUnauthorized, CodeUnauthorized, "Authorization header format must be Bearer {token}")
			return
		}

		claims, err := auth.ValidateJWT(tokenString, jwtSecret)
		if err != nil {
			AbortWithError(c, http.StatusUnauthorized, CodeUnauthorized, "Invalid or expired token")
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyRole, claims.Role)
		c.Next()
	}
}

// RoleMiddleware admits only the given roles. Assumes AuthMiddleware runs first.
func RoleMiddleware(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		if !allowed[c.GetString(ContextKeyRole)] {
			AbortWithError(c, http.StatusForbidden, CodeForbidden, "Insufficient role")
			return
		}
		c.Next()
	}
}

// StaffMiddleware admits every staff role.
func StaffMiddleware() gin.HandlerFunc {
	return RoleMiddleware(auth.RoleSuperAdmin, auth.RoleAdmin, auth.RoleStaff)
}
