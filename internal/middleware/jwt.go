package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fegerV/arplatform/internal/auth"
	"github.com/fegerV/arplatform/pkg/response"
)

const (
	// ContextUserID is the key for the admin user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserEmail is the key for the admin user email in gin context.
	ContextUserEmail = "user_email"
)

// JWT returns a middleware that validates a Bearer JWT and sets the admin
// user's claims in context. There is exactly one role, so a valid token is
// sufficient to authorize every admin endpoint.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserEmail, claims.Email)
		c.Next()
	}
}
