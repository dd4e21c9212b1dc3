package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/microblog-api/internal/models"
	"github.com/microblog-api/internal/service"
	"github.com/microblog-api/pkg/response"
)

const (
	// ContextKeyUser is the key for the resolved user in gin context
	ContextKeyUser = "user"
	// ContextKeyToken is the key for the bearer token in gin context
	ContextKeyToken = "token"

	unauthenticatedMessage = "Please authenticate."
)

// AuthMiddleware resolves the bearer token to the user holding it
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, unauthenticatedMessage)
			return
		}

		// Check Bearer prefix
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			response.Unauthorized(c, unauthenticatedMessage)
			return
		}

		tokenString := strings.TrimSpace(parts[1])

		user, err := authService.Resolve(c.Request.Context(), tokenString)
		if err != nil {
			if !errors.Is(err, service.ErrUnauthenticated) {
				// store failure, not a bad token
				_ = c.Error(err)
			}
			response.Unauthorized(c, unauthenticatedMessage)
			return
		}

		c.Set(ContextKeyUser, user)
		c.Set(ContextKeyToken, tokenString)

		c.Next()
	}
}

// GetUser gets the resolved user from the gin context
func GetUser(c *gin.Context) *models.User {
	user, exists := c.Get(ContextKeyUser)
	if !exists {
		return nil
	}
	return user.(*models.User)
}

// GetToken gets the bearer token from the gin context
func GetToken(c *gin.Context) string {
	return c.GetString(ContextKeyToken)
}
