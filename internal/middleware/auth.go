package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/7310C7310C/sigao-ai/internal/pkg/jwt"
	"github.com/7310C7310C/sigao-ai/internal/pkg/response"
)

const ContextKeyUsername = "username"

// Auth returns a middleware that enforces JWT authentication for admin routes.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := validateToken(extractToken(c))
		if err != nil {
			response.Unauthorized(c)
			return
		}
		c.Set(ContextKeyUsername, claims.Username)
		c.Next()
	}
}

// CurrentUsername extracts the authenticated admin username from context.
func CurrentUsername(c *gin.Context) string {
	v, _ := c.Get(ContextKeyUsername)
	name, _ := v.(string)
	return name
}

func validateToken(rawToken string) (*jwt.Claims, error) {
	if rawToken == "" {
		return nil, errors.New("token is required")
	}
	return jwt.Parse(rawToken)
}

func extractToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if auth != "" {
		return normalizeToken(auth)
	}
	return normalizeToken(c.Query("token"))
}

func normalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
