package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ivspro/tariff-import/internal/utils"
)

// AuthMiddleware enforces the operator API key on management endpoints.
// The key is accepted in X-Api-Key or as a Bearer token.
type AuthMiddleware struct {
	apiKey      string
	rateLimiter *InvalidAuthRateLimiter
}

// NewAuthMiddleware constructs a new AuthMiddleware.
func NewAuthMiddleware(apiKey string) *AuthMiddleware {
	return &AuthMiddleware{
		apiKey:      apiKey,
		rateLimiter: NewInvalidAuthRateLimiter(),
	}
}

// Handle returns a Gin middleware function that enforces authentication.
func (m *AuthMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-Api-Key")
		if key == "" {
			if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
				key = strings.TrimPrefix(h, "Bearer ")
			}
		}

		if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(m.apiKey)) != 1 {
			ip := c.ClientIP()
			if !m.rateLimiter.Allow(ip) {
				utils.Error(c, 429, "RATE_LIMITED", "Too many invalid authentication attempts")
				c.Abort()
				return
			}
			utils.Error(c, 401, "INVALID_TOKEN", "Missing or invalid API key")
			c.Abort()
			return
		}

		c.Next()
	}
}
