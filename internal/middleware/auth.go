package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/scenekit/builder-backend/internal/common"
	"github.com/scenekit/builder-backend/internal/domain"
	"github.com/scenekit/builder-backend/pkg/jwt"
)

const addressKey = "address"

// CallerAuth authenticates the caller from a Bearer token and stores the
// normalized eth address in the context
func CallerAuth(jwtManager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Extract Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			common.ErrorResponse(c, http.StatusUnauthorized, "Missing authorization header", nil)
			return
		}

		// 2. Parse Bearer token
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			common.ErrorResponse(c, http.StatusUnauthorized, "Invalid authorization header format", nil)
			return
		}

		// 3. Verify token
		claims, err := jwtManager.VerifyToken(parts[1])
		if err != nil {
			if errors.Is(err, jwt.ErrExpiredToken) {
				common.ErrorResponse(c, http.StatusUnauthorized, "Token expired", nil)
			} else {
				common.ErrorResponse(c, http.StatusUnauthorized, "Invalid token", nil)
			}
			return
		}

		// 4. Store the caller address
		address, ok := domain.NormalizeAddress(claims.GetAddress())
		if !ok {
			common.ErrorResponse(c, http.StatusUnauthorized, "Invalid token subject", nil)
			return
		}
		c.Set(addressKey, address)

		c.Next()
	}
}

// GetCallerAddress extracts the authenticated eth address from context
func GetCallerAddress(c *gin.Context) string {
	address, exists := c.Get(addressKey)
	if !exists {
		return ""
	}
	if str, ok := address.(string); ok {
		return str
	}
	return ""
}
