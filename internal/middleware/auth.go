package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"lumen_backend/internal/auth"
	"lumen_backend/internal/logger"
)

const (
	userIDKey    = "userID"
	userEmailKey = "userEmail"
	sessionIDKey = "sessionID"
)

// AuthMiddleware verifies the bearer access token and stores its claims in
// the request context.
func AuthMiddleware(codec *auth.TokenCodec) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header missing or invalid"})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		payload, err := codec.VerifyAccessToken(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(userIDKey, payload.UserID)
		c.Set(userEmailKey, payload.Email)
		c.Set(sessionIDKey, payload.SessionID)

		ctx := logger.WithUserID(c.Request.Context(), payload.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetUserID extracts the authenticated user's ID from the request context.
func GetUserID(c *gin.Context) string {
	userID, exists := c.Get(userIDKey)
	if !exists {
		return ""
	}
	id, ok := userID.(string)
	if !ok {
		return ""
	}
	return id
}

// GetUserEmail extracts the authenticated user's email from the request context.
func GetUserEmail(c *gin.Context) string {
	email, exists := c.Get(userEmailKey)
	if !exists {
		return ""
	}
	e, ok := email.(string)
	if !ok {
		return ""
	}
	return e
}
