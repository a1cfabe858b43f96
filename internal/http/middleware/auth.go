package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/StrixzIV/adv-compro-finals/internal/auth"
)

const userIDKey = "userID"

// RequireUser ensures the request carries a valid bearer token and stores
// the verified user id on the context. Requests without one are rejected
// with 401.
func RequireUser(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			abortUnauthorized(c, "missing bearer token")
			return
		}

		userID, err := auth.UserIDFromToken(strings.TrimSpace(token), secret)
		if err != nil {
			abortUnauthorized(c, "invalid or expired token")
			return
		}

		SetUserID(c, userID)
		c.Next()
	}
}

// SetUserID records the verified user id for downstream handlers.
func SetUserID(c *gin.Context, userID string) {
	c.Set(userIDKey, userID)
}

// UserID returns the verified user id set by RequireUser.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func abortUnauthorized(c *gin.Context, message string) {
	c.Header("WWW-Authenticate", `Bearer realm="photovault"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":     "unauthorized",
		"message":   message,
		"retryable": false,
	})
}
