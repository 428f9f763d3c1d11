package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ammar1510/gigchat/internal/auth"
)

// AuthMiddleware validates JWT tokens and sets user info in context
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		// Check if Authorization header exists and has Bearer format
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			fail(c, http.StatusUnauthorized, "Authorization header required")
			return
		}

		authenticate(c, strings.TrimPrefix(authHeader, "Bearer "))
	}
}

// TokenAuthMiddleware authenticates socket upgrades, which carry the token
// in the "token" query parameter. A bearer header is accepted as well.
func TokenAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if token == "" {
			log.Debug("No token on socket request from %s", c.Request.RemoteAddr)
			fail(c, http.StatusUnauthorized, "Token required")
			return
		}

		authenticate(c, token)
	}
}

func authenticate(c *gin.Context, token string) {
	claims, err := auth.ValidateToken(token)
	if err != nil {
		fail(c, http.StatusUnauthorized, "Invalid token")
		return
	}

	userID, err := auth.GetUserIDFromToken(claims)
	if err != nil {
		fail(c, http.StatusUnauthorized, "Invalid token")
		return
	}

	c.Set("userID", userID)
	c.Set("userName", claims.Name)

	c.Next()
}
