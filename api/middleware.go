package api

import (
	"net/http"
	"strings"

	"ytmp3/config"

	"github.com/gin-gonic/gin"
)

func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.AuthEnable {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid Authorization header format"})
			return
		}

		if parts[1] != cfg.AuthKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Next()
	}
}

// requesterKey is where RequireWhitelisted stores the caller's identity.
const requesterKey = "requester"

// RequireWhitelisted resolves the caller's identity from the X-Requester-Id
// header and rejects identities that are not whitelisted. The owner always
// passes.
func RequireWhitelisted(wl *config.Whitelist) gin.HandlerFunc {
	return func(c *gin.Context) {
		requester := c.GetHeader("X-Requester-Id")
		if requester == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "X-Requester-Id header required"})
			return
		}

		if !wl.Contains(requester) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "requester is not whitelisted"})
			return
		}

		c.Set(requesterKey, requester)
		c.Next()
	}
}
