package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chatrelay/internal/ratelimit"
)

const (
	// ClientKeyHeader carries the client-tier secret on chat routes.
	ClientKeyHeader = "X-API-Key"
	// AdminKeyHeader carries the admin-tier secret on inspection routes.
	AdminKeyHeader = "X-Admin-Key"
)

// RequireClient rejects requests whose client-tier secret does not match.
func RequireClient(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Verify(c.GetHeader(ClientKeyHeader), expected) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects requests whose admin-tier secret does not match. A
// deployment without an admin secret reports the capability as unavailable
// rather than the caller as unauthorized.
func RequireAdmin(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if expected == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "admin access not configured"})
			return
		}
		if !Verify(c.GetHeader(AdminKeyHeader), expected) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// RateLimit admits or rejects by client address before any credential check
// or side effect. onReject is optional and runs once per rejection.
func RateLimit(limiter ratelimit.Limiter, onReject func()) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Admit(c.ClientIP(), time.Now()) {
			if onReject != nil {
				onReject()
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
