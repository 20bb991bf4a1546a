package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORSConfig controls cross-origin behaviour.
type CORSConfig struct {
	AllowedOrigins []string
}

// CORS returns a permissive cross-origin middleware suitable for the default
// single-origin deployment.
func CORS() gin.HandlerFunc {
	return CORSWithConfig(CORSConfig{})
}

// CORSWithConfig returns a cross-origin middleware restricted to the supplied
// origins; an empty list allows any origin.
func CORSWithConfig(cfg CORSConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := "*"
		if len(cfg.AllowedOrigins) > 0 {
			allowed = ""
			for _, candidate := range cfg.AllowedOrigins {
				if strings.EqualFold(candidate, origin) {
					allowed = origin
					break
				}
			}
			if allowed == "" {
				if c.Request.Method == http.MethodOptions {
					c.AbortWithStatus(http.StatusNoContent)
					return
				}
				c.Next()
				return
			}
			c.Header("Vary", "Origin")
		}

		c.Header("Access-Control-Allow-Origin", allowed)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
