package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORSConfig lists the browser origins allowed to call the API with
// credentials.
type CORSConfig struct {
	AllowedOrigins []string
	// AllowLocalhost admits http://localhost:* and http://127.0.0.1:* (development only)
	AllowLocalhost bool
}

func (cfg CORSConfig) allows(origin string) bool {
	if origin == "" {
		// Same-origin and server-to-server requests
		return true
	}
	for _, o := range cfg.AllowedOrigins {
		if o != "" && strings.EqualFold(strings.TrimRight(o, "/"), origin) {
			return true
		}
	}
	if cfg.AllowLocalhost {
		return strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:")
	}
	return false
}

// CORSMiddleware adds CORS headers for allowed origins only. Disallowed
// origins get no CORS headers and the browser blocks the response.
func CORSMiddleware(cfg CORSConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		isAllowed := cfg.allows(origin)

		if isAllowed && origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, X-Request-ID, Authorization, accept, origin, Cache-Control, X-Requested-With")
			c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			c.Header("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID")
			c.Header("Access-Control-Max-Age", "86400")
		}
		c.Header("Vary", "Origin")

		if c.Request.Method == http.MethodOptions {
			if isAllowed {
				c.AbortWithStatus(http.StatusNoContent)
			} else {
				c.AbortWithStatus(http.StatusForbidden)
			}
			return
		}

		c.Next()
	}
}
