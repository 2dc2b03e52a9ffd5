package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// DefaultOriginPrefixes is the allow-list for the browser extension and
// local development.
var DefaultOriginPrefixes = []string{
	"chrome-extension://",
	"moz-extension://",
	"http://localhost",
	"https://localhost",
}

// CORS allows cross-origin requests from origins matching one of the
// configured prefixes. Preflight OPTIONS requests short-circuit with 204.
// Requests from other origins still execute; they simply get no CORS
// headers, so the browser refuses them.
func CORS(originPrefixes []string) gin.HandlerFunc {
	if len(originPrefixes) == 0 {
		originPrefixes = DefaultOriginPrefixes
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && originAllowed(origin, originPrefixes) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			c.Header("Access-Control-Max-Age", "86400")
			c.Header("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func originAllowed(origin string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	return false
}
