package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORS разрешает запросы с перечисленных origin. "*" разрешает любой, но без
// credentials: их получают только явно перечисленные origin
func CORS(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			allowed, exact := matchOrigin(allowedOrigins, origin)
			switch {
			case exact:
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Access-Control-Allow-Credentials", "true")
				c.Header("Vary", "Origin")
			case allowed:
				c.Header("Access-Control-Allow-Origin", "*")
			}
			if allowed {
				c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, Last-Event-ID, X-Request-ID")
				c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func OriginAllowed(allowedOrigins []string, origin string) bool {
	allowed, _ := matchOrigin(allowedOrigins, origin)
	return allowed
}

// matchOrigin: exact - origin перечислен явно, а не пропущен через "*"
func matchOrigin(allowedOrigins []string, origin string) (allowed, exact bool) {
	for _, a := range allowedOrigins {
		if strings.EqualFold(a, origin) {
			return true, true
		}
		if a == "*" {
			allowed = true
		}
	}
	return allowed, false
}
