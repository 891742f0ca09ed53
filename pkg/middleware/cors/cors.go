package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// New returns a CORS middleware honoring a list of allowed origins. An empty
// list allows every origin, which suits the scan page served from arbitrary
// campus hosts during development.
func New(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 0
	originSet := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		originSet[strings.TrimRight(origin, "/")] = struct{}{}
	}

	return func(c *gin.Context) {
		header := c.Writer.Header()
		origin := c.GetHeader("Origin")

		switch {
		case origin != "" && (allowAll || originAllowed(originSet, origin)):
			header.Set("Access-Control-Allow-Origin", origin)
		case origin == "" && allowAll:
			header.Set("Access-Control-Allow-Origin", "*")
		}

		header.Set("Vary", "Origin")
		header.Set("Access-Control-Allow-Credentials", "true")
		header.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With, X-Request-ID")
		header.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		header.Set("Access-Control-Max-Age", "600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func originAllowed(originSet map[string]struct{}, origin string) bool {
	_, ok := originSet[strings.TrimRight(origin, "/")]
	return ok
}
