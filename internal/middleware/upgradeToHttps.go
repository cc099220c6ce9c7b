package middleware

import (
	"github.com/gin-gonic/gin"
	"net/http"
)

// UpgradeToHttps redirects plaintext requests to HTTPS. TLS is usually
// terminated by a proxy in front of us, so the proxy's X-Forwarded-Proto
// header decides rather than the request's own TLS state.
func UpgradeToHttps() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Forwarded-Proto") != "http" {
			c.Next()
			return
		}

		target := "https://" + c.Request.Host + c.Request.URL.RequestURI()
		// a redirect must not turn a DELETE or POST into a GET
		status := http.StatusMovedPermanently
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			status = http.StatusPermanentRedirect
		}
		c.Redirect(status, target)
		c.Abort()
	}
}
