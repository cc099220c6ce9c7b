package server

import (
	"github.com/gin-gonic/gin"
	"net"
	"net/http"
	"strings"
)

const hasAuthKey = "has-auth"

func (h handlers) checkAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(hasAuthKey, h.auth.Authenticate(c.Request))
		c.Next()
	}
}

func (h handlers) authPost() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.auth.StartSession(c)
	}
}

func (h handlers) authDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.auth.ClearSession(c.Writer)
		c.Status(http.StatusOK)
	}
}

func (h handlers) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(hasAuthKey) {
			h.auth.ClearSession(c.Writer)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Auth required",
			})
			return
		}
		c.Next()
	}
}

// RestrictIPAddresses lets through only the listed client addresses.
// An empty list allows everyone.
func RestrictIPAddresses(ipAddresses []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ipAllowed(ipAddresses, c.ClientIP()) {
			c.String(http.StatusUnauthorized, "Unauthorized access")
			c.Abort()
			return
		}
		c.Next()
	}
}

// ipAllowed matches exact addresses and CIDR ranges
func ipAllowed(ipAddresses []string, clientIP string) bool {
	if len(ipAddresses) == 0 {
		return true
	}

	ip := net.ParseIP(clientIP)
	for _, address := range ipAddresses {
		address = strings.TrimSpace(address)
		if address == clientIP {
			return true
		}
		if _, network, err := net.ParseCIDR(address); err == nil && ip != nil && network.Contains(ip) {
			return true
		}
	}
	return false
}
