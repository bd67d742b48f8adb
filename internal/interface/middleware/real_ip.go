package middleware

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

// RealIP sets the real client IP into Gin context (key: "real_ip").
// Priority: X-Forwarded-For (left-most entry), then c.ClientIP().
func RealIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ip := firstForwardedIP(c.GetHeader("X-Forwarded-For")); ip != "" {
			c.Set("real_ip", ip)
			c.Next()
			return
		}
		c.Set("real_ip", c.ClientIP())
		c.Next()
	}
}

// firstForwardedIP returns the left-most valid address of an
// X-Forwarded-For header, or "" when there is none.
func firstForwardedIP(xff string) string {
	if xff == "" {
		return ""
	}
	first := strings.TrimSpace(strings.Split(xff, ",")[0])
	if ip := net.ParseIP(first); ip != nil {
		return ip.String()
	}
	return ""
}
