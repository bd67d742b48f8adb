package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/orientati/user-service/pkg/response"
)

// KeyFunc derives the bucket key for a request.
type KeyFunc func(c *gin.Context) string

// AllowFunc reports whether a request bypasses the limit entirely.
type AllowFunc func(c *gin.Context) bool

// KeyByIP buckets requests per client address.
func KeyByIP() KeyFunc {
	return func(c *gin.Context) string {
		return "rl:ip:" + clientAddr(c)
	}
}

// KeyByIPAndPath buckets per client address and route, so hammering one
// endpoint does not eat the budget of the others.
func KeyByIPAndPath() KeyFunc {
	return func(c *gin.Context) string {
		return "rl:path:" + routePath(c) + ":ip:" + clientAddr(c)
	}
}

// counterScript increments the bucket and stamps its window on first use,
// in one atomic round trip.
var counterScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

type limiter struct {
	rdb    *redis.Client
	max    int
	window time.Duration
	key    KeyFunc
	allow  AllowFunc
}

// RateLimit enforces a fixed window of max requests per key, counted in
// Redis. Redis errors fail open; OPTIONS preflights are never counted.
func RateLimit(rdb *redis.Client, max int, window time.Duration, key KeyFunc, allow AllowFunc) gin.HandlerFunc {
	if rdb == nil || max <= 0 || window <= 0 || key == nil {
		return func(c *gin.Context) { c.Next() }
	}
	l := &limiter{rdb: rdb, max: max, window: window, key: key, allow: allow}
	return l.handle
}

func (l *limiter) handle(c *gin.Context) {
	if c.Request.Method == http.MethodOptions || (l.allow != nil && l.allow(c)) {
		c.Next()
		return
	}

	ctx := c.Request.Context()
	key := l.key(c)

	n, err := counterScript.Run(ctx, l.rdb, []string{key}, l.window.Milliseconds()).Int()
	if err != nil {
		// fail open when redis is unreachable
		c.Next()
		return
	}

	remaining := l.max - n
	if remaining < 0 {
		remaining = 0
	}
	reset := 0
	if ttl, err := l.rdb.TTL(ctx, key).Result(); err == nil && ttl > 0 {
		reset = int(ttl.Seconds())
	}

	c.Header("X-RateLimit-Limit", strconv.Itoa(l.max))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
	c.Header("X-RateLimit-Reset", strconv.Itoa(reset))

	if n > l.max {
		if reset > 0 {
			c.Header("Retry-After", strconv.Itoa(reset))
		}
		response.WriteError(c, http.StatusTooManyRequests, "Too Many Requests", gin.H{"message": "rate limit exceeded"})
		return
	}
	c.Next()
}

// clientAddr prefers the address resolved by RealIP, then Gin's own.
func clientAddr(c *gin.Context) string {
	if ip := c.GetString("real_ip"); ip != "" {
		return ip
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}

// routePath is the registered pattern when available, so /users/:id buckets
// as one route instead of one bucket per id.
func routePath(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}
