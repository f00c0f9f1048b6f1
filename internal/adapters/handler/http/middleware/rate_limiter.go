package middleware

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimit caps how many requests one client IP may issue per window.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// RateLimiter throttles per client IP with a redis counter that expires
// together with the window. Redis trouble fails open: keeping the
// completion write path available matters more than strict throttling.
func RateLimiter(rdb *redis.Client, limit RateLimit) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := fmt.Sprintf("ratelimit:%s", c.ClientIP())

		pipe := rdb.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, limit.Window)
		ttl := pipe.TTL(ctx, key)
		if _, err := pipe.Exec(ctx); err != nil {
			log.Printf("Rate limiter skipped (redis unavailable): %v", err)
			c.Next()
			return
		}

		used := incr.Val()
		remaining := int64(limit.Requests) - used
		if remaining < 0 {
			remaining = 0
		}
		reset := time.Now().Add(ttl.Val()).Unix()

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(reset, 10))

		if used > int64(limit.Requests) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "too many requests",
				"retry_in_s": int(ttl.Val().Seconds()),
			})
			return
		}

		c.Next()
	}
}
