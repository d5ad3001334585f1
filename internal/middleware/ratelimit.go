package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/7310C7310C/sigao-ai/internal/pkg/response"
)

const (
	generateLimitMax    = 10
	generateLimitWindow = time.Minute
)

// RateLimitGenerate throttles AI generation requests per client IP using a
// fixed window in Redis. A nil client disables the limit.
func RateLimitGenerate(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if ip == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		windowKey := time.Now().Unix() / int64(generateLimitWindow.Seconds())
		key := fmt.Sprintf("sigao:rate_limit:generate:%s:%d", ip, windowKey)

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			// Redis trouble should not block readers.
			c.Next()
			return
		}

		if count == 1 {
			rdb.PExpire(ctx, key, generateLimitWindow+time.Second)
		}

		if count > generateLimitMax {
			c.Header("Retry-After", "60")
			response.TooManyRequests(c, "请求过于频繁，请稍后再试")
			return
		}

		c.Next()
	}
}
