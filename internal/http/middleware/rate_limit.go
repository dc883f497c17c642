package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/logger"
)

// KeyFunc определяет ключ ограничения для запроса.
type KeyFunc func(c *gin.Context) string

// ClientIPKey ограничивает по IP клиента.
func ClientIPKey(c *gin.Context) string {
	return c.ClientIP()
}

// ClientIPAndParamKey ограничивает по паре IP + параметр маршрута, например subjectId.
func ClientIPAndParamKey(param string) KeyFunc {
	return func(c *gin.Context) string {
		return c.ClientIP() + "|" + c.Param(param)
	}
}

// NewLimiter создаёт лимитер. Если передан redis клиент, счётчики общие для всех инстансов.
func NewLimiter(limit int64, period time.Duration, client *redis.Client) (*limiter.Limiter, error) {
	if limit <= 0 {
		limit = 10
	}
	if period <= 0 {
		period = time.Minute
	}
	rate := limiter.Rate{Period: period, Limit: limit}

	if client == nil {
		return limiter.New(memory.NewStore(), rate), nil
	}
	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix:   "settlement_rate_limit",
		MaxRetry: 3,
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit: redis store: %w", err)
	}
	return limiter.New(store, rate), nil
}

// RateLimitMiddleware ограничивает количество запросов по ключу keyFn.
func RateLimitMiddleware(instance *limiter.Limiter, keyFn KeyFunc) gin.HandlerFunc {
	if keyFn == nil {
		keyFn = ClientIPKey
	}

	return func(c *gin.Context) {
		lctx, err := instance.Get(c, keyFn(c))
		if err != nil {
			logger.L().WithError(err).Error("Rate limiter недоступен")
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", lctx.Limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", lctx.Remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", lctx.Reset))

		if lctx.Reached {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":  "слишком много запросов, попробуйте позже",
				"code":   "RATE_LIMITED",
				"action": "wait",
			})
			return
		}

		c.Next()
	}
}
