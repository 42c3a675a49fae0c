package middleware

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"bibomarket/internal/infrastructure/ratelimit"
	"bibomarket/pkg/errors"
	"bibomarket/pkg/logger"
	"bibomarket/pkg/response"
)

// RateLimit throttles a route group with one shared bucket per key. It
// guards manual refresh endpoints so a chatty shell cannot hammer the
// backend.
func RateLimit(limiter *ratelimit.RateLimiter, key string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ok, wait := limiter.Allow(key)
			if !ok {
				retry := int(math.Ceil(wait.Seconds()))
				if retry < 1 {
					retry = 1
				}
				logger.Warn("RATE LIMIT: %s throttled (retry in %s)", key, wait.Round(time.Millisecond))
				c.Response().Header().Set("Retry-After", strconv.Itoa(retry))
				return response.Error(c, errors.TooManyRequests(fmt.Sprintf("Too many refreshes, try again in %ds", retry)))
			}
			return next(c)
		}
	}
}
