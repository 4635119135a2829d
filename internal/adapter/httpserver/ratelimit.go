package httpserver

import (
	"math"
	"strconv"
	"time"

	apperrors "github.com/0x-mperego/unimec-display/internal/platform/errors"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// Idle per-IP buckets are evicted after this long.
const loginLimiterExpiry = 5 * time.Minute

// newLoginLimiter throttles password attempts per client IP. A non-positive
// rate disables it. Rejections carry Retry-After, the time one token takes
// to refill.
func newLoginLimiter(perSecond float64, burst int) echo.MiddlewareFunc {
	if perSecond <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	burst = max(burst, 1)
	retryAfter := strconv.Itoa(int(math.Ceil(1 / perSecond)))

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(perSecond),
			Burst:     burst,
			ExpiresIn: loginLimiterExpiry,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, _ error) error {
			c.Response().Header().Set("Retry-After", retryAfter)
			return apperrors.RateLimitedError("too many login attempts, try again later").
				WithContext("client_ip", identifier)
		},
	})
}
