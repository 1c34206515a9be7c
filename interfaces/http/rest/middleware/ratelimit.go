package middleware

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"medmap-backend/pkg/auth"
	"medmap-backend/pkg/common"
	pkgerrors "medmap-backend/pkg/errors"
)

// limitReporter is implemented by limiters that can describe their window,
// letting us set accurate Retry-After and X-RateLimit-Limit headers.
type limitReporter interface {
	GetLimit() int
	GetWindow() time.Duration
}

// RateLimitByIP throttles requests per client IP before any other work runs
func RateLimitByIP(limiter auth.RateLimiter, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)

			allowed, err := limiter.Allow(r.Context(), ip)
			if err != nil {
				// Fail open: a broken limiter store must not take the API down
				logger.Warn("IP rate limiter error", zap.Error(err), zap.String("ip", ip))
			}
			if !allowed {
				logger.Warn("Rate limit exceeded",
					zap.String("ip", ip),
					zap.String("path", r.URL.Path),
				)

				retryAfter := "60"
				if reporter, ok := limiter.(limitReporter); ok {
					w.Header().Set("X-RateLimit-Limit", strconv.Itoa(reporter.GetLimit()))
					retryAfter = strconv.Itoa(int(reporter.GetWindow().Seconds()))
				}
				w.Header().Set("Retry-After", retryAfter)

				common.RespondError(w, http.StatusTooManyRequests,
					common.StandardErrorCodes.TooManyRequests,
					pkgerrors.ErrRateLimitExceeded.Message)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
