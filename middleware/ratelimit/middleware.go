package ratelimit

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Config struct {
	Limiter        Limiter
	KeyGenerator   func(c echo.Context) string
	OnLimitReached func(c echo.Context) error
}

func Middleware(cfg *Config) echo.MiddlewareFunc {
	if cfg.KeyGenerator == nil {
		cfg.KeyGenerator = DefaultKeyGenerator
	}

	if cfg.OnLimitReached == nil {
		cfg.OnLimitReached = DefaultOnLimitReached
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Limiter == nil {
				return next(c)
			}

			if !cfg.Limiter.Allow(cfg.KeyGenerator(c)) {
				return cfg.OnLimitReached(c)
			}

			return next(c)
		}
	}
}

func DefaultKeyGenerator(c echo.Context) string {
	realIP := c.RealIP()

	if realIP == "" || realIP == "unknown" {
		realIP = "fallback"
	}

	return "rate_limit:" + realIP
}

func DefaultOnLimitReached(c echo.Context) error {
	return c.JSON(http.StatusTooManyRequests, map[string]string{
		"error": "rate limit exceeded",
	})
}
