package ratelimit

import (
	"github.com/machsheltie/Equoria-sub009/config"
	"go.uber.org/fx"
)

func ProvideLimiter(cfg *config.Config) Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return NewMemoryStore(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
}

var Module = fx.Options(
	fx.Provide(ProvideLimiter),
)
