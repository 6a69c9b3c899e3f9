package config

import (
	"fmt"

	"go.uber.org/fx"
)

// NewProvider supplies the credential core's configuration to the fx graph.
// A non-nil customConfig is used as-is; otherwise the EQUORIA_* environment
// is loaded, and a load failure surfaces as an fx construction error.
func NewProvider(customConfig *Config) fx.Option {
	return fx.Provide(func() (*Config, error) {
		if customConfig != nil {
			return customConfig, nil
		}

		cfg := &Config{}
		if err := LoadConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from environment: %w", err)
		}
		return cfg, nil
	})
}
