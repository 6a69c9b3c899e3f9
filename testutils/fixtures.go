package testutils

import (
	"time"

	"github.com/machsheltie/Equoria-sub009/config"
	"golang.org/x/crypto/bcrypt"
)

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name: "Equoria Test",
			URL:  "http://localhost:8080",
		},
		Log: config.LogConfig{
			Level:  "error",
			Format: "json",
			Output: "stdout",
		},
		Auth: config.AuthConfig{
			BcryptCost: bcrypt.MinCost,
			MinLength:  8,
		},
		JWT: config.JWTConfig{
			SecretKey:    "test-secret-key-32-chars-long!!",
			AccessExpiry: 15 * time.Minute,
			Issuer:       "test-issuer",
		},
		Credential: config.CredentialConfig{
			SecretLength:  32,
			Expiry:        7 * 24 * time.Hour,
			Retention:     30 * 24 * time.Hour,
			SweepInterval: time.Hour,
			AuditBuffer:   16,
		},
		RateLimit: config.RateLimitConfig{
			Enabled:     true,
			MaxRequests: 10,
			Window:      time.Minute,
		},
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			DSN:    ":memory:",
		},
	}
}
