package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig        `envPrefix:"EQUORIA_APP_"`
	Server     ServerConfig     `envPrefix:"EQUORIA_SERVER_"`
	Log        LogConfig        `envPrefix:"EQUORIA_LOG_"`
	Database   DatabaseConfig   `envPrefix:"EQUORIA_DATABASE_"`
	Auth       AuthConfig       `envPrefix:"EQUORIA_AUTH_"`
	JWT        JWTConfig        `envPrefix:"EQUORIA_JWT_"`
	Credential CredentialConfig `envPrefix:"EQUORIA_CREDENTIAL_"`
	RateLimit  RateLimitConfig  `envPrefix:"EQUORIA_RATELIMIT_"`
}

type AppConfig struct {
	Name string `env:"NAME" envDefault:"Equoria"`
	URL  string `env:"URL" envDefault:"http://localhost:8080"`
}

type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
	Host string `env:"HOST" envDefault:"localhost"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"equoria.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

type AuthConfig struct {
	BcryptCost int `env:"BCRYPT_COST" envDefault:"12"`
	MinLength  int `env:"MIN_LENGTH" envDefault:"8"`
}

type JWTConfig struct {
	SecretKey    string        `env:"SECRET_KEY"`
	AccessExpiry time.Duration `env:"ACCESS_EXPIRY" envDefault:"15m"`
	Issuer       string        `env:"ISSUER" envDefault:"equoria"`
}

// CredentialConfig controls refresh credential rotation and retention.
type CredentialConfig struct {
	SecretLength  int           `env:"SECRET_LENGTH" envDefault:"32"`
	Expiry        time.Duration `env:"EXPIRY" envDefault:"168h"`
	Retention     time.Duration `env:"RETENTION" envDefault:"720h"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`
	AuditBuffer   int           `env:"AUDIT_BUFFER" envDefault:"256"`
}

type RateLimitConfig struct {
	Enabled     bool          `env:"ENABLED" envDefault:"true"`
	MaxRequests int           `env:"MAX_REQUESTS" envDefault:"10"`
	Window      time.Duration `env:"WINDOW" envDefault:"1m"`
}

func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	return env.Parse(cfg)
}
