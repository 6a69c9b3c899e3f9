package app

import (
	"fmt"

	"github.com/machsheltie/Equoria-sub009/config"
	"github.com/machsheltie/Equoria-sub009/database"
	"github.com/machsheltie/Equoria-sub009/middleware/ratelimit"
	"github.com/machsheltie/Equoria-sub009/server"
	"github.com/machsheltie/Equoria-sub009/services/audit"
	"github.com/machsheltie/Equoria-sub009/services/auth"
	"github.com/machsheltie/Equoria-sub009/services/credential"
	"github.com/machsheltie/Equoria-sub009/services/jwt"
	"github.com/machsheltie/Equoria-sub009/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type AppBuilder struct {
	config    *config.Config
	models    []any
	fxOptions []fx.Option
	errors    []error
}

func NewApp() *AppBuilder {
	return &AppBuilder{
		models:    make([]any, 0),
		fxOptions: make([]fx.Option, 0),
		errors:    make([]error, 0),
	}
}

func (b *AppBuilder) WithConfig(cfg *config.Config) *AppBuilder {
	if cfg == nil {
		b.addError("config cannot be nil")
		return b
	}
	b.config = cfg
	return b
}

func (b *AppBuilder) WithAutoConfig() *AppBuilder {
	cfg := &config.Config{}
	if err := config.LoadConfig(cfg); err != nil {
		b.addError(fmt.Sprintf("failed to load config: %v", err))
		return b
	}
	b.config = cfg
	return b
}

// WithModels registers extra models for auto-migration alongside the
// credential subsystem's own tables.
func (b *AppBuilder) WithModels(models ...any) *AppBuilder {
	b.models = append(b.models, models...)
	return b
}

func (b *AppBuilder) WithFxOptions(opts ...fx.Option) *AppBuilder {
	b.fxOptions = append(b.fxOptions, opts...)
	return b
}

func (b *AppBuilder) Build() (*App, error) {
	if len(b.errors) > 0 {
		return nil, fmt.Errorf("configuration errors: %v", b.errors)
	}

	if b.config == nil {
		b.WithAutoConfig()
		if len(b.errors) > 0 {
			return nil, fmt.Errorf("configuration errors: %v", b.errors)
		}
	}

	logger, err := logging.NewService(logging.Config{
		Level:      logging.LogLevel(b.config.Log.Level),
		Format:     b.config.Log.Format,
		OutputPath: b.config.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	models := append([]any{
		&credential.Credential{},
		&audit.Event{},
		&auth.User{},
	}, b.models...)

	app := &App{
		config: b.config,
		logger: logger,
	}

	fxOptions := []fx.Option{
		config.NewProvider(b.config),
		fx.Supply(logger),
		fx.Supply(database.WithModels(models...)),
		database.Module,
		audit.Module,
		credential.Module,
		jwt.Options,
		auth.Options,
		ratelimit.Module,
		server.NewProvider(),
		fx.Invoke(func(db *gorm.DB, srv *server.Server) {
			app.db = db
			app.server = srv
		}),
		fx.NopLogger,
	}
	fxOptions = append(fxOptions, b.fxOptions...)

	app.fx = fx.New(fxOptions...)

	return app, nil
}

func (b *AppBuilder) addError(msg string) {
	b.errors = append(b.errors, fmt.Errorf("%s", msg))
}
