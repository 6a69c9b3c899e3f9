package credential

import (
	"context"

	"github.com/machsheltie/Equoria-sub009/config"
	"github.com/machsheltie/Equoria-sub009/services/audit"
	"github.com/machsheltie/Equoria-sub009/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideCredentialService(db *gorm.DB, cfg *config.Config, recorder audit.Recorder, logger *logging.Service) *Service {
	return NewService(db, cfg, recorder, logger)
}

func ProvideSweeper(svc *Service, cfg *config.Config, logger *logging.Service) *Sweeper {
	return NewSweeper(svc.Store(), cfg.Credential.Retention, logger)
}

func SetupSweepWorker(lc fx.Lifecycle, cfg *config.Config, sweeper *Sweeper) {
	if cfg.Credential.SweepInterval <= 0 {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			sweeper.StartWorker(cfg.Credential.SweepInterval)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			sweeper.StopWorker()
			return nil
		},
	})
}

var Module = fx.Options(
	fx.Provide(ProvideCredentialService),
	fx.Provide(ProvideSweeper),
	fx.Invoke(SetupSweepWorker),
)
