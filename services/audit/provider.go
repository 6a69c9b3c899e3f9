package audit

import (
	"context"

	"github.com/machsheltie/Equoria-sub009/config"
	"github.com/machsheltie/Equoria-sub009/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideAuditService(cfg *config.Config, db *gorm.DB, logger *logging.Service) *Service {
	return NewService(db, logger, cfg.Credential.AuditBuffer)
}

func ProvideAuditAsRecorder(svc *Service) Recorder {
	return svc
}

func SetupAuditShutdown(lc fx.Lifecycle, svc *Service) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			svc.Close()
			return nil
		},
	})
}

var Module = fx.Options(
	fx.Provide(ProvideAuditService),
	fx.Provide(ProvideAuditAsRecorder),
	fx.Invoke(SetupAuditShutdown),
)
