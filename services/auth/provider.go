package auth

import (
	"github.com/machsheltie/Equoria-sub009/config"
	"github.com/machsheltie/Equoria-sub009/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func NewAuthService(cfg *config.Config, db *gorm.DB, logger *logging.Service) *Service {
	return NewService(cfg, db, logger)
}

var Options = fx.Options(
	fx.Provide(NewAuthService),
)
