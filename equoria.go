// Package equoria exposes the session-credential security core: refresh
// credential rotation with family lineage tracking, reuse detection and
// cascading invalidation.
package equoria

import (
	"github.com/machsheltie/Equoria-sub009/app"
	"github.com/machsheltie/Equoria-sub009/config"
)

type App = app.App

func New() *app.AppBuilder {
	return app.NewApp()
}

func WithConfig(cfg *config.Config) *app.AppBuilder {
	return app.NewApp().WithConfig(cfg)
}
