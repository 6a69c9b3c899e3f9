package server

import (
	"context"

	"github.com/machsheltie/Equoria-sub009/middleware/ratelimit"
	"go.uber.org/fx"
)

func RegisterRoutes(srv *Server, handler *AuthHandler, limiter ratelimit.Limiter) {
	limited := ratelimit.Middleware(&ratelimit.Config{Limiter: limiter})

	srv.Post("/auth/register", handler.Register, limited)
	srv.Post("/auth/login", handler.Login, limited)
	srv.Post("/auth/refresh", handler.Refresh, limited)
	srv.Post("/auth/logout", handler.Logout)
}

func NewProvider() fx.Option {
	return fx.Options(
		fx.Provide(New),
		fx.Provide(NewAuthHandler),
		fx.Invoke(RegisterRoutes),
		fx.Invoke(func(lc fx.Lifecycle, srv *Server) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					go srv.Start()
					return nil
				},
				OnStop: func(ctx context.Context) error {
					return srv.Shutdown(ctx)
				},
			})
		}),
	)
}
