// Package auth provides the authentication bounded context module.
package auth

import (
	"indor_desk/internal/auth/handler"
	"indor_desk/internal/auth/ratelimit"
	"indor_desk/internal/auth/repository"
	"indor_desk/internal/auth/service"
	"indor_desk/internal/events"
	apphttp "indor_desk/internal/http"
	"indor_desk/platform/config"
	"indor_desk/platform/logger"
	"indor_desk/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the auth bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

func NewModule(pool *pgxpool.Pool, cfg config.AuthServiceConfig, limiter ratelimit.Limiter, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(repository.New(pool), cfg, limiter, bus, log)
	return &Module{
		handler: handler.New(svc, val, cfg.GetRefreshCookieSecure()),
		service: svc,
	}
}

func (m *Module) Name() string {
	return "auth"
}

func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts the public login endpoints behind the IP limiter and
// the current-user lookup behind authentication.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	authGroup := ctx.V1.Group("/auth")
	if ctx.AuthRateLimiter != nil {
		authGroup.Use(ctx.AuthRateLimiter.RateLimit())
	}
	m.handler.RegisterRoutes(authGroup)

	ctx.Protected.GET("/auth/me", m.handler.Me)
}

var _ apphttp.Module = (*Module)(nil)
