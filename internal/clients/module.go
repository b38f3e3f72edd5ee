// Package clients provides the client records bounded context.
package clients

import (
	"indor_desk/internal/clients/handler"
	"indor_desk/internal/clients/repository"
	"indor_desk/internal/clients/service"
	"indor_desk/internal/events"
	apphttp "indor_desk/internal/http"
	"indor_desk/platform/config"
	"indor_desk/platform/logger"
	"indor_desk/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule wires the clients module. roadmap reads progression from the workflow module.
func NewModule(pool *pgxpool.Pool, roadmap service.RoadmapReader, bus events.Bus, val *validator.Validator, cfg config.PhoneConfig, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, roadmap, bus, log, cfg.GetPhoneDefaultRegion())

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

func (m *Module) Name() string {
	return "clients"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/clients"))
}

var _ apphttp.Module = (*Module)(nil)
