// Package workflow is the progression engine bounded context: stage lifecycle,
// activity completion, pending tasks and the client timeline.
package workflow

import (
	"indor_desk/internal/events"
	apphttp "indor_desk/internal/http"
	"indor_desk/internal/workflow/handler"
	"indor_desk/internal/workflow/repository"
	"indor_desk/internal/workflow/service"
	"indor_desk/platform/logger"
	"indor_desk/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the workflow bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule wires the repository, service and handler. metrics may be nil.
func NewModule(pool *pgxpool.Pool, bus events.Bus, val *validator.Validator, log *logger.Logger, metrics service.MetricsRecorder) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, bus, log)
	if metrics != nil {
		svc.SetMetrics(metrics)
	}

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

func (m *Module) Name() string {
	return "workflow"
}

// Service returns the workflow service for adapters (client roadmap).
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts every workflow route on the authenticated group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
}

var _ apphttp.Module = (*Module)(nil)
