// Package notification pushes workflow events to connected dashboards.
package notification

import (
	"context"

	"indor_desk/internal/events"
	apphttp "indor_desk/internal/http"
	"indor_desk/internal/notification/sse"
	"indor_desk/platform/httpkit"
	"indor_desk/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Module subscribes to the workflow events and relays them over SSE.
type Module struct {
	sse *sse.Service
	log *logger.Logger
}

func New(log *logger.Logger) *Module {
	return &Module{sse: sse.New(log), log: log}
}

func (m *Module) Name() string { return "notification" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/events/stream", m.sse.Handler(identityUserID))
}

func identityUserID(c *gin.Context) (uuid.UUID, bool) {
	identity := httpkit.GetIdentity(c)
	if identity == nil || !identity.IsAuthenticated() {
		return uuid.Nil, false
	}
	return identity.UserID(), true
}

// SSE exposes the stream service, mainly for shutdown.
func (m *Module) SSE() *sse.Service { return m.sse }

// RegisterHandlers subscribes the module to every event it relays.
func (m *Module) RegisterHandlers(bus events.Bus) {
	for _, name := range []string{
		events.StageStarted{}.EventName(),
		events.StageCompleted{}.EventName(),
		events.StageReverted{}.EventName(),
		events.ActivityToggled{}.EventName(),
		events.PendingTaskCreated{}.EventName(),
		events.PendingTaskResolved{}.EventName(),
		events.PendingTaskReopened{}.EventName(),
		events.NoteAdded{}.EventName(),
	} {
		bus.Subscribe(name, m)
	}
}

// Handle implements events.Handler.
func (m *Module) Handle(_ context.Context, event events.Event) error {
	out := sse.Event{Type: event.EventName(), Data: event}

	switch e := event.(type) {
	case events.StageStarted:
		out.ClientID = e.ClientID
	case events.StageCompleted:
		out.ClientID = e.ClientID
	case events.StageReverted:
		out.ClientID = e.ClientID
	case events.ActivityToggled:
		out.ClientID = e.ClientID
	case events.PendingTaskCreated:
		out.ClientID = e.ClientID
	case events.PendingTaskResolved:
		out.ClientID = e.ClientID
	case events.PendingTaskReopened:
		out.ClientID = e.ClientID
	case events.NoteAdded:
		out.ClientID = e.ClientID
	default:
		return nil
	}

	m.sse.Broadcast(out)
	return nil
}

var _ apphttp.Module = (*Module)(nil)
var _ events.Handler = (*Module)(nil)
