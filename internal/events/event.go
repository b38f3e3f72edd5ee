// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"github.com/google/uuid"

	"indor_desk/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Publisher   = events.Publisher
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

// Re-export platform functions
var (
	NewBaseEvent   = events.NewBaseEvent
	NewInMemoryBus = events.NewInMemoryBus
)

// =============================================================================
// Workflow Events
// =============================================================================

// StageStarted is published when a client's stage moves to in_progress.
type StageStarted struct {
	BaseEvent
	ClientID uuid.UUID `json:"clientId"`
	StageID  uuid.UUID `json:"stageId"`
	ActorID  uuid.UUID `json:"actorId"`
}

func (e StageStarted) EventName() string { return "workflow.stage.started" }

// StageCompleted is published when a client's stage is completed.
type StageCompleted struct {
	BaseEvent
	ClientID uuid.UUID `json:"clientId"`
	StageID  uuid.UUID `json:"stageId"`
	ActorID  uuid.UUID `json:"actorId"`
}

func (e StageCompleted) EventName() string { return "workflow.stage.completed" }

// StageReverted is published when a stage goes back one status, explicitly or by cascade.
type StageReverted struct {
	BaseEvent
	ClientID  uuid.UUID `json:"clientId"`
	StageID   uuid.UUID `json:"stageId"`
	ActorID   uuid.UUID `json:"actorId"`
	NewStatus string    `json:"newStatus"`
	Cascade   bool      `json:"cascade"`
}

func (e StageReverted) EventName() string { return "workflow.stage.reverted" }

// ActivityToggled is published after every activity toggle.
type ActivityToggled struct {
	BaseEvent
	ClientID    uuid.UUID `json:"clientId"`
	StageID     uuid.UUID `json:"stageId"`
	ActivityID  uuid.UUID `json:"activityId"`
	ActorID     uuid.UUID `json:"actorId"`
	IsCompleted bool      `json:"isCompleted"`
}

func (e ActivityToggled) EventName() string { return "workflow.activity.toggled" }

// PendingTaskCreated is published when a follow-up task is registered.
type PendingTaskCreated struct {
	BaseEvent
	TaskID            uuid.UUID  `json:"taskId"`
	ClientID          uuid.UUID  `json:"clientId"`
	StageID           uuid.UUID  `json:"stageId"`
	AssignedProfileID *uuid.UUID `json:"assignedProfileId,omitempty"`
	Title             string     `json:"title"`
}

func (e PendingTaskCreated) EventName() string { return "workflow.pending_task.created" }

// PendingTaskResolved is published when a task is resolved.
type PendingTaskResolved struct {
	BaseEvent
	TaskID   uuid.UUID `json:"taskId"`
	ClientID uuid.UUID `json:"clientId"`
	StageID  uuid.UUID `json:"stageId"`
	ActorID  uuid.UUID `json:"actorId"`
}

func (e PendingTaskResolved) EventName() string { return "workflow.pending_task.resolved" }

// PendingTaskReopened is published when a resolved task goes back to pending.
type PendingTaskReopened struct {
	BaseEvent
	TaskID   uuid.UUID `json:"taskId"`
	ClientID uuid.UUID `json:"clientId"`
	StageID  uuid.UUID `json:"stageId"`
	ActorID  uuid.UUID `json:"actorId"`
}

func (e PendingTaskReopened) EventName() string { return "workflow.pending_task.reopened" }

// NoteAdded is published when a user writes a note on a client timeline.
type NoteAdded struct {
	BaseEvent
	NoteID   uuid.UUID `json:"noteId"`
	ClientID uuid.UUID `json:"clientId"`
	ActorID  uuid.UUID `json:"actorId"`
}

func (e NoteAdded) EventName() string { return "workflow.note.added" }

// =============================================================================
// Client Events
// =============================================================================

// ClientCreated is published when a client record is created.
type ClientCreated struct {
	BaseEvent
	ClientID uuid.UUID `json:"clientId"`
	Name     string    `json:"name"`
}

func (e ClientCreated) EventName() string { return "clients.client.created" }

// =============================================================================
// Auth Events
// =============================================================================

// AccountLocked is published when repeated failures lock an account.
type AccountLocked struct {
	BaseEvent
	UserID   uuid.UUID `json:"userId"`
	Username string    `json:"username"`
}

func (e AccountLocked) EventName() string { return "auth.account.locked" }
