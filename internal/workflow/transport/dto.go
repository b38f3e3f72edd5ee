package transport

import (
	"time"

	"github.com/google/uuid"
)

// ToggleActivityRequest carries an optional observation kept only when the toggle completes the activity.
type ToggleActivityRequest struct {
	Note *string `json:"note,omitempty" validate:"omitempty,max=5000"`
}

// ResolvePendingTaskRequest contains the resolution text. Blank text is rejected by the service.
type ResolvePendingTaskRequest struct {
	ResolutionNote string `json:"resolutionNote" validate:"max=5000"`
}

// CreatePendingTaskRequest registers a follow-up task directly.
type CreatePendingTaskRequest struct {
	ClientID          uuid.UUID  `json:"clientId" validate:"required"`
	StageID           uuid.UUID  `json:"stageId" validate:"required"`
	AssignedProfileID *uuid.UUID `json:"assignedProfileId,omitempty"`
	Title             string     `json:"title" validate:"required,notblank,max=255"`
}

// ListPendingTasksRequest filters the task list. All fields are optional.
type ListPendingTasksRequest struct {
	ClientID string `form:"clientId" validate:"omitempty,uuid"`
	StageID  string `form:"stageId" validate:"omitempty,uuid"`
	Status   string `form:"status" validate:"omitempty,oneof=pending resolved"`
}

// AddNoteRequest writes a manual note, optionally spawning a pending task.
type AddNoteRequest struct {
	Content              string     `json:"content" validate:"required,notblank,max=10000"`
	StageID              *uuid.UUID `json:"stageId,omitempty"`
	ActivityID           *uuid.UUID `json:"activityId,omitempty"`
	CreatesPendingTask   bool       `json:"createsPendingTask"`
	PendingTaskProfileID *uuid.UUID `json:"pendingTaskProfileId,omitempty"`
}

// ClientStageResponse is a client's progression row on one stage.
type ClientStageResponse struct {
	ID          uuid.UUID  `json:"id"`
	ClientID    uuid.UUID  `json:"clientId"`
	StageID     uuid.UUID  `json:"stageId"`
	Status      string     `json:"status"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	StartedBy   *uuid.UUID `json:"startedBy,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CompletedBy *uuid.UUID `json:"completedBy,omitempty"`
}

// RevertStageResponse reports the row after a revert and which status it landed on.
type RevertStageResponse struct {
	ClientStage ClientStageResponse `json:"clientStage"`
	NewStatus   string              `json:"newStatus"`
}

// ToggleActivityResponse is the result of a toggle.
type ToggleActivityResponse struct {
	IsCompleted   bool   `json:"isCompleted"`
	StageStatus   string `json:"stageStatus"`
	StageReopened bool   `json:"stageReopened"`
}

// PendingTaskResponse is a task with display names.
type PendingTaskResponse struct {
	ID                  uuid.UUID  `json:"id"`
	ClientID            uuid.UUID  `json:"clientId"`
	ClientName          string     `json:"clientName,omitempty"`
	StageID             uuid.UUID  `json:"stageId"`
	StageName           string     `json:"stageName,omitempty"`
	NoteID              *uuid.UUID `json:"noteId,omitempty"`
	Title               string     `json:"title"`
	Status              string     `json:"status"`
	AssignedProfileID   *uuid.UUID `json:"assignedProfileId,omitempty"`
	AssignedProfileName *string    `json:"assignedProfileName,omitempty"`
	CreatedBy           *uuid.UUID `json:"createdBy,omitempty"`
	CreatedByName       *string    `json:"createdByName,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	ResolvedBy          *uuid.UUID `json:"resolvedBy,omitempty"`
	ResolvedByName      *string    `json:"resolvedByName,omitempty"`
	ResolvedAt          *time.Time `json:"resolvedAt,omitempty"`
	ResolutionNoteID    *uuid.UUID `json:"resolutionNoteId,omitempty"`
}

// PendingTaskListResponse wraps a list of tasks.
type PendingTaskListResponse struct {
	Items []PendingTaskResponse `json:"items"`
}

// NoteResponse is a timeline entry.
type NoteResponse struct {
	ID              uuid.UUID  `json:"id"`
	ClientID        uuid.UUID  `json:"clientId"`
	StageID         *uuid.UUID `json:"stageId,omitempty"`
	StageName       *string    `json:"stageName,omitempty"`
	ActivityID      *uuid.UUID `json:"activityId,omitempty"`
	ActivityName    *string    `json:"activityName,omitempty"`
	Content         string     `json:"content"`
	IsAutoGenerated bool       `json:"isAutoGenerated"`
	CreatedBy       uuid.UUID  `json:"createdBy"`
	AuthorName      *string    `json:"authorName,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// NoteListResponse wraps a client's timeline.
type NoteListResponse struct {
	Items []NoteResponse `json:"items"`
}

// ResolvePendingTaskResponse returns the resolved task and the note that resolved it.
type ResolvePendingTaskResponse struct {
	Task PendingTaskResponse `json:"task"`
	Note NoteResponse        `json:"note"`
}

// AddNoteResponse returns the note and, when requested, the task it created.
type AddNoteResponse struct {
	Note        NoteResponse         `json:"note"`
	PendingTask *PendingTaskResponse `json:"pendingTask,omitempty"`
}

// ActivityResponse is a catalog activity.
type ActivityResponse struct {
	ID              uuid.UUID   `json:"id"`
	Name            string      `json:"name"`
	Description     *string     `json:"description,omitempty"`
	OrderIndex      int         `json:"orderIndex"`
	IsRequired      bool        `json:"isRequired"`
	AllowedProfiles []uuid.UUID `json:"allowedProfiles"`
}

// StageResponse is a catalog stage with its checklist.
type StageResponse struct {
	ID          uuid.UUID          `json:"id"`
	Name        string             `json:"name"`
	Description *string            `json:"description,omitempty"`
	OrderIndex  int                `json:"orderIndex"`
	IsActive    bool               `json:"isActive"`
	Activities  []ActivityResponse `json:"activities"`
}

// StageListResponse wraps the catalog.
type StageListResponse struct {
	Items []StageResponse `json:"items"`
}

// RoadmapActivity is a catalog activity with the client's completion flag.
type RoadmapActivity struct {
	ActivityResponse
	IsCompleted bool       `json:"isCompleted"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CompletedBy *uuid.UUID `json:"completedBy,omitempty"`
}

// RoadmapStage is one stage of a client's journey.
type RoadmapStage struct {
	ID               uuid.UUID         `json:"id"`
	Name             string            `json:"name"`
	Description      *string           `json:"description,omitempty"`
	OrderIndex       int               `json:"orderIndex"`
	Status           string            `json:"status"`
	StartedAt        *time.Time        `json:"startedAt,omitempty"`
	CompletedAt      *time.Time        `json:"completedAt,omitempty"`
	OpenPendingTasks int               `json:"openPendingTasks"`
	Activities       []RoadmapActivity `json:"activities"`
}
