// Package domain holds the workflow progression rules: stage and task states,
// the gates each transition must pass, and the audit note texts.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// StageStatus is a client's progress on one stage.
type StageStatus string

const (
	StageNotStarted StageStatus = "not_started"
	StageInProgress StageStatus = "in_progress"
	StageCompleted  StageStatus = "completed"
)

// TaskStatus is the lifecycle state of a pending task.
type TaskStatus string

const (
	TaskPending  TaskStatus = "pending"
	TaskResolved TaskStatus = "resolved"
)

const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// Stage is an admin-defined phase of the evaluation journey.
type Stage struct {
	ID          uuid.UUID
	Name        string
	Description *string
	OrderIndex  int
	IsActive    bool
}

// Activity is a checklist item that belongs to exactly one stage.
type Activity struct {
	ID              uuid.UUID
	StageID         uuid.UUID
	Name            string
	Description     *string
	OrderIndex      int
	IsRequired      bool
	AllowedProfiles []uuid.UUID
}

// ClientStage is the lazily created progression row for (client, stage).
// A missing row means StageNotStarted.
type ClientStage struct {
	ID          uuid.UUID
	ClientID    uuid.UUID
	StageID     uuid.UUID
	Status      StageStatus
	StartedAt   *time.Time
	StartedBy   *uuid.UUID
	CompletedAt *time.Time
	CompletedBy *uuid.UUID
}

// NewClientStage returns the not_started row used before the first write.
func NewClientStage(clientID, stageID uuid.UUID) ClientStage {
	return ClientStage{ID: uuid.New(), ClientID: clientID, StageID: stageID, Status: StageNotStarted}
}

// Start moves the row to in_progress.
func (cs *ClientStage) Start(actorID uuid.UUID, now time.Time) {
	cs.Status = StageInProgress
	cs.StartedAt = &now
	cs.StartedBy = &actorID
	cs.CompletedAt = nil
	cs.CompletedBy = nil
}

// Complete moves the row to completed.
func (cs *ClientStage) Complete(actorID uuid.UUID, now time.Time) {
	cs.Status = StageCompleted
	cs.CompletedAt = &now
	cs.CompletedBy = &actorID
}

// Reopen moves a completed row back to in_progress, keeping the start stamp.
func (cs *ClientStage) Reopen() {
	cs.Status = StageInProgress
	cs.CompletedAt = nil
	cs.CompletedBy = nil
}

// Reset moves the row back to not_started and clears every stamp.
func (cs *ClientStage) Reset() {
	cs.Status = StageNotStarted
	cs.StartedAt = nil
	cs.StartedBy = nil
	cs.CompletedAt = nil
	cs.CompletedBy = nil
}

// ClientActivity is the lazily created completion row for (client, activity).
// A missing row means not completed.
type ClientActivity struct {
	ID          uuid.UUID
	ClientID    uuid.UUID
	ActivityID  uuid.UUID
	IsCompleted bool
	CompletedAt *time.Time
	CompletedBy *uuid.UUID
}

// NewClientActivity returns the not-completed row used before the first write.
func NewClientActivity(clientID, activityID uuid.UUID) ClientActivity {
	return ClientActivity{ID: uuid.New(), ClientID: clientID, ActivityID: activityID}
}

// SetCompleted flips the row and keeps the completion stamps consistent.
func (ca *ClientActivity) SetCompleted(completed bool, actorID uuid.UUID, now time.Time) {
	ca.IsCompleted = completed
	if completed {
		ca.CompletedAt = &now
		ca.CompletedBy = &actorID
		return
	}
	ca.CompletedAt = nil
	ca.CompletedBy = nil
}

// PendingTask is an ad-hoc follow-up that blocks stage completion until resolved.
type PendingTask struct {
	ID                uuid.UUID
	ClientID          uuid.UUID
	StageID           uuid.UUID
	NoteID            *uuid.UUID
	Title             string
	Status            TaskStatus
	AssignedProfileID *uuid.UUID
	CreatedBy         *uuid.UUID
	CreatedAt         time.Time
	ResolvedBy        *uuid.UUID
	ResolvedAt        *time.Time
	ResolutionNoteID  *uuid.UUID
}

// Resolve marks the task resolved by the given note.
func (t *PendingTask) Resolve(actorID, noteID uuid.UUID, now time.Time) {
	t.Status = TaskResolved
	t.ResolvedBy = &actorID
	t.ResolvedAt = &now
	t.ResolutionNoteID = &noteID
}

// Reopen returns the task to pending and clears the resolution.
func (t *PendingTask) Reopen() {
	t.Status = TaskPending
	t.ResolvedBy = nil
	t.ResolvedAt = nil
	t.ResolutionNoteID = nil
}

// Note is an append-only timeline entry.
type Note struct {
	ID              uuid.UUID
	ClientID        uuid.UUID
	StageID         *uuid.UUID
	ActivityID      *uuid.UUID
	Content         string
	IsAutoGenerated bool
	CreatedBy       uuid.UUID
	CreatedAt       time.Time
}

// Profile is an authorization tag assigned to users.
type Profile struct {
	ID       uuid.UUID
	Name     string
	IsSystem bool
}

// Actor is the user performing an operation, as stored (not as claimed by a token).
type Actor struct {
	ID        uuid.UUID
	Name      string
	Role      string
	ProfileID *uuid.UUID
}

// IsAdmin reports whether the actor bypasses profile gates.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// DisplayName is the name written into audit notes.
func (a Actor) DisplayName() string {
	if a.Name == "" {
		return "unknown user"
	}
	return a.Name
}
