package repository

import (
	"context"
	"errors"

	"indor_desk/internal/workflow/domain"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// Tx is the unit of work every workflow operation runs in. Reads made through
// it observe the transaction's own writes; nothing is visible to other callers
// until the function passed to WithinTx returns nil.
type Tx interface {
	// LockClient takes the per-client write lock that serialises progression changes.
	LockClient(ctx context.Context, clientID uuid.UUID) error
	GetActor(ctx context.Context, userID uuid.UUID) (domain.Actor, error)

	GetStage(ctx context.Context, stageID uuid.UUID) (domain.Stage, error)
	// PreviousActiveStage returns the nearest active stage ordered before orderIndex, or nil.
	PreviousActiveStage(ctx context.Context, orderIndex int) (*domain.Stage, error)
	GetActivity(ctx context.Context, activityID uuid.UUID) (domain.Activity, error)
	StageActivityIDs(ctx context.Context, stageID uuid.UUID) ([]uuid.UUID, error)

	// GetClientStage returns nil when the client has no row for the stage.
	GetClientStage(ctx context.Context, clientID, stageID uuid.UUID) (*domain.ClientStage, error)
	SaveClientStage(ctx context.Context, cs domain.ClientStage) (domain.ClientStage, error)
	// GetClientActivity returns nil when the client has no row for the activity.
	GetClientActivity(ctx context.Context, clientID, activityID uuid.UUID) (*domain.ClientActivity, error)
	SaveClientActivity(ctx context.Context, ca domain.ClientActivity) (domain.ClientActivity, error)
	CompletedActivityIDs(ctx context.Context, clientID, stageID uuid.UUID) (map[uuid.UUID]bool, error)

	CountOpenPendingTasks(ctx context.Context, clientID, stageID uuid.UUID) (int, error)
	GetPendingTask(ctx context.Context, taskID uuid.UUID) (domain.PendingTask, error)
	InsertPendingTask(ctx context.Context, task domain.PendingTask) error
	UpdatePendingTask(ctx context.Context, task domain.PendingTask) error

	InsertNote(ctx context.Context, note domain.Note) error
	ProfileNames(ctx context.Context, ids []uuid.UUID) ([]string, error)
	ProfileExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// TaskFilter narrows ListPendingTasks. Nil fields match everything.
type TaskFilter struct {
	ClientID *uuid.UUID
	StageID  *uuid.UUID
	Status   *domain.TaskStatus
}

// PendingTaskView is a pending task joined with display names.
type PendingTaskView struct {
	domain.PendingTask
	ClientName          string
	StageName           string
	AssignedProfileName *string
	CreatedByName       *string
	ResolvedByName      *string
}

// NoteView is a note joined with display names.
type NoteView struct {
	domain.Note
	AuthorName   *string
	StageName    *string
	ActivityName *string
}

// StageWithActivities is a catalog stage with its checklist.
type StageWithActivities struct {
	domain.Stage
	Activities []domain.Activity
}

// ClientProgress is every progression row a client has, plus open task counts per stage.
type ClientProgress struct {
	Stages         []domain.ClientStage
	Activities     []domain.ClientActivity
	OpenTasksStage map[uuid.UUID]int
}

// CatalogReader reads the admin-defined stage catalog.
type CatalogReader interface {
	ListCatalog(ctx context.Context, includeInactive bool) ([]StageWithActivities, error)
}

// ProgressReader reads a client's progression outside any unit of work.
type ProgressReader interface {
	GetClientProgress(ctx context.Context, clientID uuid.UUID) (ClientProgress, error)
}

// TimelineReader reads notes and pending tasks.
type TimelineReader interface {
	ClientExists(ctx context.Context, clientID uuid.UUID) (bool, error)
	ListNotes(ctx context.Context, clientID uuid.UUID) ([]NoteView, error)
	ListPendingTasks(ctx context.Context, filter TaskFilter) ([]PendingTaskView, error)
	GetPendingTaskView(ctx context.Context, taskID uuid.UUID) (PendingTaskView, error)
}

// Repository combines the unit of work with the read side.
type Repository interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	CatalogReader
	ProgressReader
	TimelineReader
}
