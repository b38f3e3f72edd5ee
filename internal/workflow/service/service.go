// Package service implements the workflow progression engine: the stage
// lifecycle, activity completion and the pending task registry. Every
// operation runs in one unit of work that locks the client row first, checks
// all preconditions, then writes state and its audit note together.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"indor_desk/internal/events"
	"indor_desk/internal/workflow/domain"
	"indor_desk/internal/workflow/repository"
	"indor_desk/platform/apperr"
	"indor_desk/platform/logger"

	"github.com/google/uuid"
)

// Operation names used for logs and metrics.
const (
	OpStageStart  = "stage.start"
	OpStageDone   = "stage.complete"
	OpStageRevert = "stage.revert"
	OpToggle      = "activity.toggle"
	OpTaskCreate  = "task.create"
	OpTaskResolve = "task.resolve"
	OpTaskReopen  = "task.reopen"
	OpNoteAdd     = "note.add"
)

// MetricsRecorder counts committed and refused operations.
type MetricsRecorder interface {
	Transition(operation string)
	Rejection(operation, code string)
}

// Service provides the workflow operations.
type Service struct {
	repo    repository.Repository
	bus     events.Bus
	log     *logger.Logger
	metrics MetricsRecorder
	now     func() time.Time
}

// New creates a new workflow service.
func New(repo repository.Repository, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo: repo,
		bus:  bus,
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// SetMetrics attaches a metrics recorder. Nil disables metrics.
func (s *Service) SetMetrics(m MetricsRecorder) {
	s.metrics = m
}

// unit collects what an operation wants to announce once it has committed.
type unit struct {
	tx     repository.Tx
	events []events.Event
	attrs  []any
}

func (u *unit) publish(e events.Event) {
	u.events = append(u.events, e)
}

func (u *unit) log(attrs ...any) {
	u.attrs = append(u.attrs, attrs...)
}

// run executes fn in a transaction. Events are published and the transition
// logged only after commit; a failed fn leaves no trace but a rejection count.
func (s *Service) run(ctx context.Context, op string, fn func(u *unit) error) error {
	var u *unit
	err := s.repo.WithinTx(ctx, func(tx repository.Tx) error {
		u = &unit{tx: tx}
		return fn(u)
	})
	if err != nil {
		if s.metrics != nil {
			if _, typed := apperr.As(err); typed {
				s.metrics.Rejection(op, apperr.GetCode(err))
			}
		}
		return err
	}

	s.log.WithContext(ctx).Transition(op, u.attrs...)
	if s.metrics != nil {
		s.metrics.Transition(op)
	}
	for _, e := range u.events {
		s.bus.Publish(ctx, e)
	}
	return nil
}

func (u *unit) lockClient(ctx context.Context, clientID uuid.UUID) error {
	err := u.tx.LockClient(ctx, clientID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NotFound("client")
	}
	return err
}

func (u *unit) actor(ctx context.Context, actorID uuid.UUID) (domain.Actor, error) {
	actor, err := u.tx.GetActor(ctx, actorID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Actor{}, apperr.Unauthorized("user not found or inactive").WithCode("unauthorized")
	}
	return actor, err
}

// stage returns the stage whether or not it is still active. Work already under
// way on a deactivated stage can be finished or undone.
func (u *unit) stage(ctx context.Context, stageID uuid.UUID) (domain.Stage, error) {
	stage, err := u.tx.GetStage(ctx, stageID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Stage{}, domain.NotFound("stage")
	}
	return stage, err
}

// activeStage gates new work: starting a stage and registering tasks on it.
func (u *unit) activeStage(ctx context.Context, stageID uuid.UUID) (domain.Stage, error) {
	stage, err := u.stage(ctx, stageID)
	if err == nil && !stage.IsActive {
		return domain.Stage{}, domain.NotFound("stage")
	}
	return stage, err
}

func (u *unit) activity(ctx context.Context, activityID uuid.UUID) (domain.Activity, error) {
	activity, err := u.tx.GetActivity(ctx, activityID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Activity{}, domain.NotFound("activity")
	}
	return activity, err
}

// taskLocked reads a task, locks its client and reads the task again so the
// returned state cannot change before commit.
func (u *unit) taskLocked(ctx context.Context, taskID uuid.UUID) (domain.PendingTask, error) {
	task, err := u.tx.GetPendingTask(ctx, taskID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.PendingTask{}, domain.NotFound("pending task")
	}
	if err != nil {
		return domain.PendingTask{}, err
	}
	if err := u.lockClient(ctx, task.ClientID); err != nil {
		return domain.PendingTask{}, err
	}
	task, err = u.tx.GetPendingTask(ctx, taskID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.PendingTask{}, domain.NotFound("pending task")
	}
	return task, err
}

func (u *unit) note(ctx context.Context, n domain.Note) (domain.Note, error) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if err := u.tx.InsertNote(ctx, n); err != nil {
		return domain.Note{}, err
	}
	return n, nil
}

// autoNote appends the system-written audit entry of a transition.
func (s *Service) autoNote(ctx context.Context, u *unit, clientID uuid.UUID, stageID, activityID *uuid.UUID, actorID uuid.UUID, content string) error {
	_, err := u.note(ctx, domain.Note{
		ClientID:        clientID,
		StageID:         stageID,
		ActivityID:      activityID,
		Content:         content,
		IsAutoGenerated: true,
		CreatedBy:       actorID,
		CreatedAt:       s.now(),
	})
	return err
}

func clientAttrs(clientID, actorID uuid.UUID) []any {
	return []any{slog.String("client_id", clientID.String()), slog.String("actor_id", actorID.String())}
}
