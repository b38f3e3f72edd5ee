package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"indor_desk/internal/events"
	"indor_desk/internal/workflow/domain"
	"indor_desk/internal/workflow/repository"
	"indor_desk/internal/workflow/transport"
	"indor_desk/platform/sanitize"

	"github.com/google/uuid"
)

const maxTaskTitleRunes = 255

// newTask is a pre-formed insertion request for the registry.
type newTask struct {
	ClientID          uuid.UUID
	StageID           uuid.UUID
	NoteID            *uuid.UUID
	AssignedProfileID *uuid.UUID
	Title             string
}

// createTask inserts a pending task inside an existing unit of work. The caller
// holds the client lock.
func (s *Service) createTask(ctx context.Context, u *unit, actor domain.Actor, req newTask) (domain.PendingTask, error) {
	title := sanitize.Text(req.Title)
	if title == "" || utf8.RuneCountInString(title) > maxTaskTitleRunes {
		return domain.PendingTask{}, domain.Validation("pending task title must be between 1 and 255 characters")
	}
	if _, err := u.activeStage(ctx, req.StageID); err != nil {
		return domain.PendingTask{}, err
	}
	if req.AssignedProfileID != nil {
		exists, err := u.tx.ProfileExists(ctx, *req.AssignedProfileID)
		if err != nil {
			return domain.PendingTask{}, err
		}
		if !exists {
			return domain.PendingTask{}, domain.Validation("assigned profile does not exist")
		}
	}

	actorID := actor.ID
	task := domain.PendingTask{
		ID:                uuid.New(),
		ClientID:          req.ClientID,
		StageID:           req.StageID,
		NoteID:            req.NoteID,
		Title:             title,
		Status:            domain.TaskPending,
		AssignedProfileID: req.AssignedProfileID,
		CreatedBy:         &actorID,
		CreatedAt:         s.now(),
	}
	if err := u.tx.InsertPendingTask(ctx, task); err != nil {
		return domain.PendingTask{}, err
	}

	u.publish(events.PendingTaskCreated{
		BaseEvent:         events.NewBaseEvent(),
		TaskID:            task.ID,
		ClientID:          task.ClientID,
		StageID:           task.StageID,
		AssignedProfileID: task.AssignedProfileID,
		Title:             task.Title,
	})
	return task, nil
}

// CreatePendingTask registers a follow-up task on a client's stage.
func (s *Service) CreatePendingTask(ctx context.Context, actorID uuid.UUID, req transport.CreatePendingTaskRequest) (transport.PendingTaskResponse, error) {
	var task domain.PendingTask

	err := s.run(ctx, OpTaskCreate, func(u *unit) error {
		if err := u.lockClient(ctx, req.ClientID); err != nil {
			return err
		}
		actor, err := u.actor(ctx, actorID)
		if err != nil {
			return err
		}
		task, err = s.createTask(ctx, u, actor, newTask{
			ClientID:          req.ClientID,
			StageID:           req.StageID,
			AssignedProfileID: req.AssignedProfileID,
			Title:             req.Title,
		})
		if err != nil {
			return err
		}
		u.log(append(clientAttrs(req.ClientID, actor.ID), slog.String("task_id", task.ID.String()))...)
		return nil
	})
	if err != nil {
		return transport.PendingTaskResponse{}, err
	}
	return toPendingTaskResponse(task), nil
}

// ResolvePendingTask closes a pending task with a resolution note written by the actor.
func (s *Service) ResolvePendingTask(ctx context.Context, taskID, actorID uuid.UUID, req transport.ResolvePendingTaskRequest) (transport.ResolvePendingTaskResponse, error) {
	resolution := sanitize.Text(req.ResolutionNote)
	if strings.TrimSpace(resolution) == "" {
		return transport.ResolvePendingTaskResponse{}, domain.Validation("resolution note is required")
	}

	var task domain.PendingTask
	var note domain.Note

	err := s.run(ctx, OpTaskResolve, func(u *unit) error {
		var err error
		if task, err = u.taskLocked(ctx, taskID); err != nil {
			return err
		}
		actor, err := u.actor(ctx, actorID)
		if err != nil {
			return err
		}
		if err := domain.CheckResolve(task, resolution); err != nil {
			return err
		}
		if gate := domain.TaskGate(task); !domain.ActorMayPerform(actor, gate) {
			names, err := u.tx.ProfileNames(ctx, gate)
			if err != nil {
				return err
			}
			name := "unknown profile"
			if len(names) > 0 {
				name = names[0]
			}
			return domain.TaskProfileNotAllowed(name)
		}

		now := s.now()
		stageID := task.StageID
		note, err = u.note(ctx, domain.Note{
			ClientID:        task.ClientID,
			StageID:         &stageID,
			Content:         domain.ResolutionNote(resolution),
			IsAutoGenerated: false,
			CreatedBy:       actor.ID,
			CreatedAt:       now,
		})
		if err != nil {
			return err
		}

		task.Resolve(actor.ID, note.ID, now)
		if err := u.tx.UpdatePendingTask(ctx, task); err != nil {
			return err
		}

		u.publish(events.PendingTaskResolved{
			BaseEvent: events.NewBaseEvent(),
			TaskID:    task.ID,
			ClientID:  task.ClientID,
			StageID:   task.StageID,
			ActorID:   actor.ID,
		})
		u.log(append(clientAttrs(task.ClientID, actor.ID), slog.String("task_id", task.ID.String()))...)
		return nil
	})
	if err != nil {
		return transport.ResolvePendingTaskResponse{}, err
	}
	return transport.ResolvePendingTaskResponse{
		Task: toPendingTaskResponse(task),
		Note: toNoteResponse(repository.NoteView{Note: note}),
	}, nil
}

// ReopenPendingTask returns a resolved task to pending. A completed stage that
// owns the task is reopened with it, since the stage no longer meets its gate.
func (s *Service) ReopenPendingTask(ctx context.Context, taskID, actorID uuid.UUID) (transport.PendingTaskResponse, error) {
	var task domain.PendingTask

	err := s.run(ctx, OpTaskReopen, func(u *unit) error {
		var err error
		if task, err = u.taskLocked(ctx, taskID); err != nil {
			return err
		}
		actor, err := u.actor(ctx, actorID)
		if err != nil {
			return err
		}
		if err := domain.CheckReopen(task); err != nil {
			return err
		}

		task.Reopen()
		if err := u.tx.UpdatePendingTask(ctx, task); err != nil {
			return err
		}
		stageID := task.StageID
		if err := s.autoNote(ctx, u, task.ClientID, &stageID, nil, actor.ID, domain.TaskReopenedNote(task.Title)); err != nil {
			return err
		}

		progress, err := u.tx.GetClientStage(ctx, task.ClientID, task.StageID)
		if err != nil {
			return err
		}
		reopened := progress != nil && progress.Status == domain.StageCompleted
		if reopened {
			row := *progress
			row.Reopen()
			if _, err := u.tx.SaveClientStage(ctx, row); err != nil {
				return err
			}
			if err := s.autoNote(ctx, u, task.ClientID, &stageID, nil, actor.ID, domain.StageReopenedByTaskNote); err != nil {
				return err
			}
			u.publish(events.StageReverted{
				BaseEvent: events.NewBaseEvent(),
				ClientID:  task.ClientID,
				StageID:   stageID,
				ActorID:   actor.ID,
				NewStatus: string(domain.StageInProgress),
				Cascade:   true,
			})
		}

		u.publish(events.PendingTaskReopened{
			BaseEvent: events.NewBaseEvent(),
			TaskID:    task.ID,
			ClientID:  task.ClientID,
			StageID:   task.StageID,
			ActorID:   actor.ID,
		})
		u.log(append(clientAttrs(task.ClientID, actor.ID),
			slog.String("task_id", task.ID.String()),
			slog.Bool("stage_reopened", reopened))...)
		return nil
	})
	if err != nil {
		return transport.PendingTaskResponse{}, err
	}
	return toPendingTaskResponse(task), nil
}

// ListPendingTasks returns tasks matching the optional filters, newest first.
func (s *Service) ListPendingTasks(ctx context.Context, req transport.ListPendingTasksRequest) (transport.PendingTaskListResponse, error) {
	var filter repository.TaskFilter
	if req.ClientID != "" {
		id, err := uuid.Parse(req.ClientID)
		if err != nil {
			return transport.PendingTaskListResponse{}, domain.Validation("invalid clientId")
		}
		filter.ClientID = &id
	}
	if req.StageID != "" {
		id, err := uuid.Parse(req.StageID)
		if err != nil {
			return transport.PendingTaskListResponse{}, domain.Validation("invalid stageId")
		}
		filter.StageID = &id
	}
	if req.Status != "" {
		status := domain.TaskStatus(req.Status)
		if status != domain.TaskPending && status != domain.TaskResolved {
			return transport.PendingTaskListResponse{}, domain.Validation("status must be pending or resolved")
		}
		filter.Status = &status
	}

	views, err := s.repo.ListPendingTasks(ctx, filter)
	if err != nil {
		return transport.PendingTaskListResponse{}, err
	}
	items := make([]transport.PendingTaskResponse, 0, len(views))
	for _, v := range views {
		items = append(items, toPendingTaskViewResponse(v))
	}
	return transport.PendingTaskListResponse{Items: items}, nil
}

// GetPendingTask returns one task with its display names.
func (s *Service) GetPendingTask(ctx context.Context, taskID uuid.UUID) (transport.PendingTaskResponse, error) {
	v, err := s.repo.GetPendingTaskView(ctx, taskID)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.PendingTaskResponse{}, domain.NotFound("pending task")
	}
	if err != nil {
		return transport.PendingTaskResponse{}, err
	}
	return toPendingTaskViewResponse(v), nil
}
