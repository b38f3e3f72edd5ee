package service

import (
	"context"
	"log/slog"

	"indor_desk/internal/events"
	"indor_desk/internal/workflow/domain"
	"indor_desk/internal/workflow/repository"
	"indor_desk/internal/workflow/transport"
	"indor_desk/platform/sanitize"

	"github.com/google/uuid"
)

// AddNote writes a manual note on a client's timeline. With CreatesPendingTask
// the note also opens a pending task on its stage, titled after the note.
func (s *Service) AddNote(ctx context.Context, clientID, actorID uuid.UUID, req transport.AddNoteRequest) (transport.AddNoteResponse, error) {
	content := sanitize.Text(req.Content)
	if content == "" {
		return transport.AddNoteResponse{}, domain.Validation("note content is required")
	}
	if req.CreatesPendingTask && req.StageID == nil && req.ActivityID == nil {
		return transport.AddNoteResponse{}, domain.Validation("a stage is required to create a pending task")
	}

	var note domain.Note
	var task *domain.PendingTask

	err := s.run(ctx, OpNoteAdd, func(u *unit) error {
		if err := u.lockClient(ctx, clientID); err != nil {
			return err
		}
		actor, err := u.actor(ctx, actorID)
		if err != nil {
			return err
		}

		stageID := req.StageID
		if req.ActivityID != nil {
			activity, err := u.activity(ctx, *req.ActivityID)
			if err != nil {
				return err
			}
			if stageID != nil && *stageID != activity.StageID {
				return domain.Validation("activity does not belong to the given stage")
			}
			stageID = &activity.StageID
		}
		if stageID != nil {
			lookup := u.stage
			if req.CreatesPendingTask {
				lookup = u.activeStage
			}
			if _, err := lookup(ctx, *stageID); err != nil {
				return err
			}
		}

		note, err = u.note(ctx, domain.Note{
			ClientID:   clientID,
			StageID:    stageID,
			ActivityID: req.ActivityID,
			Content:    content,
			CreatedBy:  actor.ID,
			CreatedAt:  s.now(),
		})
		if err != nil {
			return err
		}
		u.publish(events.NoteAdded{BaseEvent: events.NewBaseEvent(), NoteID: note.ID, ClientID: clientID, ActorID: actor.ID})

		attrs := append(clientAttrs(clientID, actor.ID), slog.String("note_id", note.ID.String()))
		if req.CreatesPendingTask {
			created, err := s.createTask(ctx, u, actor, newTask{
				ClientID:          clientID,
				StageID:           *stageID,
				NoteID:            &note.ID,
				AssignedProfileID: req.PendingTaskProfileID,
				Title:             domain.TaskTitleFromNote(content),
			})
			if err != nil {
				return err
			}
			task = &created
			attrs = append(attrs, slog.String("task_id", created.ID.String()))
		}
		u.log(attrs...)
		return nil
	})
	if err != nil {
		return transport.AddNoteResponse{}, err
	}

	resp := transport.AddNoteResponse{Note: toNoteResponse(repository.NoteView{Note: note})}
	if task != nil {
		taskResp := toPendingTaskResponse(*task)
		resp.PendingTask = &taskResp
	}
	return resp, nil
}

// ListNotes returns the client's timeline, newest first.
func (s *Service) ListNotes(ctx context.Context, clientID uuid.UUID) (transport.NoteListResponse, error) {
	exists, err := s.repo.ClientExists(ctx, clientID)
	if err != nil {
		return transport.NoteListResponse{}, err
	}
	if !exists {
		return transport.NoteListResponse{}, domain.NotFound("client")
	}

	views, err := s.repo.ListNotes(ctx, clientID)
	if err != nil {
		return transport.NoteListResponse{}, err
	}
	items := make([]transport.NoteResponse, 0, len(views))
	for _, v := range views {
		items = append(items, toNoteResponse(v))
	}
	return transport.NoteListResponse{Items: items}, nil
}
