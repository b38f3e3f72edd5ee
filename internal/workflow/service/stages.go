package service

import (
	"context"
	"log/slog"

	"indor_desk/internal/events"
	"indor_desk/internal/workflow/domain"
	"indor_desk/internal/workflow/transport"

	"github.com/google/uuid"
)

// StartStage moves a client's stage from not_started to in_progress.
func (s *Service) StartStage(ctx context.Context, clientID, stageID, actorID uuid.UUID) (transport.ClientStageResponse, error) {
	var saved domain.ClientStage

	err := s.run(ctx, OpStageStart, func(u *unit) error {
		if err := u.lockClient(ctx, clientID); err != nil {
			return err
		}
		actor, err := u.actor(ctx, actorID)
		if err != nil {
			return err
		}
		stage, err := u.activeStage(ctx, stageID)
		if err != nil {
			return err
		}

		current, err := u.tx.GetClientStage(ctx, clientID, stageID)
		if err != nil {
			return err
		}
		predecessor, err := u.tx.PreviousActiveStage(ctx, stage.OrderIndex)
		if err != nil {
			return err
		}
		var predecessorProgress *domain.ClientStage
		if predecessor != nil {
			if predecessorProgress, err = u.tx.GetClientStage(ctx, clientID, predecessor.ID); err != nil {
				return err
			}
		}
		if err := domain.CheckStart(current, predecessor, predecessorProgress); err != nil {
			return err
		}

		row := domain.NewClientStage(clientID, stageID)
		if current != nil {
			row = *current
		}
		row.Start(actor.ID, s.now())
		if saved, err = u.tx.SaveClientStage(ctx, row); err != nil {
			return err
		}
		if err := s.autoNote(ctx, u, clientID, &stageID, nil, actor.ID,
			domain.StageStartedNote(stage.Name, actor.DisplayName())); err != nil {
			return err
		}

		u.publish(events.StageStarted{BaseEvent: events.NewBaseEvent(), ClientID: clientID, StageID: stageID, ActorID: actor.ID})
		u.log(append(clientAttrs(clientID, actor.ID), slog.String("stage_id", stageID.String()))...)
		return nil
	})
	if err != nil {
		return transport.ClientStageResponse{}, err
	}
	return toClientStageResponse(saved), nil
}

// CompleteStage moves an in-progress stage to completed once every activity is
// checked and no pending task remains open.
func (s *Service) CompleteStage(ctx context.Context, clientID, stageID, actorID uuid.UUID) (transport.ClientStageResponse, error) {
	var saved domain.ClientStage

	err := s.run(ctx, OpStageDone, func(u *unit) error {
		if err := u.lockClient(ctx, clientID); err != nil {
			return err
		}
		actor, err := u.actor(ctx, actorID)
		if err != nil {
			return err
		}
		stage, err := u.stage(ctx, stageID)
		if err != nil {
			return err
		}
		current, err := u.tx.GetClientStage(ctx, clientID, stageID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.StageNotFound()
		}

		activityIDs, err := u.tx.StageActivityIDs(ctx, stageID)
		if err != nil {
			return err
		}
		completed, err := u.tx.CompletedActivityIDs(ctx, clientID, stageID)
		if err != nil {
			return err
		}
		openTasks, err := u.tx.CountOpenPendingTasks(ctx, clientID, stageID)
		if err != nil {
			return err
		}
		if err := domain.CheckComplete(*current, activityIDs, completed, openTasks); err != nil {
			return err
		}

		row := *current
		row.Complete(actor.ID, s.now())
		if saved, err = u.tx.SaveClientStage(ctx, row); err != nil {
			return err
		}
		if err := s.autoNote(ctx, u, clientID, &stageID, nil, actor.ID,
			domain.StageCompletedNote(stage.Name, actor.DisplayName())); err != nil {
			return err
		}

		u.publish(events.StageCompleted{BaseEvent: events.NewBaseEvent(), ClientID: clientID, StageID: stageID, ActorID: actor.ID})
		u.log(append(clientAttrs(clientID, actor.ID), slog.String("stage_id", stageID.String()))...)
		return nil
	})
	if err != nil {
		return transport.ClientStageResponse{}, err
	}
	return toClientStageResponse(saved), nil
}

// RevertStage steps a stage back once: completed to in_progress, or
// in_progress to not_started when none of its activities is checked.
func (s *Service) RevertStage(ctx context.Context, clientID, stageID, actorID uuid.UUID) (transport.RevertStageResponse, error) {
	var saved domain.ClientStage

	err := s.run(ctx, OpStageRevert, func(u *unit) error {
		if err := u.lockClient(ctx, clientID); err != nil {
			return err
		}
		actor, err := u.actor(ctx, actorID)
		if err != nil {
			return err
		}
		stage, err := u.stage(ctx, stageID)
		if err != nil {
			return err
		}
		current, err := u.tx.GetClientStage(ctx, clientID, stageID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.StageNotFound()
		}

		target, err := domain.RevertTarget(*current)
		if err != nil {
			return err
		}

		row := *current
		var content string
		if target == domain.StageNotStarted {
			completed, err := u.tx.CompletedActivityIDs(ctx, clientID, stageID)
			if err != nil {
				return err
			}
			if err := domain.CheckRevertToNotStarted(len(completed)); err != nil {
				return err
			}
			row.Reset()
			content = domain.StageRevertedNote(stage.Name, actor.DisplayName())
		} else {
			row.Reopen()
			content = domain.StageReopenedNote(stage.Name, actor.DisplayName())
		}

		if saved, err = u.tx.SaveClientStage(ctx, row); err != nil {
			return err
		}
		if err := s.autoNote(ctx, u, clientID, &stageID, nil, actor.ID, content); err != nil {
			return err
		}

		u.publish(events.StageReverted{
			BaseEvent: events.NewBaseEvent(),
			ClientID:  clientID,
			StageID:   stageID,
			ActorID:   actor.ID,
			NewStatus: string(target),
		})
		u.log(append(clientAttrs(clientID, actor.ID),
			slog.String("stage_id", stageID.String()),
			slog.String("new_status", string(target)))...)
		return nil
	})
	if err != nil {
		return transport.RevertStageResponse{}, err
	}
	return transport.RevertStageResponse{
		ClientStage: toClientStageResponse(saved),
		NewStatus:   string(saved.Status),
	}, nil
}
