package service

import (
	"context"
	"log/slog"

	"indor_desk/internal/events"
	"indor_desk/internal/workflow/domain"
	"indor_desk/internal/workflow/transport"
	"indor_desk/platform/sanitize"

	"github.com/google/uuid"
)

// ToggleActivity flips a client's completion of one activity. It is the only
// way activity completion changes. Unchecking an activity of a completed stage
// reopens the stage in the same unit of work.
func (s *Service) ToggleActivity(ctx context.Context, clientID, activityID, actorID uuid.UUID, req transport.ToggleActivityRequest) (transport.ToggleActivityResponse, error) {
	var resp transport.ToggleActivityResponse

	err := s.run(ctx, OpToggle, func(u *unit) error {
		if err := u.lockClient(ctx, clientID); err != nil {
			return err
		}
		actor, err := u.actor(ctx, actorID)
		if err != nil {
			return err
		}
		activity, err := u.activity(ctx, activityID)
		if err != nil {
			return err
		}
		stage, err := u.stage(ctx, activity.StageID)
		if err != nil {
			return err
		}

		progress, err := u.tx.GetClientStage(ctx, clientID, activity.StageID)
		if err != nil {
			return err
		}
		if progress == nil {
			return domain.StageNotFound()
		}

		existing, err := u.tx.GetClientActivity(ctx, clientID, activityID)
		if err != nil {
			return err
		}
		unchecking := existing != nil && existing.IsCompleted

		if err := domain.CheckToggle(progress.Status, unchecking); err != nil {
			return err
		}
		if !domain.ActorMayPerform(actor, activity.AllowedProfiles) {
			names, err := u.tx.ProfileNames(ctx, activity.AllowedProfiles)
			if err != nil {
				return err
			}
			return domain.ActivityProfileNotAllowed(names)
		}

		now := s.now()
		row := domain.NewClientActivity(clientID, activityID)
		if existing != nil {
			row = *existing
		}
		row.SetCompleted(!unchecking, actor.ID, now)
		if row, err = u.tx.SaveClientActivity(ctx, row); err != nil {
			return err
		}

		stageRow := *progress
		reopened := !row.IsCompleted && stageRow.Status == domain.StageCompleted
		if reopened {
			stageRow.Reopen()
			if stageRow, err = u.tx.SaveClientStage(ctx, stageRow); err != nil {
				return err
			}
		}

		var observation string
		if req.Note != nil {
			observation = sanitize.Text(*req.Note)
		}
		content := domain.ActivityToggledNote(activity.Name, actor.DisplayName(), row.IsCompleted, reopened, observation)
		if err := s.autoNote(ctx, u, clientID, &stage.ID, &activityID, actor.ID, content); err != nil {
			return err
		}

		u.publish(events.ActivityToggled{
			BaseEvent:   events.NewBaseEvent(),
			ClientID:    clientID,
			StageID:     stage.ID,
			ActivityID:  activityID,
			ActorID:     actor.ID,
			IsCompleted: row.IsCompleted,
		})
		if reopened {
			u.publish(events.StageReverted{
				BaseEvent: events.NewBaseEvent(),
				ClientID:  clientID,
				StageID:   stage.ID,
				ActorID:   actor.ID,
				NewStatus: string(domain.StageInProgress),
				Cascade:   true,
			})
		}
		u.log(append(clientAttrs(clientID, actor.ID),
			slog.String("activity_id", activityID.String()),
			slog.Bool("is_completed", row.IsCompleted),
			slog.Bool("stage_reopened", reopened))...)

		resp = transport.ToggleActivityResponse{
			IsCompleted:   row.IsCompleted,
			StageStatus:   string(stageRow.Status),
			StageReopened: reopened,
		}
		return nil
	})
	if err != nil {
		return transport.ToggleActivityResponse{}, err
	}
	return resp, nil
}
