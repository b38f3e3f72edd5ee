package service

import (
	"context"

	"indor_desk/internal/workflow/domain"
	"indor_desk/internal/workflow/repository"
	"indor_desk/internal/workflow/transport"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ListStages returns the active catalog in order.
func (s *Service) ListStages(ctx context.Context) (transport.StageListResponse, error) {
	catalog, err := s.repo.ListCatalog(ctx, false)
	if err != nil {
		return transport.StageListResponse{}, err
	}
	items := make([]transport.StageResponse, 0, len(catalog))
	for _, st := range catalog {
		items = append(items, toStageResponse(st))
	}
	return transport.StageListResponse{Items: items}, nil
}

// ClientRoadmap lays the client's progression over the active catalog. Stages
// without a progression row report not_started; activities without a row report
// not completed.
func (s *Service) ClientRoadmap(ctx context.Context, clientID uuid.UUID) ([]transport.RoadmapStage, error) {
	var catalog []repository.StageWithActivities
	var progress repository.ClientProgress

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		catalog, err = s.repo.ListCatalog(gctx, false)
		return err
	})
	g.Go(func() error {
		var err error
		progress, err = s.repo.GetClientProgress(gctx, clientID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stageRows := make(map[uuid.UUID]domain.ClientStage, len(progress.Stages))
	for _, cs := range progress.Stages {
		stageRows[cs.StageID] = cs
	}
	activityRows := make(map[uuid.UUID]domain.ClientActivity, len(progress.Activities))
	for _, ca := range progress.Activities {
		activityRows[ca.ActivityID] = ca
	}

	roadmap := make([]transport.RoadmapStage, 0, len(catalog))
	for _, st := range catalog {
		item := transport.RoadmapStage{
			ID:               st.ID,
			Name:             st.Name,
			Description:      st.Description,
			OrderIndex:       st.OrderIndex,
			Status:           string(domain.StageNotStarted),
			OpenPendingTasks: progress.OpenTasksStage[st.ID],
			Activities:       make([]transport.RoadmapActivity, 0, len(st.Activities)),
		}
		if cs, ok := stageRows[st.ID]; ok {
			item.Status = string(cs.Status)
			item.StartedAt = cs.StartedAt
			item.CompletedAt = cs.CompletedAt
		}
		for _, a := range st.Activities {
			ra := transport.RoadmapActivity{ActivityResponse: toActivityResponse(a)}
			if ca, ok := activityRows[a.ID]; ok && ca.IsCompleted {
				ra.IsCompleted = true
				ra.CompletedAt = ca.CompletedAt
				ra.CompletedBy = ca.CompletedBy
			}
			item.Activities = append(item.Activities, ra)
		}
		roadmap = append(roadmap, item)
	}
	return roadmap, nil
}
