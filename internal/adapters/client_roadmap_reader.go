package adapters

import (
	"context"
	"fmt"

	clienttransport "indor_desk/internal/clients/transport"
	wftransport "indor_desk/internal/workflow/transport"

	"github.com/google/uuid"
)

// WorkflowRoadmapSource is the workflow capability the clients module needs.
type WorkflowRoadmapSource interface {
	ClientRoadmap(ctx context.Context, clientID uuid.UUID) ([]wftransport.RoadmapStage, error)
}

// ClientRoadmapReader adapts the workflow service for the clients domain,
// satisfying clients/service.RoadmapReader.
type ClientRoadmapReader struct {
	source WorkflowRoadmapSource
}

func NewClientRoadmapReader(source WorkflowRoadmapSource) *ClientRoadmapReader {
	return &ClientRoadmapReader{source: source}
}

func (a *ClientRoadmapReader) ClientRoadmap(ctx context.Context, clientID uuid.UUID) ([]clienttransport.RoadmapStage, error) {
	stages, err := a.source.ClientRoadmap(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("roadmap adapter: %w", err)
	}

	out := make([]clienttransport.RoadmapStage, 0, len(stages))
	for _, st := range stages {
		item := clienttransport.RoadmapStage{
			ID:               st.ID,
			Name:             st.Name,
			OrderIndex:       st.OrderIndex,
			Status:           st.Status,
			StartedAt:        st.StartedAt,
			CompletedAt:      st.CompletedAt,
			OpenPendingTasks: st.OpenPendingTasks,
			Activities:       make([]clienttransport.RoadmapActivity, 0, len(st.Activities)),
		}
		for _, a := range st.Activities {
			allowed := a.AllowedProfiles
			if allowed == nil {
				allowed = []uuid.UUID{}
			}
			item.Activities = append(item.Activities, clienttransport.RoadmapActivity{
				ID:              a.ID,
				Name:            a.Name,
				IsRequired:      a.IsRequired,
				AllowedProfiles: allowed,
				IsCompleted:     a.IsCompleted,
				CompletedAt:     a.CompletedAt,
			})
		}
		out = append(out, item)
	}
	return out, nil
}
