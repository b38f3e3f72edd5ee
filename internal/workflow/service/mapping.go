package service

import (
	"indor_desk/internal/workflow/domain"
	"indor_desk/internal/workflow/repository"
	"indor_desk/internal/workflow/transport"

	"github.com/google/uuid"
)

func toClientStageResponse(cs domain.ClientStage) transport.ClientStageResponse {
	return transport.ClientStageResponse{
		ID:          cs.ID,
		ClientID:    cs.ClientID,
		StageID:     cs.StageID,
		Status:      string(cs.Status),
		StartedAt:   cs.StartedAt,
		StartedBy:   cs.StartedBy,
		CompletedAt: cs.CompletedAt,
		CompletedBy: cs.CompletedBy,
	}
}

func toPendingTaskResponse(t domain.PendingTask) transport.PendingTaskResponse {
	return transport.PendingTaskResponse{
		ID:                t.ID,
		ClientID:          t.ClientID,
		StageID:           t.StageID,
		NoteID:            t.NoteID,
		Title:             t.Title,
		Status:            string(t.Status),
		AssignedProfileID: t.AssignedProfileID,
		CreatedBy:         t.CreatedBy,
		CreatedAt:         t.CreatedAt,
		ResolvedBy:        t.ResolvedBy,
		ResolvedAt:        t.ResolvedAt,
		ResolutionNoteID:  t.ResolutionNoteID,
	}
}

func toPendingTaskViewResponse(v repository.PendingTaskView) transport.PendingTaskResponse {
	resp := toPendingTaskResponse(v.PendingTask)
	resp.ClientName = v.ClientName
	resp.StageName = v.StageName
	resp.AssignedProfileName = v.AssignedProfileName
	resp.CreatedByName = v.CreatedByName
	resp.ResolvedByName = v.ResolvedByName
	return resp
}

func toNoteResponse(v repository.NoteView) transport.NoteResponse {
	return transport.NoteResponse{
		ID:              v.ID,
		ClientID:        v.ClientID,
		StageID:         v.StageID,
		StageName:       v.StageName,
		ActivityID:      v.ActivityID,
		ActivityName:    v.ActivityName,
		Content:         v.Content,
		IsAutoGenerated: v.IsAutoGenerated,
		CreatedBy:       v.CreatedBy,
		AuthorName:      v.AuthorName,
		CreatedAt:       v.CreatedAt,
	}
}

func toActivityResponse(a domain.Activity) transport.ActivityResponse {
	allowed := a.AllowedProfiles
	if allowed == nil {
		allowed = []uuid.UUID{}
	}
	return transport.ActivityResponse{
		ID:              a.ID,
		Name:            a.Name,
		Description:     a.Description,
		OrderIndex:      a.OrderIndex,
		IsRequired:      a.IsRequired,
		AllowedProfiles: allowed,
	}
}

func toStageResponse(st repository.StageWithActivities) transport.StageResponse {
	activities := make([]transport.ActivityResponse, 0, len(st.Activities))
	for _, a := range st.Activities {
		activities = append(activities, toActivityResponse(a))
	}
	return transport.StageResponse{
		ID:          st.ID,
		Name:        st.Name,
		Description: st.Description,
		OrderIndex:  st.OrderIndex,
		IsActive:    st.IsActive,
		Activities:  activities,
	}
}
