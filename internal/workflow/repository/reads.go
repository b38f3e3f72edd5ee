package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"indor_desk/internal/workflow/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ListCatalog returns stages ordered by order_index, each with its activities in order.
func (r *Repo) ListCatalog(ctx context.Context, includeInactive bool) ([]StageWithActivities, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+stageColumns+`
		FROM stages
		WHERE is_active = true OR $1
		ORDER BY order_index`, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	stages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (StageWithActivities, error) {
		s, err := scanStage(row)
		return StageWithActivities{Stage: s, Activities: []domain.Activity{}}, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan stages: %w", err)
	}

	byID := make(map[uuid.UUID]int, len(stages))
	ids := make([]uuid.UUID, len(stages))
	for i, s := range stages {
		byID[s.ID] = i
		ids[i] = s.ID
	}

	rows, err = r.pool.Query(ctx, `
		SELECT `+activityColumns+`
		FROM stage_activities
		WHERE stage_id = ANY($1::uuid[])
		ORDER BY stage_id, order_index`, ids)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	activities, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Activity, error) {
		return scanActivity(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan activities: %w", err)
	}

	for _, a := range activities {
		if idx, ok := byID[a.StageID]; ok {
			stages[idx].Activities = append(stages[idx].Activities, a)
		}
	}
	return stages, nil
}

// GetClientProgress reads every progression row of a client.
func (r *Repo) GetClientProgress(ctx context.Context, clientID uuid.UUID) (ClientProgress, error) {
	progress := ClientProgress{OpenTasksStage: map[uuid.UUID]int{}}

	rows, err := r.pool.Query(ctx, `SELECT `+clientStageColumns+` FROM client_stages WHERE client_id = $1`, clientID)
	if err != nil {
		return progress, fmt.Errorf("list client stages: %w", err)
	}
	progress.Stages, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ClientStage, error) {
		return scanClientStage(row)
	})
	if err != nil {
		return progress, fmt.Errorf("scan client stages: %w", err)
	}

	rows, err = r.pool.Query(ctx, `SELECT `+clientActivityColumns+` FROM client_activities WHERE client_id = $1`, clientID)
	if err != nil {
		return progress, fmt.Errorf("list client activities: %w", err)
	}
	progress.Activities, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ClientActivity, error) {
		return scanClientActivity(row)
	})
	if err != nil {
		return progress, fmt.Errorf("scan client activities: %w", err)
	}

	rows, err = r.pool.Query(ctx, `
		SELECT stage_id, COUNT(*)
		FROM pending_tasks
		WHERE client_id = $1 AND status = 'pending'
		GROUP BY stage_id`, clientID)
	if err != nil {
		return progress, fmt.Errorf("count open tasks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var stageID uuid.UUID
		var count int
		if err := rows.Scan(&stageID, &count); err != nil {
			return progress, fmt.Errorf("scan open tasks: %w", err)
		}
		progress.OpenTasksStage[stageID] = count
	}
	if err := rows.Err(); err != nil {
		return progress, fmt.Errorf("iterate open tasks: %w", err)
	}
	return progress, nil
}

// ListNotes returns a client's timeline, newest first.
func (r *Repo) ListNotes(ctx context.Context, clientID uuid.UUID) ([]NoteView, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT n.id, n.client_id, n.stage_id, n.activity_id, n.content, n.is_auto_generated,
			n.created_by, n.created_at, u.name, s.name, sa.name
		FROM notes n
		LEFT JOIN users u ON u.id = n.created_by
		LEFT JOIN stages s ON s.id = n.stage_id
		LEFT JOIN stage_activities sa ON sa.id = n.activity_id
		WHERE n.client_id = $1
		ORDER BY n.created_at DESC, n.id`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	notes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (NoteView, error) {
		var v NoteView
		var createdBy *uuid.UUID
		err := row.Scan(&v.ID, &v.ClientID, &v.StageID, &v.ActivityID, &v.Content, &v.IsAutoGenerated,
			&createdBy, &v.CreatedAt, &v.AuthorName, &v.StageName, &v.ActivityName)
		if createdBy != nil {
			v.CreatedBy = *createdBy
		}
		return v, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan notes: %w", err)
	}
	return notes, nil
}

const pendingTaskViewSelect = `
	SELECT pt.id, pt.client_id, pt.stage_id, pt.note_id, pt.title, pt.status, pt.assigned_profile_id,
		pt.created_by, pt.created_at, pt.resolved_by, pt.resolved_at, pt.resolution_note_id,
		c.name, s.name, p.name, cu.name, ru.name
	FROM pending_tasks pt
	JOIN clients c ON c.id = pt.client_id
	JOIN stages s ON s.id = pt.stage_id
	LEFT JOIN profiles p ON p.id = pt.assigned_profile_id
	LEFT JOIN users cu ON cu.id = pt.created_by
	LEFT JOIN users ru ON ru.id = pt.resolved_by`

func scanPendingTaskView(row pgx.Row) (PendingTaskView, error) {
	var v PendingTaskView
	pt, err := scanPendingTask(row, &v.ClientName, &v.StageName, &v.AssignedProfileName, &v.CreatedByName, &v.ResolvedByName)
	v.PendingTask = pt
	return v, err
}

// ListPendingTasks returns tasks matching filter, newest first.
func (r *Repo) ListPendingTasks(ctx context.Context, filter TaskFilter) ([]PendingTaskView, error) {
	var where []string
	var args []any
	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		where = append(where, fmt.Sprintf("pt.client_id = $%d", len(args)))
	}
	if filter.StageID != nil {
		args = append(args, *filter.StageID)
		where = append(where, fmt.Sprintf("pt.stage_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where = append(where, fmt.Sprintf("pt.status = $%d", len(args)))
	}

	query := pendingTaskViewSelect
	if len(where) > 0 {
		query += "\n\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\tORDER BY pt.created_at DESC, pt.id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending tasks: %w", err)
	}
	tasks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (PendingTaskView, error) {
		return scanPendingTaskView(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan pending tasks: %w", err)
	}
	return tasks, nil
}

// GetPendingTaskView returns one task with its display names.
func (r *Repo) GetPendingTaskView(ctx context.Context, taskID uuid.UUID) (PendingTaskView, error) {
	v, err := scanPendingTaskView(r.pool.QueryRow(ctx, pendingTaskViewSelect+"\n\tWHERE pt.id = $1", taskID))
	if errors.Is(err, pgx.ErrNoRows) {
		return PendingTaskView{}, ErrNotFound
	}
	if err != nil {
		return PendingTaskView{}, fmt.Errorf("get pending task: %w", err)
	}
	return v, nil
}

// ClientExists reports whether the client row exists.
func (r *Repo) ClientExists(ctx context.Context, clientID uuid.UUID) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM clients WHERE id = $1)`, clientID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check client: %w", err)
	}
	return exists, nil
}
