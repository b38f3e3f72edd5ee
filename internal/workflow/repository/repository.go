package repository

import (
	"context"
	"errors"
	"fmt"

	"indor_desk/internal/workflow/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo implements Repository with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new workflow repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// WithinTx runs fn in a read-committed transaction. The client row lock taken by
// LockClient serialises concurrent progression writes for the same client.
func (r *Repo) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin workflow tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit workflow tx: %w", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

var _ Tx = (*pgTx)(nil)

// lockClientQuery holds the client row until commit. Every progression write
// takes it first, so two operations on one client never interleave.
const lockClientQuery = `SELECT id FROM clients WHERE id = $1 FOR UPDATE`

func (t *pgTx) LockClient(ctx context.Context, clientID uuid.UUID) error {
	var id uuid.UUID
	err := t.tx.QueryRow(ctx, lockClientQuery, clientID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock client: %w", err)
	}
	return nil
}

func (t *pgTx) GetActor(ctx context.Context, userID uuid.UUID) (domain.Actor, error) {
	var a domain.Actor
	err := t.tx.QueryRow(ctx, `
		SELECT id, name, role, profile_id
		FROM users
		WHERE id = $1 AND is_active = true`, userID).Scan(&a.ID, &a.Name, &a.Role, &a.ProfileID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Actor{}, ErrNotFound
	}
	if err != nil {
		return domain.Actor{}, fmt.Errorf("get actor: %w", err)
	}
	return a, nil
}

const stageColumns = `id, name, description, order_index, is_active`

func scanStage(row pgx.Row) (domain.Stage, error) {
	var s domain.Stage
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.OrderIndex, &s.IsActive)
	return s, err
}

func (t *pgTx) GetStage(ctx context.Context, stageID uuid.UUID) (domain.Stage, error) {
	s, err := scanStage(t.tx.QueryRow(ctx, `SELECT `+stageColumns+` FROM stages WHERE id = $1`, stageID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Stage{}, ErrNotFound
	}
	if err != nil {
		return domain.Stage{}, fmt.Errorf("get stage: %w", err)
	}
	return s, nil
}

const previousActiveStageQuery = `
	SELECT ` + stageColumns + `
	FROM stages
	WHERE is_active = true AND order_index < $1
	ORDER BY order_index DESC
	LIMIT 1`

func (t *pgTx) PreviousActiveStage(ctx context.Context, orderIndex int) (*domain.Stage, error) {
	s, err := scanStage(t.tx.QueryRow(ctx, previousActiveStageQuery, orderIndex))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get previous stage: %w", err)
	}
	return &s, nil
}

const activityColumns = `id, stage_id, name, description, order_index, is_required, allowed_profiles`

func scanActivity(row pgx.Row) (domain.Activity, error) {
	var a domain.Activity
	err := row.Scan(&a.ID, &a.StageID, &a.Name, &a.Description, &a.OrderIndex, &a.IsRequired, &a.AllowedProfiles)
	return a, err
}

func (t *pgTx) GetActivity(ctx context.Context, activityID uuid.UUID) (domain.Activity, error) {
	a, err := scanActivity(t.tx.QueryRow(ctx, `SELECT `+activityColumns+` FROM stage_activities WHERE id = $1`, activityID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Activity{}, ErrNotFound
	}
	if err != nil {
		return domain.Activity{}, fmt.Errorf("get activity: %w", err)
	}
	return a, nil
}

func (t *pgTx) StageActivityIDs(ctx context.Context, stageID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := t.tx.Query(ctx, `SELECT id FROM stage_activities WHERE stage_id = $1 ORDER BY order_index`, stageID)
	if err != nil {
		return nil, fmt.Errorf("list stage activities: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scan stage activities: %w", err)
	}
	return ids, nil
}

const clientStageColumns = `id, client_id, stage_id, status, started_at, started_by, completed_at, completed_by`

func scanClientStage(row pgx.Row) (domain.ClientStage, error) {
	var cs domain.ClientStage
	var status string
	err := row.Scan(&cs.ID, &cs.ClientID, &cs.StageID, &status, &cs.StartedAt, &cs.StartedBy, &cs.CompletedAt, &cs.CompletedBy)
	cs.Status = domain.StageStatus(status)
	return cs, err
}

func (t *pgTx) GetClientStage(ctx context.Context, clientID, stageID uuid.UUID) (*domain.ClientStage, error) {
	cs, err := scanClientStage(t.tx.QueryRow(ctx, `
		SELECT `+clientStageColumns+`
		FROM client_stages
		WHERE client_id = $1 AND stage_id = $2`, clientID, stageID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get client stage: %w", err)
	}
	return &cs, nil
}

// saveClientStageQuery keeps one row per (client, stage); a restart reuses it.
const saveClientStageQuery = `
	INSERT INTO client_stages (id, client_id, stage_id, status, started_at, started_by, completed_at, completed_by)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (client_id, stage_id) DO UPDATE SET
		status = EXCLUDED.status,
		started_at = EXCLUDED.started_at,
		started_by = EXCLUDED.started_by,
		completed_at = EXCLUDED.completed_at,
		completed_by = EXCLUDED.completed_by
	RETURNING ` + clientStageColumns

func (t *pgTx) SaveClientStage(ctx context.Context, cs domain.ClientStage) (domain.ClientStage, error) {
	saved, err := scanClientStage(t.tx.QueryRow(ctx, saveClientStageQuery,
		cs.ID, cs.ClientID, cs.StageID, string(cs.Status), cs.StartedAt, cs.StartedBy, cs.CompletedAt, cs.CompletedBy))
	if err != nil {
		return domain.ClientStage{}, fmt.Errorf("save client stage: %w", err)
	}
	return saved, nil
}

const clientActivityColumns = `id, client_id, activity_id, is_completed, completed_at, completed_by`

func scanClientActivity(row pgx.Row) (domain.ClientActivity, error) {
	var ca domain.ClientActivity
	err := row.Scan(&ca.ID, &ca.ClientID, &ca.ActivityID, &ca.IsCompleted, &ca.CompletedAt, &ca.CompletedBy)
	return ca, err
}

func (t *pgTx) GetClientActivity(ctx context.Context, clientID, activityID uuid.UUID) (*domain.ClientActivity, error) {
	ca, err := scanClientActivity(t.tx.QueryRow(ctx, `
		SELECT `+clientActivityColumns+`
		FROM client_activities
		WHERE client_id = $1 AND activity_id = $2`, clientID, activityID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get client activity: %w", err)
	}
	return &ca, nil
}

const saveClientActivityQuery = `
	INSERT INTO client_activities (id, client_id, activity_id, is_completed, completed_at, completed_by)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (client_id, activity_id) DO UPDATE SET
		is_completed = EXCLUDED.is_completed,
		completed_at = EXCLUDED.completed_at,
		completed_by = EXCLUDED.completed_by
	RETURNING ` + clientActivityColumns

func (t *pgTx) SaveClientActivity(ctx context.Context, ca domain.ClientActivity) (domain.ClientActivity, error) {
	saved, err := scanClientActivity(t.tx.QueryRow(ctx, saveClientActivityQuery,
		ca.ID, ca.ClientID, ca.ActivityID, ca.IsCompleted, ca.CompletedAt, ca.CompletedBy))
	if err != nil {
		return domain.ClientActivity{}, fmt.Errorf("save client activity: %w", err)
	}
	return saved, nil
}

func (t *pgTx) CompletedActivityIDs(ctx context.Context, clientID, stageID uuid.UUID) (map[uuid.UUID]bool, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT ca.activity_id
		FROM client_activities ca
		JOIN stage_activities sa ON sa.id = ca.activity_id
		WHERE ca.client_id = $1 AND sa.stage_id = $2 AND ca.is_completed = true`, clientID, stageID)
	if err != nil {
		return nil, fmt.Errorf("list completed activities: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scan completed activities: %w", err)
	}

	completed := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		completed[id] = true
	}
	return completed, nil
}

const countOpenPendingTasksQuery = `
	SELECT COUNT(*)
	FROM pending_tasks
	WHERE client_id = $1 AND stage_id = $2 AND status = 'pending'`

func (t *pgTx) CountOpenPendingTasks(ctx context.Context, clientID, stageID uuid.UUID) (int, error) {
	var count int
	err := t.tx.QueryRow(ctx, countOpenPendingTasksQuery, clientID, stageID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending tasks: %w", err)
	}
	return count, nil
}

const pendingTaskColumns = `id, client_id, stage_id, note_id, title, status, assigned_profile_id,
	created_by, created_at, resolved_by, resolved_at, resolution_note_id`

func scanPendingTask(row pgx.Row, extra ...any) (domain.PendingTask, error) {
	var pt domain.PendingTask
	var status string
	dest := []any{
		&pt.ID, &pt.ClientID, &pt.StageID, &pt.NoteID, &pt.Title, &status, &pt.AssignedProfileID,
		&pt.CreatedBy, &pt.CreatedAt, &pt.ResolvedBy, &pt.ResolvedAt, &pt.ResolutionNoteID,
	}
	err := row.Scan(append(dest, extra...)...)
	pt.Status = domain.TaskStatus(status)
	return pt, err
}

func (t *pgTx) GetPendingTask(ctx context.Context, taskID uuid.UUID) (domain.PendingTask, error) {
	pt, err := scanPendingTask(t.tx.QueryRow(ctx, `SELECT `+pendingTaskColumns+` FROM pending_tasks WHERE id = $1`, taskID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PendingTask{}, ErrNotFound
	}
	if err != nil {
		return domain.PendingTask{}, fmt.Errorf("get pending task: %w", err)
	}
	return pt, nil
}

func (t *pgTx) InsertPendingTask(ctx context.Context, task domain.PendingTask) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO pending_tasks (id, client_id, stage_id, note_id, title, status, assigned_profile_id, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		task.ID, task.ClientID, task.StageID, task.NoteID, task.Title, string(task.Status),
		task.AssignedProfileID, task.CreatedBy, task.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert pending task: %w", err)
	}
	return nil
}

func (t *pgTx) UpdatePendingTask(ctx context.Context, task domain.PendingTask) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE pending_tasks
		SET status = $2, resolved_by = $3, resolved_at = $4, resolution_note_id = $5
		WHERE id = $1`,
		task.ID, string(task.Status), task.ResolvedBy, task.ResolvedAt, task.ResolutionNoteID)
	if err != nil {
		return fmt.Errorf("update pending task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) InsertNote(ctx context.Context, note domain.Note) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO notes (id, client_id, stage_id, activity_id, content, is_auto_generated, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		note.ID, note.ClientID, note.StageID, note.ActivityID, note.Content, note.IsAutoGenerated,
		note.CreatedBy, note.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

func (t *pgTx) ProfileNames(ctx context.Context, ids []uuid.UUID) ([]string, error) {
	rows, err := t.tx.Query(ctx, `SELECT name FROM profiles WHERE id = ANY($1::uuid[]) ORDER BY name`, ids)
	if err != nil {
		return nil, fmt.Errorf("list profile names: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan profile names: %w", err)
	}
	return names, nil
}

func (t *pgTx) ProfileExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	if err := t.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM profiles WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check profile: %w", err)
	}
	return exists, nil
}
