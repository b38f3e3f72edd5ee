package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"indor_desk/internal/events"
	"indor_desk/internal/workflow/domain"
	"indor_desk/internal/workflow/transport"
	"indor_desk/platform/apperr"
	"indor_desk/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(ctx context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.EventName()
	}
	return out
}

type recordingMetrics struct {
	mu          sync.Mutex
	transitions map[string]int
	rejections  map[string]int
}

func (m *recordingMetrics) Transition(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions[op]++
}

func (m *recordingMetrics) Rejection(op, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejections[op+":"+code]++
}

// fixture is a clinic with two stages: A (order 1, activity "Intake") and B (order 2).
type fixture struct {
	t        *testing.T
	ctx      context.Context
	repo     *fakeRepo
	bus      *recordingBus
	metrics  *recordingMetrics
	svc      *Service
	client   uuid.UUID
	stageA   domain.Stage
	stageB   domain.Stage
	intake   domain.Activity
	admin    domain.Actor
	operator domain.Actor
	psych    domain.Profile
	speech   domain.Profile
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:       t,
		ctx:     context.Background(),
		repo:    newFakeRepo(),
		bus:     &recordingBus{},
		metrics: &recordingMetrics{transitions: map[string]int{}, rejections: map[string]int{}},
		client:  uuid.New(),
	}
	f.svc = New(f.repo, f.bus, logger.Discard())
	f.svc.SetMetrics(f.metrics)
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	f.psych = domain.Profile{ID: uuid.New(), Name: "Psychology"}
	f.speech = domain.Profile{ID: uuid.New(), Name: "Speech Therapy"}
	f.stageA = domain.Stage{ID: uuid.New(), Name: "Screening", OrderIndex: 1, IsActive: true}
	f.stageB = domain.Stage{ID: uuid.New(), Name: "Assessment", OrderIndex: 2, IsActive: true}
	f.intake = domain.Activity{ID: uuid.New(), StageID: f.stageA.ID, Name: "Intake", OrderIndex: 1, IsRequired: true}
	f.admin = domain.Actor{ID: uuid.New(), Name: "Ana Admin", Role: domain.RoleAdmin}
	f.operator = domain.Actor{ID: uuid.New(), Name: "Otto", Role: domain.RoleOperator, ProfileID: &f.speech.ID}

	st := f.repo.st
	st.clients[f.client] = "Client C"
	st.profiles[f.psych.ID] = f.psych
	st.profiles[f.speech.ID] = f.speech
	st.stages[f.stageA.ID] = f.stageA
	st.stages[f.stageB.ID] = f.stageB
	st.activities[f.intake.ID] = f.intake
	st.users[f.admin.ID] = f.admin
	st.users[f.operator.ID] = f.operator
	return f
}

func (f *fixture) addActivity(stage domain.Stage, name string, allowed ...uuid.UUID) domain.Activity {
	a := domain.Activity{ID: uuid.New(), StageID: stage.ID, Name: name, OrderIndex: 10 + len(f.repo.st.activities), AllowedProfiles: allowed}
	f.repo.st.activities[a.ID] = a
	return a
}

func (f *fixture) addTask(stage domain.Stage, status domain.TaskStatus, assigned *uuid.UUID) domain.PendingTask {
	task := domain.PendingTask{
		ID:                uuid.New(),
		ClientID:          f.client,
		StageID:           stage.ID,
		Title:             "Send school report",
		Status:            status,
		AssignedProfileID: assigned,
		CreatedAt:         time.Now(),
	}
	if status == domain.TaskResolved {
		task.Resolve(f.admin.ID, uuid.New(), time.Now())
	}
	f.repo.st.tasks[task.ID] = task
	return task
}

func (f *fixture) stageStatus(stage domain.Stage) domain.StageStatus {
	cs, ok := f.repo.snapshot().clientStages[pair{f.client, stage.ID}]
	if !ok {
		return domain.StageNotStarted
	}
	return cs.Status
}

func (f *fixture) notes() []domain.Note {
	return f.repo.snapshot().notes
}

func (f *fixture) autoNotes() int {
	n := 0
	for _, note := range f.notes() {
		if note.IsAutoGenerated {
			n++
		}
	}
	return n
}

func (f *fixture) start(stage domain.Stage, actor domain.Actor) error {
	_, err := f.svc.StartStage(f.ctx, f.client, stage.ID, actor.ID)
	return err
}

func (f *fixture) complete(stage domain.Stage, actor domain.Actor) error {
	_, err := f.svc.CompleteStage(f.ctx, f.client, stage.ID, actor.ID)
	return err
}

func (f *fixture) toggle(activity domain.Activity, actor domain.Actor, note ...string) (transport.ToggleActivityResponse, error) {
	req := transport.ToggleActivityRequest{}
	if len(note) > 0 {
		req.Note = &note[0]
	}
	return f.svc.ToggleActivity(f.ctx, f.client, activity.ID, actor.ID, req)
}

func TestScenarioFromIntakeToReopen(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.start(f.stageA, f.admin))
	assert.Equal(t, domain.StageInProgress, f.stageStatus(f.stageA))

	// an in-progress predecessor is enough
	require.NoError(t, f.start(f.stageB, f.admin))
	assert.Equal(t, domain.StageInProgress, f.stageStatus(f.stageB))

	err := f.complete(f.stageA, f.admin)
	require.ErrorIs(t, err, domain.ErrIncompleteActivities)

	resp, err := f.toggle(f.intake, f.admin)
	require.NoError(t, err)
	assert.True(t, resp.IsCompleted)

	before := f.autoNotes()
	require.NoError(t, f.complete(f.stageA, f.admin))
	assert.Equal(t, domain.StageCompleted, f.stageStatus(f.stageA))
	assert.Equal(t, before+1, f.autoNotes())

	before = f.autoNotes()
	resp, err = f.toggle(f.intake, f.admin)
	require.NoError(t, err)
	assert.False(t, resp.IsCompleted)
	assert.True(t, resp.StageReopened)
	assert.Equal(t, string(domain.StageInProgress), resp.StageStatus)
	assert.Equal(t, domain.StageInProgress, f.stageStatus(f.stageA))
	require.Equal(t, before+1, f.autoNotes())

	last := f.notes()[len(f.notes())-1]
	assert.Contains(t, last.Content, `Activity "Intake" unchecked by Ana Admin.`)
	assert.Contains(t, last.Content, "Stage reopened automatically.")

	cs := f.repo.snapshot().clientStages[pair{f.client, f.stageA.ID}]
	assert.Nil(t, cs.CompletedAt)
	assert.Nil(t, cs.CompletedBy)
	assert.NotNil(t, cs.StartedAt)
}

func TestStartStage(t *testing.T) {
	t.Run("predecessor not started", func(t *testing.T) {
		f := newFixture(t)
		err := f.start(f.stageB, f.admin)
		require.ErrorIs(t, err, domain.ErrSequenceViolation)
		assert.Equal(t, domain.CodeSequenceViolation, apperr.GetCode(err))
		assert.Contains(t, err.Error(), "Screening")
		assert.Empty(t, f.notes())
	})

	t.Run("already started", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.start(f.stageA, f.admin))
		require.ErrorIs(t, f.start(f.stageA, f.admin), domain.ErrInvalidTransition)
		assert.Len(t, f.notes(), 1)
	})

	t.Run("unknown client", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.StartStage(f.ctx, uuid.New(), f.stageA.ID, f.admin.ID)
		require.ErrorIs(t, err, domain.ErrNotFound)
		assert.Equal(t, apperr.KindNotFound, apperr.GetKind(err))
	})

	t.Run("inactive stage", func(t *testing.T) {
		f := newFixture(t)
		inactive := f.stageA
		inactive.IsActive = false
		f.repo.st.stages[inactive.ID] = inactive
		require.ErrorIs(t, f.start(f.stageA, f.admin), domain.ErrNotFound)
	})

	t.Run("inactive predecessor is skipped", func(t *testing.T) {
		f := newFixture(t)
		inactive := f.stageA
		inactive.IsActive = false
		f.repo.st.stages[inactive.ID] = inactive
		require.NoError(t, f.start(f.stageB, f.admin))
	})

	t.Run("restart after revert reuses row", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.start(f.stageA, f.admin))
		first := f.repo.snapshot().clientStages[pair{f.client, f.stageA.ID}].ID
		_, err := f.svc.RevertStage(f.ctx, f.client, f.stageA.ID, f.admin.ID)
		require.NoError(t, err)
		require.NoError(t, f.start(f.stageA, f.operator))

		cs := f.repo.snapshot().clientStages[pair{f.client, f.stageA.ID}]
		assert.Equal(t, first, cs.ID)
		assert.Equal(t, f.operator.ID, *cs.StartedBy)
	})

	t.Run("note text", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.start(f.stageA, f.operator))
		notes := f.notes()
		require.Len(t, notes, 1)
		assert.Equal(t, `Stage "Screening" started by Otto.`, notes[0].Content)
		assert.True(t, notes[0].IsAutoGenerated)
		assert.Equal(t, f.stageA.ID, *notes[0].StageID)
	})
}

func TestCompleteStage(t *testing.T) {
	t.Run("no progression row", func(t *testing.T) {
		f := newFixture(t)
		err := f.complete(f.stageA, f.admin)
		require.ErrorIs(t, err, domain.ErrStageNotFound)
		assert.Equal(t, apperr.KindNotFound, apperr.GetKind(err))
	})

	t.Run("reset row is not in progress", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.start(f.stageA, f.admin))
		_, err := f.svc.RevertStage(f.ctx, f.client, f.stageA.ID, f.admin.ID)
		require.NoError(t, err)
		require.ErrorIs(t, f.complete(f.stageA, f.admin), domain.ErrInvalidTransition)
	})

	t.Run("optional activities also gate", func(t *testing.T) {
		f := newFixture(t)
		optional := f.addActivity(f.stageA, "Optional survey")
		optional.IsRequired = false
		f.repo.st.activities[optional.ID] = optional

		require.NoError(t, f.start(f.stageA, f.admin))
		_, err := f.toggle(f.intake, f.admin)
		require.NoError(t, err)
		require.ErrorIs(t, f.complete(f.stageA, f.admin), domain.ErrIncompleteActivities)
	})

	t.Run("open pending tasks", func(t *testing.T) {
		f := newFixture(t)
		f.addTask(f.stageA, domain.TaskPending, nil)
		f.addTask(f.stageA, domain.TaskPending, nil)
		f.addTask(f.stageA, domain.TaskResolved, nil)
		f.addTask(f.stageB, domain.TaskPending, nil)

		require.NoError(t, f.start(f.stageA, f.admin))
		_, err := f.toggle(f.intake, f.admin)
		require.NoError(t, err)

		err = f.complete(f.stageA, f.admin)
		require.ErrorIs(t, err, domain.ErrUnresolvedPendingTasks)
		assert.Contains(t, err.Error(), "2")
		assert.Equal(t, domain.StageInProgress, f.stageStatus(f.stageA))
	})

	t.Run("stamps completion", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.start(f.stageA, f.admin))
		_, err := f.toggle(f.intake, f.admin)
		require.NoError(t, err)

		resp, err := f.svc.CompleteStage(f.ctx, f.client, f.stageA.ID, f.operator.ID)
		require.NoError(t, err)
		assert.Equal(t, string(domain.StageCompleted), resp.Status)
		require.NotNil(t, resp.CompletedBy)
		assert.Equal(t, f.operator.ID, *resp.CompletedBy)
		assert.NotNil(t, resp.CompletedAt)
	})
}

func TestRevertStage(t *testing.T) {
	t.Run("completed goes back to in progress", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.start(f.stageA, f.admin))
		_, err := f.toggle(f.intake, f.admin)
		require.NoError(t, err)
		require.NoError(t, f.complete(f.stageA, f.admin))

		before := f.autoNotes()
		resp, err := f.svc.RevertStage(f.ctx, f.client, f.stageA.ID, f.admin.ID)
		require.NoError(t, err)
		assert.Equal(t, string(domain.StageInProgress), resp.NewStatus)
		assert.Nil(t, resp.ClientStage.CompletedAt)
		assert.NotNil(t, resp.ClientStage.StartedAt)
		assert.Equal(t, before+1, f.autoNotes())
		assert.Contains(t, f.notes()[len(f.notes())-1].Content, "reverted from completed to in progress")
	})

	t.Run("in progress with checked activity", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.start(f.stageA, f.admin))
		_, err := f.toggle(f.intake, f.admin)
		require.NoError(t, err)

		_, err = f.svc.RevertStage(f.ctx, f.client, f.stageA.ID, f.admin.ID)
		require.ErrorIs(t, err, domain.ErrActivitiesMustBeUnchecked)
		assert.Equal(t, domain.StageInProgress, f.stageStatus(f.stageA))
	})

	t.Run("in progress without checked activities", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.start(f.stageA, f.admin))
		_, err := f.toggle(f.intake, f.admin)
		require.NoError(t, err)
		_, err = f.toggle(f.intake, f.admin)
		require.NoError(t, err)

		resp, err := f.svc.RevertStage(f.ctx, f.client, f.stageA.ID, f.admin.ID)
		require.NoError(t, err)
		assert.Equal(t, string(domain.StageNotStarted), resp.NewStatus)
		assert.Nil(t, resp.ClientStage.StartedAt)
		assert.Nil(t, resp.ClientStage.StartedBy)
		assert.Equal(t, `Stage "Screening" reverted to pending by Ana Admin.`, f.notes()[len(f.notes())-1].Content)
	})

	t.Run("already pending", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.start(f.stageA, f.admin))
		_, err := f.svc.RevertStage(f.ctx, f.client, f.stageA.ID, f.admin.ID)
		require.NoError(t, err)
		_, err = f.svc.RevertStage(f.ctx, f.client, f.stageA.ID, f.admin.ID)
		require.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("no row", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.RevertStage(f.ctx, f.client, f.stageA.ID, f.admin.ID)
		require.ErrorIs(t, err, domain.ErrStageNotFound)
	})
}

func TestDeactivatedStageInProgressCanBeFinished(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.start(f.stageA, f.admin))
	_, err := f.toggle(f.intake, f.admin)
	require.NoError(t, err)

	inactive := f.stageA
	inactive.IsActive = false
	f.repo.st.stages[inactive.ID] = inactive

	require.NoError(t, f.complete(f.stageA, f.admin))
	assert.Equal(t, domain.StageCompleted, f.stageStatus(f.stageA))

	_, err = f.svc.RevertStage(f.ctx, f.client, f.stageA.ID, f.admin.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageInProgress, f.stageStatus(f.stageA))

	// New work on the stage is still refused.
	_, err = f.svc.CreatePendingTask(f.ctx, f.admin.ID, transport.CreatePendingTaskRequest{
		ClientID: f.client,
		StageID:  f.stageA.ID,
		Title:    "Call guardian",
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestToggleActivity(t *testing.T) {
	t.Run("stage never started", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.toggle(f.intake, f.admin)
		require.ErrorIs(t, err, domain.ErrStageNotFound)
	})

	t.Run("stage reset to pending", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.start(f.stageA, f.admin))
		_, err := f.svc.RevertStage(f.ctx, f.client, f.stageA.ID, f.admin.ID)
		require.NoError(t, err)
		_, err = f.toggle(f.intake, f.admin)
		require.ErrorIs(t, err, domain.ErrStageNotStarted)
	})

	t.Run("checking on completed stage", func(t *testing.T) {
		f := newFixture(t)
		extra := f.addActivity(f.stageA, "Consent form")
		require.NoError(t, f.start(f.stageA, f.admin))
		_, err := f.toggle(f.intake, f.admin)
		require.NoError(t, err)
		_, err = f.toggle(extra, f.admin)
		require.NoError(t, err)
		require.NoError(t, f.complete(f.stageA, f.admin))

		// a late activity added to the catalog cannot be checked on a completed stage
		late := f.addActivity(f.stageA, "Late item")
		_, err = f.toggle(late, f.admin)
		require.ErrorIs(t, err, domain.ErrStageAlreadyCompleted)
		assert.Equal(t, domain.StageCompleted, f.stageStatus(f.stageA))
	})

	t.Run("profile gate lists allowed profiles", func(t *testing.T) {
		f := newFixture(t)
		gated := f.addActivity(f.stageA, "Psych evaluation", f.psych.ID)
		require.NoError(t, f.start(f.stageA, f.admin))

		_, err := f.toggle(gated, f.operator)
		require.ErrorIs(t, err, domain.ErrProfileNotAllowed)
		assert.Equal(t, apperr.KindForbidden, apperr.GetKind(err))
		assert.Contains(t, err.Error(), "Psychology")
		assert.Len(t, f.notes(), 1)
	})

	t.Run("admin bypasses gate", func(t *testing.T) {
		f := newFixture(t)
		gated := f.addActivity(f.stageA, "Psych evaluation", f.psych.ID)
		require.NoError(t, f.start(f.stageA, f.admin))
		resp, err := f.toggle(gated, f.admin)
		require.NoError(t, err)
		assert.True(t, resp.IsCompleted)
	})

	t.Run("matching profile passes", func(t *testing.T) {
		f := newFixture(t)
		gated := f.addActivity(f.stageA, "Speech evaluation", f.psych.ID, f.speech.ID)
		require.NoError(t, f.start(f.stageA, f.admin))
		resp, err := f.toggle(gated, f.operator)
		require.NoError(t, err)
		assert.True(t, resp.IsCompleted)
	})

	t.Run("gate also applies to unchecking", func(t *testing.T) {
		f := newFixture(t)
		gated := f.addActivity(f.stageA, "Psych evaluation", f.psych.ID)
		require.NoError(t, f.start(f.stageA, f.admin))
		_, err := f.toggle(gated, f.admin)
		require.NoError(t, err)

		_, err = f.toggle(gated, f.operator)
		require.ErrorIs(t, err, domain.ErrProfileNotAllowed)
	})

	t.Run("observation only on completion", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.start(f.stageA, f.admin))

		_, err := f.toggle(f.intake, f.admin, "guardian present")
		require.NoError(t, err)
		assert.Equal(t, "Activity \"Intake\" completed by Ana Admin.\n\nObservation: guardian present", f.notes()[1].Content)

		_, err = f.toggle(f.intake, f.admin, "ignored")
		require.NoError(t, err)
		assert.Equal(t, `Activity "Intake" unchecked by Ana Admin.`, f.notes()[2].Content)
		require.NotNil(t, f.notes()[2].ActivityID)
		assert.Equal(t, f.intake.ID, *f.notes()[2].ActivityID)
	})

	t.Run("double toggle restores value", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.start(f.stageA, f.admin))
		_, err := f.toggle(f.intake, f.admin)
		require.NoError(t, err)
		_, err = f.toggle(f.intake, f.admin)
		require.NoError(t, err)

		ca := f.repo.snapshot().clientActs[pair{f.client, f.intake.ID}]
		assert.False(t, ca.IsCompleted)
		assert.Nil(t, ca.CompletedAt)
		assert.Nil(t, ca.CompletedBy)
	})
}

func TestResolvePendingTask(t *testing.T) {
	t.Run("blank note fails whatever the task", func(t *testing.T) {
		f := newFixture(t)
		resolved := f.addTask(f.stageA, domain.TaskResolved, nil)
		for _, id := range []uuid.UUID{uuid.New(), resolved.ID} {
			_, err := f.svc.ResolvePendingTask(f.ctx, id, f.admin.ID, transport.ResolvePendingTaskRequest{ResolutionNote: "  "})
			require.ErrorIs(t, err, domain.ErrValidation)
			assert.Equal(t, domain.CodeValidation, apperr.GetCode(err))
		}
	})

	t.Run("not found", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.ResolvePendingTask(f.ctx, uuid.New(), f.admin.ID, transport.ResolvePendingTaskRequest{ResolutionNote: "done"})
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("already resolved", func(t *testing.T) {
		f := newFixture(t)
		task := f.addTask(f.stageA, domain.TaskResolved, nil)
		_, err := f.svc.ResolvePendingTask(f.ctx, task.ID, f.admin.ID, transport.ResolvePendingTaskRequest{ResolutionNote: "done"})
		require.ErrorIs(t, err, domain.ErrAlreadyResolved)
	})

	t.Run("assigned profile gate", func(t *testing.T) {
		f := newFixture(t)
		task := f.addTask(f.stageA, domain.TaskPending, &f.psych.ID)
		_, err := f.svc.ResolvePendingTask(f.ctx, task.ID, f.operator.ID, transport.ResolvePendingTaskRequest{ResolutionNote: "done"})
		require.ErrorIs(t, err, domain.ErrProfileNotAllowed)
		assert.Contains(t, err.Error(), "Psychology")
		assert.Empty(t, f.notes())
	})

	t.Run("resolves with manual note", func(t *testing.T) {
		f := newFixture(t)
		task := f.addTask(f.stageA, domain.TaskPending, &f.speech.ID)

		resp, err := f.svc.ResolvePendingTask(f.ctx, task.ID, f.operator.ID, transport.ResolvePendingTaskRequest{ResolutionNote: "Report received"})
		require.NoError(t, err)
		assert.Equal(t, string(domain.TaskResolved), resp.Task.Status)
		assert.Equal(t, "[Resolução de Pendência] Report received", resp.Note.Content)
		assert.False(t, resp.Note.IsAutoGenerated)
		require.NotNil(t, resp.Task.ResolutionNoteID)
		assert.Equal(t, resp.Note.ID, *resp.Task.ResolutionNoteID)

		stored := f.repo.snapshot().tasks[task.ID]
		assert.Equal(t, domain.TaskResolved, stored.Status)
		assert.Equal(t, f.operator.ID, *stored.ResolvedBy)
		assert.Len(t, f.notes(), 1)
		assert.Equal(t, 0, f.autoNotes())
	})
}

func TestReopenPendingTask(t *testing.T) {
	t.Run("only resolved tasks", func(t *testing.T) {
		f := newFixture(t)
		task := f.addTask(f.stageA, domain.TaskPending, nil)
		_, err := f.svc.ReopenPendingTask(f.ctx, task.ID, f.admin.ID)
		require.ErrorIs(t, err, domain.ErrNotResolved)
	})

	t.Run("without stage cascade", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.start(f.stageA, f.admin))
		task := f.addTask(f.stageA, domain.TaskResolved, nil)
		before := f.autoNotes()

		resp, err := f.svc.ReopenPendingTask(f.ctx, task.ID, f.operator.ID)
		require.NoError(t, err)
		assert.Equal(t, string(domain.TaskPending), resp.Status)
		assert.Nil(t, resp.ResolvedAt)
		assert.Nil(t, resp.ResolvedBy)
		assert.Nil(t, resp.ResolutionNoteID)
		assert.Equal(t, before+1, f.autoNotes())
		assert.Equal(t, `Pending task reopened: "Send school report"`, f.notes()[len(f.notes())-1].Content)
	})

	t.Run("reopens completed stage", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.start(f.stageA, f.admin))
		_, err := f.toggle(f.intake, f.admin)
		require.NoError(t, err)
		task := f.addTask(f.stageA, domain.TaskResolved, nil)
		require.NoError(t, f.complete(f.stageA, f.admin))
		before := f.autoNotes()

		_, err = f.svc.ReopenPendingTask(f.ctx, task.ID, f.operator.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StageInProgress, f.stageStatus(f.stageA))
		assert.Equal(t, before+2, f.autoNotes())
		assert.Equal(t, domain.StageReopenedByTaskNote, f.notes()[len(f.notes())-1].Content)

		// the reopened task now blocks completion again
		require.ErrorIs(t, f.complete(f.stageA, f.admin), domain.ErrUnresolvedPendingTasks)
	})
}

func TestFailedWritesLeaveNoTrace(t *testing.T) {
	t.Run("start without note", func(t *testing.T) {
		f := newFixture(t)
		f.repo.failOn = "InsertNote"
		err := f.start(f.stageA, f.admin)
		require.ErrorIs(t, err, errInjected)
		assert.Equal(t, apperr.KindUnknown, apperr.GetKind(err))

		assert.Empty(t, f.repo.snapshot().clientStages)
		assert.Empty(t, f.notes())
		assert.Empty(t, f.bus.names())
	})

	t.Run("toggle cascade without stage write", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.start(f.stageA, f.admin))
		_, err := f.toggle(f.intake, f.admin)
		require.NoError(t, err)
		require.NoError(t, f.complete(f.stageA, f.admin))
		notes := len(f.notes())

		f.repo.failOn = "SaveClientStage"
		_, err = f.toggle(f.intake, f.admin)
		require.ErrorIs(t, err, errInjected)

		assert.True(t, f.repo.snapshot().clientActs[pair{f.client, f.intake.ID}].IsCompleted)
		assert.Equal(t, domain.StageCompleted, f.stageStatus(f.stageA))
		assert.Len(t, f.notes(), notes)
	})

	t.Run("resolve without task update", func(t *testing.T) {
		f := newFixture(t)
		task := f.addTask(f.stageA, domain.TaskPending, nil)
		f.repo.failOn = "UpdatePendingTask"
		_, err := f.svc.ResolvePendingTask(f.ctx, task.ID, f.admin.ID, transport.ResolvePendingTaskRequest{ResolutionNote: "done"})
		require.ErrorIs(t, err, errInjected)
		assert.Empty(t, f.notes())
		assert.Equal(t, domain.TaskPending, f.repo.snapshot().tasks[task.ID].Status)
	})
}

func TestConcurrentStartsHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	const callers = 16

	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.start(f.stageA, f.admin)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, errors.Is(err, domain.ErrInvalidTransition), "unexpected error %v", err)
	}
	assert.Equal(t, 1, wins)
	assert.Len(t, f.notes(), 1)
}

func TestEventsAndMetricsFollowCommit(t *testing.T) {
	f := newFixture(t)

	require.Error(t, f.start(f.stageB, f.admin))
	assert.Empty(t, f.bus.names())
	assert.Equal(t, 1, f.metrics.rejections[OpStageStart+":"+domain.CodeSequenceViolation])

	require.NoError(t, f.start(f.stageA, f.admin))
	_, err := f.toggle(f.intake, f.admin)
	require.NoError(t, err)
	require.NoError(t, f.complete(f.stageA, f.admin))
	_, err = f.toggle(f.intake, f.admin)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"workflow.stage.started",
		"workflow.activity.toggled",
		"workflow.stage.completed",
		"workflow.activity.toggled",
		"workflow.stage.reverted",
	}, f.bus.names())
	assert.Equal(t, 1, f.metrics.transitions[OpStageStart])
	assert.Equal(t, 2, f.metrics.transitions[OpToggle])
}

func TestAddNote(t *testing.T) {
	t.Run("plain note", func(t *testing.T) {
		f := newFixture(t)
		resp, err := f.svc.AddNote(f.ctx, f.client, f.operator.ID, transport.AddNoteRequest{Content: "<b>Called</b> the family"})
		require.NoError(t, err)
		assert.Equal(t, "Called the family", resp.Note.Content)
		assert.False(t, resp.Note.IsAutoGenerated)
		assert.Nil(t, resp.PendingTask)
	})

	t.Run("pending task needs a stage", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.AddNote(f.ctx, f.client, f.operator.ID, transport.AddNoteRequest{Content: "x", CreatesPendingTask: true})
		require.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("creates pending task with truncated title", func(t *testing.T) {
		f := newFixture(t)
		content := strings.Repeat("a", 120)
		resp, err := f.svc.AddNote(f.ctx, f.client, f.operator.ID, transport.AddNoteRequest{
			Content:              content,
			StageID:              &f.stageA.ID,
			CreatesPendingTask:   true,
			PendingTaskProfileID: &f.psych.ID,
		})
		require.NoError(t, err)
		require.NotNil(t, resp.PendingTask)
		assert.Equal(t, strings.Repeat("a", 100)+"...", resp.PendingTask.Title)
		assert.Equal(t, resp.Note.ID, *resp.PendingTask.NoteID)
		assert.Equal(t, f.psych.ID, *resp.PendingTask.AssignedProfileID)
		assert.Equal(t, string(domain.TaskPending), resp.PendingTask.Status)
	})

	t.Run("unknown assigned profile rolls back the note", func(t *testing.T) {
		f := newFixture(t)
		missing := uuid.New()
		_, err := f.svc.AddNote(f.ctx, f.client, f.operator.ID, transport.AddNoteRequest{
			Content:              "follow up",
			StageID:              &f.stageA.ID,
			CreatesPendingTask:   true,
			PendingTaskProfileID: &missing,
		})
		require.ErrorIs(t, err, domain.ErrValidation)
		assert.Empty(t, f.notes())
	})

	t.Run("activity of another stage", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.AddNote(f.ctx, f.client, f.operator.ID, transport.AddNoteRequest{
			Content:    "x",
			StageID:    &f.stageB.ID,
			ActivityID: &f.intake.ID,
		})
		require.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestListNotesNewestFirst(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.start(f.stageA, f.admin))
	_, err := f.svc.AddNote(f.ctx, f.client, f.operator.ID, transport.AddNoteRequest{Content: "later"})
	require.NoError(t, err)

	list, err := f.svc.ListNotes(f.ctx, f.client)
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	assert.Equal(t, "later", list.Items[0].Content)

	_, err = f.svc.ListNotes(f.ctx, uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateAndListPendingTasks(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.CreatePendingTask(f.ctx, f.admin.ID, transport.CreatePendingTaskRequest{
		ClientID: f.client,
		StageID:  f.stageB.ID,
		Title:    "Schedule hearing test",
	})
	require.NoError(t, err)
	f.addTask(f.stageA, domain.TaskResolved, nil)

	list, err := f.svc.ListPendingTasks(f.ctx, transport.ListPendingTasksRequest{Status: "pending"})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, created.ID, list.Items[0].ID)
	assert.Equal(t, "Assessment", list.Items[0].StageName)

	_, err = f.svc.ListPendingTasks(f.ctx, transport.ListPendingTasksRequest{ClientID: "nope"})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.CreatePendingTask(f.ctx, f.admin.ID, transport.CreatePendingTaskRequest{
		ClientID: f.client,
		StageID:  uuid.New(),
		Title:    "x",
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClientRoadmap(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.start(f.stageA, f.admin))
	_, err := f.toggle(f.intake, f.admin)
	require.NoError(t, err)
	f.addTask(f.stageA, domain.TaskPending, nil)

	roadmap, err := f.svc.ClientRoadmap(f.ctx, f.client)
	require.NoError(t, err)
	require.Len(t, roadmap, 2)

	assert.Equal(t, "Screening", roadmap[0].Name)
	assert.Equal(t, string(domain.StageInProgress), roadmap[0].Status)
	assert.Equal(t, 1, roadmap[0].OpenPendingTasks)
	require.Len(t, roadmap[0].Activities, 1)
	assert.True(t, roadmap[0].Activities[0].IsCompleted)

	assert.Equal(t, string(domain.StageNotStarted), roadmap[1].Status)
	assert.Empty(t, roadmap[1].Activities)
}
