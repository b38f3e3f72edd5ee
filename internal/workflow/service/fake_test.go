package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"indor_desk/internal/workflow/domain"
	"indor_desk/internal/workflow/repository"

	"github.com/google/uuid"
)

type pair struct{ a, b uuid.UUID }

type state struct {
	clients      map[uuid.UUID]string
	users        map[uuid.UUID]domain.Actor
	profiles     map[uuid.UUID]domain.Profile
	stages       map[uuid.UUID]domain.Stage
	activities   map[uuid.UUID]domain.Activity
	clientStages map[pair]domain.ClientStage
	clientActs   map[pair]domain.ClientActivity
	tasks        map[uuid.UUID]domain.PendingTask
	notes        []domain.Note
}

func newState() *state {
	return &state{
		clients:      map[uuid.UUID]string{},
		users:        map[uuid.UUID]domain.Actor{},
		profiles:     map[uuid.UUID]domain.Profile{},
		stages:       map[uuid.UUID]domain.Stage{},
		activities:   map[uuid.UUID]domain.Activity{},
		clientStages: map[pair]domain.ClientStage{},
		clientActs:   map[pair]domain.ClientActivity{},
		tasks:        map[uuid.UUID]domain.PendingTask{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		clients:      cloneMap(s.clients),
		users:        cloneMap(s.users),
		profiles:     cloneMap(s.profiles),
		stages:       cloneMap(s.stages),
		activities:   cloneMap(s.activities),
		clientStages: cloneMap(s.clientStages),
		clientActs:   cloneMap(s.clientActs),
		tasks:        cloneMap(s.tasks),
		notes:        append([]domain.Note(nil), s.notes...),
	}
}

// fakeRepo is an in-memory unit of work. Transactions are serialised by a
// mutex and work on a copy that replaces the committed state only on success.
type fakeRepo struct {
	mu      sync.Mutex
	st      *state
	failOn  string
	txCount int
}

var errInjected = errors.New("injected failure")

func newFakeRepo() *fakeRepo {
	return &fakeRepo{st: newState()}
}

func (r *fakeRepo) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txCount++

	work := r.st.clone()
	if err := fn(&fakeTx{st: work, failOn: r.failOn}); err != nil {
		return err
	}
	r.st = work
	return nil
}

func (r *fakeRepo) snapshot() *state {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.clone()
}

func (r *fakeRepo) ListCatalog(ctx context.Context, includeInactive bool) ([]repository.StageWithActivities, error) {
	st := r.snapshot()
	var out []repository.StageWithActivities
	for _, s := range st.stages {
		if !s.IsActive && !includeInactive {
			continue
		}
		item := repository.StageWithActivities{Stage: s}
		for _, a := range st.activities {
			if a.StageID == s.ID {
				item.Activities = append(item.Activities, a)
			}
		}
		sort.Slice(item.Activities, func(i, j int) bool { return item.Activities[i].OrderIndex < item.Activities[j].OrderIndex })
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (r *fakeRepo) GetClientProgress(ctx context.Context, clientID uuid.UUID) (repository.ClientProgress, error) {
	st := r.snapshot()
	p := repository.ClientProgress{OpenTasksStage: map[uuid.UUID]int{}}
	for k, cs := range st.clientStages {
		if k.a == clientID {
			p.Stages = append(p.Stages, cs)
		}
	}
	for k, ca := range st.clientActs {
		if k.a == clientID {
			p.Activities = append(p.Activities, ca)
		}
	}
	for _, t := range st.tasks {
		if t.ClientID == clientID && t.Status == domain.TaskPending {
			p.OpenTasksStage[t.StageID]++
		}
	}
	return p, nil
}

func (r *fakeRepo) ClientExists(ctx context.Context, clientID uuid.UUID) (bool, error) {
	_, ok := r.snapshot().clients[clientID]
	return ok, nil
}

func (r *fakeRepo) ListNotes(ctx context.Context, clientID uuid.UUID) ([]repository.NoteView, error) {
	st := r.snapshot()
	var out []repository.NoteView
	for i := len(st.notes) - 1; i >= 0; i-- {
		if st.notes[i].ClientID == clientID {
			out = append(out, repository.NoteView{Note: st.notes[i]})
		}
	}
	return out, nil
}

func (r *fakeRepo) ListPendingTasks(ctx context.Context, filter repository.TaskFilter) ([]repository.PendingTaskView, error) {
	st := r.snapshot()
	var out []repository.PendingTaskView
	for _, t := range st.tasks {
		if filter.ClientID != nil && t.ClientID != *filter.ClientID {
			continue
		}
		if filter.StageID != nil && t.StageID != *filter.StageID {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		out = append(out, repository.PendingTaskView{PendingTask: t, ClientName: st.clients[t.ClientID], StageName: st.stages[t.StageID].Name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeRepo) GetPendingTaskView(ctx context.Context, taskID uuid.UUID) (repository.PendingTaskView, error) {
	st := r.snapshot()
	t, ok := st.tasks[taskID]
	if !ok {
		return repository.PendingTaskView{}, repository.ErrNotFound
	}
	return repository.PendingTaskView{PendingTask: t, ClientName: st.clients[t.ClientID], StageName: st.stages[t.StageID].Name}, nil
}

type fakeTx struct {
	st     *state
	failOn string
}

func (t *fakeTx) fail(op string) error {
	if t.failOn == op {
		return errInjected
	}
	return nil
}

func (t *fakeTx) LockClient(ctx context.Context, clientID uuid.UUID) error {
	if _, ok := t.st.clients[clientID]; !ok {
		return repository.ErrNotFound
	}
	return nil
}

func (t *fakeTx) GetActor(ctx context.Context, userID uuid.UUID) (domain.Actor, error) {
	a, ok := t.st.users[userID]
	if !ok {
		return domain.Actor{}, repository.ErrNotFound
	}
	return a, nil
}

func (t *fakeTx) GetStage(ctx context.Context, stageID uuid.UUID) (domain.Stage, error) {
	s, ok := t.st.stages[stageID]
	if !ok {
		return domain.Stage{}, repository.ErrNotFound
	}
	return s, nil
}

func (t *fakeTx) PreviousActiveStage(ctx context.Context, orderIndex int) (*domain.Stage, error) {
	var best *domain.Stage
	for _, s := range t.st.stages {
		if !s.IsActive || s.OrderIndex >= orderIndex {
			continue
		}
		if best == nil || s.OrderIndex > best.OrderIndex {
			s := s
			best = &s
		}
	}
	return best, nil
}

func (t *fakeTx) GetActivity(ctx context.Context, activityID uuid.UUID) (domain.Activity, error) {
	a, ok := t.st.activities[activityID]
	if !ok {
		return domain.Activity{}, repository.ErrNotFound
	}
	return a, nil
}

func (t *fakeTx) StageActivityIDs(ctx context.Context, stageID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, a := range t.st.activities {
		if a.StageID == stageID {
			ids = append(ids, a.ID)
		}
	}
	return ids, nil
}

func (t *fakeTx) GetClientStage(ctx context.Context, clientID, stageID uuid.UUID) (*domain.ClientStage, error) {
	cs, ok := t.st.clientStages[pair{clientID, stageID}]
	if !ok {
		return nil, nil
	}
	return &cs, nil
}

func (t *fakeTx) SaveClientStage(ctx context.Context, cs domain.ClientStage) (domain.ClientStage, error) {
	if err := t.fail("SaveClientStage"); err != nil {
		return domain.ClientStage{}, err
	}
	key := pair{cs.ClientID, cs.StageID}
	if existing, ok := t.st.clientStages[key]; ok {
		cs.ID = existing.ID
	}
	t.st.clientStages[key] = cs
	return cs, nil
}

func (t *fakeTx) GetClientActivity(ctx context.Context, clientID, activityID uuid.UUID) (*domain.ClientActivity, error) {
	ca, ok := t.st.clientActs[pair{clientID, activityID}]
	if !ok {
		return nil, nil
	}
	return &ca, nil
}

func (t *fakeTx) SaveClientActivity(ctx context.Context, ca domain.ClientActivity) (domain.ClientActivity, error) {
	if err := t.fail("SaveClientActivity"); err != nil {
		return domain.ClientActivity{}, err
	}
	key := pair{ca.ClientID, ca.ActivityID}
	if existing, ok := t.st.clientActs[key]; ok {
		ca.ID = existing.ID
	}
	t.st.clientActs[key] = ca
	return ca, nil
}

func (t *fakeTx) CompletedActivityIDs(ctx context.Context, clientID, stageID uuid.UUID) (map[uuid.UUID]bool, error) {
	out := map[uuid.UUID]bool{}
	for k, ca := range t.st.clientActs {
		if k.a == clientID && ca.IsCompleted && t.st.activities[ca.ActivityID].StageID == stageID {
			out[ca.ActivityID] = true
		}
	}
	return out, nil
}

func (t *fakeTx) CountOpenPendingTasks(ctx context.Context, clientID, stageID uuid.UUID) (int, error) {
	n := 0
	for _, task := range t.st.tasks {
		if task.ClientID == clientID && task.StageID == stageID && task.Status == domain.TaskPending {
			n++
		}
	}
	return n, nil
}

func (t *fakeTx) GetPendingTask(ctx context.Context, taskID uuid.UUID) (domain.PendingTask, error) {
	task, ok := t.st.tasks[taskID]
	if !ok {
		return domain.PendingTask{}, repository.ErrNotFound
	}
	return task, nil
}

func (t *fakeTx) InsertPendingTask(ctx context.Context, task domain.PendingTask) error {
	if err := t.fail("InsertPendingTask"); err != nil {
		return err
	}
	t.st.tasks[task.ID] = task
	return nil
}

func (t *fakeTx) UpdatePendingTask(ctx context.Context, task domain.PendingTask) error {
	if err := t.fail("UpdatePendingTask"); err != nil {
		return err
	}
	if _, ok := t.st.tasks[task.ID]; !ok {
		return repository.ErrNotFound
	}
	t.st.tasks[task.ID] = task
	return nil
}

func (t *fakeTx) InsertNote(ctx context.Context, note domain.Note) error {
	if err := t.fail("InsertNote"); err != nil {
		return err
	}
	t.st.notes = append(t.st.notes, note)
	return nil
}

func (t *fakeTx) ProfileNames(ctx context.Context, ids []uuid.UUID) ([]string, error) {
	var names []string
	for _, id := range ids {
		if p, ok := t.st.profiles[id]; ok {
			names = append(names, p.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (t *fakeTx) ProfileExists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, ok := t.st.profiles[id]
	return ok, nil
}
