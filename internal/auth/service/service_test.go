package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"indor_desk/internal/auth/password"
	"indor_desk/internal/auth/ratelimit"
	"indor_desk/internal/auth/repository"
	"indor_desk/internal/events"
	"indor_desk/platform/apperr"
	"indor_desk/platform/config"
	"indor_desk/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*repository.User
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return *u, nil
		}
	}
	return repository.User{}, repository.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return *u, nil
	}
	return repository.User{}, repository.ErrNotFound
}

func (m *memUsers) RecordFailedLogin(_ context.Context, id uuid.UUID, maxAttempts int, lockUntil time.Time) (int, *time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[id]
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= maxAttempts {
		locked := lockUntil
		u.LockedUntil = &locked
	}
	return u.FailedLoginAttempts, u.LockedUntil, nil
}

func (m *memUsers) ResetFailedLogins(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id].FailedLoginAttempts = 0
	m.users[id].LockedUntil = nil
	return nil
}

type namesBus struct {
	mu    sync.Mutex
	names []string
}

func (b *namesBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.names = append(b.names, e.EventName())
}

func (b *namesBus) Subscribe(string, events.Handler) {}

var (
	hashOnce sync.Once
	goodHash string
)

func fixtureHash(t *testing.T) string {
	t.Helper()
	hashOnce.Do(func() {
		h, err := password.Hash("correct horse")
		if err != nil {
			panic(err)
		}
		goodHash = h
	})
	return goodHash
}

type fixture struct {
	svc   *Service
	repo  *memUsers
	bus   *namesBus
	user  *repository.User
	clock time.Time
}

func newFixture(t *testing.T, limiterMax int) *fixture {
	t.Helper()
	profile := uuid.New()
	user := &repository.User{
		ID:           uuid.New(),
		Username:     "otto",
		PasswordHash: fixtureHash(t),
		Name:         "Otto",
		Role:         "operator",
		ProfileID:    &profile,
		IsActive:     true,
	}
	repo := &memUsers{users: map[uuid.UUID]*repository.User{user.ID: user}}
	bus := &namesBus{}
	cfg := &config.Config{
		JWTAccessSecret:     "access",
		JWTRefreshSecret:    "refresh",
		AccessTokenTTL:      time.Hour,
		RefreshTokenTTL:     24 * time.Hour,
		MaxFailedLogins:     3,
		AccountLockDuration: 15 * time.Minute,
	}
	svc := New(repo, cfg, ratelimit.NewMemoryLimiter(limiterMax, time.Minute), bus, logger.Discard())
	f := &fixture{svc: svc, repo: repo, bus: bus, user: user, clock: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	svc.now = func() time.Time { return f.clock }
	return f
}

func TestLoginSuccess(t *testing.T) {
	f := newFixture(t, 10)

	resp, err := f.svc.Login(context.Background(), " otto ", "correct horse", "10.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, "operator", resp.User.Role)
	require.NotNil(t, resp.User.ProfileID)
	assert.Equal(t, f.user.ProfileID.String(), *resp.User.ProfileID)
}

func TestLoginUnknownUserAndBadPassword(t *testing.T) {
	f := newFixture(t, 10)

	_, err := f.svc.Login(context.Background(), "nobody", "x", "10.0.0.1")
	assert.Equal(t, apperr.KindUnauthorized, apperr.GetKind(err))
	assert.Equal(t, "invalid_credentials", apperr.GetCode(err))

	_, err = f.svc.Login(context.Background(), "otto", "wrong", "10.0.0.1")
	assert.Equal(t, "invalid_credentials", apperr.GetCode(err))
	assert.Equal(t, 1, f.user.FailedLoginAttempts)
}

func TestRepeatedFailuresLockTheAccount(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Login(ctx, "otto", "wrong", "10.0.0.1")
		require.Error(t, err)
	}
	require.NotNil(t, f.user.LockedUntil)
	assert.Equal(t, []string{"auth.account.locked"}, f.bus.names)

	// The right password does not help while locked.
	_, err := f.svc.Login(ctx, "otto", "correct horse", "10.0.0.1")
	assert.Equal(t, apperr.KindForbidden, apperr.GetKind(err))
	assert.Equal(t, "account_locked", apperr.GetCode(err))

	f.clock = f.clock.Add(16 * time.Minute)
	_, err = f.svc.Login(ctx, "otto", "correct horse", "10.0.0.1")
	require.NoError(t, err)
	assert.Zero(t, f.user.FailedLoginAttempts)
	assert.Nil(t, f.user.LockedUntil)
}

func TestInactiveAccountIsRejected(t *testing.T) {
	f := newFixture(t, 10)
	f.user.IsActive = false

	_, err := f.svc.Login(context.Background(), "otto", "correct horse", "10.0.0.1")
	assert.Equal(t, "account_inactive", apperr.GetCode(err))
}

func TestLoginIsRateLimitedPerIP(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.svc.Login(ctx, "nobody", "x", "10.0.0.1")
		assert.Equal(t, "invalid_credentials", apperr.GetCode(err))
	}

	_, err := f.svc.Login(ctx, "otto", "correct horse", "10.0.0.1")
	assert.Equal(t, apperr.KindTooManyRequests, apperr.GetKind(err))
	assert.Equal(t, "rate_limited", apperr.GetCode(err))

	_, err = f.svc.Login(ctx, "otto", "correct horse", "10.0.0.2")
	assert.NoError(t, err, "other addresses keep their own budget")
}

func TestRefresh(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	login, err := f.svc.Login(ctx, "otto", "correct horse", "10.0.0.1")
	require.NoError(t, err)

	refreshed, err := f.svc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	_, err = f.svc.Refresh(ctx, login.AccessToken)
	assert.Equal(t, "invalid_token", apperr.GetCode(err))

	_, err = f.svc.Refresh(ctx, "")
	assert.Equal(t, apperr.KindUnauthorized, apperr.GetKind(err))

	f.user.IsActive = false
	_, err = f.svc.Refresh(ctx, login.RefreshToken)
	assert.Equal(t, "account_inactive", apperr.GetCode(err))
}

func TestMe(t *testing.T) {
	f := newFixture(t, 10)

	me, err := f.svc.Me(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "otto", me.Username)

	_, err = f.svc.Me(context.Background(), uuid.New())
	assert.Equal(t, apperr.KindNotFound, apperr.GetKind(err))
}
