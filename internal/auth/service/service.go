// Package service authenticates desk users: login with lockout, token
// refresh and the current-user lookup.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"indor_desk/internal/auth/password"
	"indor_desk/internal/auth/ratelimit"
	"indor_desk/internal/auth/repository"
	"indor_desk/internal/auth/token"
	"indor_desk/internal/auth/transport"
	"indor_desk/internal/events"
	"indor_desk/platform/apperr"
	"indor_desk/platform/config"
	"indor_desk/platform/logger"

	"github.com/google/uuid"
)

const (
	codeInvalidCredentials = "invalid_credentials"
	codeAccountLocked      = "account_locked"
	codeAccountInactive    = "account_inactive"
	codeRateLimited        = "rate_limited"
	codeInvalidToken       = "invalid_token"
)

type Service struct {
	repo        repository.Repository
	issuer      *token.Issuer
	limiter     ratelimit.Limiter
	bus         events.Bus
	log         *logger.Logger
	maxFailures int
	lockFor     time.Duration
	now         func() time.Time
}

func New(repo repository.Repository, cfg config.AuthServiceConfig, limiter ratelimit.Limiter, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:        repo,
		issuer:      token.NewIssuer(cfg.GetJWTAccessSecret(), cfg.GetJWTRefreshSecret(), cfg.GetAccessTokenTTL(), cfg.GetRefreshTokenTTL()),
		limiter:     limiter,
		bus:         bus,
		log:         log,
		maxFailures: cfg.GetMaxFailedLogins(),
		lockFor:     cfg.GetAccountLockDuration(),
		now:         time.Now,
	}
}

func invalidCredentials() error {
	return apperr.Unauthorized("invalid credentials").WithCode(codeInvalidCredentials)
}

// Login checks the per-IP limiter before touching the account, so a blocked
// caller learns nothing about which usernames exist.
func (s *Service) Login(ctx context.Context, username, plainPassword, clientIP string) (transport.TokenResponse, error) {
	username = strings.TrimSpace(username)
	limiterKey := clientIP

	decision, err := s.limiter.Allow(ctx, limiterKey)
	if err != nil {
		return transport.TokenResponse{}, err
	}
	if !decision.Allowed {
		s.log.RateLimitExceeded(limiterKey, "/auth/login")
		return transport.TokenResponse{}, apperr.TooManyRequests("too many login attempts").
			WithCode(codeRateLimited).
			WithDetails(map[string]int64{"retryAfterSeconds": int64(decision.RetryAfter.Seconds())})
	}

	user, err := s.repo.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		s.log.AuthEvent("login", username, false, "unknown user")
		return transport.TokenResponse{}, invalidCredentials()
	}
	if err != nil {
		return transport.TokenResponse{}, err
	}

	now := s.now()
	if user.LockedUntil != nil && user.LockedUntil.After(now) {
		s.log.AuthEvent("login", username, false, "account locked")
		return transport.TokenResponse{}, apperr.Forbidden("account temporarily locked").
			WithCode(codeAccountLocked).
			WithDetails(map[string]time.Time{"lockedUntil": *user.LockedUntil})
	}
	if !user.IsActive {
		s.log.AuthEvent("login", username, false, "account inactive")
		return transport.TokenResponse{}, apperr.Forbidden("account is inactive").WithCode(codeAccountInactive)
	}

	if err := password.Compare(user.PasswordHash, plainPassword); err != nil {
		if recErr := s.recordFailure(ctx, user, now); recErr != nil {
			return transport.TokenResponse{}, recErr
		}
		s.log.AuthEvent("login", username, false, "bad password")
		return transport.TokenResponse{}, invalidCredentials()
	}

	if user.FailedLoginAttempts > 0 || user.LockedUntil != nil {
		if err := s.repo.ResetFailedLogins(ctx, user.ID); err != nil {
			return transport.TokenResponse{}, err
		}
	}
	if err := s.limiter.Reset(ctx, limiterKey); err != nil {
		s.log.Warn("login limiter reset failed", "error", err)
	}

	resp, err := s.issue(user)
	if err != nil {
		return transport.TokenResponse{}, err
	}
	s.log.AuthEvent("login", username, true, "")
	return resp, nil
}

func (s *Service) recordFailure(ctx context.Context, user repository.User, now time.Time) error {
	attempts, lockedUntil, err := s.repo.RecordFailedLogin(ctx, user.ID, s.maxFailures, now.Add(s.lockFor))
	if err != nil {
		return err
	}
	if s.maxFailures > 0 && attempts >= s.maxFailures && lockedUntil != nil && lockedUntil.After(now) {
		s.log.AuthEvent("account_locked", user.Username, false, "too many failed logins")
		s.bus.Publish(ctx, events.AccountLocked{
			BaseEvent: events.NewBaseEvent(),
			UserID:    user.ID,
			Username:  user.Username,
		})
	}
	return nil
}

// Refresh exchanges a valid refresh token for a new pair. The account is
// re-read so role changes and deactivation take effect at the next refresh.
func (s *Service) Refresh(ctx context.Context, rawRefresh string) (transport.TokenResponse, error) {
	if strings.TrimSpace(rawRefresh) == "" {
		return transport.TokenResponse{}, apperr.Unauthorized("missing refresh token").WithCode(codeInvalidToken)
	}
	userID, err := s.issuer.ParseRefresh(rawRefresh)
	if err != nil {
		return transport.TokenResponse{}, apperr.Unauthorized("invalid refresh token").WithCode(codeInvalidToken)
	}

	user, err := s.repo.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.TokenResponse{}, apperr.Unauthorized("invalid refresh token").WithCode(codeInvalidToken)
	}
	if err != nil {
		return transport.TokenResponse{}, err
	}
	if !user.IsActive {
		return transport.TokenResponse{}, apperr.Forbidden("account is inactive").WithCode(codeAccountInactive)
	}

	resp, err := s.issue(user)
	if err != nil {
		return transport.TokenResponse{}, err
	}
	s.log.AuthEvent("refresh", user.Username, true, "")
	return resp, nil
}

func (s *Service) Me(ctx context.Context, userID uuid.UUID) (transport.UserResponse, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.UserResponse{}, apperr.NotFound("user not found").WithCode("not_found")
	}
	if err != nil {
		return transport.UserResponse{}, err
	}
	return toUserResponse(user), nil
}

func (s *Service) issue(user repository.User) (transport.TokenResponse, error) {
	pair, err := s.issuer.Issue(token.Subject{UserID: user.ID, Role: user.Role, ProfileID: user.ProfileID})
	if err != nil {
		return transport.TokenResponse{}, apperr.Wrap(apperr.KindInternal, "could not issue tokens", err)
	}
	return transport.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		User:         toUserResponse(user),
	}, nil
}

// RefreshTTL is used by the handler for the refresh cookie lifetime.
func (s *Service) RefreshTTL() time.Duration {
	return s.issuer.RefreshTTL()
}

func toUserResponse(u repository.User) transport.UserResponse {
	resp := transport.UserResponse{
		ID:          u.ID.String(),
		Username:    u.Username,
		Name:        u.Name,
		Phone:       u.Phone,
		Role:        u.Role,
		ProfileName: u.ProfileName,
		CreatedAt:   u.CreatedAt,
	}
	if u.ProfileID != nil {
		id := u.ProfileID.String()
		resp.ProfileID = &id
	}
	return resp
}
