package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("user not found")

// User is an account as stored, including the lockout counters.
type User struct {
	ID                  uuid.UUID
	Username            string
	PasswordHash        string
	Name                string
	Phone               *string
	Role                string
	ProfileID           *uuid.UUID
	ProfileName         *string
	IsActive            bool
	FailedLoginAttempts int
	LockedUntil         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// UserReader provides read access to accounts.
type UserReader interface {
	GetByUsername(ctx context.Context, username string) (User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
}

// LoginRecorder maintains the failed-login counter.
type LoginRecorder interface {
	// RecordFailedLogin increments the counter and, once it reaches maxAttempts,
	// locks the account until lockUntil. An expired lock restarts the count.
	RecordFailedLogin(ctx context.Context, id uuid.UUID, maxAttempts int, lockUntil time.Time) (int, *time.Time, error)
	ResetFailedLogins(ctx context.Context, id uuid.UUID) error
}

type Repository interface {
	UserReader
	LoginRecorder
}
