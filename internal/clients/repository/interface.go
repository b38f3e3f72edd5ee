package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("client not found")

// Client is a person under evaluation.
type Client struct {
	ID            uuid.UUID
	Name          string
	BirthDate     *time.Time
	Gender        *string
	GuardianName  *string
	GuardianPhone *string
	GuardianEmail *string
	Address       *string
	Notes         *string
	CustomFields  map[string]any
	CreatedBy     *uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type CreateParams struct {
	Name          string
	BirthDate     *time.Time
	Gender        *string
	GuardianName  *string
	GuardianPhone *string
	GuardianEmail *string
	Address       *string
	Notes         *string
	CustomFields  map[string]any
	CreatedBy     uuid.UUID
}

// UpdateParams carries only the fields to change; nil leaves a column as is.
type UpdateParams struct {
	Name          *string
	BirthDate     *time.Time
	Gender        *string
	GuardianName  *string
	GuardianPhone *string
	GuardianEmail *string
	Address       *string
	Notes         *string
	CustomFields  map[string]any
}

type ListParams struct {
	Search string
	Limit  int
	Offset int
}

// ClientReader provides read-only access to client records.
type ClientReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (Client, error)
	List(ctx context.Context, params ListParams) ([]Client, int, error)
}

// ClientWriter provides write operations on client records.
type ClientWriter interface {
	Create(ctx context.Context, params CreateParams) (Client, error)
	Update(ctx context.Context, id uuid.UUID, params UpdateParams) (Client, error)
}

// Repository combines the client interfaces.
type Repository interface {
	ClientReader
	ClientWriter
}
