package transport

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire format of birth dates.
const DateLayout = "2006-01-02"

type CreateClientRequest struct {
	Name          string         `json:"name" validate:"required,notblank,min=2,max=100"`
	BirthDate     *string        `json:"birthDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Gender        *string        `json:"gender,omitempty" validate:"omitempty,max=30"`
	GuardianName  *string        `json:"guardianName,omitempty" validate:"omitempty,max=100"`
	GuardianPhone *string        `json:"guardianPhone,omitempty" validate:"omitempty,max=30"`
	GuardianEmail *string        `json:"guardianEmail,omitempty" validate:"omitempty,email,max=254"`
	Address       *string        `json:"address,omitempty" validate:"omitempty,max=300"`
	Notes         *string        `json:"notes,omitempty" validate:"omitempty,max=5000"`
	CustomFields  map[string]any `json:"customFields,omitempty"`
}

type UpdateClientRequest struct {
	Name          *string        `json:"name,omitempty" validate:"omitempty,notblank,min=2,max=100"`
	BirthDate     *string        `json:"birthDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Gender        *string        `json:"gender,omitempty" validate:"omitempty,max=30"`
	GuardianName  *string        `json:"guardianName,omitempty" validate:"omitempty,max=100"`
	GuardianPhone *string        `json:"guardianPhone,omitempty" validate:"omitempty,max=30"`
	GuardianEmail *string        `json:"guardianEmail,omitempty" validate:"omitempty,email,max=254"`
	Address       *string        `json:"address,omitempty" validate:"omitempty,max=300"`
	Notes         *string        `json:"notes,omitempty" validate:"omitempty,max=5000"`
	CustomFields  map[string]any `json:"customFields,omitempty"`
}

type ListClientsRequest struct {
	Search   string `form:"search" validate:"max=100"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

type ClientResponse struct {
	ID            uuid.UUID      `json:"id"`
	Name          string         `json:"name"`
	BirthDate     *string        `json:"birthDate,omitempty"`
	Age           *int           `json:"age,omitempty"`
	Gender        *string        `json:"gender,omitempty"`
	GuardianName  *string        `json:"guardianName,omitempty"`
	GuardianPhone *string        `json:"guardianPhone,omitempty"`
	GuardianEmail *string        `json:"guardianEmail,omitempty"`
	Address       *string        `json:"address,omitempty"`
	Notes         *string        `json:"notes,omitempty"`
	CustomFields  map[string]any `json:"customFields"`
	CreatedBy     *uuid.UUID     `json:"createdBy,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

type ClientListResponse struct {
	Items    []ClientResponse `json:"items"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
}

// RoadmapActivity is an activity as seen on a client's roadmap.
type RoadmapActivity struct {
	ID              uuid.UUID   `json:"id"`
	Name            string      `json:"name"`
	IsRequired      bool        `json:"isRequired"`
	AllowedProfiles []uuid.UUID `json:"allowedProfiles"`
	IsCompleted     bool        `json:"isCompleted"`
	CompletedAt     *time.Time  `json:"completedAt,omitempty"`
}

// RoadmapStage is a stage as seen on a client's roadmap.
type RoadmapStage struct {
	ID               uuid.UUID         `json:"id"`
	Name             string            `json:"name"`
	OrderIndex       int               `json:"orderIndex"`
	Status           string            `json:"status"`
	StartedAt        *time.Time        `json:"startedAt,omitempty"`
	CompletedAt      *time.Time        `json:"completedAt,omitempty"`
	OpenPendingTasks int               `json:"openPendingTasks"`
	Activities       []RoadmapActivity `json:"activities"`
}

type RoadmapResponse struct {
	Client ClientResponse `json:"client"`
	Stages []RoadmapStage `json:"stages"`
}
