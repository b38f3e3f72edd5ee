// Package service manages client records and assembles the client roadmap.
package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"indor_desk/internal/clients/repository"
	"indor_desk/internal/clients/transport"
	"indor_desk/internal/events"
	"indor_desk/platform/apperr"
	"indor_desk/platform/logger"
	"indor_desk/platform/phone"
	"indor_desk/platform/sanitize"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPageSize = 20
	minNameRunes    = 2
	maxNameRunes    = 100
)

// RoadmapReader provides a client's progression over the stage catalog.
// Implemented by an adapter over the workflow module.
type RoadmapReader interface {
	ClientRoadmap(ctx context.Context, clientID uuid.UUID) ([]transport.RoadmapStage, error)
}

type Service struct {
	repo        repository.Repository
	roadmap     RoadmapReader
	bus         events.Bus
	log         *logger.Logger
	phoneRegion string
	now         func() time.Time
}

func New(repo repository.Repository, roadmap RoadmapReader, bus events.Bus, log *logger.Logger, phoneRegion string) *Service {
	return &Service{
		repo:        repo,
		roadmap:     roadmap,
		bus:         bus,
		log:         log,
		phoneRegion: phoneRegion,
		now:         time.Now,
	}
}

func notFound() error {
	return apperr.NotFound("client not found").WithCode("not_found")
}

func invalid(msg string) error {
	return apperr.Validation(msg).WithCode("validation_error")
}

func (s *Service) Create(ctx context.Context, actorID uuid.UUID, req transport.CreateClientRequest) (transport.ClientResponse, error) {
	name, err := cleanName(req.Name)
	if err != nil {
		return transport.ClientResponse{}, err
	}
	birthDate, err := parseDate(req.BirthDate)
	if err != nil {
		return transport.ClientResponse{}, err
	}
	guardianPhone, err := s.normalizePhone(req.GuardianPhone)
	if err != nil {
		return transport.ClientResponse{}, err
	}

	client, err := s.repo.Create(ctx, repository.CreateParams{
		Name:          name,
		BirthDate:     birthDate,
		Gender:        sanitize.TextPtr(req.Gender),
		GuardianName:  sanitize.TextPtr(req.GuardianName),
		GuardianPhone: guardianPhone,
		GuardianEmail: lowerPtr(req.GuardianEmail),
		Address:       sanitize.TextPtr(req.Address),
		Notes:         sanitize.TextPtr(req.Notes),
		CustomFields:  req.CustomFields,
		CreatedBy:     actorID,
	})
	if err != nil {
		return transport.ClientResponse{}, err
	}

	s.bus.Publish(ctx, events.ClientCreated{BaseEvent: events.NewBaseEvent(), ClientID: client.ID, Name: client.Name})
	s.log.WithContext(ctx).Info("client created", "client_id", client.ID.String())
	return s.toResponse(client), nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (transport.ClientResponse, error) {
	client, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.ClientResponse{}, notFound()
	}
	if err != nil {
		return transport.ClientResponse{}, err
	}
	return s.toResponse(client), nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req transport.UpdateClientRequest) (transport.ClientResponse, error) {
	params := repository.UpdateParams{
		Gender:        sanitize.TextPtr(req.Gender),
		GuardianName:  sanitize.TextPtr(req.GuardianName),
		GuardianEmail: lowerPtr(req.GuardianEmail),
		Address:       sanitize.TextPtr(req.Address),
		Notes:         sanitize.TextPtr(req.Notes),
		CustomFields:  req.CustomFields,
	}
	if req.Name != nil {
		name, err := cleanName(*req.Name)
		if err != nil {
			return transport.ClientResponse{}, err
		}
		params.Name = &name
	}
	birthDate, err := parseDate(req.BirthDate)
	if err != nil {
		return transport.ClientResponse{}, err
	}
	params.BirthDate = birthDate
	if params.GuardianPhone, err = s.normalizePhone(req.GuardianPhone); err != nil {
		return transport.ClientResponse{}, err
	}

	client, err := s.repo.Update(ctx, id, params)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.ClientResponse{}, notFound()
	}
	if err != nil {
		return transport.ClientResponse{}, err
	}
	return s.toResponse(client), nil
}

func (s *Service) List(ctx context.Context, req transport.ListClientsRequest) (transport.ClientListResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	clients, total, err := s.repo.List(ctx, repository.ListParams{
		Search: sanitize.Text(req.Search),
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	})
	if err != nil {
		return transport.ClientListResponse{}, err
	}

	items := make([]transport.ClientResponse, 0, len(clients))
	for _, c := range clients {
		items = append(items, s.toResponse(c))
	}
	return transport.ClientListResponse{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// Roadmap returns the client together with its progression. Both reads run in parallel.
func (s *Service) Roadmap(ctx context.Context, id uuid.UUID) (transport.RoadmapResponse, error) {
	var client repository.Client
	var stages []transport.RoadmapStage

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		client, err = s.repo.GetByID(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		stages, err = s.roadmap.ClientRoadmap(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.RoadmapResponse{}, notFound()
		}
		return transport.RoadmapResponse{}, err
	}

	return transport.RoadmapResponse{Client: s.toResponse(client), Stages: stages}, nil
}

func (s *Service) normalizePhone(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	normalized, err := phone.NormalizeE164(*raw, s.phoneRegion)
	if err != nil {
		return nil, invalid("guardian phone is not a valid phone number")
	}
	if normalized == "" {
		return nil, nil
	}
	return &normalized, nil
}

func cleanName(raw string) (string, error) {
	name := sanitize.Text(raw)
	n := utf8.RuneCountInString(name)
	if n < minNameRunes || n > maxNameRunes {
		return "", invalid("name must be between 2 and 100 characters")
	}
	return name, nil
}

func parseDate(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, err := time.Parse(transport.DateLayout, strings.TrimSpace(*raw))
	if err != nil {
		return nil, invalid("birthDate must be YYYY-MM-DD")
	}
	return &t, nil
}

func lowerPtr(s *string) *string {
	v := sanitize.TextPtr(s)
	if v == nil {
		return nil
	}
	lowered := strings.ToLower(*v)
	return &lowered
}
