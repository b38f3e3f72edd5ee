package service

import (
	"indor_desk/internal/clients/repository"
	"indor_desk/internal/clients/transport"
)

func (s *Service) toResponse(c repository.Client) transport.ClientResponse {
	resp := transport.ClientResponse{
		ID:            c.ID,
		Name:          c.Name,
		Age:           AgeOn(c.BirthDate, s.now()),
		Gender:        c.Gender,
		GuardianName:  c.GuardianName,
		GuardianPhone: c.GuardianPhone,
		GuardianEmail: c.GuardianEmail,
		Address:       c.Address,
		Notes:         c.Notes,
		CustomFields:  c.CustomFields,
		CreatedBy:     c.CreatedBy,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
	if c.BirthDate != nil {
		formatted := c.BirthDate.Format(transport.DateLayout)
		resp.BirthDate = &formatted
	}
	if resp.CustomFields == nil {
		resp.CustomFields = map[string]any{}
	}
	return resp
}
