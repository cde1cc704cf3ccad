package persona

import (
	"context"
	"errors"
	"strings"
)

// ErrMissingFields signals a create request without the required identity
// fields.
var ErrMissingFields = errors.New("persona: name, handle and trade are required")

// Directory abstracts repository operations for the service.
type Directory interface {
	ListActive(ctx context.Context) ([]Persona, error)
	GetByID(ctx context.Context, id string) (Persona, error)
	Create(ctx context.Context, params CreateParams) (Persona, error)
	Retire(ctx context.Context, id string) error
}

// Service exposes operator-level persona management.
type Service struct {
	repo Directory
}

// NewService builds a Service using the provided repository.
func NewService(repo Directory) *Service {
	return &Service{repo: repo}
}

// ListActive returns every persona currently eligible to contribute.
func (s *Service) ListActive(ctx context.Context) ([]Persona, error) {
	return s.repo.ListActive(ctx)
}

// GetByID returns the persona for the given identifier.
func (s *Service) GetByID(ctx context.Context, id string) (Persona, error) {
	return s.repo.GetByID(ctx, id)
}

// Create registers a new active persona after trimming the identity fields.
func (s *Service) Create(ctx context.Context, params CreateParams) (Persona, error) {
	params.Name = strings.TrimSpace(params.Name)
	params.Handle = strings.TrimSpace(params.Handle)
	params.Trade = strings.TrimSpace(params.Trade)
	if params.Name == "" || params.Handle == "" || params.Trade == "" {
		return Persona{}, ErrMissingFields
	}
	return s.repo.Create(ctx, params)
}

// Retire deactivates a persona so future runs skip it. Existing replies keep
// their attribution.
func (s *Service) Retire(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrNotFound
	}
	return s.repo.Retire(ctx, id)
}
