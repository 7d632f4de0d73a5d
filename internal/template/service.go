package template

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Repository interface {
	UpsertTemplate(ctx context.Context, t *Template) error
	ListTemplates(ctx context.Context, userID uuid.UUID) ([]*Template, error)
	DeleteTemplate(ctx context.Context, userID, id uuid.UUID) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Save stores a preset, deduplicating on content: an identical preset
// increments usage_count rather than creating a second row.
func (s *Service) Save(ctx context.Context, userID uuid.UUID, description string, unitPrice decimal.Decimal) (*Template, error) {
	t := &Template{
		UserID:      userID,
		Description: description,
		UnitPrice:   unitPrice,
	}
	if err := s.repo.UpsertTemplate(ctx, t); err != nil {
		return nil, err
	}

	return t, nil
}

func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*Template, error) {
	return s.repo.ListTemplates(ctx, userID)
}

func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.DeleteTemplate(ctx, userID, id)
}
