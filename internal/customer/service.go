package customer

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	CreateCustomer(ctx context.Context, c *Customer) error
	GetCustomer(ctx context.Context, userID, id uuid.UUID) (*Customer, error)
	ListCustomers(ctx context.Context, userID uuid.UUID) ([]*Customer, error)
	UpdateCustomer(ctx context.Context, c *Customer) error
	DeleteCustomer(ctx context.Context, userID, id uuid.UUID) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type Params struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

func (s *Service) Create(ctx context.Context, userID uuid.UUID, params Params) (*Customer, error) {
	c := &Customer{
		UserID:  userID,
		Name:    params.Name,
		Email:   params.Email,
		Phone:   params.Phone,
		Address: params.Address,
	}
	if err := s.repo.CreateCustomer(ctx, c); err != nil {
		return nil, err
	}

	return c, nil
}

func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (*Customer, error) {
	return s.repo.GetCustomer(ctx, userID, id)
}

func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*Customer, error) {
	return s.repo.ListCustomers(ctx, userID)
}

func (s *Service) Update(ctx context.Context, userID, id uuid.UUID, params Params) (*Customer, error) {
	c, err := s.repo.GetCustomer(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	c.Name = params.Name
	c.Email = params.Email
	c.Phone = params.Phone
	c.Address = params.Address

	if err := s.repo.UpdateCustomer(ctx, c); err != nil {
		return nil, err
	}

	return c, nil
}

func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.DeleteCustomer(ctx, userID, id)
}
