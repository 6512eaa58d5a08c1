package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/storefront/internal/application"
	domain "github.com/Zhima-Mochi/storefront/internal/domain/order"
)

type Service struct {
	repo   domain.Repository
	create application.UseCase[CreateOrderInput, *CreateOrderResult]
}

func NewService(repo domain.Repository, create application.UseCase[CreateOrderInput, *CreateOrderResult]) *Service {
	return &Service{repo: repo, create: create}
}

func (s *Service) Create(ctx context.Context, in CreateOrderInput) (*CreateOrderResult, error) {
	return s.create.Execute(ctx, in)
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	if id == "" {
		return nil, application.NewValidation("order id is required")
	}
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	return o, nil
}

func (s *Service) List(ctx context.Context) ([]*domain.Order, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	return list, nil
}

// Update applies patch to an existing order. An empty patch returns the
// stored record unchanged.
func (s *Service) Update(ctx context.Context, id string, patch domain.Patch) (*domain.Order, error) {
	if id == "" {
		return nil, application.NewValidation("order id is required")
	}
	if err := patch.Validate(); err != nil {
		return nil, application.WrapValidation(err)
	}
	if patch.Empty() {
		return s.Get(ctx, id)
	}
	o, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	return o, nil
}

func wrapRepositoryError(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %w", ErrRepository, err)
}
