package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/storefront/internal/application"
	domain "github.com/Zhima-Mochi/storefront/internal/domain/inventory"
)

// Service is the read side of the products table.
type Service struct {
	repo domain.Repository
}

func NewService(repo domain.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	if id == "" {
		return nil, application.NewValidation("product id is required")
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context) ([]*domain.Product, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	return list, nil
}

func wrapRepositoryError(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %w", ErrRepository, err)
}
