package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/storefront/internal/application"
	domain "github.com/Zhima-Mochi/storefront/internal/domain/payment"
	"github.com/Zhima-Mochi/storefront/internal/observability"
	"github.com/Zhima-Mochi/storefront/internal/observability/logctx"
)

var (
	ErrNotFound   = domain.ErrNotFound
	ErrRepository = errors.New("payment: repository failure")
)

// Service exposes the payments table and standalone payment attempts.
type Service struct {
	repo    domain.Repository
	submit  application.UseCase[SubmitPaymentInput, *domain.Payment]
	gateway domain.Gateway
	log     observability.Logger
}

func NewService(repo domain.Repository, submit application.UseCase[SubmitPaymentInput, *domain.Payment], gateway domain.Gateway, logger observability.Logger) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Service{repo: repo, submit: submit, gateway: gateway, log: logger.With(observability.F("service", paymentService))}
}

// Create runs a payment attempt and persists its record. Gateway failures
// still persist the FAILED record and are reported through FailureReason.
func (s *Service) Create(ctx context.Context, in SubmitPaymentInput) (*domain.Payment, error) {
	p, err := s.submit.Execute(ctx, in)
	if p == nil {
		return nil, err
	}
	if err != nil {
		logctx.FromOr(ctx, s.log).Warn("payment_attempt_failed",
			observability.F("payment_id", p.ID),
			observability.F("error", err.Error()),
		)
	}
	if perr := s.repo.Put(context.WithoutCancel(ctx), p); perr != nil {
		return nil, fmt.Errorf("%w: %w", ErrRepository, perr)
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Payment, error) {
	if id == "" {
		return nil, application.NewValidation("payment id is required")
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context) ([]*domain.Payment, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	return list, nil
}

func (s *Service) AcceptanceTokens(ctx context.Context) (domain.AcceptanceTokens, error) {
	return s.gateway.AcceptanceTokens(ctx)
}

func wrapRepositoryError(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %w", ErrRepository, err)
}
