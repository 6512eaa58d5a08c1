package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/storefront/internal/application"
	domain "github.com/Zhima-Mochi/storefront/internal/domain/payment"
	"github.com/Zhima-Mochi/storefront/internal/observability"
	"github.com/Zhima-Mochi/storefront/internal/observability/logctx"
	"github.com/shopspring/decimal"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	paymentService       = "payment-service"
	useCasePaymentSubmit = "payment.submit"
	spanPrefix           = "UC."

	DefaultPollInterval    = 2 * time.Second
	DefaultPollTimeout     = 2 * time.Minute
	DefaultMaxPollAttempts = 60
)

type Config struct {
	MinorUnitFactor int64
	PollInterval    time.Duration
	PollTimeout     time.Duration
	MaxPollAttempts int
}

func (c Config) withDefaults() Config {
	if c.MinorUnitFactor <= 0 {
		c.MinorUnitFactor = domain.DefaultMinorUnitFactor
	}
	if c.PollInterval < 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = DefaultPollTimeout
	}
	if c.MaxPollAttempts <= 0 {
		c.MaxPollAttempts = DefaultMaxPollAttempts
	}
	return c
}

type SubmitPaymentInput struct {
	PaymentID         string
	OrderID           string
	Token             string
	AcceptanceToken   string
	PersonalAuthToken string
	CustomerEmail     string
	// Total is in major currency units; it is converted to minor units here only.
	Total decimal.Decimal
}

// SubmitPaymentUseCase drives one payment attempt: sign, create source,
// create transaction, then poll until the gateway reports a terminal status.
type SubmitPaymentUseCase struct {
	gateway     domain.Gateway
	idGenerator IDGenerator
	cfg         Config
	tracer      observability.Tracer

	log           observability.Logger
	reqCounter    observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram  observability.Histogram // usecase_duration_seconds{use_case}
	pollHistogram observability.Histogram // payment_poll_attempts{status}
}

func NewSubmitPaymentUseCase(gateway domain.Gateway, idGen IDGenerator, cfg Config, tel observability.Observability) *SubmitPaymentUseCase {
	logger, tracer, metrics := observability.Resolve(tel)
	return &SubmitPaymentUseCase{
		gateway:       gateway,
		idGenerator:   idGen,
		cfg:           cfg.withDefaults(),
		tracer:        tracer,
		log:           logger.With(observability.F("service", paymentService)),
		reqCounter:    metrics.Counter(observability.MUsecaseRequests),
		durHistogram:  metrics.Histogram(observability.MUsecaseDuration),
		pollHistogram: metrics.Histogram(observability.MPaymentPollAttempts),
	}
}

// Execute returns the payment record of the attempt. When a gateway call fails
// the partially filled record is returned with status FAILED alongside the error.
func (uc *SubmitPaymentUseCase) Execute(ctx context.Context, cmd SubmitPaymentInput) (_ *domain.Payment, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCasePaymentSubmit),
		observability.F("order_id", cmd.OrderID),
	)

	ctx, span := uc.tracer.Start(ctx, spanPrefix+"SubmitPayment",
		attribute.String("use_case", useCasePaymentSubmit),
		attribute.String("order.id", cmd.OrderID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	var p *domain.Payment
	attempts := 0

	defer func() {
		lat := time.Since(start).Seconds()

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()

		uc.reqCounter.Add(1,
			observability.L("use_case", useCasePaymentSubmit),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat, observability.L("use_case", useCasePaymentSubmit))

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
			observability.F("poll_attempts", attempts),
		}
		if p != nil {
			fields = append(fields,
				observability.F("payment_id", p.ID),
				observability.F("payment_status", string(p.Status)),
				observability.F("amount_in_cents", p.AmountInCents),
			)
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	switch {
	case strings.TrimSpace(cmd.Token) == "":
		outcome, statusText = "error", "CARD_TOKEN_REQUIRED"
		return nil, application.NewValidation("tokenized credit card is required")
	case strings.TrimSpace(cmd.AcceptanceToken) == "":
		outcome, statusText = "error", "ACCEPTANCE_TOKEN_REQUIRED"
		return nil, application.NewValidation("acceptance token is required")
	case strings.TrimSpace(cmd.PersonalAuthToken) == "":
		outcome, statusText = "error", "AUTH_TOKEN_REQUIRED"
		return nil, application.NewValidation("acceptance auth token is required")
	case strings.TrimSpace(cmd.CustomerEmail) == "":
		outcome, statusText = "error", "EMAIL_REQUIRED"
		return nil, application.NewValidation("customer email is required")
	}

	amount, convErr := domain.ToMinorUnits(cmd.Total, uc.cfg.MinorUnitFactor)
	if convErr != nil {
		outcome, statusText = "error", "AMOUNT_INVALID"
		return nil, application.WrapValidation(convErr)
	}

	id := cmd.PaymentID
	if id == "" {
		id = uc.idGenerator.NewID()
	}
	p = &domain.Payment{
		ID:            id,
		OrderID:       cmd.OrderID,
		Token:         cmd.Token,
		AmountInCents: amount,
		Currency:      uc.gateway.Currency(),
		Status:        domain.StatusPending,
		CustomerEmail: cmd.CustomerEmail,
		Method:        domain.MethodCard,
		CreatedAt:     time.Now().UTC(),
	}
	span.SetAttributes(
		attribute.String("payment.id", p.ID),
		attribute.Int64("payment.amount_in_cents", amount),
	)

	signature := uc.gateway.Sign(p.ID, amount)

	sourceID, gwErr := uc.gateway.CreatePaymentSource(ctx, domain.SourceRequest{
		Token:             cmd.Token,
		AcceptanceToken:   cmd.AcceptanceToken,
		PersonalAuthToken: cmd.PersonalAuthToken,
		CustomerEmail:     cmd.CustomerEmail,
	})
	if gwErr != nil {
		outcome, statusText = "error", "PAYMENT_SOURCE_FAILED"
		p.Fail("payment source: " + gwErr.Error())
		return p, fmt.Errorf("payment: create source: %w", gwErr)
	}
	span.AddEvent("payment.source_created")

	txID, gwErr := uc.gateway.CreateTransaction(ctx, domain.TransactionRequest{
		AmountInCents: amount,
		Currency:      p.Currency,
		CustomerEmail: cmd.CustomerEmail,
		Reference:     p.ID,
		SourceID:      sourceID,
		Signature:     signature,
	})
	if gwErr != nil {
		outcome, statusText = "error", "TRANSACTION_FAILED"
		p.Fail("transaction: " + gwErr.Error())
		return p, fmt.Errorf("payment: create transaction: %w", gwErr)
	}
	p.TransactionID = txID
	span.SetAttributes(attribute.String("payment.transaction_id", txID))

	status, n, pollErr := uc.poll(ctx, txID)
	attempts = n
	if pollErr != nil {
		outcome, statusText = "error", "POLL_FAILED"
		p.Fail("status poll: " + pollErr.Error())
		return p, fmt.Errorf("payment: poll transaction %s: %w", txID, pollErr)
	}
	uc.pollHistogram.Observe(float64(n), observability.L("status", string(status)))

	p.Status = status
	if status != domain.StatusApproved {
		p.FailureReason = "transaction " + string(status)
		statusText = "PAYMENT_" + string(status)
	}
	span.SetAttributes(attribute.String("payment.status", string(status)))
	return p, nil
}

// poll queries the transaction until it leaves PENDING. It gives up with
// TIMEOUT after MaxPollAttempts queries or once the next wait would pass PollTimeout.
func (uc *SubmitPaymentUseCase) poll(ctx context.Context, txID string) (domain.Status, int, error) {
	deadline := time.Now().Add(uc.cfg.PollTimeout)
	for attempt := 1; ; attempt++ {
		status, err := uc.gateway.TransactionStatus(ctx, txID)
		if err != nil {
			return "", attempt, err
		}
		if status.Terminal() {
			return status, attempt, nil
		}
		if attempt >= uc.cfg.MaxPollAttempts || time.Now().Add(uc.cfg.PollInterval).After(deadline) {
			return domain.StatusTimeout, attempt, nil
		}

		timer := time.NewTimer(uc.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", attempt, ctx.Err()
		case <-timer.C:
		}
	}
}
