package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/storefront/internal/application"
	apppayment "github.com/Zhima-Mochi/storefront/internal/application/payment"
	dominventory "github.com/Zhima-Mochi/storefront/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/storefront/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/storefront/internal/domain/outbox"
	dompayment "github.com/Zhima-Mochi/storefront/internal/domain/payment"
	"github.com/Zhima-Mochi/storefront/internal/observability"
	"github.com/Zhima-Mochi/storefront/internal/observability/logctx"
	"github.com/shopspring/decimal"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	orderService       = "order-service"
	useCaseOrderCreate = "order.create"
	spanPrefix         = "UC."
	publishPeer        = "outbox"
	publishTimeout     = 300 * time.Millisecond
)

var (
	ErrNotFound   = domain.ErrNotFound
	ErrConflict   = domain.ErrConflict
	ErrRepository = errors.New("order: repository failure")
)

type CreateOrderInput struct {
	ID            string
	UserID        string
	Address       string
	CustomerEmail string
	Items         []domain.CartItem
	// Total is optional; nil charges the cart subtotal.
	Total *decimal.Decimal

	CardToken         string
	AcceptanceToken   string
	PersonalAuthToken string
}

// StockSyncWarning reports a cart line whose stock reduction did not apply.
type StockSyncWarning struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	Reason    string `json:"reason"`
	Retryable bool   `json:"-"`
}

type CreateOrderResult struct {
	Order             *domain.Order
	StockSyncWarnings []StockSyncWarning
}

// CreateOrderUseCase validates an order, charges it, reduces stock on approval
// and persists the final record once.
type CreateOrderUseCase struct {
	orders      domain.Repository
	payments    dompayment.Repository
	payment     PaymentPort
	stock       StockPort
	idGenerator IDGenerator
	publisher   domoutbox.Publisher
	tracer      observability.Tracer

	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewCreateOrderUseCase(
	orders domain.Repository,
	payments dompayment.Repository,
	payment PaymentPort,
	stock StockPort,
	idGen IDGenerator,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *CreateOrderUseCase {
	logger, tracer, metrics := observability.Resolve(tel)
	return &CreateOrderUseCase{
		orders:       orders,
		payments:     payments,
		payment:      payment,
		stock:        stock,
		idGenerator:  idGen,
		publisher:    publisher,
		tracer:       tracer,
		log:          logger.With(observability.F("service", orderService)),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
		extCounter:   metrics.Counter(observability.MExternalRequests),
		extHistogram: metrics.Histogram(observability.MExternalRequestDuration),
	}
}

// Execute only returns an error for invalid input, a reused order id, or when
// the final order write fails. Payment failures end in a persisted FAILED order.
// A caller-supplied id that already exists is rejected before any payment call.
func (uc *CreateOrderUseCase) Execute(ctx context.Context, cmd CreateOrderInput) (_ *CreateOrderResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(observability.F("use_case", useCaseOrderCreate))

	ctx, span := uc.tracer.Start(ctx, spanPrefix+"CreateOrder",
		attribute.String("use_case", useCaseOrderCreate),
		attribute.String("order.user_id", cmd.UserID),
		attribute.Int("order.lines", len(cmd.Items)),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	var entity *domain.Order
	var warnings []StockSyncWarning

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
			observability.L("use_case", useCaseOrderCreate),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat, observability.L("use_case", useCaseOrderCreate))

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if entity != nil {
			fields = append(fields,
				observability.F("order_id", entity.ID),
				observability.F("order_status", string(entity.Status)),
			)
		}
		if len(warnings) > 0 {
			fields = append(fields, observability.F("stock_sync_warnings", len(warnings)))
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
	case strings.TrimSpace(cmd.CardToken) == "":
		outcome, statusText = "error", "CARD_TOKEN_REQUIRED"
		return nil, application.NewValidation("tokenized credit card is required")
	case strings.TrimSpace(cmd.AcceptanceToken) == "":
		outcome, statusText = "error", "ACCEPTANCE_TOKEN_REQUIRED"
		return nil, application.NewValidation("acceptance token is required")
	case strings.TrimSpace(cmd.PersonalAuthToken) == "":
		outcome, statusText = "error", "AUTH_TOKEN_REQUIRED"
		return nil, application.NewValidation("acceptance auth token is required")
	}

	id := cmd.ID
	if id == "" {
		id = uc.idGenerator.NewID()
	}
	entity, derr := domain.New(domain.Draft{
		ID:            id,
		UserID:        cmd.UserID,
		Address:       cmd.Address,
		CustomerEmail: cmd.CustomerEmail,
		Items:         cmd.Items,
		Total:         cmd.Total,
	})
	if derr != nil {
		outcome, statusText = "error", "ORDER_INVALID"
		return nil, application.WrapValidation(derr)
	}
	span.SetAttributes(
		attribute.String("order.id", entity.ID),
		attribute.String("order.total", entity.TotalPrice.String()),
	)
	logger = logger.With(observability.F("order_id", entity.ID))

	if cmd.ID != "" {
		switch _, gerr := uc.orders.Get(ctx, entity.ID); {
		case gerr == nil:
			outcome, statusText = "error", "ORDER_EXISTS"
			entity = nil
			return nil, fmt.Errorf("%w: %s", ErrConflict, id)
		case !errors.Is(gerr, domain.ErrNotFound):
			outcome, statusText = "error", "REPO_GET_FAILED"
			entity = nil
			return nil, fmt.Errorf("%w: %w", ErrRepository, gerr)
		}
	}

	p, payErr := uc.payment.Execute(ctx, apppayment.SubmitPaymentInput{
		OrderID:           entity.ID,
		Token:             cmd.CardToken,
		AcceptanceToken:   cmd.AcceptanceToken,
		PersonalAuthToken: cmd.PersonalAuthToken,
		CustomerEmail:     entity.CustomerEmail,
		Total:             entity.TotalPrice,
	})
	if errors.Is(payErr, application.ErrValidation) {
		outcome, statusText = "error", "PAYMENT_INVALID"
		entity = nil
		return nil, payErr
	}

	// From here on the attempt is committed; cancellation of the request must
	// not leave stock reduced without a stored order.
	detached := context.WithoutCancel(ctx)

	switch {
	case payErr == nil && p != nil && p.Approved():
		if err := entity.MarkCompleted(p.ID); err != nil {
			outcome, statusText = "error", "STATE_TRANSITION_FAILED"
			return nil, fmt.Errorf("order: complete: %w", err)
		}
		warnings = uc.reduceStock(detached, logger, entity)
		statusText = "ORDER_COMPLETED"
	default:
		paymentID, reason := "", ""
		if p != nil {
			paymentID, reason = p.ID, p.FailureReason
		}
		if reason == "" && payErr != nil {
			reason = payErr.Error()
		}
		if payErr != nil {
			logger.Warn("payment_attempt_failed", observability.F("error", payErr.Error()))
		}
		if err := entity.MarkFailed(paymentID, reason); err != nil {
			outcome, statusText = "error", "STATE_TRANSITION_FAILED"
			return nil, fmt.Errorf("order: fail: %w", err)
		}
		outcome, statusText = "failed", "ORDER_FAILED"
	}

	if p != nil && uc.payments != nil {
		if perr := uc.payments.Put(detached, p); perr != nil {
			logger.Error("payment_persist_failed",
				observability.F("payment_id", p.ID),
				observability.F("error", perr.Error()),
			)
		}
	}
	if perr := uc.orders.Create(detached, entity); perr != nil {
		if errors.Is(perr, domain.ErrConflict) {
			// A concurrent request with the same id stored its order first.
			outcome, statusText = "error", "ORDER_EXISTS"
			logger.Error("order_create_conflict",
				observability.F("payment_id", entity.PaymentID),
				observability.F("order_status", string(entity.Status)),
			)
			return nil, perr
		}
		outcome, statusText = "error", "REPO_PUT_FAILED"
		return nil, fmt.Errorf("%w: %w", ErrRepository, perr)
	}

	if entity.Status == domain.StatusCompleted {
		uc.publish(detached, logger, domain.NewOrderCompletedEvent(entity))
	} else {
		uc.publish(detached, logger, domain.NewOrderFailedEvent(entity))
	}

	span.SetAttributes(attribute.String("order.status", string(entity.Status)))
	return &CreateOrderResult{Order: entity, StockSyncWarnings: warnings}, nil
}

// reduceStock issues one REDUCE per cart line. Lines that did not apply are
// returned as warnings, and the retryable ones are handed to the retry worker.
func (uc *CreateOrderUseCase) reduceStock(ctx context.Context, logger observability.Logger, o *domain.Order) []StockSyncWarning {
	if uc.stock == nil {
		return nil
	}
	items := make([]dominventory.Adjustment, 0, len(o.Content))
	for _, line := range o.Content {
		items = append(items, dominventory.Adjustment{
			ProductID: line.ProductID,
			Magnitude: line.Quantity,
			Direction: dominventory.Reduce,
		})
	}

	res, err := uc.stock.Execute(ctx, items)
	if err == nil {
		return nil
	}

	var warnings []StockSyncWarning
	if res == nil {
		for _, it := range items {
			warnings = append(warnings, StockSyncWarning{ProductID: it.ProductID, Quantity: it.Magnitude, Reason: err.Error(), Retryable: errors.Is(err, dominventory.ErrTransient)})
		}
	} else {
		for _, f := range res.Failures {
			warnings = append(warnings, StockSyncWarning{ProductID: f.ProductID, Quantity: f.Magnitude, Reason: f.Reason, Retryable: f.Retryable})
		}
	}
	logger.Warn("stock_sync_incomplete",
		observability.F("failed_lines", len(warnings)),
		observability.F("error", err.Error()),
	)

	var retry []dominventory.Adjustment
	for _, w := range warnings {
		if w.Retryable {
			retry = append(retry, dominventory.Adjustment{ProductID: w.ProductID, Magnitude: w.Quantity, Direction: dominventory.Reduce})
		}
	}
	if len(retry) > 0 {
		uc.publish(ctx, logger, dominventory.NewStockSyncFailedEvent(o.ID, retry))
	}
	return warnings
}

func (uc *CreateOrderUseCase) publish(ctx context.Context, logger observability.Logger, e domoutbox.Event) {
	if uc.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	pubStart := time.Now()
	pubOutcome := "success"
	if err := uc.publisher.Publish(pubCtx, e); err != nil {
		pubOutcome = "error"
		logger.Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
	uc.extCounter.Add(1,
		observability.L("peer", publishPeer),
		observability.L("endpoint", e.EventName()),
		observability.L("outcome", pubOutcome),
	)
	uc.extHistogram.Observe(time.Since(pubStart).Seconds(),
		observability.L("peer", publishPeer),
		observability.L("endpoint", e.EventName()),
	)
}
