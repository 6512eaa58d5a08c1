package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/storefront/internal/application"
	domain "github.com/Zhima-Mochi/storefront/internal/domain/inventory"
	domoutbox "github.com/Zhima-Mochi/storefront/internal/domain/outbox"
	"github.com/Zhima-Mochi/storefront/internal/observability"
	"github.com/Zhima-Mochi/storefront/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	inventoryService   = "inventory-service"
	useCaseStockAdjust = "inventory.adjust_stock"
	spanPrefix         = "UC."
	publishTimeout     = 300 * time.Millisecond
)

var (
	ErrNotFound   = domain.ErrNotFound
	ErrRepository = errors.New("inventory: repository failure")
)

// AdjustStockUseCase applies signed stock deltas one product at a time. A failed
// item never aborts the batch and nothing is rolled back.
type AdjustStockUseCase struct {
	repo      domain.Repository
	policy    domain.FloorPolicy
	publisher domoutbox.Publisher
	tracer    observability.Tracer

	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
	itemCounter  observability.Counter // stock_adjustments_total{direction,outcome}
}

func NewAdjustStockUseCase(repo domain.Repository, policy domain.FloorPolicy, publisher domoutbox.Publisher, tel observability.Observability) *AdjustStockUseCase {
	logger, tracer, metrics := observability.Resolve(tel)
	if policy == "" {
		policy = domain.FloorAllow
	}
	return &AdjustStockUseCase{
		repo:         repo,
		policy:       policy,
		publisher:    publisher,
		tracer:       tracer,
		log:          logger.With(observability.F("service", inventoryService)),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
		itemCounter:  metrics.Counter(observability.MStockAdjustments),
	}
}

// Execute returns the partial result together with ErrPartialAdjustment when any item failed.
func (uc *AdjustStockUseCase) Execute(ctx context.Context, items []domain.Adjustment) (_ *domain.AdjustResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(observability.F("use_case", useCaseStockAdjust))

	ctx, span := uc.tracer.Start(ctx, spanPrefix+"AdjustStock",
		attribute.String("use_case", useCaseStockAdjust),
		attribute.Int("stock.items", len(items)),
		attribute.String("stock.floor_policy", string(uc.policy)),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	res := &domain.AdjustResult{Updated: make([]*domain.Product, 0, len(items))}

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
			observability.L("use_case", useCaseStockAdjust),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat, observability.L("use_case", useCaseStockAdjust))

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
			observability.F("items", len(items)),
			observability.F("updated", len(res.Updated)),
			observability.F("failed", len(res.Failures)),
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

	if len(items) == 0 {
		outcome, statusText = "error", "NO_ITEMS"
		return nil, application.NewValidation("at least one stock adjustment is required")
	}

	for _, item := range items {
		product, failure := uc.apply(ctx, item)
		if failure != nil {
			res.Failures = append(res.Failures, *failure)
			logger.Warn("stock_adjust_item_failed",
				observability.F("product_id", item.ProductID),
				observability.F("reason", failure.Reason),
			)
			continue
		}
		res.Updated = append(res.Updated, product)
		uc.publish(ctx, logger, domain.NewStockAdjustedEvent(product, item.Delta()))
	}

	if n := len(res.Failures); n > 0 {
		outcome, statusText = "error", "PARTIAL_FAILURE"
		return res, fmt.Errorf("%w: %d of %d items failed", domain.ErrPartialAdjustment, n, len(items))
	}
	return res, nil
}

func (uc *AdjustStockUseCase) apply(ctx context.Context, item domain.Adjustment) (*domain.Product, *domain.ItemFailure) {
	direction := string(item.Direction)
	if err := item.Validate(); err != nil {
		uc.itemCounter.Add(1, observability.L("direction", direction), observability.L("outcome", domain.FailureReasonInvalid))
		return nil, &domain.ItemFailure{Adjustment: item, Reason: err.Error()}
	}

	product, err := uc.repo.AddStock(ctx, item.ProductID, item.Delta(), uc.policy)
	if err == nil {
		uc.itemCounter.Add(1, observability.L("direction", direction), observability.L("outcome", "success"))
		return product, nil
	}

	failure := &domain.ItemFailure{Adjustment: item, Reason: err.Error()}
	label := domain.FailureReasonPersistenceError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		label = domain.FailureReasonNotFound
	case errors.Is(err, domain.ErrInsufficientStock):
		label = domain.FailureReasonInsufficientStock
	case errors.Is(err, domain.ErrTransient):
		// Only failures that provably left the counter untouched are replayed;
		// any other store error may have committed before the reply was lost.
		failure.Retryable = true
	}
	uc.itemCounter.Add(1, observability.L("direction", direction), observability.L("outcome", label))
	return nil, failure
}

func (uc *AdjustStockUseCase) publish(ctx context.Context, logger observability.Logger, e domoutbox.Event) {
	if uc.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := uc.publisher.Publish(pubCtx, e); err != nil {
		logger.Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
}
