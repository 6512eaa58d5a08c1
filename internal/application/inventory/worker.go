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

const workerService = "inventory_worker"

type WorkerConfig struct {
	// RetryEnabled replays failed stock syncs of completed orders once.
	RetryEnabled bool
	// Sink and Topic forward stock change events out of the process when both are set.
	Sink  domoutbox.Sink
	Topic string
}

type Worker struct {
	subscriber domoutbox.Subscriber
	useCase    application.UseCase[[]domain.Adjustment, *domain.AdjustResult]
	cfg        WorkerConfig
	tracer     observability.Tracer

	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
}

func NewWorker(
	subscriber domoutbox.Subscriber,
	useCase application.UseCase[[]domain.Adjustment, *domain.AdjustResult],
	cfg WorkerConfig,
	tel observability.Observability,
) *Worker {
	logger, tracer, metrics := observability.Resolve(tel)
	return &Worker{
		subscriber:   subscriber,
		useCase:      useCase,
		cfg:          cfg,
		tracer:       tracer,
		log:          logger.With(observability.F("service", workerService)),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil {
		return
	}
	if w.cfg.RetryEnabled && w.useCase != nil {
		w.subscriber.Subscribe(domain.StockSyncFailedEvent{}.EventName(), w.handleStockSyncFailed)
	}
	if w.cfg.Sink != nil && w.cfg.Topic != "" {
		w.subscriber.Subscribe(domain.StockAdjustedEvent{}.EventName(), w.handleStockAdjusted)
	}
}

func (w *Worker) handleStockSyncFailed(ctx context.Context, e domoutbox.Event) error {
	const useCase = "inventory.worker.stock_sync_retry"
	evt, ok := e.(domain.StockSyncFailedEvent)
	if !ok || len(evt.Items) == 0 {
		w.count(useCase, "ignored")
		return nil
	}

	ctx, span := w.tracer.Start(ctx, spanPrefix+"StockSyncRetry",
		attribute.String("use_case", useCase),
		attribute.String("event", e.EventName()),
		attribute.String("order.id", evt.OrderID),
	)
	start := time.Now()
	outcome, status := "success", "OK"
	var stillFailing int

	logger := w.eventLogger(ctx, useCase, e).With(observability.F("order_id", evt.OrderID))
	ctx = logctx.With(ctx, logger)

	defer func() {
		lat := time.Since(start).Seconds()
		w.observe(useCase, outcome, lat)

		logger.Info("use_case_done",
			observability.F("outcome", outcome),
			observability.F("status", status),
			observability.F("latency_seconds", lat),
			observability.F("items", len(evt.Items)),
			observability.F("still_failing", stillFailing),
		)
		if outcome == "error" {
			span.SetStatus(codes.Error, status)
		} else {
			span.SetStatus(codes.Ok, status)
		}
		span.End()
	}()

	res, err := w.useCase.Execute(ctx, evt.Items)
	if err != nil {
		outcome, status = "error", "RETRY_FAILED"
		if res != nil {
			stillFailing = len(res.Failures)
		}
		if errors.Is(err, domain.ErrPartialAdjustment) {
			status = "RETRY_PARTIAL"
		}
		return fmt.Errorf("worker: stock sync retry for order %s: %w", evt.OrderID, err)
	}
	return nil
}

func (w *Worker) handleStockAdjusted(ctx context.Context, e domoutbox.Event) error {
	const useCase = "inventory.worker.relay"
	ctx, span := w.tracer.Start(ctx, spanPrefix+"RelayStockEvent",
		attribute.String("use_case", useCase),
		attribute.String("event", e.EventName()),
		attribute.String("messaging.destination", w.cfg.Topic),
	)
	start := time.Now()
	outcome, status := "success", "OK"
	logger := w.eventLogger(ctx, useCase, e)

	defer func() {
		lat := time.Since(start).Seconds()
		w.observe(useCase, outcome, lat)
		logger.Debug("use_case_done",
			observability.F("outcome", outcome),
			observability.F("status", status),
			observability.F("latency_seconds", lat),
		)
		if outcome == "error" {
			span.SetStatus(codes.Error, status)
		} else {
			span.SetStatus(codes.Ok, status)
		}
		span.End()
	}()

	if err := w.cfg.Sink.Send(ctx, w.cfg.Topic, domoutbox.KeyOf(e), e); err != nil {
		outcome, status = "error", "SINK_SEND_FAILED"
		span.RecordError(err)
		return fmt.Errorf("worker: relay %s: %w", e.EventName(), err)
	}
	return nil
}

func (w *Worker) eventLogger(ctx context.Context, useCase string, e domoutbox.Event) observability.Logger {
	logger := logctx.FromOr(ctx, w.log).With(
		observability.F("use_case", useCase),
		observability.F("event", e.EventName()),
	)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		logger = logger.With(
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	return logger
}

func (w *Worker) count(useCase, outcome string) {
	w.reqCounter.Add(1,
		observability.L("use_case", useCase),
		observability.L("outcome", outcome),
	)
}

func (w *Worker) observe(useCase string, outcome string, latencySeconds float64) {
	w.count(useCase, outcome)
	w.durHistogram.Observe(latencySeconds, observability.L("use_case", useCase))
}
