package order

import (
	"context"
	"fmt"
	"time"

	domorder "github.com/Zhima-Mochi/storefront/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/storefront/internal/domain/outbox"
	"github.com/Zhima-Mochi/storefront/internal/observability"
	"github.com/Zhima-Mochi/storefront/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const workerService = "order-worker"

// Worker relays order lifecycle events from the in-process bus to a broker.
type Worker struct {
	subscriber domoutbox.Subscriber
	sink       domoutbox.Sink
	topic      string
	tracer     observability.Tracer

	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
}

func NewWorker(subscriber domoutbox.Subscriber, sink domoutbox.Sink, topic string, tel observability.Observability) *Worker {
	logger, tracer, metrics := observability.Resolve(tel)
	return &Worker{
		subscriber:   subscriber,
		sink:         sink,
		topic:        topic,
		tracer:       tracer,
		log:          logger.With(observability.F("service", workerService)),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.sink == nil || w.topic == "" {
		return
	}
	w.subscriber.Subscribe(domorder.OrderCompletedEvent{}.EventName(), w.handleLifecycleEvent)
	w.subscriber.Subscribe(domorder.OrderFailedEvent{}.EventName(), w.handleLifecycleEvent)
}

func (w *Worker) handleLifecycleEvent(ctx context.Context, e domoutbox.Event) error {
	const useCase = "order.worker.relay"
	key := domoutbox.KeyOf(e)

	ctx, span := w.tracer.Start(ctx, spanPrefix+"RelayOrderEvent",
		attribute.String("use_case", useCase),
		attribute.String("event", e.EventName()),
		attribute.String("messaging.destination", w.topic),
		attribute.String("order.id", key),
	)
	start := time.Now()
	outcome, status := "success", "OK"

	logger := logctx.FromOr(ctx, w.log).With(
		observability.F("use_case", useCase),
		observability.F("event", e.EventName()),
		observability.F("order_id", key),
	)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		logger = logger.With(
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}

	defer func() {
		lat := time.Since(start).Seconds()
		w.reqCounter.Add(1,
			observability.L("use_case", useCase),
			observability.L("outcome", outcome),
		)
		w.durHistogram.Observe(lat, observability.L("use_case", useCase))

		logger.Info("use_case_done",
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

	if err := w.sink.Send(ctx, w.topic, key, e); err != nil {
		outcome, status = "error", "SINK_SEND_FAILED"
		span.RecordError(err)
		return fmt.Errorf("worker: relay %s: %w", e.EventName(), err)
	}
	return nil
}
