package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Zhima-Mochi/storefront/internal/application"
	appOrder "github.com/Zhima-Mochi/storefront/internal/application/order"
	appPayment "github.com/Zhima-Mochi/storefront/internal/application/payment"
	domainInventory "github.com/Zhima-Mochi/storefront/internal/domain/inventory"
	domainOrder "github.com/Zhima-Mochi/storefront/internal/domain/order"
	domainPayment "github.com/Zhima-Mochi/storefront/internal/domain/payment"
	domainUser "github.com/Zhima-Mochi/storefront/internal/domain/user"
	"github.com/Zhima-Mochi/storefront/internal/observability"
	"github.com/Zhima-Mochi/storefront/internal/observability/logctx"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	headerTenantID       = "X-Tenant-ID"
	maxBodyBytes         = 1 << 20
)

type OrderService interface {
	Create(ctx context.Context, in appOrder.CreateOrderInput) (*appOrder.CreateOrderResult, error)
	Get(ctx context.Context, id string) (*domainOrder.Order, error)
	List(ctx context.Context) ([]*domainOrder.Order, error)
	Update(ctx context.Context, id string, patch domainOrder.Patch) (*domainOrder.Order, error)
}

type PaymentService interface {
	Create(ctx context.Context, in appPayment.SubmitPaymentInput) (*domainPayment.Payment, error)
	Get(ctx context.Context, id string) (*domainPayment.Payment, error)
	List(ctx context.Context) ([]*domainPayment.Payment, error)
	AcceptanceTokens(ctx context.Context) (domainPayment.AcceptanceTokens, error)
}

type ProductService interface {
	Get(ctx context.Context, id string) (*domainInventory.Product, error)
	List(ctx context.Context) ([]*domainInventory.Product, error)
}

type StockAdjuster = application.UseCase[[]domainInventory.Adjustment, *domainInventory.AdjustResult]

type UserService interface {
	Get(ctx context.Context, id string) (*domainUser.User, error)
	List(ctx context.Context) ([]*domainUser.User, error)
}

// Services groups the application entry points served over HTTP. Nil
// members leave their routes unregistered.
type Services struct {
	Orders   OrderService
	Payments PaymentService
	Products ProductService
	Stock    StockAdjuster
	Users    UserService
}

type Handler struct {
	svc     Services
	metrics http.Handler
	log     observability.Logger
	tracer  trace.Tracer

	reqCounter   observability.Counter   // http_requests_total{method,route,status}
	durHistogram observability.Histogram // http_request_duration_seconds{method,route,status}
}

// NewHandler builds the HTTP surface. metricsHandler is mounted on /metrics when set.
func NewHandler(svc Services, metricsHandler http.Handler, tel observability.Observability) *Handler {
	logger, _, metrics := observability.Resolve(tel)
	return &Handler{
		svc:          svc,
		metrics:      metricsHandler,
		log:          logger.With(observability.F("component", componentHTTPHandler)),
		tracer:       otel.Tracer("storefront.http"),
		reqCounter:   metrics.Counter(observability.MHTTPRequests),
		durHistogram: metrics.Histogram(observability.MHTTPRequestDuration),
	}
}

func (h *Handler) Router() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("route not found"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	})

	// Trace → request logger → HTTP metrics → access log → handler
	r.Use(h.withTrace, ObservabilityMiddleware(h.log, headerValue(headerRequestID), headerValue(headerTenantID)), h.withHTTPMetrics, h.withAccessLog)

	if h.svc.Orders != nil {
		r.HandleFunc("/orders", h.handleCreateOrder).Methods(http.MethodPost)
		r.HandleFunc("/orders", h.handleListOrders).Methods(http.MethodGet)
		r.HandleFunc("/orders/{id}", h.handleGetOrder).Methods(http.MethodGet)
		r.HandleFunc("/orders/{id}", h.handleUpdateOrder).Methods(http.MethodPatch)
	}
	if h.svc.Payments != nil {
		r.HandleFunc("/payments", h.handleCreatePayment).Methods(http.MethodPost)
		r.HandleFunc("/payments", h.handleListPayments).Methods(http.MethodGet)
		r.HandleFunc("/payments/acceptance-tokens", h.handleAcceptanceTokens).Methods(http.MethodGet)
		r.HandleFunc("/payments/{id}", h.handleGetPayment).Methods(http.MethodGet)
	}
	if h.svc.Products != nil {
		r.HandleFunc("/products", h.handleListProducts).Methods(http.MethodGet)
		r.HandleFunc("/products/{id}", h.handleGetProduct).Methods(http.MethodGet)
	}
	if h.svc.Stock != nil {
		r.HandleFunc("/products", h.handleAdjustStock).Methods(http.MethodPatch)
	}
	if h.svc.Users != nil {
		r.HandleFunc("/users", h.handleListUsers).Methods(http.MethodGet)
		r.HandleFunc("/users/{id}", h.handleGetUser).Methods(http.MethodGet)
	}
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics).Methods(http.MethodGet)
	}
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeTemplate(r)),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		template := routeTemplate(r)

		ctx, span := h.tracer.Start(parentCtx,
			r.Method+" "+template,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", template),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(lrw, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", lrw.status))
		if lrw.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(lrw.status))
		}
	})
}

// withHTTPMetrics records RED-ish HTTP metrics using injected vectors.
func (h *Handler) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		labels := []observability.Label{
			observability.L("method", r.Method),
			observability.L("route", routeTemplate(r)),
			observability.L("status", strconv.Itoa(lrw.status)),
		}
		h.reqCounter.Add(1, labels...)
		h.durHistogram.Observe(time.Since(start).Seconds(), labels...)
	})
}

// routeTemplate returns the mux path template so labels stay low-cardinality.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unknown"
}

func headerValue(name string) func(*http.Request) string {
	return func(r *http.Request) string { return r.Header.Get(name) }
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return application.WrapValidation(fmt.Errorf("invalid request body: %w", err))
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, application.ErrValidation):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domainOrder.ErrNotFound),
		errors.Is(err, domainPayment.ErrNotFound),
		errors.Is(err, domainInventory.ErrNotFound),
		errors.Is(err, domainUser.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domainOrder.ErrConflict):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, domainPayment.ErrGateway):
		writeError(w, http.StatusBadGateway, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
