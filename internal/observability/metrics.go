package observability

const (
	MUsecaseRequests         MetricKey = "usecase_requests_total"
	MUsecaseDuration         MetricKey = "usecase_duration_seconds"
	MHTTPRequests            MetricKey = "http_requests_total"
	MHTTPRequestDuration     MetricKey = "http_request_duration_seconds"
	MExternalRequests        MetricKey = "external_requests_total"
	MExternalRequestDuration MetricKey = "external_request_duration_seconds"
	MPaymentPollAttempts     MetricKey = "payment_poll_attempts"
	MStockAdjustments        MetricKey = "stock_adjustments_total"
)

// MetricSpec describes how a MetricKey is registered with the metrics backend.
type MetricSpec struct {
	Key       MetricKey
	Help      string
	Labels    []string
	Buckets   []float64
	Histogram bool
}

// Catalog lists every metric the service emits.
func Catalog() []MetricSpec {
	return []MetricSpec{
		{Key: MUsecaseRequests, Help: "Total number of use case invocations.", Labels: []string{"use_case", "outcome"}},
		{Key: MUsecaseDuration, Help: "Duration of use case execution in seconds.", Labels: []string{"use_case"}, Histogram: true},
		{Key: MHTTPRequests, Help: "Total number of HTTP requests.", Labels: []string{"method", "route", "status"}},
		{Key: MHTTPRequestDuration, Help: "HTTP request latency in seconds.", Labels: []string{"method", "route", "status"}, Histogram: true},
		{Key: MExternalRequests, Help: "Calls made to external dependencies.", Labels: []string{"peer", "endpoint", "outcome"}},
		{Key: MExternalRequestDuration, Help: "Latency of calls to external dependencies in seconds.", Labels: []string{"peer", "endpoint"}, Histogram: true},
		{Key: MPaymentPollAttempts, Help: "Status queries needed to reach a terminal payment status.", Labels: []string{"status"}, Buckets: []float64{1, 2, 3, 5, 10, 20, 40, 60}, Histogram: true},
		{Key: MStockAdjustments, Help: "Stock adjustments applied per product item.", Labels: []string{"direction", "outcome"}},
	}
}
