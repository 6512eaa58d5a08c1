package prometrics

import (
	"sync"

	"github.com/Zhima-Mochi/storefront/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
)

// Registry implements observability.Metrics on top of prometheus vectors.
// Unknown keys resolve to no-op instruments.
type Registry struct {
	mu         sync.RWMutex
	counters   map[observability.MetricKey]*prometheus.CounterVec
	histograms map[observability.MetricKey]*prometheus.HistogramVec
	namespace  string
	subsystem  string
	reg        prometheus.Registerer
}

// New creates a Registry and registers every metric from specs with reg.
// A nil reg falls back to prometheus.DefaultRegisterer.
func New(namespace, subsystem string, reg prometheus.Registerer, specs ...observability.MetricSpec) (*Registry, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Registry{
		counters:   make(map[observability.MetricKey]*prometheus.CounterVec),
		histograms: make(map[observability.MetricKey]*prometheus.HistogramVec),
		namespace:  namespace,
		subsystem:  subsystem,
		reg:        reg,
	}
	for _, spec := range specs {
		if err := r.register(spec); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) register(spec observability.MetricSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if spec.Histogram {
		if _, ok := r.histograms[spec.Key]; ok {
			return nil
		}
		buckets := spec.Buckets
		if len(buckets) == 0 {
			buckets = prometheus.DefBuckets
		}
		hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: r.namespace, Subsystem: r.subsystem, Name: string(spec.Key), Help: spec.Help, Buckets: buckets,
		}, spec.Labels)
		if err := r.reg.Register(hv); err != nil {
			return err
		}
		r.histograms[spec.Key] = hv
		return nil
	}

	if _, ok := r.counters[spec.Key]; ok {
		return nil
	}
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace, Subsystem: r.subsystem, Name: string(spec.Key), Help: spec.Help,
	}, spec.Labels)
	if err := r.reg.Register(cv); err != nil {
		return err
	}
	r.counters[spec.Key] = cv
	return nil
}

func (r *Registry) Counter(name observability.MetricKey) observability.Counter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.counters[name]; ok {
		return &counter{v: v}
	}
	return observability.NopCounter()
}

func (r *Registry) Histogram(name observability.MetricKey) observability.Histogram {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.histograms[name]; ok {
		return &histogram{v: v}
	}
	return observability.NopHistogram()
}

type counter struct{ v *prometheus.CounterVec }

func (c *counter) Add(d float64, labels ...observability.Label) {
	m, err := c.v.GetMetricWith(labelMap(labels))
	if err != nil {
		return
	}
	m.Add(d)
}

type histogram struct{ v *prometheus.HistogramVec }

func (h *histogram) Observe(v float64, labels ...observability.Label) {
	m, err := h.v.GetMetricWith(labelMap(labels))
	if err != nil {
		return
	}
	m.Observe(v)
}

func labelMap(ls []observability.Label) prometheus.Labels {
	m := make(prometheus.Labels, len(ls))
	for _, l := range ls {
		m[l.Key] = l.Value
	}
	return m
}
