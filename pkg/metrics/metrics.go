package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// HistogramBuckets are request latency buckets in milliseconds.
var HistogramBuckets = []float64{
	// --- Fast responses (0 - 500ms) ---
	5, 10, 25, 50, 75, 100, 150, 200, 300, 400, 500,

	// --- Slow responses (500ms - 5s) ---
	750, 1000, 1500, 2000, 3000, 5000,
}

// Metric is a definition for the name, description, type, ID, and
// prometheus.Collector type (i.e. CounterVec, Summary, etc) of each metric
type Metric struct {
	MetricCollector prometheus.Collector
	ID              string
	Name            string
	Description     string
	Type            string
	Args            []string
	// Buckets overrides HistogramBuckets for histogram types.
	Buckets []float64
}

func (m *Metric) buckets() []float64 {
	if len(m.Buckets) > 0 {
		return m.Buckets
	}
	return HistogramBuckets
}

// NewMetric associates prometheus.Collector based on Metric.Type
func NewMetric(m *Metric, subsystem string) prometheus.Collector {
	var metric prometheus.Collector
	switch m.Type {
	case "counter_vec":
		metric = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
			m.Args,
		)
	case "counter":
		metric = prometheus.NewCounter(
			prometheus.CounterOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
		)
	case "gauge":
		metric = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
		)
	case "histogram_vec":
		metric = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
				Buckets:   m.buckets(),
			},
			m.Args,
		)
	case "histogram":
		metric = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
				Buckets:   m.buckets(),
			},
		)
	}
	return metric
}

// Register builds the collector for m and registers it with reg. A collector
// that is already registered is reused, so constructors may run more than once
// per process. A nil reg returns an unregistered collector.
func Register(reg prometheus.Registerer, m *Metric, subsystem string) prometheus.Collector {
	c := NewMetric(m, subsystem)
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}

func Counter(reg prometheus.Registerer, m *Metric) prometheus.Counter {
	return Register(reg, m, "").(prometheus.Counter)
}

func CounterVec(reg prometheus.Registerer, m *Metric) *prometheus.CounterVec {
	return Register(reg, m, "").(*prometheus.CounterVec)
}

func Histogram(reg prometheus.Registerer, m *Metric) prometheus.Histogram {
	return Register(reg, m, "").(prometheus.Histogram)
}

// Pipeline metrics.
var (
	PaymentsCreated = &Metric{
		ID:          "paymentsCreated",
		Name:        "payments_created_total",
		Description: "Total number of payments initiated",
		Type:        "counter",
	}
	PaymentProcessDuration = &Metric{
		ID:          "paymentProcessDuration",
		Name:        "payment_process_duration_seconds",
		Description: "Time taken to process payment lifecycle",
		Type:        "histogram",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5},
	}
	PaymentsValidated = &Metric{
		ID:          "paymentsValidated",
		Name:        "payments_validated_total",
		Description: "Total number of payments validated",
		Type:        "counter",
	}
	PaymentsFlagged = &Metric{
		ID:          "paymentsFlagged",
		Name:        "payments_flagged_total",
		Description: "Total number of payments flagged for fraud",
		Type:        "counter",
	}
	PaymentsSettled = &Metric{
		ID:          "paymentsSettled",
		Name:        "payments_settled_total",
		Description: "Total number of payments settled",
		Type:        "counter",
	}
	WorkerCycles = &Metric{
		ID:          "workerCycles",
		Name:        "worker_cycles_total",
		Description: "Polling cycles run by the worker, partitioned by outcome.",
		Type:        "counter_vec",
		Args:        []string{"worker", "outcome"},
	}
	WorkerTicksSkipped = &Metric{
		ID:          "workerTicksSkipped",
		Name:        "worker_ticks_skipped_total",
		Description: "Timer ticks skipped because the previous cycle was still running.",
		Type:        "counter_vec",
		Args:        []string{"worker"},
	}
)

const (
	RefererKey = "X-Referer"
)

func defaultRegisterer() prometheus.Registerer { return prometheus.DefaultRegisterer }

var Module = fx.Options(
	fx.Provide(defaultRegisterer),
	fx.Invoke(runServer),
)
