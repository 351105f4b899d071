package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"sheetdrip/internal/domain"
)

// Metrics holds the Prometheus collectors for the automator. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	BatchesTotal     *prometheus.CounterVec
	URLsDelivered    prometheus.Counter
	DeliveryDuration prometheus.Histogram
	QueueItems       *prometheus.GaugeVec
	Running          prometheus.Gauge

	registry *prometheus.Registry
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		BatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sheetdrip_batches_total",
				Help: "Batches handed to the delivery interface, by outcome",
			},
			[]string{"outcome"},
		),
		URLsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sheetdrip_urls_delivered_total",
			Help: "URLs contained in successfully delivered batches",
		}),
		DeliveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sheetdrip_delivery_duration_seconds",
			Help:    "Duration of delivery calls",
			Buckets: prometheus.DefBuckets,
		}),
		QueueItems: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sheetdrip_queue_items",
				Help: "Queue items by status",
			},
			[]string{"status"},
		),
		Running: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sheetdrip_scheduler_running",
			Help: "1 while the scheduler run flag is set",
		}),
		registry: reg,
	}

	reg.MustRegister(
		m.BatchesTotal,
		m.URLsDelivered,
		m.DeliveryDuration,
		m.QueueItems,
		m.Running,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveBatch(outcome string, urls int, seconds float64) {
	if m == nil {
		return
	}
	m.BatchesTotal.WithLabelValues(outcome).Inc()
	m.DeliveryDuration.Observe(seconds)
	if outcome == "success" {
		m.URLsDelivered.Add(float64(urls))
	}
}

func (m *Metrics) SetRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.Running.Set(1)
		return
	}
	m.Running.Set(0)
}

func (m *Metrics) SetQueue(st domain.Stats) {
	if m == nil {
		return
	}
	m.QueueItems.WithLabelValues(string(domain.StatusPending)).Set(float64(st.Pending))
	m.QueueItems.WithLabelValues(string(domain.StatusProcessing)).Set(float64(st.Processing))
	m.QueueItems.WithLabelValues(string(domain.StatusCompleted)).Set(float64(st.Completed))
	m.QueueItems.WithLabelValues(string(domain.StatusFailed)).Set(float64(st.Failed))
}
