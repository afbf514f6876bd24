package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	reportsAccepted *prometheus.CounterVec
	reportsRejected *prometheus.CounterVec
	anomaliesTotal  *prometheus.CounterVec
	patternsTotal   prometheus.Counter
	alertsTotal     *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	lastPrice       *prometheus.GaugeVec
	latency         *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		reportsAccepted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mandiwatch_reports_accepted_total",
				Help: "Total number of accepted reports and snapshots",
			},
			[]string{"source", "commodity"},
		),
		reportsRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mandiwatch_reports_rejected_total",
				Help: "Total number of rejected reports and snapshots",
			},
			[]string{"source", "reason"},
		),
		anomaliesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mandiwatch_anomalies_total",
				Help: "Total number of detected price anomalies",
			},
			[]string{"severity"},
		),
		patternsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mandiwatch_stockpiling_patterns_total",
				Help: "Total number of detected stockpiling patterns",
			},
		),
		alertsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mandiwatch_alerts_total",
				Help: "Alert dispatch outcomes",
			},
			[]string{"result"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mandiwatch_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mandiwatch_last_price",
				Help: "Last aggregated price for a commodity and region",
			},
			[]string{"commodity", "region"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mandiwatch_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordReportAccepted records an accepted report or snapshot.
func (r *Recorder) RecordReportAccepted(source, commodity string) {
	r.reportsAccepted.WithLabelValues(source, commodity).Inc()
}

// RecordReportRejected records a rejected report or snapshot.
func (r *Recorder) RecordReportRejected(source, reason string) {
	r.reportsRejected.WithLabelValues(source, reason).Inc()
}

// RecordAnomaly records a detected anomaly by severity.
func (r *Recorder) RecordAnomaly(severity string) {
	r.anomaliesTotal.WithLabelValues(severity).Inc()
}

// RecordPattern records a detected stockpiling pattern.
func (r *Recorder) RecordPattern() {
	r.patternsTotal.Inc()
}

// RecordAlert records an alert dispatch outcome.
func (r *Recorder) RecordAlert(result string) {
	r.alertsTotal.WithLabelValues(result).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the latest aggregate price for a key.
func (r *Recorder) RecordLastPrice(commodity, region string, price float64) {
	r.lastPrice.WithLabelValues(commodity, region).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
