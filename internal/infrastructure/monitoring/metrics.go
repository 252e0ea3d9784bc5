package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

type DBMetrics struct {
	QueryDuration *prometheus.HistogramVec
}

type BusinessMetrics struct {
	CollectionsTotal  *prometheus.CounterVec
	AccrualRunsTotal  *prometheus.CounterVec
	AccrualDuration   prometheus.Histogram
	RemindersTotal    *prometheus.CounterVec
	EventsPublished   *prometheus.CounterVec
	ReceiptsProcessed *prometheus.CounterVec
}

var (
	HTTP = HTTPMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lending_http_requests_total",
				Help: "Total number of HTTP requests received.",
			},
			[]string{"method", "path", "code"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lending_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "code"},
		),
	}

	DB = DBMetrics{
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lending_db_query_duration_seconds",
				Help:    "Histogram of database query latencies.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_name", "status"},
		),
	}

	Business = BusinessMetrics{
		CollectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lending_collections_total",
				Help: "Total number of collection attempts by outcome.",
			},
			[]string{"status"},
		),
		AccrualRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lending_accrual_runs_total",
				Help: "Total number of accrual computations by caller and outcome.",
			},
			[]string{"caller", "status"},
		),
		AccrualDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lending_accrual_duration_seconds",
				Help:    "Histogram of accrual computation latencies.",
				Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
			},
		),
		RemindersTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lending_reminders_total",
				Help: "Total number of repayment reminder emails by outcome.",
			},
			[]string{"status"},
		),
		EventsPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lending_events_published_total",
				Help: "Total number of domain events published by routing key and outcome.",
			},
			[]string{"routing_key", "status"},
		),
		ReceiptsProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lending_receipts_processed_total",
				Help: "Total number of collection receipt messages consumed by outcome.",
			},
			[]string{"status"},
		),
	}
)

func RecordHTTPRequest(method, path, code string, duration time.Duration) {
	HTTP.RequestsTotal.WithLabelValues(method, path, code).Inc()
	HTTP.RequestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
}

func RecordDBQuery(queryName, status string, duration time.Duration) {
	DB.QueryDuration.WithLabelValues(queryName, status).Observe(duration.Seconds())
}

func RecordCollection(status string) {
	Business.CollectionsTotal.WithLabelValues(status).Inc()
}

// Accrual run outcomes. Every caller labels runs with one of these.
const (
	AccrualSuccess = "success"
	AccrualError   = "error"
)

// AccrualStatus maps the error returned by an accrual run to its label.
func AccrualStatus(err error) string {
	if err != nil {
		return AccrualError
	}
	return AccrualSuccess
}

func RecordAccrualRun(caller, status string, duration time.Duration) {
	Business.AccrualRunsTotal.WithLabelValues(caller, status).Inc()
	Business.AccrualDuration.Observe(duration.Seconds())
}

func RecordReminder(status string) {
	Business.RemindersTotal.WithLabelValues(status).Inc()
}

func RecordEventPublished(routingKey, status string) {
	Business.EventsPublished.WithLabelValues(routingKey, status).Inc()
}

func RecordReceiptProcessed(status string) {
	Business.ReceiptsProcessed.WithLabelValues(status).Inc()
}
