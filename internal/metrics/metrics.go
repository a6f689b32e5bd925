package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the application.
// It covers the HTTP API, the exhaustive-scan fallback, bulk status
// mutations, report generation and bot activity.
type Metrics struct {
	APIRequestDuration *prometheus.HistogramVec // Histogram of API request durations
	ScanPages          prometheus.Histogram     // Pages fetched per exhaustive scan
	ScanLimitHits      prometheus.Counter       // Scans that hit the page ceiling
	StatusMutations    *prometheus.CounterVec   // Counter for billing/payment mutations
	ReportGeneration   *prometheus.HistogramVec // Histogram for report generation durations
	CommandReceived    *prometheus.CounterVec   // Counter for received bot commands
	SentMessages       *prometheus.CounterVec   // Counter for sent bot messages
}

// NewMetrics creates a new Metrics instance with the provided Prometheus Registerer.
// It initializes the counters and histograms used across the server and the bot.
//
// Parameters:
//   - reg: A Prometheus Registerer used to register the metrics.
//
// Returns:
//   - A pointer to the newly created Metrics instance.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		APIRequestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tasklens_api_request_duration_seconds",
			Help:    "Duration of API requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		ScanPages: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "tasklens_scan_pages",
			Help:    "Number of pages fetched per exhaustive scan.",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		ScanLimitHits: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "tasklens_scan_limit_hits_total",
			Help: "Total number of exhaustive scans stopped at the page ceiling.",
		}),
		StatusMutations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "tasklens_status_mutations_total",
			Help: "Total number of billing and payment status mutations.",
		}, []string{"kind"}), // kind: billing, payment
		ReportGeneration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name: "tasklens_report_generation_duration_seconds",
			Help: "Duration of report excel generation.",
		}, []string{"scope"}), // scope: all, project
		CommandReceived: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "tasklens_bot_commands_received_total",
			Help: "Total number of used bot commands",
		}, []string{"command"}),
		SentMessages: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "tasklens_bot_messages_sent_total",
			Help: "Output bot activity",
		}, []string{"type"}), // type: text, edit, document, error
	}
}
