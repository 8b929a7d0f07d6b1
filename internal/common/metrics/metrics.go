// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transports that feed the analysis pipeline.
const (
	TransportHTTP   = "http"
	TransportWorker = "worker"
	TransportCLI    = "cli"
)

var (
	AnalysisRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_requests_total",
			Help: "Total number of analysis requests by transport and outcome",
		},
		[]string{"transport", "outcome"},
	)

	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analysis_request_duration_seconds",
			Help:    "Duration of analysis requests in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"transport"},
	)

	AnalysisInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "analysis_requests_in_flight",
			Help: "Number of analysis requests currently being processed",
		},
		[]string{"transport"},
	)

	GenAIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genai_requests_total",
			Help: "Total number of generative model calls by model and status",
		},
		[]string{"model", "status"},
	)

	GenAIDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "genai_request_duration_seconds",
			Help:    "Duration of generative model calls in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"model"},
	)
)

// Outcome labels analysis_requests_total. Success is "success"; failures use the error kind.
func Outcome(kind string) string {
	if kind == "" {
		return "success"
	}
	return kind
}

// ObserveAnalysis records one finished analysis request.
func ObserveAnalysis(transport, outcome string, seconds float64) {
	AnalysisRequests.WithLabelValues(transport, outcome).Inc()
	AnalysisDuration.WithLabelValues(transport).Observe(seconds)
}
