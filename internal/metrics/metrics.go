// Package metrics exposes Prometheus counters and histograms for the API.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "lectio_http_requests_total",
	Help: "Total number of HTTP requests labelled by path and status",
}, []string{"path", "status"})

var sourcesIngestedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "lectio_sources_ingested_total",
	Help: "Number of source ingestions (including re-ingestions)",
})

var queriesTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "lectio_retrieval_queries_total",
	Help: "Number of retrieval queries served",
})

var generationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "lectio_generations_total",
	Help: "Commentary generations labelled by persona and trigger (explicit or feedback)",
}, []string{"persona", "trigger"})

var feedbackTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "lectio_feedback_total",
	Help: "Feedback submissions received",
})

var generationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "lectio_generation_duration_seconds",
	Help:    "Wall time of commentary generation including the model call",
	Buckets: []float64{.5, 1, 2, 5, 10, 30, 60, 120},
})

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest counts one HTTP request.
func RecordRequest(path, status string) {
	httpRequestsTotal.WithLabelValues(path, status).Inc()
}

// RecordIngest counts one source ingestion.
func RecordIngest() {
	sourcesIngestedTotal.Inc()
}

// RecordQuery counts one retrieval query.
func RecordQuery() {
	queriesTotal.Inc()
}

// RecordGeneration counts one generation and observes its duration.
// trigger is "explicit" or "feedback".
func RecordGeneration(persona, trigger string, elapsed time.Duration) {
	generationsTotal.WithLabelValues(persona, trigger).Inc()
	generationDuration.Observe(elapsed.Seconds())
}

// RecordFeedback counts one feedback submission.
func RecordFeedback() {
	feedbackTotal.Inc()
}
