package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)
)

var (
	// IntakeSubmissions counts public questionnaire submissions by
	// outcome: ok, not_found, malformed_definition, validation, error.
	IntakeSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_submissions_total",
			Help: "Public questionnaire submissions by outcome",
		},
		[]string{"outcome"},
	)

	// IntakeDedupRaces counts duplicate-insert collisions on the client
	// email index that were recovered by re-reading the winning row.
	IntakeDedupRaces = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "intake_dedup_races_total",
			Help: "Recovered concurrent client-create collisions",
		},
	)

	// IntakeClientsCreated counts clients created implicitly by intake.
	IntakeClientsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "intake_clients_created_total",
			Help: "Clients created by first-time submissions",
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(IntakeSubmissions)
	prometheus.MustRegister(IntakeDedupRaces)
	prometheus.MustRegister(IntakeClientsCreated)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
