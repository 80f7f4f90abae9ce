package queries

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the triage engine.
type Metrics struct {
	SubmitsTotal         *prometheus.CounterVec
	ClassificationsTotal *prometheus.CounterVec
	MutationsTotal       *prometheus.CounterVec
	EventsPublished      *prometheus.CounterVec
	ResponseMinutes      prometheus.Histogram
	ResolutionMinutes    prometheus.Histogram
}

// NewMetrics registers and returns engine metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SubmitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aqs_submits_total",
			Help: "Total query submissions by result.",
		}, []string{"result"}),
		ClassificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aqs_classifications_total",
			Help: "Total classifications by path (primary or fallback).",
		}, []string{"path"}),
		MutationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aqs_mutations_total",
			Help: "Total mutating engine operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aqs_events_published_total",
			Help: "Total lifecycle events handed to the notifier, by kind.",
		}, []string{"kind"}),
		ResponseMinutes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "aqs_first_response_minutes",
			Help:    "Minutes from intake to first agent response.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1m .. ~2048m
		}),
		ResolutionMinutes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "aqs_resolution_minutes",
			Help:    "Minutes from intake to resolution.",
			Buckets: prometheus.ExponentialBuckets(5, 2, 12), // 5m .. ~10240m
		}),
	}

	reg.MustRegister(
		m.SubmitsTotal,
		m.ClassificationsTotal,
		m.MutationsTotal,
		m.EventsPublished,
		m.ResponseMinutes,
		m.ResolutionMinutes,
	)

	return m
}
