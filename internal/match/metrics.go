package match

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus collectors for the matchmaking engine.
type Metrics struct {
	Submissions    *prometheus.CounterVec
	ClaimConflicts prometheus.Counter
	Cancellations  prometheus.Counter
	Expirations    prometheus.Counter
}

// NewMetrics creates the collectors and registers them when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchmaking",
			Name:      "submissions_total",
			Help:      "Score submissions by outcome (waiting, completed, rejected, error).",
		}, []string{"outcome"}),
		ClaimConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "matchmaking",
			Name:      "claim_conflicts_total",
			Help:      "Lobby claims lost to a concurrent writer.",
		}),
		Cancellations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "matchmaking",
			Name:      "cancellations_total",
			Help:      "Lobbies cancelled by their creator.",
		}),
		Expirations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "matchmaking",
			Name:      "expirations_total",
			Help:      "Lobbies cancelled by the expiry sweep.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Submissions, m.ClaimConflicts, m.Cancellations, m.Expirations)
	}
	return m
}
