package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes matchmaking counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	queueSize          prometheus.Gauge
	activeMatches      prometheus.Gauge
	matchesCreated     prometheus.Counter
	matchesDecided     *prometheus.CounterVec
	rejectedUpdates    *prometheus.CounterVec
	ratingPersistFails prometheus.Counter
	connections        prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		queueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quizduel",
			Name:      "queue_size",
			Help:      "Players waiting for an opponent.",
		}),
		activeMatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quizduel",
			Name:      "matches_in_registry",
			Help:      "Matches held in memory, including decided matches inside the grace window.",
		}),
		matchesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quizduel",
			Name:      "matches_created_total",
			Help:      "Matches created after a successful pairing.",
		}),
		matchesDecided: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizduel",
			Name:      "matches_decided_total",
			Help:      "Matches decided, by reason.",
		}, []string{"reason"}),
		rejectedUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizduel",
			Name:      "rejected_updates_total",
			Help:      "Client messages rejected by the match controller, by message type.",
		}, []string{"type"}),
		ratingPersistFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quizduel",
			Name:      "rating_persist_failures_total",
			Help:      "Rating writes that failed after a decision.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quizduel",
			Name:      "connections",
			Help:      "Open player connections.",
		}),
	}
	reg.MustRegister(
		m.queueSize,
		m.activeMatches,
		m.matchesCreated,
		m.matchesDecided,
		m.rejectedUpdates,
		m.ratingPersistFails,
		m.connections,
	)
	return m
}

func (m *Metrics) SetQueueSize(n int) {
	if m == nil {
		return
	}
	m.queueSize.Set(float64(n))
}

func (m *Metrics) SetMatches(n int) {
	if m == nil {
		return
	}
	m.activeMatches.Set(float64(n))
}

func (m *Metrics) MatchCreated() {
	if m == nil {
		return
	}
	m.matchesCreated.Inc()
}

func (m *Metrics) MatchDecided(reason string) {
	if m == nil {
		return
	}
	m.matchesDecided.WithLabelValues(reason).Inc()
}

func (m *Metrics) UpdateRejected(msgType string) {
	if m == nil {
		return
	}
	m.rejectedUpdates.WithLabelValues(msgType).Inc()
}

func (m *Metrics) RatingPersistFailed() {
	if m == nil {
		return
	}
	m.ratingPersistFails.Inc()
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}
