// Package metrics holds the Prometheus collectors for governance commands.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use through a nil pointer; every recorder is a no-op then.
type Metrics struct {
	Registry      *prometheus.Registry
	commands      *prometheus.CounterVec
	votes         *prometheus.CounterVec
	ideaOutcomes  *prometheus.CounterVec
	reviews       *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexus",
			Name:      "commands_total",
			Help:      "Commands executed, by name and result.",
		}, []string{"command", "result"}),
		votes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexus",
			Name:      "votes_total",
			Help:      "Votes accepted, by type.",
		}, []string{"type"}),
		ideaOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexus",
			Name:      "idea_outcomes_total",
			Help:      "Ideas leaving the voting state, by resulting status.",
		}, []string{"status"}),
		reviews: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexus",
			Name:      "discovery_reviews_total",
			Help:      "Discovery reviews, by decision.",
		}, []string{"decision"}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexus",
			Name:      "notifications_total",
			Help:      "System notifications posted, by channel and result.",
		}, []string{"channel", "result"}),
	}
}

func (m *Metrics) Command(name string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.commands.WithLabelValues(name, result).Inc()
}

func (m *Metrics) Vote(voteType string) {
	if m == nil {
		return
	}
	m.votes.WithLabelValues(voteType).Inc()
}

func (m *Metrics) IdeaOutcome(status string) {
	if m == nil {
		return
	}
	m.ideaOutcomes.WithLabelValues(status).Inc()
}

func (m *Metrics) Review(decision string) {
	if m == nil {
		return
	}
	m.reviews.WithLabelValues(decision).Inc()
}

func (m *Metrics) Notification(channel string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.notifications.WithLabelValues(channel, result).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
