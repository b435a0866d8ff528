// Package metrics exposes Prometheus collectors for bookings, conversations
// and Telegram updates, plus the ops HTTP endpoint that serves them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/m3rciful/fitbot/core/telegram/state"
)

// Collector records domain and transport metrics.
type Collector struct {
	reserveTotal    *prometheus.CounterVec
	releaseTotal    *prometheus.CounterVec
	reserveDuration prometheus.Histogram
	transitions     *prometheus.CounterVec
	sessionsExpired prometheus.Counter
	updates         *prometheus.CounterVec

	reg prometheus.Registerer
}

// NewCollector creates the collectors and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		reserveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fitbot_reserve_total",
			Help: "Reserve attempts by outcome.",
		}, []string{"outcome"}),
		releaseTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fitbot_release_total",
			Help: "Release attempts by outcome.",
		}, []string{"outcome"}),
		reserveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fitbot_reserve_duration_seconds",
			Help:    "Latency of the reserve transaction.",
			Buckets: prometheus.DefBuckets,
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fitbot_conversation_transitions_total",
			Help: "Conversation state changes.",
		}, []string{"from", "to"}),
		sessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fitbot_sessions_expired_total",
			Help: "Conversation sessions dropped after the idle timeout.",
		}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fitbot_updates_total",
			Help: "Telegram updates by kind and handler status.",
		}, []string{"kind", "status"}),
		reg: reg,
	}

	reg.MustRegister(
		c.reserveTotal,
		c.releaseTotal,
		c.reserveDuration,
		c.transitions,
		c.sessionsExpired,
		c.updates,
	)
	return c
}

// ObserveReserve records one reserve attempt.
func (c *Collector) ObserveReserve(outcome string, took time.Duration) {
	c.reserveTotal.WithLabelValues(outcome).Inc()
	c.reserveDuration.Observe(took.Seconds())
}

// ObserveRelease records one release attempt.
func (c *Collector) ObserveRelease(outcome string, _ time.Duration) {
	c.releaseTotal.WithLabelValues(outcome).Inc()
}

// Transition counts a conversation state change.
func (c *Collector) Transition(from, to state.State) {
	c.transitions.WithLabelValues(string(from), string(to)).Inc()
}

// SessionExpired counts an idle session drop.
func (c *Collector) SessionExpired() {
	c.sessionsExpired.Inc()
}

// ObserveUpdate counts a handled Telegram update.
func (c *Collector) ObserveUpdate(kind string, err error) {
	status := "ok"
	if err != nil {
		status = "fail"
	}
	c.updates.WithLabelValues(kind, status).Inc()
}

// SenderStats is the view of the outbound dispatcher exported as gauges.
type SenderStats interface {
	Pending() int
	SentCount() uint64
	ErrorCount() uint64
}

// RegisterSender exports the dispatcher queue depth and delivery counters.
func (c *Collector) RegisterSender(s SenderStats) {
	c.reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "fitbot_sender_queue_depth",
			Help: "Outbound messages waiting in the dispatcher queue.",
		}, func() float64 { return float64(s.Pending()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "fitbot_sender_sent_total",
			Help: "Outbound messages delivered.",
		}, func() float64 { return float64(s.SentCount()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "fitbot_sender_errors_total",
			Help: "Outbound messages that failed after retries.",
		}, func() float64 { return float64(s.ErrorCount()) }),
	)
}
