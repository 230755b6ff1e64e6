// Package metrics exports engine counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/osa030/hideseek/internal/app/notification"
	"github.com/osa030/hideseek/internal/app/scheduler"
	"github.com/osa030/hideseek/internal/app/session"
	"github.com/osa030/hideseek/internal/domain/game"
)

const namespace = "hideseek"

// Metrics observes the scheduler, the session manager and the notification
// gateway.
type Metrics struct {
	registry *prometheus.Registry

	transitions      *prometheus.CounterVec
	transitionErrors *prometheus.CounterVec
	triggers         *prometheus.CounterVec
	triggerLatency   *prometheus.HistogramVec
	pendingTriggers  prometheus.Gauge
	notifications    *prometheus.CounterVec
	dropped          *prometheus.CounterVec
}

var (
	_ scheduler.Observer    = (*Metrics)(nil)
	_ session.Observer      = (*Metrics)(nil)
	_ notification.Observer = (*Metrics)(nil)
)

// New creates the collectors on a fresh registry together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Committed phase transitions.",
		}, []string{"from", "to", "mode"}),
		transitionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transition_errors_total",
			Help:      "Refused or failed phase transitions.",
		}, []string{"to", "mode", "reason"}),
		triggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "triggers_total",
			Help:      "Trigger events by kind.",
		}, []string{"event"}),
		triggerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "trigger_duration_seconds",
			Help:      "Time spent executing fired triggers.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"target"}),
		pendingTriggers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "pending_triggers",
			Help:      "Armed triggers that have not fired.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "delivered_total",
			Help:      "Delivered notifications.",
		}, []string{"kind"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "dropped_total",
			Help:      "Dropped notifications.",
		}, []string{"kind", "reason"}),
	}
	reg.MustRegister(
		m.transitions,
		m.transitionErrors,
		m.triggers,
		m.triggerLatency,
		m.pendingTriggers,
		m.notifications,
		m.dropped,
	)
	return m
}

// WatchBacklog exports the number of fired triggers waiting for a worker,
// read from backlog at scrape time.
func (m *Metrics) WatchBacklog(backlog func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "backlog",
		Help:      "Fired triggers waiting for a worker.",
	}, func() float64 {
		return float64(backlog())
	}))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Transitioned implements session.Observer.
func (m *Metrics) Transitioned(from, to game.Status, mode game.Mode) {
	m.transitions.WithLabelValues(from.String(), to.String(), mode.String()).Inc()
}

// TransitionFailed implements session.Observer.
func (m *Metrics) TransitionFailed(target game.Status, mode game.Mode, err error) {
	m.transitionErrors.WithLabelValues(target.String(), mode.String(), Reason(err)).Inc()
}

// Armed implements scheduler.Observer.
func (m *Metrics) Armed(t scheduler.Trigger) {
	m.triggers.WithLabelValues("armed").Inc()
	m.pendingTriggers.Inc()
}

// Cancelled implements scheduler.Observer.
func (m *Metrics) Cancelled(t scheduler.Trigger) {
	m.triggers.WithLabelValues("cancelled").Inc()
	m.pendingTriggers.Dec()
}

// Fired implements scheduler.Observer.
func (m *Metrics) Fired(t scheduler.Trigger, err error, elapsed time.Duration) {
	event := "fired"
	if err != nil {
		event = "failed"
	}
	m.triggers.WithLabelValues(event).Inc()
	m.pendingTriggers.Dec()
	m.triggerLatency.WithLabelValues(t.Target.String()).Observe(elapsed.Seconds())
}

// Delivered implements notification.Observer.
func (m *Metrics) Delivered(kind string) {
	m.notifications.WithLabelValues(kind).Inc()
}

// Dropped implements notification.Observer.
func (m *Metrics) Dropped(kind, reason string) {
	m.dropped.WithLabelValues(kind, reason).Inc()
}

// Reason maps an error to a low cardinality label.
func Reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, game.ErrAutomationDisabled):
		return "automation_disabled"
	case errors.Is(err, game.ErrInsufficientParticipants):
		return "insufficient_participants"
	case errors.Is(err, game.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, game.ErrConcurrency):
		return "concurrency"
	case errors.Is(err, game.ErrNotFound):
		return "not_found"
	case errors.Is(err, game.ErrState):
		return "state"
	case errors.Is(err, game.ErrValidation):
		return "validation"
	default:
		return "internal"
	}
}
