// Package metrics exposes client-side Prometheus collectors. A nil *Metrics
// is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "blogify"

// Metrics holds the collectors and the registry they are registered on.
type Metrics struct {
	registry *prometheus.Registry

	interactions       *prometheus.CounterVec
	fetchesSuperseded  *prometheus.CounterVec
	fetchesFailed      *prometheus.CounterVec
	realtimeState      prometheus.Gauge
	reconnects         prometheus.Counter
	notifications      *prometheus.CounterVec
	noticesPublished   *prometheus.CounterVec
	retentionDeletions prometheus.Counter
}

// New creates the collectors on a dedicated registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		interactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interactions_total",
			Help:      "Interaction reducer invocations by kind and result.",
		}, []string{"kind", "result"}),
		fetchesSuperseded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_superseded_total",
			Help:      "Fetch responses discarded because a newer request owned the slot.",
		}, []string{"slot"}),
		fetchesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_failed_total",
			Help:      "Fetches that ended in the failed state.",
		}, []string{"slot"}),
		realtimeState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_state",
			Help:      "Realtime channel state: 0 disconnected, 1 connecting, 2 connected.",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_dials_total",
			Help:      "Realtime channel connection attempts.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_received_total",
			Help:      "Notifications received by source and whether they were new.",
		}, []string{"source", "outcome"}),
		noticesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notices_published_total",
			Help:      "Transient notices shown to the viewer by severity.",
		}, []string{"severity"}),
		retentionDeletions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbox_retention_deleted_total",
			Help:      "Notification rows removed by the retention job.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.interactions,
		m.fetchesSuperseded,
		m.fetchesFailed,
		m.realtimeState,
		m.reconnects,
		m.notifications,
		m.noticesPublished,
		m.retentionDeletions,
	)
	return m
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Interaction counts one reducer invocation.
func (m *Metrics) Interaction(kind, result string) {
	if m == nil {
		return
	}
	m.interactions.WithLabelValues(kind, result).Inc()
}

// FetchSuperseded counts a discarded fetch response.
func (m *Metrics) FetchSuperseded(slot string) {
	if m == nil {
		return
	}
	m.fetchesSuperseded.WithLabelValues(slot).Inc()
}

// FetchFailed counts a failed fetch.
func (m *Metrics) FetchFailed(slot string) {
	if m == nil {
		return
	}
	m.fetchesFailed.WithLabelValues(slot).Inc()
}

// RealtimeState records the channel state as its ordinal.
func (m *Metrics) RealtimeState(state int) {
	if m == nil {
		return
	}
	m.realtimeState.Set(float64(state))
}

// RealtimeDial counts a connection attempt.
func (m *Metrics) RealtimeDial() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

// NotificationReceived counts a notification from source ("live" or
// "history"). isNew is false for duplicates.
func (m *Metrics) NotificationReceived(source string, isNew bool) {
	if m == nil {
		return
	}
	outcome := "duplicate"
	if isNew {
		outcome = "new"
	}
	m.notifications.WithLabelValues(source, outcome).Inc()
}

// NoticePublished counts a notice by severity.
func (m *Metrics) NoticePublished(severity string) {
	if m == nil {
		return
	}
	m.noticesPublished.WithLabelValues(severity).Inc()
}

// RetentionDeleted adds n pruned notification rows.
func (m *Metrics) RetentionDeleted(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.retentionDeletions.Add(float64(n))
}
