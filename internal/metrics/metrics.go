package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	registryOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "proctrack",
			Subsystem: "registry",
			Name:      "operations_total",
			Help:      "Registry writes by operation (create, progress, complete) and result (ok, invalid, rejected, error).",
		}, []string{"op", "result"},
	)
	broadcastCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "proctrack",
			Subsystem: "broadcast",
			Name:      "cycles_total",
			Help:      "Broadcast cycles by result (ok, error).",
		}, []string{"result"},
	)
	broadcastDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "proctrack",
			Subsystem: "broadcast",
			Name:      "cycle_duration_seconds",
			Help:      "Time spent fetching and sending one snapshot.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	snapshotRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "proctrack",
			Subsystem: "broadcast",
			Name:      "snapshot_records",
			Help:      "Number of process records in the last broadcast snapshot.",
		},
	)
	subscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "proctrack",
			Subsystem: "hub",
			Name:      "subscribers",
			Help:      "Currently connected live subscribers.",
		},
	)
	deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "proctrack",
			Subsystem: "hub",
			Name:      "deliveries_total",
			Help:      "Per-subscriber snapshot deliveries by result (ok, failed).",
		}, []string{"result"},
	)
	historyEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "proctrack",
			Subsystem: "history",
			Name:      "events_total",
			Help:      "Lifecycle events exported to history sinks by type and result.",
		}, []string{"type", "result"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{registryOps, broadcastCycles, broadcastDuration, snapshotRecords, subscribers, deliveries, historyEvents}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
// The caller is responsible for starting an HTTP server and wiring the route.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncRegistryOp(op, result string) {
	if regOK.Load() {
		registryOps.WithLabelValues(op, result).Inc()
	}
}

func ObserveBroadcastCycle(ok bool, seconds float64, records int) {
	if !regOK.Load() {
		return
	}
	if !ok {
		broadcastCycles.WithLabelValues("error").Inc()
		return
	}
	broadcastCycles.WithLabelValues("ok").Inc()
	broadcastDuration.Observe(seconds)
	snapshotRecords.Set(float64(records))
}

func SetSubscribers(n int) {
	if regOK.Load() {
		subscribers.Set(float64(n))
	}
}

func AddDeliveries(ok, failed int) {
	if !regOK.Load() {
		return
	}
	if ok > 0 {
		deliveries.WithLabelValues("ok").Add(float64(ok))
	}
	if failed > 0 {
		deliveries.WithLabelValues("failed").Add(float64(failed))
	}
}

func IncHistoryEvent(eventType string, ok bool) {
	if !regOK.Load() {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	historyEvents.WithLabelValues(eventType, result).Inc()
}
