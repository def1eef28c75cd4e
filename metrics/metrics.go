// Package metrics exposes cache events as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/depcache"
)

// Collector counts cache events per type. Attach Collector.Listen to a
// cache's emitter and register the collector with a Registerer.
type Collector struct {
	events  *prometheus.CounterVec
	removed *prometheus.CounterVec
}

// New builds a collector. namespace scopes the metric names; use the
// cache name.
func New(namespace string) *Collector {
	return &Collector{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "depcache",
			Name:      "events_total",
			Help:      "Cache events by type.",
		}, []string{"type"}),
		removed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "depcache",
			Name:      "entries_removed_total",
			Help:      "Entries removed by deletes, invalidations and clears.",
		}, []string{"type"}),
	}
}

// Listen records one event.
func (c *Collector) Listen(ev depcache.Event) {
	c.events.WithLabelValues(string(ev.Type)).Inc()
	switch ev.Type {
	case depcache.EventDelete, depcache.EventInvalidate, depcache.EventClear:
		c.removed.WithLabelValues(string(ev.Type)).Add(float64(ev.Count))
	}
}

// Register registers the collector's metrics.
func (c *Collector) Register(r prometheus.Registerer) error {
	if err := r.Register(c.events); err != nil {
		return err
	}
	return r.Register(c.removed)
}
