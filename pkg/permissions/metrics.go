package permissions

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the permission core. All recording
// helpers tolerate a nil receiver so metrics stay optional in tests.
type Metrics struct {
	ChecksTotal        *prometheus.CounterVec
	ContextLoadsTotal  *prometheus.CounterVec
	InvalidationsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers permission metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		ChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crewdeck_permission_checks_total",
				Help: "Total number of permission checks",
			},
			[]string{"scope", "allowed"},
		),
		ContextLoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crewdeck_permission_context_loads_total",
				Help: "Total number of permission context loads by source",
			},
			[]string{"scope", "source"},
		),
		InvalidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crewdeck_permission_cache_invalidations_total",
				Help: "Total number of permission cache invalidations",
			},
			[]string{"scope", "reason"},
		),
	}

	if registry != nil {
		registry.MustRegister(m.ChecksTotal, m.ContextLoadsTotal, m.InvalidationsTotal)
	}

	return m
}

func (m *Metrics) recordCheck(scope string, allowed bool) {
	if m == nil {
		return
	}
	m.ChecksTotal.WithLabelValues(scope, strconv.FormatBool(allowed)).Inc()
}

func (m *Metrics) recordLoad(scope, source string) {
	if m == nil {
		return
	}
	m.ContextLoadsTotal.WithLabelValues(scope, source).Inc()
}

func (m *Metrics) recordInvalidation(scope, reason string) {
	if m == nil {
		return
	}
	m.InvalidationsTotal.WithLabelValues(scope, reason).Inc()
}
