// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package reconcile

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes reconciliation counters on a Prometheus registry.
type Metrics struct {
	runsTotal    *prometheus.CounterVec
	itemsTotal   *prometheus.CounterVec
	safetyAborts prometheus.Counter
	runDuration  prometheus.Histogram
}

// NewMetrics registers the reconciliation metrics on registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sweeparr_reconcile_runs_total",
			Help: "Reconciliation runs by mode and outcome.",
		}, []string{"mode", "status"}),
		itemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sweeparr_reconcile_items_total",
			Help: "Items handled by reconciliation runs, by disposition.",
		}, []string{"disposition"}),
		safetyAborts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sweeparr_reconcile_safety_aborts_total",
			Help: "Runs aborted by the mass-deletion safety check.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sweeparr_reconcile_run_duration_seconds",
			Help:    "Wall-clock duration of reconciliation runs.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}

	registry.MustRegister(m.runsTotal, m.itemsTotal, m.safetyAborts, m.runDuration)

	return m
}

// observeRun records the outcome of a finished run. Dry runs count
// toward run totals but never toward item dispositions, so the item
// series only ever reflects real library changes.
func (s *Service) observeRun(rc *runContext, elapsed time.Duration, err error) {
	if s.metrics == nil {
		return
	}

	m := s.metrics
	mode := string(rc.mode)
	result := rc.result

	switch {
	case err != nil:
		m.runsTotal.WithLabelValues(mode, "error").Inc()
	case result.SafetyTriggered:
		m.runsTotal.WithLabelValues(mode, "safety_triggered").Inc()
		m.safetyAborts.Inc()
	default:
		m.runsTotal.WithLabelValues(mode, "completed").Inc()
	}

	m.runDuration.Observe(elapsed.Seconds())

	if rc.dryRun {
		return
	}

	m.itemsTotal.WithLabelValues("deleted").Add(float64(result.Total.Deleted))
	m.itemsTotal.WithLabelValues("skipped").Add(float64(result.Total.Skipped))
	m.itemsTotal.WithLabelValues("protected").Add(float64(result.Total.Protected))
}
