// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package runner

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// -----------------------------------------------------------------------------
// Label values (for cardinality protection)
// -----------------------------------------------------------------------------

const (
	transitionStop    = "stop"
	transitionRestart = "restart"
	transitionReboot  = "reboot"

	actionPause    = "pause"
	actionSnapshot = "snapshot"
)

// -----------------------------------------------------------------------------
// Runner Metrics
// -----------------------------------------------------------------------------

// Metrics holds the Prometheus collectors of one or more runners.
//
// Description:
//
//	Collectors are registered on the Registerer passed to NewMetrics, so
//	tests can use a private registry. A nil *Metrics is valid and records
//	nothing.
//
// Thread Safety: Safe for concurrent use.
type Metrics struct {
	// scansTotal counts committed scans.
	scansTotal prometheus.Counter

	// scanErrorsTotal counts scans that failed and were not committed.
	scanErrorsTotal prometheus.Counter

	// scanDuration measures wall time spent per committed scan.
	scanDuration prometheus.Histogram

	// activeForces tracks the size of the force map.
	activeForces prometheus.Gauge

	// breakpointHitsTotal counts breakpoint firings.
	//
	// Labels:
	//   - action: "pause" or "snapshot"
	breakpointHitsTotal *prometheus.CounterVec

	// monitorFiresTotal counts monitor callback invocations.
	monitorFiresTotal prometheus.Counter

	// transitionsTotal counts lifecycle transitions.
	//
	// Labels:
	//   - transition: "stop", "restart" or "reboot"
	transitionsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers runner collectors on reg.
//
// Inputs:
//
//	reg - Registerer to use. Nil uses prometheus.DefaultRegisterer.
//
// Outputs:
//
//	*Metrics - The collectors. Panics if they are already registered on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		scansTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "laddersim",
			Subsystem: "runner",
			Name:      "scans_total",
			Help:      "Total committed scans",
		}),
		scanErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "laddersim",
			Subsystem: "runner",
			Name:      "scan_errors_total",
			Help:      "Total scans aborted by an error",
		}),
		scanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "laddersim",
			Subsystem: "runner",
			Name:      "scan_duration_seconds",
			Help:      "Wall time spent per committed scan in seconds",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		activeForces: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "laddersim",
			Subsystem: "runner",
			Name:      "active_forces",
			Help:      "Number of tags currently forced",
		}),
		breakpointHitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "laddersim",
			Subsystem: "runner",
			Name:      "breakpoint_hits_total",
			Help:      "Total breakpoint firings by action",
		}, []string{"action"}),
		monitorFiresTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "laddersim",
			Subsystem: "runner",
			Name:      "monitor_fires_total",
			Help:      "Total monitor callback invocations",
		}),
		transitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "laddersim",
			Subsystem: "runner",
			Name:      "transitions_total",
			Help:      "Total lifecycle transitions by kind",
		}, []string{"transition"}),
	}
}

func (m *Metrics) recordScan(d time.Duration) {
	if m == nil {
		return
	}
	m.scansTotal.Inc()
	m.scanDuration.Observe(d.Seconds())
}

func (m *Metrics) recordScanError() {
	if m == nil {
		return
	}
	m.scanErrorsTotal.Inc()
}

func (m *Metrics) setForces(n int) {
	if m == nil {
		return
	}
	m.activeForces.Set(float64(n))
}

func (m *Metrics) recordBreakpoint(action string) {
	if m == nil {
		return
	}
	m.breakpointHitsTotal.WithLabelValues(action).Inc()
}

func (m *Metrics) recordMonitor() {
	if m == nil {
		return
	}
	m.monitorFiresTotal.Inc()
}

func (m *Metrics) recordTransition(kind string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(kind).Inc()
}
