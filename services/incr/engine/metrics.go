// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("buildgraph.incr.engine")

var (
	plansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "incr_engine_plans_total",
		Help: "Build plans computed, by result",
	}, []string{"result"})

	planDirtyNodes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "incr_engine_plan_dirty_nodes",
		Help:    "Number of dirty nodes per build plan",
		Buckets: []float64{0, 1, 10, 50, 100, 500, 1000, 5000, 10000},
	})

	planDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "incr_engine_plan_duration_seconds",
		Help:    "Time spent computing a build plan",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})

	buildResultsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "incr_engine_build_results_applied_total",
		Help: "Build results recorded into the graph",
	})

	snapshotBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "incr_engine_snapshot_bytes",
		Help: "Size of the last encoded or decoded snapshot",
	})

	snapshotLoadFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "incr_engine_snapshot_load_failures_total",
		Help: "Snapshot loads that fell back to an empty engine, by error kind",
	}, []string{"kind"})
)
