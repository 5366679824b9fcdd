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
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/buildgraph/services/incr/fingerprint"
	"github.com/AleutianAI/buildgraph/services/incr/graph"
)

// BuildPlan is the work for one build pass.
type BuildPlan struct {
	// Dirty is the set of nodes to rebuild.
	Dirty graph.Set

	// Order is Dirty in dependency order: every node follows its
	// dependencies inside Dirty.
	Order []string
}

// Empty reports whether nothing needs rebuilding.
func (p *BuildPlan) Empty() bool {
	return len(p.Order) == 0
}

// PlanFrom computes a build plan.
//
// Description:
//
//	Dirty is the union of the nodes whose recorded fingerprint differs from
//	external (see CompareFingerprints) and every node affected by roots.
//	Fingerprint mismatches are not propagated to dependents; callers that
//	want propagation derive dependent fingerprints from their inputs or pass
//	the changed nodes as roots. The engine is not modified.
//
// Inputs:
//
//	ctx - Carries the trace span.
//	roots - Explicitly modified node ids. Unknown ids are ignored.
//	external - Fresh fingerprints keyed by node id.
//
// Outputs:
//
//	*BuildPlan - The plan. Order is empty exactly when Dirty is empty.
//	error - *graph.CycleError when Dirty contains a cycle.
func (e *Engine) PlanFrom(ctx context.Context, roots []string, external map[string]fingerprint.Fingerprint) (*BuildPlan, error) {
	_, span := tracer.Start(ctx, "engine.PlanFrom",
		trace.WithAttributes(
			attribute.Int("roots", len(roots)),
			attribute.Int("external", len(external)),
			attribute.Int("nodes", e.graph.Len()),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() { planDuration.Observe(time.Since(start).Seconds()) }()

	dirty, _ := e.CompareFingerprints(external)
	dirty = dirty.Union(e.graph.AffectedBy(roots...))

	order, err := e.graph.TopoOrderIn(dirty)
	if err != nil {
		plansTotal.WithLabelValues("cycle").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "cycle detected")
		return nil, err
	}

	plansTotal.WithLabelValues("ok").Inc()
	planDirtyNodes.Observe(float64(len(dirty)))
	span.SetAttributes(attribute.Int("dirty", len(dirty)))
	return &BuildPlan{Dirty: dirty, Order: order}, nil
}
