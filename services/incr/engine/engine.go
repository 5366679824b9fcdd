// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine decides what to rebuild.
//
// An Engine owns a dependency graph and the fingerprint recorded for each
// node at its last build. Given fresh fingerprints from the caller and an
// optional set of modified roots it produces a BuildPlan: the dirty node set
// and a dependency-respecting order over it. After the caller builds, the new
// fingerprints are recorded with ApplyBuildResults and the engine state is
// persisted as a checksummed snapshot.
//
// # Thread Safety
//
// Engine is not safe for concurrent use. It performs no I/O except through
// Save and Load, and never logs.
package engine

import (
	"time"

	"github.com/AleutianAI/buildgraph/services/incr/fingerprint"
	"github.com/AleutianAI/buildgraph/services/incr/graph"
)

// Engine is the incremental build engine.
type Engine struct {
	graph *graph.Store
	epoch uint64
	clock func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used by SetFingerprint to stamp LastBuilt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.clock = now
	}
}

// New returns an empty engine.
func New(opts ...Option) *Engine {
	return newEngine(graph.New(), 0, opts)
}

func newEngine(g *graph.Store, epoch uint64, opts []Option) *Engine {
	e := &Engine{graph: g, epoch: epoch, clock: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BuildResult is the outcome of building one node.
type BuildResult struct {
	ID          string                  `json:"id"`
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
}

// SetFingerprint records fp for id, creating the node when missing, and
// stamps LastBuilt with the current Unix time in seconds.
func (e *Engine) SetFingerprint(id string, fp fingerprint.Fingerprint) {
	e.graph.SetFingerprint(id, fp, uint64(e.clock().Unix()))
}

// SetDeps replaces the dependencies of target. See graph.Store.SetDeps.
func (e *Engine) SetDeps(target string, deps []string) {
	e.graph.SetDeps(target, deps)
}

// AddDep records that target depends on dep.
func (e *Engine) AddDep(target, dep string) {
	e.graph.AddDep(target, dep)
}

// RemoveDep deletes one edge and reports whether it existed.
func (e *Engine) RemoveDep(target, dep string) bool {
	return e.graph.RemoveDep(target, dep)
}

// RemoveNode deletes a node and its edges.
func (e *Engine) RemoveNode(id string) {
	e.graph.RemoveNode(id)
}

// MarkModified forgets the recorded fingerprint of id and returns every node
// affected by it, id included.
//
// An unknown id is created first, so the result always contains id.
func (e *Engine) MarkModified(id string) graph.Set {
	e.graph.ClearFingerprint(id)
	return e.graph.AffectedBy(id)
}

// CompareFingerprints partitions the graph's nodes by comparing recorded
// fingerprints with external ones.
//
// Description:
//
//	A node is unchanged when it has a recorded fingerprint and external
//	holds an equal value. Otherwise it is dirty: no recorded fingerprint,
//	absent from external, or a different value. Keys of external that are
//	not nodes are ignored. Dirtiness is not propagated here.
//
// Outputs:
//
//	dirty, unchanged - A partition of all node ids.
func (e *Engine) CompareFingerprints(external map[string]fingerprint.Fingerprint) (dirty, unchanged graph.Set) {
	dirty = make(graph.Set)
	unchanged = make(graph.Set)
	for _, id := range e.graph.IDs() {
		n, _ := e.graph.Node(id)
		ext, ok := external[id]
		if n.Fingerprint != nil && ok && *n.Fingerprint == ext {
			unchanged.Add(id)
		} else {
			dirty.Add(id)
		}
	}
	return dirty, unchanged
}

// ApplyBuildResults records the fingerprint of each result and advances the
// build epoch once per non-empty call.
func (e *Engine) ApplyBuildResults(results []BuildResult) {
	if len(results) == 0 {
		return
	}
	for _, r := range results {
		e.SetFingerprint(r.ID, r.Fingerprint)
	}
	e.epoch++
	buildResultsApplied.Add(float64(len(results)))
}

// GCOrphans removes nodes with no edges and no fingerprint and returns them,
// sorted.
func (e *Engine) GCOrphans() []string {
	return e.graph.GCOrphans()
}

// Epoch returns the number of build passes recorded.
func (e *Engine) Epoch() uint64 {
	return e.epoch
}

// Node returns a copy of a node record.
func (e *Engine) Node(id string) (graph.NodeMeta, bool) {
	return e.graph.Node(id)
}

// IDs returns all node ids, sorted.
func (e *Engine) IDs() []string {
	return e.graph.IDs()
}

// Len returns the number of nodes.
func (e *Engine) Len() int {
	return e.graph.Len()
}

// AffectedBy returns the dependents closure of roots. See graph.Store.
func (e *Engine) AffectedBy(roots ...string) graph.Set {
	return e.graph.AffectedBy(roots...)
}

// ReachableDeps returns the dependency closure of roots. See graph.Store.
func (e *Engine) ReachableDeps(roots ...string) graph.Set {
	return e.graph.ReachableDeps(roots...)
}

// Successors returns the direct dependents of id, sorted.
func (e *Engine) Successors(id string) []string {
	return e.graph.Successors(id)
}

// Predecessors returns the direct dependencies of id, sorted.
func (e *Engine) Predecessors(id string) []string {
	return e.graph.Predecessors(id)
}

// Validate checks graph consistency and returns the edge count.
func (e *Engine) Validate() (int, error) {
	return e.graph.Validate()
}
