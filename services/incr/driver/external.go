// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package driver connects the engine to a project on disk.
//
// The engine compares fingerprints it is given; it never reads files. This
// package supplies those fingerprints: file-backed node ids are fingerprinted
// from the tree, and nodes with dependencies get a fingerprint derived from
// their inputs so that a change upstream changes every node downstream of
// it. Session adds the persistence, locking and logging a CLI run needs.
package driver

import (
	"context"

	"github.com/AleutianAI/buildgraph/services/incr/engine"
	"github.com/AleutianAI/buildgraph/services/incr/fingerprint"
)

// Graph is the read-only view of the dependency graph Derive needs.
type Graph interface {
	IDs() []string
	Predecessors(id string) []string
	Successors(id string) []string
}

// ExternalFingerprints scans root and derives a fingerprint for every node
// of eng that can have one. See Derive.
func ExternalFingerprints(ctx context.Context, eng *engine.Engine, root string, opts fingerprint.Options, s fingerprint.Strategy) (map[string]fingerprint.Fingerprint, error) {
	files, err := fingerprint.BuildMapContext(ctx, root, opts, s)
	if err != nil {
		return nil, err
	}
	return Derive(eng, files), nil
}

// Derive assigns fingerprints to the nodes of g.
//
// Description:
//
//	A node without dependencies takes its file fingerprint, or none when it
//	is not a scanned file. A node with dependencies is assigned once all of
//	its dependencies are: starting from OffsetBasis it folds its own file
//	fingerprint when it has one, then for each dependency in sorted order the
//	dependency's id bytes and fingerprint. Nodes on a cycle, downstream of a
//	cycle or downstream of an unassigned node stay unassigned, which the
//	engine treats as dirty.
//
// Inputs:
//
//	g - The graph.
//	files - Relative path to file fingerprint, as from BuildMap.
//
// Outputs:
//
//	map[string]fingerprint.Fingerprint - Assigned nodes only.
func Derive(g Graph, files map[string]fingerprint.Fingerprint) map[string]fingerprint.Fingerprint {
	ids := g.IDs()
	out := make(map[string]fingerprint.Fingerprint, len(ids))
	pending := make(map[string]int)
	var queue []string

	for _, id := range ids {
		if n := len(g.Predecessors(id)); n > 0 {
			pending[id] = n
			continue
		}
		if fp, ok := files[id]; ok {
			out[id] = fp
			queue = append(queue, id)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range g.Successors(id) {
			n, ok := pending[next]
			if !ok {
				continue
			}
			n--
			pending[next] = n
			if n > 0 {
				continue
			}
			out[next] = derived(next, g.Predecessors(next), files, out)
			queue = append(queue, next)
		}
	}
	return out
}

func derived(id string, deps []string, files, assigned map[string]fingerprint.Fingerprint) fingerprint.Fingerprint {
	h := fingerprint.OffsetBasis
	if fp, ok := files[id]; ok {
		h = fingerprint.Fold(h, uint64(fp))
	}
	for _, d := range deps {
		h = fingerprint.FoldBytes(h, []byte(d))
		h = fingerprint.Fold(h, uint64(assigned[d]))
	}
	return h
}

// ChangedRoots keeps the ids from paths that are nodes whose recorded
// fingerprint differs from external, including nodes never recorded and
// nodes no longer present in external. Paths reported by a file watcher
// include writes that leave the fingerprint as recorded, such as outputs
// captured by the last Record; those are dropped so they do not re-plan
// their dependents.
func ChangedRoots(eng *engine.Engine, paths []string, external map[string]fingerprint.Fingerprint) []string {
	var out []string
	for _, id := range paths {
		n, ok := eng.Node(id)
		if !ok {
			continue
		}
		fp, scanned := external[id]
		if n.HasFingerprint() && scanned && *n.Fingerprint == fp {
			continue
		}
		out = append(out, id)
	}
	return out
}

// Record applies the results of a completed plan.
//
// Every node in plan.Order with a fingerprint in external is recorded in
// one build pass. The recorded ids are returned in plan order; nodes with no
// external fingerprint are skipped and stay dirty.
func Record(eng *engine.Engine, plan *engine.BuildPlan, external map[string]fingerprint.Fingerprint) []string {
	results := make([]engine.BuildResult, 0, len(plan.Order))
	recorded := make([]string, 0, len(plan.Order))
	for _, id := range plan.Order {
		fp, ok := external[id]
		if !ok {
			continue
		}
		results = append(results, engine.BuildResult{ID: id, Fingerprint: fp})
		recorded = append(recorded, id)
	}
	eng.ApplyBuildResults(results)
	return recorded
}
