// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"container/heap"
	"slices"
	"sort"
)

// TopoOrderIn orders keep so that every node follows all of its
// dependencies inside keep.
//
// Description:
//
//	Kahn's algorithm over the subgraph induced by keep. When several nodes
//	are ready at once the lexically smallest id is emitted first, so the
//	order is a pure function of the graph and keep. Ids in keep that are not
//	nodes are ordered as isolated vertices.
//
// Inputs:
//
//	keep - The node set to order.
//
// Outputs:
//
//	[]string - All of keep in dependency order. Empty, not nil, for an
//	  empty keep.
//	error - *CycleError when the induced subgraph has a cycle. No partial
//	  order is returned.
func (s *Store) TopoOrderIn(keep Set) ([]string, error) {
	induced := s.Induced(keep)

	indegree := make(map[string]int, len(keep))
	ready := make(idHeap, 0)
	for id := range keep {
		n := len(induced[id])
		indegree[id] = n
		if n == 0 {
			ready = append(ready, id)
		}
	}
	heap.Init(&ready)

	order := make([]string, 0, len(keep))
	for ready.Len() > 0 {
		id := heap.Pop(&ready).(string)
		order = append(order, id)
		for dependent := range s.reverse[id] {
			if !keep.Has(dependent) {
				continue
			}
			indegree[dependent]--
			if indegree[dependent] == 0 {
				heap.Push(&ready, dependent)
			}
		}
	}

	if len(order) < len(keep) {
		return nil, newCycleError(keep, order, induced)
	}
	return order, nil
}

// HasCycleIn reports whether the subgraph induced by keep has a cycle.
func (s *Store) HasCycleIn(keep Set) bool {
	_, err := s.TopoOrderIn(keep)
	return err != nil
}

func newCycleError(keep Set, emitted []string, induced map[string]Set) *CycleError {
	done := NewSet(emitted...)
	remaining := make(Set, len(keep)-len(done))
	for id := range keep {
		if !done.Has(id) {
			remaining.Add(id)
		}
	}
	rem := remaining.Sorted()
	return &CycleError{
		Nodes:     keep.Sorted(),
		Remaining: rem,
		Cycle:     findCycle(rem, remaining, induced),
	}
}

// findCycle walks dependency edges inside remaining from its smallest id.
// Every remaining node has an unemitted dependency in remaining, so the walk
// must revisit a node. The walk runs target to dependency; the result is
// reversed so each id is a dependency of the next.
func findCycle(sorted []string, remaining Set, induced map[string]Set) []string {
	if len(sorted) == 0 {
		return nil
	}
	pos := make(map[string]int)
	var path []string
	id := sorted[0]
	for {
		if at, ok := pos[id]; ok {
			cycle := append(path[at:], id)
			slices.Reverse(cycle)
			return cycle
		}
		pos[id] = len(path)
		path = append(path, id)

		var next []string
		for d := range induced[id] {
			if remaining.Has(d) {
				next = append(next, d)
			}
		}
		if len(next) == 0 {
			return nil
		}
		sort.Strings(next)
		id = next[0]
	}
}

// idHeap is a min-heap of ids.
type idHeap []string

func (h idHeap) Len() int           { return len(h) }
func (h idHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *idHeap) Push(x any) { *h = append(*h, x.(string)) }

func (h *idHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
