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

// AffectedBy returns every node reachable from roots along dependent
// edges, roots included. Ids that are not nodes are ignored.
//
// The traversal uses an explicit stack, so chain depth is bounded only by
// memory.
func (s *Store) AffectedBy(roots ...string) Set {
	return s.closure(roots, s.reverse)
}

// ReachableDeps returns every node reachable from roots along dependency
// edges, roots included. Ids that are not nodes are ignored.
func (s *Store) ReachableDeps(roots ...string) Set {
	return s.closure(roots, s.deps)
}

func (s *Store) closure(roots []string, edges map[string]Set) Set {
	seen := make(Set)
	stack := make([]string, 0, len(roots))
	for _, r := range roots {
		if !s.Has(r) || seen.Has(r) {
			continue
		}
		seen.Add(r)
		stack = append(stack, r)
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for next := range edges[id] {
			if seen.Has(next) {
				continue
			}
			seen.Add(next)
			stack = append(stack, next)
		}
	}
	return seen
}

// Induced returns the dependency edges with both endpoints in keep,
// keyed by target. Targets left without dependencies are omitted.
func (s *Store) Induced(keep Set) map[string]Set {
	out := make(map[string]Set)
	for t := range keep {
		for d := range s.deps[t] {
			if !keep.Has(d) {
				continue
			}
			s.link(out, t, d)
		}
	}
	return out
}
