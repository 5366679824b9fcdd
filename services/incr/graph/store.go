// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph stores a directed dependency graph over string node ids.
//
// An edge "T depends on D" is recorded in the forward map (deps[T] holds D)
// and mirrored in the reverse index (reverse[D] holds T). The reverse index
// is derived state: SetDeps and Restore rebuild it from scratch, AddDep and
// RemoveDep keep it in step, and Validate checks the two agree.
//
// # Thread Safety
//
// Store is not safe for concurrent use. It is owned by a single engine and
// callers serialize access.
package graph

import (
	"fmt"

	"github.com/AleutianAI/buildgraph/services/incr/fingerprint"
)

// NodeMeta is the per-node record.
type NodeMeta struct {
	// ID is the node's unique identifier.
	ID string `json:"id"`

	// Fingerprint is the last recorded fingerprint, nil when unknown.
	Fingerprint *fingerprint.Fingerprint `json:"fingerprint,omitempty"`

	// LastBuilt is the caller-supplied timestamp of the last recorded
	// build, nil when never built.
	LastBuilt *uint64 `json:"last_built,omitempty"`
}

// HasFingerprint reports whether a fingerprint is recorded.
func (n NodeMeta) HasFingerprint() bool {
	return n.Fingerprint != nil
}

func (n *NodeMeta) clone() NodeMeta {
	out := NodeMeta{ID: n.ID}
	if n.Fingerprint != nil {
		fp := *n.Fingerprint
		out.Fingerprint = &fp
	}
	if n.LastBuilt != nil {
		at := *n.LastBuilt
		out.LastBuilt = &at
	}
	return out
}

// Store is the dependency graph.
//
// Every id appearing in deps or reverse has a node. Sets in deps and reverse
// are never empty; a node without edges has no entry.
type Store struct {
	nodes   map[string]*NodeMeta
	deps    map[string]Set
	reverse map[string]Set
}

// New returns an empty store.
func New() *Store {
	return &Store{
		nodes:   make(map[string]*NodeMeta),
		deps:    make(map[string]Set),
		reverse: make(map[string]Set),
	}
}

// EnsureNode creates a node with no fingerprint if id is unknown.
func (s *Store) EnsureNode(id string) {
	if _, ok := s.nodes[id]; !ok {
		s.nodes[id] = &NodeMeta{ID: id}
	}
}

// RemoveNode deletes id together with every edge touching it.
//
// Removing an unknown id is a no-op.
func (s *Store) RemoveNode(id string) {
	for d := range s.deps[id] {
		s.unlink(s.reverse, d, id)
	}
	delete(s.deps, id)

	for t := range s.reverse[id] {
		s.unlink(s.deps, t, id)
	}
	delete(s.reverse, id)

	delete(s.nodes, id)
}

// SetDeps replaces the dependencies of target.
//
// Description:
//
//	Creates target and every dependency as nodes when missing, replaces
//	deps[target] wholesale and rebuilds the reverse index. Duplicates in
//	deps are collapsed. An empty list leaves target with no dependencies.
//	A self dependency is recorded as given; it is reported as a cycle when
//	the node is ordered.
func (s *Store) SetDeps(target string, deps []string) {
	s.EnsureNode(target)
	set := NewSet(deps...)
	for d := range set {
		s.EnsureNode(d)
	}
	if len(set) == 0 {
		delete(s.deps, target)
	} else {
		s.deps[target] = set
	}
	s.rebuildReverse()
}

// AddDep records that target depends on dep, creating both nodes.
func (s *Store) AddDep(target, dep string) {
	s.EnsureNode(target)
	s.EnsureNode(dep)
	s.link(s.deps, target, dep)
	s.link(s.reverse, dep, target)
}

// RemoveDep deletes the edge target -> dep. It reports whether the edge
// existed. Nodes are left in place.
func (s *Store) RemoveDep(target, dep string) bool {
	if !s.deps[target].Has(dep) {
		return false
	}
	s.unlink(s.deps, target, dep)
	s.unlink(s.reverse, dep, target)
	return true
}

func (s *Store) link(m map[string]Set, from, to string) {
	set, ok := m[from]
	if !ok {
		set = make(Set)
		m[from] = set
	}
	set.Add(to)
}

func (s *Store) unlink(m map[string]Set, from, to string) {
	set, ok := m[from]
	if !ok {
		return
	}
	delete(set, to)
	if len(set) == 0 {
		delete(m, from)
	}
}

func (s *Store) rebuildReverse() {
	s.reverse = make(map[string]Set, len(s.deps))
	for t, ds := range s.deps {
		for d := range ds {
			s.link(s.reverse, d, t)
		}
	}
}

// Successors returns the ids that depend directly on id, sorted.
func (s *Store) Successors(id string) []string {
	return s.reverse[id].Sorted()
}

// Predecessors returns the direct dependencies of id, sorted.
func (s *Store) Predecessors(id string) []string {
	return s.deps[id].Sorted()
}

// Node returns a copy of the node record.
func (s *Store) Node(id string) (NodeMeta, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return NodeMeta{}, false
	}
	return n.clone(), true
}

// Has reports whether id is a node.
func (s *Store) Has(id string) bool {
	_, ok := s.nodes[id]
	return ok
}

// IDs returns every node id, sorted.
func (s *Store) IDs() []string {
	out := make(Set, len(s.nodes))
	for id := range s.nodes {
		out.Add(id)
	}
	return out.Sorted()
}

// Len returns the number of nodes.
func (s *Store) Len() int {
	return len(s.nodes)
}

// EdgeCount returns the number of dependency edges.
func (s *Store) EdgeCount() int {
	n := 0
	for _, ds := range s.deps {
		n += len(ds)
	}
	return n
}

// SetFingerprint records fp and the build timestamp for id, creating the
// node when missing.
func (s *Store) SetFingerprint(id string, fp fingerprint.Fingerprint, builtAt uint64) {
	s.EnsureNode(id)
	n := s.nodes[id]
	n.Fingerprint = &fp
	n.LastBuilt = &builtAt
}

// ClearFingerprint forgets the fingerprint of id, creating the node when
// missing. LastBuilt is kept.
func (s *Store) ClearFingerprint(id string) {
	s.EnsureNode(id)
	s.nodes[id].Fingerprint = nil
}

// GCOrphans removes every node that has no edges and no fingerprint and
// returns the removed ids, sorted.
func (s *Store) GCOrphans() []string {
	removed := make(Set)
	for id, n := range s.nodes {
		if n.Fingerprint != nil || len(s.deps[id]) > 0 || len(s.reverse[id]) > 0 {
			continue
		}
		removed.Add(id)
	}
	for id := range removed {
		delete(s.nodes, id)
	}
	return removed.Sorted()
}

// Validate checks that every edge endpoint is a node and that the forward
// map and the reverse index mirror each other.
//
// Outputs:
//
//	int - Number of edges.
//	error - Wraps ErrInconsistent naming the first problem found.
func (s *Store) Validate() (int, error) {
	edges := 0
	for _, t := range sortedKeys(s.deps) {
		if !s.Has(t) {
			return 0, fmt.Errorf("%w: target %q is not a node", ErrInconsistent, t)
		}
		for _, d := range s.deps[t].Sorted() {
			if !s.Has(d) {
				return 0, fmt.Errorf("%w: dependency %q of %q is not a node", ErrInconsistent, d, t)
			}
			if !s.reverse[d].Has(t) {
				return 0, fmt.Errorf("%w: edge %q -> %q missing from reverse index", ErrInconsistent, t, d)
			}
			edges++
		}
	}
	for _, d := range sortedKeys(s.reverse) {
		for _, t := range s.reverse[d].Sorted() {
			if !s.deps[t].Has(d) {
				return 0, fmt.Errorf("%w: reverse entry %q <- %q has no forward edge", ErrInconsistent, d, t)
			}
		}
	}
	return edges, nil
}

func sortedKeys(m map[string]Set) []string {
	keys := make(Set, len(m))
	for k := range m {
		keys.Add(k)
	}
	return keys.Sorted()
}

// Export returns copies of the node table and the forward edges, with each
// dependency list sorted. Targets without dependencies are omitted from the
// edge map.
func (s *Store) Export() (map[string]NodeMeta, map[string][]string) {
	nodes := make(map[string]NodeMeta, len(s.nodes))
	for id, n := range s.nodes {
		nodes[id] = n.clone()
	}
	deps := make(map[string][]string, len(s.deps))
	for t, ds := range s.deps {
		deps[t] = ds.Sorted()
	}
	return nodes, deps
}

// Restore builds a store from exported state.
//
// Node records are keyed by id; a record whose ID is empty takes its key.
// Edge endpoints without a record become nodes with no fingerprint. The
// reverse index is always rebuilt.
func Restore(nodes map[string]NodeMeta, deps map[string][]string) *Store {
	s := New()
	for id, n := range nodes {
		n.ID = id
		c := n.clone()
		s.nodes[id] = &c
	}
	for t, ds := range deps {
		if len(ds) == 0 {
			continue
		}
		s.EnsureNode(t)
		set := NewSet(ds...)
		for d := range set {
			s.EnsureNode(d)
		}
		s.deps[t] = set
	}
	s.rebuildReverse()
	return s
}
