// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watch

import (
	"sort"
	"sync"
)

// RootTracker collects modified roots between build passes.
//
// Thread Safety: All methods are safe for concurrent use.
type RootTracker struct {
	mu    sync.Mutex
	roots map[string]struct{}
}

// NewRootTracker returns an empty tracker.
func NewRootTracker() *RootTracker {
	return &RootTracker{roots: make(map[string]struct{})}
}

// Mark records ids as modified.
func (t *RootTracker) Mark(ids ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		t.roots[id] = struct{}{}
	}
}

// MarkChanges records the paths of a watcher batch.
func (t *RootTracker) MarkChanges(changes []Change) {
	ids := make([]string, len(changes))
	for i, c := range changes {
		ids[i] = c.Path
	}
	t.Mark(ids...)
}

// Drain returns the recorded ids, sorted, and clears the tracker.
func (t *RootTracker) Drain() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.roots))
	for id := range t.roots {
		out = append(out, id)
	}
	clear(t.roots)
	sort.Strings(out)
	return out
}

// Len returns the number of recorded ids.
func (t *RootTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.roots)
}
