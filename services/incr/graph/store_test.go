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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/buildgraph/services/incr/fingerprint"
)

func mustValidate(t *testing.T, s *Store) int {
	t.Helper()
	n, err := s.Validate()
	require.NoError(t, err)
	return n
}

func TestStore_SetDeps(t *testing.T) {
	s := New()
	s.SetDeps("app", []string{"lib", "util", "lib"})

	assert.Equal(t, []string{"app", "lib", "util"}, s.IDs())
	assert.Equal(t, []string{"lib", "util"}, s.Predecessors("app"))
	assert.Equal(t, []string{"app"}, s.Successors("lib"))
	assert.Equal(t, 2, mustValidate(t, s))

	t.Run("replaces wholesale", func(t *testing.T) {
		s.SetDeps("app", []string{"core"})
		assert.Equal(t, []string{"core"}, s.Predecessors("app"))
		assert.Empty(t, s.Successors("lib"))
		assert.Equal(t, []string{"app"}, s.Successors("core"))
		assert.Equal(t, 1, mustValidate(t, s))
		assert.True(t, s.Has("lib"), "old dependencies stay as nodes")
	})

	t.Run("empty list clears", func(t *testing.T) {
		s.SetDeps("app", nil)
		assert.Empty(t, s.Predecessors("app"))
		assert.Empty(t, s.Successors("core"))
		assert.Zero(t, mustValidate(t, s))
	})
}

func TestStore_AddRemoveDep(t *testing.T) {
	s := New()
	s.AddDep("b", "a")
	s.AddDep("c", "b")
	s.AddDep("c", "a")
	assert.Equal(t, 3, mustValidate(t, s))
	assert.Equal(t, []string{"b", "c"}, s.Successors("a"))

	assert.True(t, s.RemoveDep("c", "a"))
	assert.False(t, s.RemoveDep("c", "a"))
	assert.False(t, s.RemoveDep("x", "y"))
	assert.Equal(t, []string{"b"}, s.Successors("a"))
	assert.Equal(t, 2, mustValidate(t, s))
	assert.False(t, s.Has("x"))
}

func TestStore_RemoveNode(t *testing.T) {
	s := New()
	s.SetDeps("app", []string{"lib"})
	s.SetDeps("lib", []string{"core"})
	s.SetDeps("test", []string{"lib"})

	s.RemoveNode("lib")
	assert.False(t, s.Has("lib"))
	assert.Empty(t, s.Predecessors("app"))
	assert.Empty(t, s.Successors("core"))
	assert.Zero(t, mustValidate(t, s))

	s.RemoveNode("never-existed")
	assert.Equal(t, 3, s.Len())
}

func TestStore_Fingerprints(t *testing.T) {
	s := New()
	s.SetFingerprint("a", 7, 100)

	n, ok := s.Node("a")
	require.True(t, ok)
	require.True(t, n.HasFingerprint())
	assert.Equal(t, fingerprint.Fingerprint(7), *n.Fingerprint)
	assert.Equal(t, uint64(100), *n.LastBuilt)

	// Node returns a copy.
	*n.Fingerprint = 9
	again, _ := s.Node("a")
	assert.Equal(t, fingerprint.Fingerprint(7), *again.Fingerprint)

	s.ClearFingerprint("a")
	n, _ = s.Node("a")
	assert.False(t, n.HasFingerprint())
	assert.Equal(t, uint64(100), *n.LastBuilt)

	s.ClearFingerprint("new")
	assert.True(t, s.Has("new"))
}

func TestStore_GCOrphans(t *testing.T) {
	s := New()
	s.EnsureNode("orphan-b")
	s.EnsureNode("orphan-a")
	s.SetFingerprint("kept-fp", 1, 1)
	s.AddDep("t", "d")

	removed := s.GCOrphans()
	assert.Equal(t, []string{"orphan-a", "orphan-b"}, removed)
	assert.Equal(t, []string{"d", "kept-fp", "t"}, s.IDs())
	assert.Empty(t, s.GCOrphans())
}

func TestStore_Validate_DetectsCorruption(t *testing.T) {
	s := New()
	s.AddDep("a", "b")

	delete(s.reverse, "b")
	_, err := s.Validate()
	assert.ErrorIs(t, err, ErrInconsistent)

	s = New()
	s.AddDep("a", "b")
	delete(s.nodes, "b")
	_, err = s.Validate()
	assert.ErrorIs(t, err, ErrInconsistent)

	s = New()
	s.AddDep("a", "b")
	s.link(s.reverse, "a", "b")
	_, err = s.Validate()
	assert.True(t, errors.Is(err, ErrInconsistent))
}

func TestStore_ExportRestore(t *testing.T) {
	s := New()
	s.SetDeps("app", []string{"lib", "util"})
	s.SetDeps("lib", []string{"util"})
	s.SetFingerprint("util", 42, 5)
	s.EnsureNode("lonely")

	nodes, deps := s.Export()
	assert.Equal(t, map[string][]string{
		"app": {"lib", "util"},
		"lib": {"util"},
	}, deps)
	assert.Len(t, nodes, 4)

	r := Restore(nodes, deps)
	assert.Equal(t, s.IDs(), r.IDs())
	assert.Equal(t, s.Successors("util"), r.Successors("util"))
	assert.Equal(t, 3, mustValidate(t, r))

	n, ok := r.Node("util")
	require.True(t, ok)
	assert.Equal(t, fingerprint.Fingerprint(42), *n.Fingerprint)

	t.Run("edge endpoints without records become nodes", func(t *testing.T) {
		r := Restore(nil, map[string][]string{"x": {"y"}, "z": {}})
		assert.Equal(t, []string{"x", "y"}, r.IDs())
		assert.Equal(t, 1, mustValidate(t, r))
	})
}
