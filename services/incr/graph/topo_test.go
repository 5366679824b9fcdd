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
)

func TestTopoOrderIn(t *testing.T) {
	s := diamond()

	t.Run("dependencies first with lexical ties", func(t *testing.T) {
		order, err := s.TopoOrderIn(NewSet("top", "left", "right", "base"))
		require.NoError(t, err)
		assert.Equal(t, []string{"base", "left", "right", "top"}, order)
	})

	t.Run("restricted to keep", func(t *testing.T) {
		order, err := s.TopoOrderIn(NewSet("top", "right"))
		require.NoError(t, err)
		assert.Equal(t, []string{"right", "top"}, order)
	})

	t.Run("empty keep", func(t *testing.T) {
		order, err := s.TopoOrderIn(NewSet())
		require.NoError(t, err)
		assert.NotNil(t, order)
		assert.Empty(t, order)
	})

	t.Run("unknown ids are isolated vertices", func(t *testing.T) {
		order, err := s.TopoOrderIn(NewSet("zeta", "base", "alpha"))
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha", "base", "zeta"}, order)
	})

	t.Run("deterministic across calls", func(t *testing.T) {
		keep := NewSet("top", "left", "right", "base")
		first, err := s.TopoOrderIn(keep)
		require.NoError(t, err)
		for i := 0; i < 20; i++ {
			again, err := s.TopoOrderIn(keep)
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	})
}

func TestTopoOrderIn_Property(t *testing.T) {
	s := New()
	s.SetDeps("bin", []string{"pkg/a", "pkg/b"})
	s.SetDeps("pkg/a", []string{"gen", "pkg/c"})
	s.SetDeps("pkg/b", []string{"pkg/c"})
	s.SetDeps("pkg/c", []string{"gen"})
	s.SetDeps("docs", []string{"bin"})

	keep := s.AffectedBy("gen")
	order, err := s.TopoOrderIn(keep)
	require.NoError(t, err)
	require.Len(t, order, len(keep))

	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for t2 := range keep {
		for _, d := range s.Predecessors(t2) {
			if keep.Has(d) && pos[d] >= pos[t2] {
				t.Errorf("%s ordered before its dependency %s", t2, d)
			}
		}
	}
}

func TestTopoOrderIn_Cycle(t *testing.T) {
	s := New()
	s.AddDep("a", "b")
	s.AddDep("b", "c")
	s.AddDep("c", "a")
	s.AddDep("d", "c")
	s.EnsureNode("free")

	keep := NewSet("a", "b", "c", "d", "free")
	order, err := s.TopoOrderIn(keep)
	require.Error(t, err)
	assert.Nil(t, order)
	assert.True(t, errors.Is(err, ErrCycle))
	assert.True(t, s.HasCycleIn(keep))

	var ce *CycleError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, []string{"a", "b", "c", "d", "free"}, ce.Nodes)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ce.Remaining)
	// a depends on b, b on c, c on a: listed dependency first.
	assert.Equal(t, []string{"a", "c", "b", "a"}, ce.Cycle)
	assert.Contains(t, err.Error(), "(cycle: a -> c -> b -> a)")
	assert.Contains(t, err.Error(), "circular dependency")

	assert.False(t, s.HasCycleIn(NewSet("free")))
	assert.False(t, s.HasCycleIn(NewSet("a", "b")), "cycle is not closed inside keep")
}

func TestTopoOrderIn_SelfLoop(t *testing.T) {
	s := New()
	s.SetDeps("self", []string{"self"})

	_, err := s.TopoOrderIn(NewSet("self"))
	var ce *CycleError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, []string{"self", "self"}, ce.Cycle)
}
