// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/buildgraph/services/incr/engine"
	"github.com/AleutianAI/buildgraph/services/incr/fingerprint"
)

type fpMap = map[string]fingerprint.Fingerprint

// buildGraph returns:
//
//	bin  -> main.go, util.go
//	docs -> bin
//	gen  -> schema.json (missing on disk)
//	api  -> gen
func buildGraph() *engine.Engine {
	e := engine.New()
	e.SetDeps("bin", []string{"main.go", "util.go"})
	e.SetDeps("docs", []string{"bin"})
	e.SetDeps("gen", []string{"schema.json"})
	e.SetDeps("api", []string{"gen"})
	return e
}

func TestDerive(t *testing.T) {
	e := buildGraph()
	files := fpMap{"main.go": 1, "util.go": 2, "unrelated.txt": 3}

	got := Derive(e, files)

	assert.Equal(t, fingerprint.Fingerprint(1), got["main.go"])
	assert.Equal(t, fingerprint.Fingerprint(2), got["util.go"])
	assert.NotContains(t, got, "unrelated.txt", "only nodes are assigned")
	assert.NotContains(t, got, "schema.json")
	assert.NotContains(t, got, "gen", "missing input leaves target unassigned")
	assert.NotContains(t, got, "api")

	want := fingerprint.OffsetBasis
	want = fingerprint.FoldBytes(want, []byte("main.go"))
	want = fingerprint.Fold(want, 1)
	want = fingerprint.FoldBytes(want, []byte("util.go"))
	want = fingerprint.Fold(want, 2)
	assert.Equal(t, want, got["bin"])
	require.Contains(t, got, "docs")

	t.Run("upstream change reaches every dependent", func(t *testing.T) {
		changed := Derive(e, fpMap{"main.go": 10, "util.go": 2})
		assert.NotEqual(t, got["bin"], changed["bin"])
		assert.NotEqual(t, got["docs"], changed["docs"])
		assert.Equal(t, got["util.go"], changed["util.go"])
	})

	t.Run("file-backed target folds its own content", func(t *testing.T) {
		withFile := Derive(e, fpMap{"main.go": 1, "util.go": 2, "bin": 77})
		assert.NotEqual(t, got["bin"], withFile["bin"])
	})
}

func TestDerive_Cycle(t *testing.T) {
	e := engine.New()
	e.SetDeps("a", []string{"b", "src.c"})
	e.SetDeps("b", []string{"a"})
	e.SetDeps("c", []string{"src.c"})

	got := Derive(e, fpMap{"src.c": 5})
	assert.Contains(t, got, "c")
	assert.NotContains(t, got, "a")
	assert.NotContains(t, got, "b")
}

func TestRecord(t *testing.T) {
	e := buildGraph()
	plan := &engine.BuildPlan{Order: []string{"main.go", "util.go", "bin", "gen"}}

	recorded := Record(e, plan, fpMap{"main.go": 1, "util.go": 2, "bin": 3})
	assert.Equal(t, []string{"main.go", "util.go", "bin"}, recorded)
	assert.Equal(t, uint64(1), e.Epoch())

	n, ok := e.Node("gen")
	require.True(t, ok)
	assert.False(t, n.HasFingerprint())
}

func TestChangedRoots(t *testing.T) {
	e := buildGraph()
	e.SetFingerprint("main.go", 1)
	e.SetFingerprint("util.go", 2)
	e.SetFingerprint("bin", 9)

	external := fpMap{"main.go": 1, "util.go": 20, "bin": 9}
	reported := []string{"main.go", "util.go", "bin", "schema.json", "stray.tmp"}

	got := ChangedRoots(e, reported, external)

	// main.go and bin were rewritten with the recorded content; schema.json
	// was never recorded; stray.tmp is not a node.
	assert.Equal(t, []string{"util.go", "schema.json"}, got)

	t.Run("recorded node gone from disk", func(t *testing.T) {
		got := ChangedRoots(e, []string{"main.go"}, fpMap{})
		assert.Equal(t, []string{"main.go"}, got)
	})

	t.Run("nothing moved", func(t *testing.T) {
		assert.Empty(t, ChangedRoots(e, []string{"main.go", "bin"}, external))
	})
}
