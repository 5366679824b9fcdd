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
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/buildgraph/services/incr/fingerprint"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]Change
}

func (r *recorder) handle(_ context.Context, changes []Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, changes)
}

func (r *recorder) paths() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]bool)
	for _, b := range r.batches {
		for _, c := range b {
			out[c.Path] = true
		}
	}
	return out
}

func startWatcher(t *testing.T, root string, opts Options) *recorder {
	t.Helper()
	rec := &recorder{}
	w, err := New(root, rec.handle, opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	// Give Run time to register the tree.
	time.Sleep(100 * time.Millisecond)
	return rec
}

func TestWatcher_DeliversRelativePaths(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".incr"), 0o755))

	rec := startWatcher(t, root, Options{
		Debounce: 20 * time.Millisecond,
		Matcher:  fingerprint.NewGlobMatcher([]string{"*.go"}, nil),
	})

	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main.go"), []byte("package main"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".incr", "state.go"), []byte("x"), 0o644))

	require.Eventually(t, func() bool {
		return rec.paths()["src/main.go"]
	}, 5*time.Second, 20*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	paths := rec.paths()
	assert.False(t, paths["src/notes.txt"], "filtered by matcher")
	assert.False(t, paths[".incr/state.go"], "hidden directory")
}

func TestWatcher_NewDirectoriesAreWatched(t *testing.T) {
	root := t.TempDir()
	rec := startWatcher(t, root, Options{Debounce: 20 * time.Millisecond})

	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg"), 0o755))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg", "a.go"), []byte("package pkg"), 0o644))

	require.Eventually(t, func() bool {
		return rec.paths()["pkg/a.go"]
	}, 5*time.Second, 20*time.Millisecond)
}

func TestNew_RequiresHandler(t *testing.T) {
	_, err := New(t.TempDir(), nil, DefaultOptions())
	assert.Error(t, err)
}

func TestRootTracker(t *testing.T) {
	tr := NewRootTracker()
	tr.Mark("b.go", "a.go")
	tr.MarkChanges([]Change{{Path: "c.go"}, {Path: "a.go"}})
	assert.Equal(t, 3, tr.Len())

	assert.Equal(t, []string{"a.go", "b.go", "c.go"}, tr.Drain())
	assert.Zero(t, tr.Len())
	assert.Empty(t, tr.Drain())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Mark("same")
		}()
	}
	wg.Wait()
	assert.Equal(t, []string{"same"}, tr.Drain())
}
