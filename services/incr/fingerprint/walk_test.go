// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fingerprint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		writeFile(t, filepath.Join(root, filepath.FromSlash(rel)), []byte(content))
	}
	return root
}

func TestListFilesRecursive(t *testing.T) {
	t.Run("empty directory", func(t *testing.T) {
		files, err := ListFilesRecursive(t.TempDir(), Options{})
		if err != nil {
			t.Fatalf("ListFilesRecursive: %v", err)
		}
		if files == nil || len(files) != 0 {
			t.Errorf("files = %v, want empty non-nil slice", files)
		}
	})

	t.Run("sorted forward-slash paths", func(t *testing.T) {
		root := makeTree(t, map[string]string{
			"z.go":         "z",
			"a/b/c.go":     "c",
			"a/a.go":       "a",
			"B.txt":        "b",
			"a/b/c/deep.x": "d",
		})
		files, err := ListFilesRecursive(root, Options{})
		require.NoError(t, err)
		assert.Equal(t, []string{"B.txt", "a/a.go", "a/b/c.go", "a/b/c/deep.x", "z.go"}, files)
	})

	t.Run("hidden entries", func(t *testing.T) {
		root := makeTree(t, map[string]string{
			"main.go":         "m",
			".env":            "e",
			".git/HEAD":       "h",
			"pkg/.cache/x.go": "x",
		})
		files, err := ListFilesRecursive(root, Options{})
		require.NoError(t, err)
		assert.Equal(t, []string{"main.go"}, files)

		files, err = ListFilesRecursive(root, Options{IncludeHidden: true})
		require.NoError(t, err)
		assert.Equal(t, []string{".env", ".git/HEAD", "main.go", "pkg/.cache/x.go"}, files)
	})

	t.Run("filter applies to files", func(t *testing.T) {
		root := makeTree(t, map[string]string{
			"a.go":       "a",
			"a.md":       "a",
			"sub/b.go":   "b",
			"sub/b.json": "b",
		})
		files, err := ListFilesRecursive(root, Options{
			Filter: func(rel string) bool { return strings.HasSuffix(rel, ".go") },
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a.go", "sub/b.go"}, files)
	})

	t.Run("root must be a directory", func(t *testing.T) {
		root := makeTree(t, map[string]string{"f": "x"})
		_, err := ListFilesRecursive(filepath.Join(root, "f"), Options{})
		assert.ErrorIs(t, err, ErrNotDirectory)

		_, err = ListFilesRecursive(filepath.Join(root, "nope"), Options{})
		var ioe *IOError
		assert.True(t, errors.As(err, &ioe))
	})
}

func TestListFilesRecursive_Symlinks(t *testing.T) {
	root := makeTree(t, map[string]string{
		"real/a.go": "a",
		"real/b.go": "b",
	})
	if err := os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	// A link back to the root forms a cycle when followed.
	if err := os.Symlink(root, filepath.Join(root, "real", "loop")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	t.Run("skipped by default", func(t *testing.T) {
		files, err := ListFilesRecursive(root, Options{})
		require.NoError(t, err)
		assert.Equal(t, []string{"real/a.go", "real/b.go"}, files)
	})

	t.Run("followed with cycle detection", func(t *testing.T) {
		files, err := ListFilesRecursive(root, Options{FollowSymlinks: true})
		require.NoError(t, err)
		assert.Equal(t, []string{
			"link/a.go",
			"link/b.go",
			"real/a.go",
			"real/b.go",
		}, files)
	})
}

func TestBuildMap(t *testing.T) {
	root := makeTree(t, map[string]string{
		"a.go":     "package a",
		"b/b.go":   "package b",
		"b/c/c.go": "package c",
	})

	m, err := BuildMap(root, Options{}, Full)
	require.NoError(t, err)
	require.Len(t, m, 3)

	want, err := File(filepath.Join(root, "b", "c", "c.go"), Full)
	require.NoError(t, err)
	assert.Equal(t, want, m["b/c/c.go"])

	serial, err := BuildMapContext(context.Background(), root, Options{Concurrency: 1}, Full)
	require.NoError(t, err)
	assert.Equal(t, m, serial)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = BuildMapContext(ctx, root, Options{}, Full)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDirectory(t *testing.T) {
	t.Run("empty tree is the offset basis", func(t *testing.T) {
		fp, err := Directory(t.TempDir(), Options{}, Full)
		require.NoError(t, err)
		assert.Equal(t, OffsetBasis, fp)
	})

	t.Run("path then content per file", func(t *testing.T) {
		root := makeTree(t, map[string]string{"x.txt": "x"})
		fp, err := Directory(root, Options{}, Full)
		require.NoError(t, err)

		file, err := File(filepath.Join(root, "x.txt"), Full)
		require.NoError(t, err)
		assert.Equal(t, Fold(FoldBytes(OffsetBasis, []byte("x.txt")), uint64(file)), fp)
	})

	t.Run("deterministic and rename sensitive", func(t *testing.T) {
		files := map[string]string{"a.go": "1", "d/b.go": "2"}
		r1 := makeTree(t, files)
		r2 := makeTree(t, files)

		f1, err := Directory(r1, Options{}, Full)
		require.NoError(t, err)
		f2, err := Directory(r2, Options{}, Full)
		require.NoError(t, err)
		assert.Equal(t, f1, f2)

		require.NoError(t, os.Rename(filepath.Join(r2, "a.go"), filepath.Join(r2, "c.go")))
		f3, err := Directory(r2, Options{}, Full)
		require.NoError(t, err)
		assert.NotEqual(t, f1, f3)
	})
}

func TestDiffMaps(t *testing.T) {
	prev := map[string]Fingerprint{"a": 1, "b": 2, "c": 3, "z": 9}
	curr := map[string]Fingerprint{"a": 1, "b": 20, "d": 4, "y": 8}

	d := DiffMaps(prev, curr)
	assert.Equal(t, []string{"d", "y"}, d.Added)
	assert.Equal(t, []string{"b"}, d.Changed)
	assert.Equal(t, []string{"c", "z"}, d.Removed)
	assert.False(t, d.Empty())

	assert.True(t, DiffMaps(prev, prev).Empty())
	assert.True(t, DiffMaps(nil, nil).Empty())
}
