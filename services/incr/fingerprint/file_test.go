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
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

// rewrite replaces a file's content in place and restores its mtime, so only
// content-reading strategies can notice.
func rewrite(t *testing.T, path string, data []byte) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, os.Chtimes(path, info.ModTime(), info.ModTime()))
}

func TestFile_Stable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	writeFile(t, path, []byte("hello"))

	for _, s := range []Strategy{Meta, Fast, Full} {
		first, err := File(path, s)
		require.NoError(t, err)
		second, err := File(path, s)
		require.NoError(t, err)
		assert.Equal(t, first, second, "strategy %s", s)
	}
}

func TestFile_Full(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bin")
	b := filepath.Join(dir, "b.bin")
	writeFile(t, a, []byte("same content"))
	writeFile(t, b, []byte("same content"))

	fa, err := File(a, Full)
	require.NoError(t, err)
	fb, err := File(b, Full)
	require.NoError(t, err)
	assert.Equal(t, fa, fb, "full ignores metadata")
	assert.Equal(t, Fold(Bytes([]byte("same content")), 12), fa)

	rewrite(t, b, []byte("some content"))
	fb, err = File(b, Full)
	require.NoError(t, err)
	assert.NotEqual(t, fa, fb)
}

func TestFile_Meta(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.txt")
	writeFile(t, path, []byte("aaaa"))

	before, err := File(path, Meta)
	require.NoError(t, err)

	t.Run("same size same mtime content change is invisible", func(t *testing.T) {
		rewrite(t, path, []byte("bbbb"))
		after, err := File(path, Meta)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("mtime change is visible", func(t *testing.T) {
		later := time.Now().Add(2 * time.Hour)
		require.NoError(t, os.Chtimes(path, later, later))
		after, err := File(path, Meta)
		require.NoError(t, err)
		assert.NotEqual(t, before, after)
	})

	t.Run("size change is visible", func(t *testing.T) {
		writeFile(t, path, []byte("aaaaa"))
		after, err := File(path, Meta)
		require.NoError(t, err)
		assert.NotEqual(t, before, after)
	})
}

func TestFile_Fast(t *testing.T) {
	t.Run("small file content change is visible", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "s.txt")
		writeFile(t, path, []byte("aaaa"))
		before, err := File(path, Fast)
		require.NoError(t, err)

		rewrite(t, path, []byte("bbbb"))
		after, err := File(path, Fast)
		require.NoError(t, err)
		assert.NotEqual(t, before, after)
	})

	t.Run("large file samples head and tail only", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "big.bin")
		data := bytes.Repeat([]byte{'x'}, 3*SampleSize)
		writeFile(t, path, data)

		fast, err := File(path, Fast)
		require.NoError(t, err)
		full, err := File(path, Full)
		require.NoError(t, err)

		middle := bytes.Clone(data)
		middle[len(middle)/2] = 'y'
		rewrite(t, path, middle)

		fastMid, err := File(path, Fast)
		require.NoError(t, err)
		fullMid, err := File(path, Full)
		require.NoError(t, err)
		assert.Equal(t, fast, fastMid, "middle byte is outside both samples")
		assert.NotEqual(t, full, fullMid)

		tail := bytes.Clone(data)
		tail[len(tail)-1] = 'z'
		rewrite(t, path, tail)

		fastTail, err := File(path, Fast)
		require.NoError(t, err)
		assert.NotEqual(t, fast, fastTail)
	})
}

func TestFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := File(filepath.Join(dir, "missing"), Full)
	var ioe *IOError
	require.True(t, errors.As(err, &ioe), "got %T", err)
	assert.Equal(t, "stat", ioe.Op)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	_, err = File(dir, Meta)
	assert.ErrorIs(t, err, ErrNotRegular)

	path := filepath.Join(dir, "f")
	writeFile(t, path, nil)
	_, err = File(path, Strategy(9))
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}
