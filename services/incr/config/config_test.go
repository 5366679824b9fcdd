// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/buildgraph/services/incr/fingerprint"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
	assert.Equal(t, fingerprint.Fast, Default().Strategy())
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, used, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, used)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "incr.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
root: /src/project
state:
  backend: badger
  project: web
fingerprint:
  strategy: full
  includes: ["*.go", "go.mod"]
  concurrency: 4
watch:
  debounce: 50ms
`), 0o644))

	cfg, used, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, "/src/project", cfg.Root)
	assert.Equal(t, "badger", cfg.State.Backend)
	assert.Equal(t, ".incr", cfg.State.Dir, "unset fields keep defaults")
	assert.Equal(t, fingerprint.Full, cfg.Strategy())
	assert.Equal(t, 4, cfg.Fingerprint.Concurrency)
	assert.Equal(t, 50*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.MinInterval)
	assert.Equal(t, filepath.Join("/src/project", ".incr"), cfg.StateDir())
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"strategy":  "fingerprint:\n  strategy: sha1\n",
		"backend":   "state:\n  backend: sqlite\n",
		"level":     "log:\n  level: loud\n",
		"otlp":      "telemetry:\n  traces: otlp\n",
		"syntax":    "root: [unclosed\n",
		"empty dir": "state:\n  dir: \"\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "incr.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, _, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, WriteDefault(path))
	assert.Error(t, WriteDefault(path), "refuses to overwrite")

	cfg, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestScanOptions_ExcludesStateDir(t *testing.T) {
	cfg := Default()
	cfg.Fingerprint.IncludeHidden = true
	opts := cfg.ScanOptions()

	require.NotNil(t, opts.Filter)
	assert.True(t, opts.Filter("main.go"))
	assert.False(t, opts.Filter(".incr/snapshot.json"))
	assert.False(t, opts.Filter("vendor/x/y.go"))
	assert.True(t, opts.IncludeHidden)
}
