// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the .incr.yaml project configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/buildgraph/services/incr/fingerprint"
)

// FileName is the configuration file looked up in the working directory.
const FileName = ".incr.yaml"

// Config is the complete project configuration.
type Config struct {
	// Root is the project directory that node ids are relative to.
	Root string `yaml:"root" validate:"required"`

	State       StateConfig       `yaml:"state"`
	Fingerprint FingerprintConfig `yaml:"fingerprint"`
	Log         LogConfig         `yaml:"log"`
	Watch       WatchConfig       `yaml:"watch"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// StateConfig locates the persisted engine state.
type StateConfig struct {
	// Dir holds the snapshot, the lock file and the badger database.
	Dir string `yaml:"dir" validate:"required"`

	// Backend is "file" (one snapshot file) or "badger".
	Backend string `yaml:"backend" validate:"oneof=file badger"`

	// Project keys the snapshot inside a shared badger database.
	Project string `yaml:"project" validate:"required,max=128"`
}

// FingerprintConfig controls file scanning.
type FingerprintConfig struct {
	Strategy       string   `yaml:"strategy" validate:"oneof=meta fast full"`
	IncludeHidden  bool     `yaml:"include_hidden"`
	FollowSymlinks bool     `yaml:"follow_symlinks"`
	Includes       []string `yaml:"includes,omitempty" validate:"dive,required"`
	Excludes       []string `yaml:"excludes,omitempty" validate:"dive,required"`
	Concurrency    int      `yaml:"concurrency" validate:"gte=0,lte=1024"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`

	// Dir enables a daily JSON log file when set.
	Dir string `yaml:"dir,omitempty"`
}

// WatchConfig controls `incr watch`.
type WatchConfig struct {
	Debounce    time.Duration `yaml:"debounce" validate:"gte=0"`
	MinInterval time.Duration `yaml:"min_interval" validate:"gte=0"`

	// MetricsAddr serves /metrics while watching when set.
	MetricsAddr string `yaml:"metrics_addr,omitempty" validate:"omitempty,hostname_port"`
}

// TelemetryConfig selects OpenTelemetry exporters.
type TelemetryConfig struct {
	Traces       string `yaml:"traces" validate:"oneof=none stdout otlp"`
	Metrics      string `yaml:"metrics" validate:"oneof=none stdout prometheus"`
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty" validate:"required_if=Traces otlp"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Root: ".",
		State: StateConfig{
			Dir:     ".incr",
			Backend: "file",
			Project: "default",
		},
		Fingerprint: FingerprintConfig{
			Strategy: "fast",
			Excludes: append([]string(nil), fingerprint.DefaultExcludes...),
		},
		Log: LogConfig{Level: "info"},
		Watch: WatchConfig{
			Debounce:    150 * time.Millisecond,
			MinInterval: 500 * time.Millisecond,
		},
		Telemetry: TelemetryConfig{
			Traces:  "none",
			Metrics: "none",
		},
	}
}

// Load reads the configuration.
//
// Description:
//
//	With an explicit path the file must exist. With an empty path FileName
//	in the working directory is used when present, and Default otherwise.
//	File values overlay the defaults. Directory fields expand a leading "~".
//	The result is validated.
//
// Outputs:
//
//	Config - The configuration.
//	string - The file that was read, empty when defaults were used.
//	error - Read, parse or validation failure.
func Load(path string) (Config, string, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = FileName
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
	case !explicit && errors.Is(err, fs.ErrNotExist):
		return cfg, "", cfg.Validate()
	default:
		return Config{}, "", fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, "", fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Root = expandHome(cfg.Root)
	cfg.State.Dir = expandHome(cfg.State.Dir)
	cfg.Log.Dir = expandHome(cfg.Log.Dir)

	if err := cfg.Validate(); err != nil {
		return Config{}, "", fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, path, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	return validator.New().Struct(c)
}

// WriteDefault writes the default configuration to path. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	return fingerprint.AtomicWrite(path, data)
}

// StateDir returns the state directory resolved against Root.
func (c Config) StateDir() string {
	if filepath.IsAbs(c.State.Dir) {
		return c.State.Dir
	}
	return filepath.Join(c.Root, c.State.Dir)
}

// Strategy returns the parsed fingerprint strategy.
func (c Config) Strategy() fingerprint.Strategy {
	s, err := fingerprint.ParseStrategy(c.Fingerprint.Strategy)
	if err != nil {
		return fingerprint.Fast
	}
	return s
}

// ScanOptions returns listing options for the project.
//
// The state directory is always excluded when it lives under Root.
func (c Config) ScanOptions() fingerprint.Options {
	excludes := append([]string(nil), c.Fingerprint.Excludes...)
	if rel, err := filepath.Rel(c.Root, c.StateDir()); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
		excludes = append(excludes, filepath.ToSlash(rel)+"/**")
	}
	m := fingerprint.NewGlobMatcher(c.Fingerprint.Includes, excludes)
	return fingerprint.Options{
		IncludeHidden:  c.Fingerprint.IncludeHidden,
		FollowSymlinks: c.Fingerprint.FollowSymlinks,
		Filter:         m.Filter(),
		Concurrency:    c.Fingerprint.Concurrency,
	}
}

// Matcher returns the glob matcher for the project's includes and excludes.
func (c Config) Matcher() *fingerprint.GlobMatcher {
	return fingerprint.NewGlobMatcher(c.Fingerprint.Includes, c.Fingerprint.Excludes)
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
