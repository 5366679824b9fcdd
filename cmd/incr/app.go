// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/buildgraph/pkg/logging"
	"github.com/AleutianAI/buildgraph/pkg/ux"
	"github.com/AleutianAI/buildgraph/services/incr/config"
	"github.com/AleutianAI/buildgraph/services/incr/driver"
	"github.com/AleutianAI/buildgraph/services/incr/engine"
	"github.com/AleutianAI/buildgraph/services/incr/lock"
	"github.com/AleutianAI/buildgraph/services/incr/telemetry"
)

// version is overridden at link time.
var version = "dev"

// Exit codes.
const (
	exitOK     = 0
	exitError  = 1
	exitCycle  = 2
	exitLocked = 3
)

// app holds the state shared by every command of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer

	// Persistent flags.
	configPath string
	rootDir    string
	logLevel   string
	plain      bool

	cfg      config.Config
	logger   *logging.Logger
	out      *ux.Printer
	shutdown telemetry.Shutdown
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return a.report(root.ExecuteContext(ctx))
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "incr",
		Short: "Incremental build planner",
		Long: `incr tracks a dependency graph between build targets and the files they
are made from. After files change it computes the minimal set of targets to
rebuild, in dependency order, and records the new fingerprints once the build
is done.

Typical loop:
  incr deps bin main.go util.go   # declare that bin is built from two files
  incr plan                       # what is dirty, in build order
  make bin                        # build
  incr apply                      # record what was built`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "config file (default ./"+config.FileName+" when present)")
	pf.StringVarP(&a.rootDir, "root", "C", "", "project root, overriding the config")
	pf.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error, overriding the config")
	pf.BoolVar(&a.plain, "plain", false, "disable styled output")

	root.AddCommand(
		a.initCmd(),
		a.scanCmd(),
		a.diffCmd(),
		a.depsCmd(),
		a.removeCmd(),
		a.planCmd(),
		a.applyCmd(),
		a.markCmd(),
		a.gcCmd(),
		a.statusCmd(),
		a.validateCmd(),
		a.watchCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.out = ux.NewPrinter(a.stdout, a.plain)

	path := a.configPath
	if path == "" && a.rootDir != "" {
		if candidate := filepath.Join(a.rootDir, config.FileName); fileExists(candidate) {
			path = candidate
		}
	}
	cfg, used, err := config.Load(path)
	if err != nil {
		return err
	}
	switch {
	case a.rootDir != "":
		cfg.Root = a.rootDir
	case used != "" && !filepath.IsAbs(cfg.Root):
		cfg.Root = filepath.Join(filepath.Dir(used), cfg.Root)
	}
	if abs, err := filepath.Abs(cfg.Root); err == nil {
		cfg.Root = abs
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	a.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Log.Dir,
		Service: "incr",
		JSON:    cfg.Log.JSON,
		Writer:  a.stderr,
	})
	a.logger.Debug("configuration loaded", "file", used, "root", cfg.Root, "command", cmd.Name())

	a.shutdown, err = telemetry.Init(cmd.Context(), telemetry.Config{
		ServiceName:    "incr",
		ServiceVersion: version,
		Traces:         cfg.Telemetry.Traces,
		Metrics:        cfg.Telemetry.Metrics,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   true,
		Writer:         a.stderr,
	})
	return err
}

func (a *app) teardown(ctx context.Context) error {
	var errs []error
	if a.shutdown != nil {
		errs = append(errs, a.shutdown(ctx))
		a.shutdown = nil
	}
	if a.logger != nil {
		errs = append(errs, a.logger.Close())
	}
	return errors.Join(errs...)
}

// open starts a session. Mutating commands pass readOnly=false to take the
// state-directory lock.
func (a *app) open(ctx context.Context, readOnly bool) (*driver.Session, error) {
	return driver.Open(ctx, a.cfg, a.logger, driver.Options{ReadOnly: readOnly})
}

// report prints err and maps it to an exit code.
func (a *app) report(err error) int {
	if err == nil {
		return exitOK
	}
	_ = a.teardown(context.Background())

	errOut := ux.NewPrinter(a.stderr, a.plain)
	switch {
	case engine.KindOf(err) == engine.KindCycle:
		errOut.Error("%v", err)
		return exitCycle
	case errors.Is(err, lock.ErrLocked):
		errOut.Error("%v (another incr command is running)", err)
		return exitLocked
	default:
		errOut.Error("%v", err)
		return exitError
	}
}

// withSession opens a session, runs fn and closes the session. When commit
// is set and fn succeeds, the engine is saved before closing.
func (a *app) withSession(ctx context.Context, commit bool, fn func(*driver.Session) error) (err error) {
	s, err := a.open(ctx, !commit)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close session: %w", cerr)
		}
	}()
	if s.Recovered != nil {
		a.out.Warning("snapshot unusable, continuing with empty history: %v", s.Recovered)
	}
	if err := fn(s); err != nil {
		return err
	}
	if commit {
		return s.Commit(ctx)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
