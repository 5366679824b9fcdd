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
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/buildgraph/services/incr/driver"
	"github.com/AleutianAI/buildgraph/services/incr/engine"
	"github.com/AleutianAI/buildgraph/services/incr/telemetry"
	"github.com/AleutianAI/buildgraph/services/incr/watch"
)

// planEnv carries the planned node ids, space separated and in build order,
// to the --run command.
const planEnv = "INCR_PLAN"

// =============================================================================
// WATCH
// =============================================================================

func (a *app) watchCmd() *cobra.Command {
	var (
		runCmd      string
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-plan whenever files change",
		Long: `Watches the project root and prints a fresh plan after each debounced batch
of changes. Changed paths whose fingerprint differs from the recorded one are
treated as modified roots, so their dependents are planned too. Writes that
leave a node as recorded, such as the outputs of the last build, are ignored.

With --run the command is executed through the shell whenever the plan is not
empty, with $INCR_PLAN holding the planned ids in build order. When it exits
successfully the plan is recorded and saved; otherwise the changed roots are
kept for the next batch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if metricsAddr == "" {
				metricsAddr = a.cfg.Watch.MetricsAddr
			}
			// Locked but never saved on exit: each successful pass commits.
			s, err := a.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()
			if s.Recovered != nil {
				a.out.Warning("snapshot unusable, continuing with empty history: %v", s.Recovered)
			}
			l := &watchLoop{app: a, session: s, run: runCmd, tracker: watch.NewRootTracker()}
			return l.serve(cmd.Context(), metricsAddr)
		},
	}
	f := cmd.Flags()
	f.StringVar(&runCmd, "run", "", "build command to execute when the plan is not empty")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

type watchLoop struct {
	app     *app
	session *driver.Session
	run     string
	tracker *watch.RootTracker
}

func (l *watchLoop) serve(ctx context.Context, metricsAddr string) error {
	logger := l.session.Logger

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", telemetry.MetricsHandler())
		srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "addr", metricsAddr, "error", err.Error())
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("serving metrics", "addr", metricsAddr)
	}

	cfg := l.session.Config
	opts := watch.DefaultOptions()
	opts.Debounce = cfg.Watch.Debounce
	opts.MinInterval = cfg.Watch.MinInterval
	opts.IncludeHidden = cfg.Fingerprint.IncludeHidden
	opts.Matcher = cfg.Matcher()
	opts.Logger = logger.Slog()
	if rel, err := filepath.Rel(cfg.Root, cfg.StateDir()); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
		opts.Ignore = []string{filepath.ToSlash(rel)}
	}

	w, err := watch.New(cfg.Root, l.onChange, opts)
	if err != nil {
		return err
	}

	l.pass(ctx, nil)
	l.app.out.Line("watching %s (Ctrl-C to stop)", cfg.Root)
	return w.Run(ctx)
}

func (l *watchLoop) onChange(ctx context.Context, changes []watch.Change) {
	l.session.Logger.Debug("change batch", "paths", len(changes))
	l.tracker.MarkChanges(changes)
	l.pass(ctx, l.tracker.Drain())
}

// pass plans from the changed paths, runs the build command and records the
// result.
func (l *watchLoop) pass(ctx context.Context, paths []string) {
	out := l.app.out
	s := l.session
	if ctx.Err() != nil {
		return
	}

	plan, roots, err := s.PlanChanges(ctx, paths)
	if err != nil {
		if engine.KindOf(err) == engine.KindCycle {
			out.Error("%v", err)
		} else {
			out.Error("plan failed: %v", err)
		}
		l.tracker.Mark(paths...)
		return
	}
	if len(paths) > 0 && len(roots) == 0 && plan.Empty() {
		s.Logger.Debug("batch left every node as recorded", "paths", len(paths))
		return
	}
	l.app.printPlan(plan)
	if l.run == "" || plan.Empty() {
		return
	}

	if err := l.build(ctx, plan); err != nil {
		if ctx.Err() == nil {
			out.Error("build failed: %v", err)
		}
		l.tracker.Mark(roots...)
		return
	}
	recorded, err := s.Apply(ctx, plan)
	if err != nil {
		out.Error("record build: %v", err)
		return
	}
	if err := s.Commit(ctx); err != nil {
		out.Error("%v", err)
		return
	}
	out.Success("recorded %d node(s) as build %d", len(recorded), s.Engine.Epoch())
}

func (l *watchLoop) build(ctx context.Context, plan *engine.BuildPlan) error {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", l.run)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", l.run)
	}
	cmd.Dir = l.session.Config.Root
	cmd.Env = append(os.Environ(), fmt.Sprintf("%s=%s", planEnv, strings.Join(plan.Order, " ")))
	cmd.Stdout = l.app.stdout
	cmd.Stderr = l.app.stderr

	start := time.Now()
	err := cmd.Run()
	l.session.Logger.Info("build command finished",
		"command", l.run,
		"nodes", len(plan.Order),
		"duration_ms", time.Since(start).Milliseconds(),
		"ok", err == nil)
	return err
}
