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
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/AleutianAI/buildgraph/pkg/logging"
	"github.com/AleutianAI/buildgraph/services/incr/config"
	"github.com/AleutianAI/buildgraph/services/incr/engine"
	"github.com/AleutianAI/buildgraph/services/incr/fingerprint"
	"github.com/AleutianAI/buildgraph/services/incr/lock"
	badgerstore "github.com/AleutianAI/buildgraph/services/incr/storage/badger"
)

// SnapshotFile is the snapshot file name used by the file backend.
const SnapshotFile = "snapshot.json"

// Options controls how a Session is opened.
type Options struct {
	// ReadOnly skips the state-directory lock. Commit fails on a read-only
	// session.
	ReadOnly bool
}

// ErrReadOnly is returned by Commit on a read-only session.
var ErrReadOnly = errors.New("session is read-only")

// Session is one CLI run against a project's state.
//
// Thread Safety: Not safe for concurrent use. The watch loop serializes
// access itself.
type Session struct {
	Config config.Config
	Engine *engine.Engine
	Store  engine.SnapshotStore
	Logger *logging.Logger
	RunID  string

	// Recovered is the snapshot error that forced a fresh start, if any.
	Recovered error

	readOnly bool
	lock     *lock.Lock
	db       *badgerstore.DB
}

// Open locks the state directory (unless read-only), opens the configured
// snapshot backend and loads the engine.
//
// Description:
//
//	A missing snapshot starts an empty engine silently. A corrupt or
//	unreadable one is logged as a warning, kept in Recovered, and also
//	starts empty; the next Commit replaces it.
//
// Outputs:
//
//	*Session - Call Close when done.
//	error - Lock held (lock.ErrLocked), backend open failure or
//	  cancellation. A badger database held open by a writer is reported
//	  as lock.ErrLocked even for read-only sessions.
func Open(ctx context.Context, cfg config.Config, logger *logging.Logger, opts Options) (*Session, error) {
	runID := uuid.NewString()
	logger = logger.With("run_id", runID)
	s := &Session{Config: cfg, Logger: logger, RunID: runID, readOnly: opts.ReadOnly}

	if !opts.ReadOnly {
		l, err := lock.Acquire(cfg.StateDir())
		if err != nil {
			return nil, err
		}
		s.lock = l
	}

	if err := s.openStore(logger); err != nil {
		s.Close()
		return nil, err
	}

	eng, err := engine.LoadOrFresh(ctx, s.Store)
	if eng == nil {
		s.Close()
		return nil, err
	}
	if err != nil {
		logger.Warn("snapshot unusable, starting with empty history",
			"kind", engine.KindOf(err).String(),
			"error", err.Error())
		s.Recovered = err
	}
	s.Engine = eng
	logger.Debug("session opened",
		"backend", cfg.State.Backend,
		"nodes", eng.Len(),
		"epoch", eng.Epoch())
	return s, nil
}

func (s *Session) openStore(logger *logging.Logger) error {
	dir := s.Config.StateDir()
	switch s.Config.State.Backend {
	case "badger":
		bcfg := badgerstore.DefaultConfig(filepath.Join(dir, "badger"))
		bcfg.Logger = logger.Slog()
		db, err := badgerstore.Open(bcfg)
		if errors.Is(err, badgerstore.ErrDatabaseLocked) {
			return lock.Holder(dir)
		}
		if err != nil {
			return err
		}
		s.db = db
		s.Store = badgerstore.NewSnapshotStore(db, s.Config.State.Project)
	case "file", "":
		s.Store = engine.NewFileStore(filepath.Join(dir, SnapshotFile))
	default:
		return fmt.Errorf("unknown state backend %q", s.Config.State.Backend)
	}
	return nil
}

// Externals scans the project and derives fingerprints for every node.
func (s *Session) Externals(ctx context.Context) (map[string]fingerprint.Fingerprint, error) {
	return ExternalFingerprints(ctx, s.Engine, s.Config.Root, s.Config.ScanOptions(), s.Config.Strategy())
}

// Plan scans the project and plans a build from roots.
func (s *Session) Plan(ctx context.Context, roots []string) (*engine.BuildPlan, map[string]fingerprint.Fingerprint, error) {
	external, err := s.Externals(ctx)
	if err != nil {
		return nil, nil, err
	}
	plan, err := s.Engine.PlanFrom(ctx, roots, external)
	if err != nil {
		return nil, nil, err
	}
	s.Logger.Info("plan computed",
		"dirty", len(plan.Dirty),
		"roots", len(roots),
		"scanned", len(external))
	return plan, external, nil
}

// PlanChanges plans a build after paths were reported changed. Only the
// paths whose fingerprint moved since the last record become roots; the
// roots used are returned with the plan.
func (s *Session) PlanChanges(ctx context.Context, paths []string) (*engine.BuildPlan, []string, error) {
	external, err := s.Externals(ctx)
	if err != nil {
		return nil, nil, err
	}
	roots := ChangedRoots(s.Engine, paths, external)
	plan, err := s.Engine.PlanFrom(ctx, roots, external)
	if err != nil {
		return nil, roots, err
	}
	s.Logger.Info("plan computed",
		"dirty", len(plan.Dirty),
		"reported", len(paths),
		"roots", len(roots))
	return plan, roots, nil
}

// Apply records a completed plan using fingerprints scanned after the
// build, so generated outputs are captured as built.
func (s *Session) Apply(ctx context.Context, plan *engine.BuildPlan) ([]string, error) {
	external, err := s.Externals(ctx)
	if err != nil {
		return nil, err
	}
	recorded := Record(s.Engine, plan, external)
	s.Logger.Info("build results recorded",
		"recorded", len(recorded),
		"skipped", len(plan.Order)-len(recorded),
		"epoch", s.Engine.Epoch())
	return recorded, nil
}

// Commit saves the engine.
func (s *Session) Commit(ctx context.Context) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if err := s.Engine.Save(ctx, s.Store); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	s.Logger.Debug("snapshot saved", "nodes", s.Engine.Len(), "epoch", s.Engine.Epoch())
	return nil
}

// Close releases the backend and the lock.
func (s *Session) Close() error {
	var errs []error
	if s.db != nil {
		errs = append(errs, s.db.Close())
		s.db = nil
	}
	if s.lock != nil {
		errs = append(errs, s.lock.Release())
		s.lock = nil
	}
	return errors.Join(errs...)
}
