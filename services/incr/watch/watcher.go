// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch turns filesystem events into batches of modified paths.
//
// Watcher wraps fsnotify with recursive registration, pruning of hidden and
// excluded directories, debouncing and a rate limit on delivered batches.
// RootTracker accumulates the modified roots between build passes.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/buildgraph/services/incr/fingerprint"
)

// Op is the kind of change observed for a path.
type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
	OpRename
)

// String returns the lowercase op name.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Change is one path's latest change within a batch.
type Change struct {
	// Path is forward-slash and relative to the watched root, so it can be
	// used directly as a node id.
	Path string

	Op   Op
	Time time.Time
}

// Handler receives a debounced batch, sorted by path with one entry per path.
type Handler func(ctx context.Context, changes []Change)

// Options configures a Watcher.
type Options struct {
	// Debounce is the quiet period that closes a batch.
	Debounce time.Duration

	// MinInterval is the minimum spacing between delivered batches. Changes
	// arriving in between are merged into the next batch.
	MinInterval time.Duration

	// IncludeHidden watches entries whose name starts with ".".
	IncludeHidden bool

	// Matcher selects files and prunes excluded directories. Nil watches
	// everything.
	Matcher *fingerprint.GlobMatcher

	// Ignore lists root-relative directories never watched, such as the
	// state directory.
	Ignore []string

	// BufferSize bounds queued raw events. Events beyond it are dropped.
	BufferSize int

	Logger *slog.Logger
}

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() Options {
	return Options{
		Debounce:    150 * time.Millisecond,
		MinInterval: 500 * time.Millisecond,
		BufferSize:  4096,
	}
}

// Watcher delivers batches of changes under a root directory.
//
// Thread Safety: Run may be called once. The handler runs on the watcher's
// own goroutine, one batch at a time.
type Watcher struct {
	root    string
	opts    Options
	handler Handler
	fsw     *fsnotify.Watcher
	limiter *rate.Limiter
	logger  *slog.Logger

	events chan Change

	mu      sync.Mutex
	started bool
}

// New creates a watcher for root. Nothing is watched until Run.
func New(root string, handler Handler, opts Options) (*Watcher, error) {
	if handler == nil {
		return nil, errors.New("watch: handler is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultOptions().BufferSize
	}
	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{
		root:    abs,
		opts:    opts,
		handler: handler,
		fsw:     fsw,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		events:  make(chan Change, opts.BufferSize),
	}, nil
}

// Run watches until ctx is cancelled, delivering any pending batch before
// returning.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("watch: already running")
	}
	w.started = true
	w.mu.Unlock()
	defer w.fsw.Close()

	if err := w.addTree(w.root); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.readEvents(ctx)
	}()
	w.batchLoop(ctx)
	cancel()
	wg.Wait()
	return nil
}

func (w *Watcher) rel(path string) (string, bool) {
	r, err := filepath.Rel(w.root, path)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(r), true
}

func (w *Watcher) skipDir(rel string) bool {
	if rel == "." {
		return false
	}
	if !w.opts.IncludeHidden && hasHiddenSegment(rel) {
		return true
	}
	for _, ig := range w.opts.Ignore {
		ig = strings.Trim(filepath.ToSlash(ig), "/")
		if rel == ig || strings.HasPrefix(rel, ig+"/") {
			return true
		}
	}
	return w.opts.Matcher != nil && w.opts.Matcher.Excluded(rel)
}

func (w *Watcher) skipFile(rel string) bool {
	if !w.opts.IncludeHidden && hasHiddenSegment(rel) {
		return true
	}
	if dir := filepath.ToSlash(filepath.Dir(filepath.FromSlash(rel))); dir != "." && w.skipDir(dir) {
		return true
	}
	return w.opts.Matcher != nil && !w.opts.Matcher.Match(rel)
}

func hasHiddenSegment(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") && seg != "." {
			return true
		}
	}
	return false
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			w.logger.Debug("watch: skipping unreadable path", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, ok := w.rel(path)
		if !ok || w.skipDir(rel) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) readEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch: fsnotify error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	rel, ok := w.rel(ev.Name)
	if !ok || rel == "." {
		return
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if w.skipDir(rel) {
				return
			}
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn("watch: cannot watch new directory", slog.String("path", rel), slog.String("error", err.Error()))
			}
			return
		}
	}
	if w.skipFile(rel) {
		return
	}

	change := Change{Path: rel, Op: convertOp(ev.Op), Time: time.Now()}
	select {
	case w.events <- change:
	default:
		w.logger.Warn("watch: event buffer full, dropping change", slog.String("path", rel))
	}
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	default:
		return OpWrite
	}
}

func (w *Watcher) batchLoop(ctx context.Context) {
	pending := make(map[string]Change)
	var timer *time.Timer
	var timerC <-chan time.Time

	arm := func(d time.Duration) {
		if timer == nil {
			timer = time.NewTimer(d)
		} else {
			timer.Reset(d)
		}
		timerC = timer.C
	}
	flush := func() {
		if len(pending) == 0 {
			return
		}
		batch := make([]Change, 0, len(pending))
		for _, c := range pending {
			batch = append(batch, c)
		}
		sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
		clear(pending)
		w.handler(ctx, batch)
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case c := <-w.events:
			pending[c.Path] = c
			arm(w.opts.Debounce)
		case <-timerC:
			timerC = nil
			if wait := w.reserve(); wait > 0 {
				arm(wait)
				continue
			}
			flush()
		}
	}
}

// reserve takes a delivery token, or returns how long until one is free
// without taking it.
func (w *Watcher) reserve() time.Duration {
	r := w.limiter.Reserve()
	d := r.Delay()
	if d > 0 {
		r.Cancel()
	}
	return d
}
