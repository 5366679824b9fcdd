// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lock serializes state-mutating runs across processes.
//
// # Description
//
// Two build drivers updating the same state directory would interleave
// snapshot writes and lose history. Acquire takes an exclusive advisory lock
// on <dir>/incr.lock and fails fast when another process holds it. The lock
// is released by Release or when the process exits.
//
// # Thread Safety
//
// A Lock must be released by a single goroutine.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FileName is the lock file created inside the state directory.
const FileName = "incr.lock"

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("state directory is locked by another process")

// HeldError reports who holds the lock.
type HeldError struct {
	// Path is the lock file.
	Path string

	// PID is the holder's process id, zero when unknown.
	PID int
}

// Error implements the error interface.
func (e *HeldError) Error() string {
	if e.PID > 0 {
		return fmt.Sprintf("%s: held by pid %d", e.Path, e.PID)
	}
	return fmt.Sprintf("%s: held by another process", e.Path)
}

// Is reports whether target is ErrLocked.
func (e *HeldError) Is(target error) bool {
	return target == ErrLocked
}

// Lock is a held state-directory lock.
type Lock struct {
	f    *os.File
	path string
}

// Acquire locks dir, creating it when missing.
//
// # Description
//
// Opens <dir>/incr.lock, takes a non-blocking exclusive lock and records the
// current pid in the file.
//
// # Outputs
//
//   - *Lock: The held lock. Call Release when done.
//   - error: *HeldError (matching ErrLocked) when already held, or the
//     filesystem error.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := lockFile(f); err != nil {
		pid := readPID(f)
		f.Close()
		if errors.Is(err, ErrLocked) {
			return nil, &HeldError{Path: path, PID: pid}
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}

	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
		_ = f.Sync()
	}
	return &Lock{f: f, path: path}, nil
}

// Holder returns a HeldError naming the process recorded in dir's lock
// file, for resources guarded by the lock that report contention
// themselves.
func Holder(dir string) *HeldError {
	path := filepath.Join(dir, FileName)
	held := &HeldError{Path: path}
	if f, err := os.Open(path); err == nil {
		held.PID = readPID(f)
		f.Close()
	}
	return held
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release unlocks and closes the lock file. The file itself is left in
// place. Calling Release on a released lock is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	f := l.f
	l.f = nil
	uerr := unlockFile(f)
	cerr := f.Close()
	if uerr != nil {
		return uerr
	}
	return cerr
}

func readPID(f *os.File) int {
	buf := make([]byte, 32)
	n, _ := f.ReadAt(buf, 0)
	pid, err := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
	if err != nil {
		return 0
	}
	return pid
}
