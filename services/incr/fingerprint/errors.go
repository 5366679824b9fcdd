// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fingerprint computes stable 64-bit fingerprints of bytes, files and
// directory trees.
//
// Fingerprints use FNV-1a 64 for byte sequences and a single composite step,
// Fold, for combining values. Three file strategies trade accuracy for speed:
// Meta looks only at stat metadata, Fast adds the first and last 64 KiB of
// content, and Full streams the whole file.
//
// # Determinism
//
// Directory listings are sorted forward-slash relative paths, so maps and
// directory fingerprints are identical across runs and platforms given the
// same tree.
//
// # Thread Safety
//
// All functions are safe for concurrent use. BuildMapContext fans hashing out
// over a bounded worker group; its result does not depend on scheduling.
package fingerprint

import (
	"errors"
	"fmt"
)

// Sentinel errors for fingerprint operations.
var (
	// ErrNotDirectory is returned when a listing root is not a directory.
	ErrNotDirectory = errors.New("not a directory")

	// ErrNotRegular is returned when a file fingerprint is requested for a
	// directory or other non-regular file.
	ErrNotRegular = errors.New("not a regular file")

	// ErrUnknownStrategy is returned for a Strategy value outside Meta, Fast
	// and Full.
	ErrUnknownStrategy = errors.New("unknown fingerprint strategy")
)

// IOError reports a failed filesystem operation.
//
// Every stat, open, read, readdir, write, fsync and rename failure surfaces
// as an IOError so callers can classify it without inspecting os errors.
type IOError struct {
	// Op is the failed operation ("stat", "open", "read", "readdir", ...).
	Op string

	// Path is the path the operation was applied to.
	Path string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *IOError) Unwrap() error {
	return e.Err
}

func ioErr(op, path string, err error) error {
	return &IOError{Op: op, Path: path, Err: err}
}
