// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/buildgraph/services/incr/fingerprint"
)

// SnapshotStore persists encoded snapshots.
//
// Load returns an error satisfying errors.Is(err, fs.ErrNotExist) when
// nothing has been saved yet.
type SnapshotStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// FileStore keeps the snapshot in a single file, replaced atomically.
type FileStore struct {
	Path string
}

// NewFileStore returns a FileStore for path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads the snapshot file.
func (s *FileStore) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, &fingerprint.IOError{Op: "read", Path: s.Path, Err: err}
	}
	return data, nil
}

// Save replaces the snapshot file.
func (s *FileStore) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fingerprint.AtomicWrite(s.Path, data)
}

// Save encodes the engine and writes it to store.
func (e *Engine) Save(ctx context.Context, store SnapshotStore) error {
	ctx, span := tracer.Start(ctx, "engine.Save",
		trace.WithAttributes(attribute.Int("nodes", e.graph.Len())))
	defer span.End()

	data, err := e.ToBytes()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode failed")
		return err
	}
	if err := store.Save(ctx, data); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		return err
	}
	span.SetAttributes(attribute.Int("bytes", len(data)))
	return nil
}

// Load reads and decodes a snapshot from store.
func Load(ctx context.Context, store SnapshotStore, opts ...Option) (*Engine, error) {
	ctx, span := tracer.Start(ctx, "engine.Load")
	defer span.End()

	data, err := store.Load(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return nil, err
	}
	e, err := FromBytes(data, opts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("nodes", e.graph.Len()), attribute.Int("bytes", len(data)))
	return e, nil
}

// LoadOrFresh loads a snapshot, falling back to an empty engine.
//
// Description:
//
//	A missing snapshot yields a fresh engine and a nil error. An unreadable
//	or undecodable snapshot yields a fresh engine together with the error so
//	the caller can report it; the next Save overwrites the bad state. Any
//	other failure, such as cancellation, returns a nil engine.
//
// Outputs:
//
//	*Engine - Loaded or fresh engine, nil only with a KindOther error.
//	error - nil, or the recovered KindIO/KindDeserialize error.
func LoadOrFresh(ctx context.Context, store SnapshotStore, opts ...Option) (*Engine, error) {
	e, err := Load(ctx, store, opts...)
	if err == nil {
		return e, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return New(opts...), nil
	}
	switch kind := KindOf(err); kind {
	case KindIO, KindDeserialize:
		snapshotLoadFailures.WithLabelValues(kind.String()).Inc()
		return New(opts...), err
	default:
		return nil, err
	}
}
