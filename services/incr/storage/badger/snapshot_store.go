// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/buildgraph/services/incr/fingerprint"
)

// SnapshotStore keeps one project's engine snapshot. It satisfies
// engine.SnapshotStore.
type SnapshotStore struct {
	db      *DB
	dataKey []byte
	timeKey []byte
}

// NewSnapshotStore returns the store for project.
func NewSnapshotStore(db *DB, project string) *SnapshotStore {
	return &SnapshotStore{
		db:      db,
		dataKey: []byte("snapshot/" + project + "/data"),
		timeKey: []byte("snapshot/" + project + "/saved_at"),
	}
}

// Load returns the saved snapshot bytes.
//
// A project with no snapshot returns an *fingerprint.IOError wrapping
// fs.ErrNotExist.
func (s *SnapshotStore) Load(ctx context.Context) ([]byte, error) {
	var out []byte
	err := s.db.View(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(s.dataKey)
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, s.ioErr("get", fmt.Errorf("%w: %w", fs.ErrNotExist, err))
	case ctx.Err() != nil:
		return nil, err
	default:
		return nil, s.ioErr("get", err)
	}
}

// Save stores data and the save time in one transaction.
func (s *SnapshotStore) Save(ctx context.Context, data []byte) error {
	stamp := make([]byte, 8)
	binary.BigEndian.PutUint64(stamp, uint64(time.Now().UnixNano()))

	err := s.db.Update(ctx, func(txn *badger.Txn) error {
		if err := txn.Set(s.dataKey, data); err != nil {
			return err
		}
		return txn.Set(s.timeKey, stamp)
	})
	if err != nil && ctx.Err() == nil {
		return s.ioErr("set", err)
	}
	return err
}

// SavedAt returns when the snapshot was last saved, or the zero time when
// it never was.
func (s *SnapshotStore) SavedAt(ctx context.Context) (time.Time, error) {
	var at time.Time
	err := s.db.View(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(s.timeKey)
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			if len(v) != 8 {
				return fmt.Errorf("malformed timestamp of %d bytes", len(v))
			}
			at = time.Unix(0, int64(binary.BigEndian.Uint64(v)))
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, s.ioErr("get", err)
	}
	return at, nil
}

func (s *SnapshotStore) ioErr(op string, err error) error {
	return &fingerprint.IOError{Op: op, Path: "badger:" + string(s.dataKey), Err: err}
}
