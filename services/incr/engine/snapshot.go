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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/AleutianAI/buildgraph/services/incr/graph"
)

const (
	// SnapshotFormat identifies the envelope.
	SnapshotFormat = "buildgraph.snapshot"

	// SnapshotVersion is the current payload version.
	SnapshotVersion uint32 = 1
)

// Snapshot is the persistent engine state.
type Snapshot struct {
	Version    uint32                    `json:"version"`
	BuildEpoch uint64                    `json:"build_epoch"`
	Nodes      map[string]graph.NodeMeta `json:"nodes"`
	Deps       map[string][]string       `json:"deps"`
}

// envelope wraps the payload bytes so the checksum covers exactly what was
// written.
type envelope struct {
	Format   string          `json:"format"`
	Version  uint32          `json:"version"`
	Checksum string          `json:"checksum"`
	Payload  json.RawMessage `json:"payload"`
}

// Snapshot returns a copy of the persistent state.
func (e *Engine) Snapshot() Snapshot {
	nodes, deps := e.graph.Export()
	return Snapshot{
		Version:    SnapshotVersion,
		BuildEpoch: e.epoch,
		Nodes:      nodes,
		Deps:       deps,
	}
}

// ToBytes encodes the engine as a snapshot.
//
// The encoding is deterministic: equal engines produce identical bytes.
func (e *Engine) ToBytes() ([]byte, error) {
	payload, err := json.Marshal(e.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("encode snapshot payload: %w", err)
	}
	data, err := json.Marshal(envelope{
		Format:   SnapshotFormat,
		Version:  SnapshotVersion,
		Checksum: checksum(payload),
		Payload:  payload,
	})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	snapshotBytes.Set(float64(len(data)))
	return data, nil
}

// FromBytes decodes a snapshot produced by ToBytes.
//
// Description:
//
//	Rejects empty, truncated or malformed input, an unknown format or
//	version, and a payload whose checksum does not match. The reverse index
//	is rebuilt from the decoded edges. Every failure wraps ErrDeserialize.
//
// Inputs:
//
//	data - Snapshot bytes.
//	opts - Options applied to the decoded engine.
//
// Outputs:
//
//	*Engine - The restored engine.
//	error - Wraps ErrDeserialize.
func FromBytes(data []byte, opts ...Option) (*Engine, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDeserialize)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeserialize, err)
	}
	if env.Format != SnapshotFormat {
		return nil, fmt.Errorf("%w: unknown format %q", ErrDeserialize, env.Format)
	}
	if env.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrDeserialize, env.Version)
	}
	if got := checksum(env.Payload); got != env.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrDeserialize)
	}

	var snap Snapshot
	if err := json.Unmarshal(env.Payload, &snap); err != nil {
		return nil, fmt.Errorf("%w: payload: %w", ErrDeserialize, err)
	}
	if snap.Version != env.Version {
		return nil, fmt.Errorf("%w: payload version %d does not match envelope %d",
			ErrDeserialize, snap.Version, env.Version)
	}
	for id, n := range snap.Nodes {
		if n.ID != "" && n.ID != id {
			return nil, fmt.Errorf("%w: node %q recorded under key %q", ErrDeserialize, n.ID, id)
		}
	}

	snapshotBytes.Set(float64(len(data)))
	return newEngine(graph.Restore(snap.Nodes, snap.Deps), snap.BuildEpoch, opts), nil
}

func checksum(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
