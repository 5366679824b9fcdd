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
	"errors"
	"io/fs"

	"github.com/AleutianAI/buildgraph/services/incr/fingerprint"
	"github.com/AleutianAI/buildgraph/services/incr/graph"
)

// ErrDeserialize is wrapped by every snapshot decoding failure: empty,
// truncated, malformed, checksum mismatch or unsupported version.
var ErrDeserialize = errors.New("snapshot deserialize failed")

// ErrorKind classifies errors returned by this module.
type ErrorKind int

const (
	// KindNone is the kind of a nil error.
	KindNone ErrorKind = iota

	// KindIO is a filesystem or storage failure.
	KindIO

	// KindDeserialize is an unreadable snapshot.
	KindDeserialize

	// KindCycle is a dependency cycle found while ordering a plan.
	KindCycle

	// KindOther is anything else, such as context cancellation.
	KindOther
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindIO:
		return "io"
	case KindDeserialize:
		return "deserialize"
	case KindCycle:
		return "cycle_detected"
	default:
		return "other"
	}
}

// KindOf classifies err.
func KindOf(err error) ErrorKind {
	var (
		cycle  *graph.CycleError
		ioe    *fingerprint.IOError
		pathEr *fs.PathError
	)
	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &cycle):
		return KindCycle
	case errors.Is(err, ErrDeserialize):
		return KindDeserialize
	case errors.As(err, &ioe), errors.As(err, &pathEr):
		return KindIO
	default:
		return KindOther
	}
}
