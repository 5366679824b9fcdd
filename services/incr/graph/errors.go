// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCycle is matched by every *CycleError via errors.Is.
	ErrCycle = errors.New("circular dependency")

	// ErrInconsistent is returned by Validate when the node table, the
	// forward edges and the reverse index disagree.
	ErrInconsistent = errors.New("graph inconsistent")
)

// maxListed caps how many ids a CycleError message names.
const maxListed = 8

// CycleError reports that a node set could not be ordered.
type CycleError struct {
	// Nodes is the set that was being ordered, sorted.
	Nodes []string

	// Remaining holds the nodes that could not be emitted: every node on a
	// cycle and every node downstream of one, sorted.
	Remaining []string

	// Cycle is one concrete cycle among Remaining with the first node
	// repeated at the end. Each id is a dependency of the id after it, so
	// the message reads "dep -> dependent".
	Cycle []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	listed := e.Remaining
	suffix := ""
	if len(listed) > maxListed {
		listed = listed[:maxListed]
		suffix = fmt.Sprintf(", ... (%d more)", len(e.Remaining)-maxListed)
	}
	msg := fmt.Sprintf("circular dependency among %d of %d nodes: %s%s",
		len(e.Remaining), len(e.Nodes), strings.Join(listed, ", "), suffix)
	if len(e.Cycle) > 0 {
		msg += " (cycle: " + strings.Join(e.Cycle, " -> ") + ")"
	}
	return msg
}

// Is reports whether target is ErrCycle.
func (e *CycleError) Is(target error) bool {
	return target == ErrCycle
}
