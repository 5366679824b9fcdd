// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fingerprint

import (
	"fmt"
	"strings"
)

// Strategy selects how much of a file contributes to its fingerprint.
type Strategy int

const (
	// Meta fingerprints stat metadata only: size, mtime, birth time and
	// device/inode/link count where the platform exposes them.
	Meta Strategy = iota

	// Fast folds the first SampleSize bytes and, for larger files, the last
	// SampleSize bytes into the Meta fingerprint.
	Fast

	// Full streams the entire content and then folds in the size.
	Full
)

// SampleSize is the head and tail window read by the Fast strategy.
const SampleSize = 64 * 1024

// String returns the lowercase strategy name.
func (s Strategy) String() string {
	switch s {
	case Meta:
		return "meta"
	case Fast:
		return "fast"
	case Full:
		return "full"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy parses "meta", "fast" or "full" (case insensitive).
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "meta":
		return Meta, nil
	case "fast":
		return Fast, nil
	case "full":
		return Full, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	if s < Meta || s > Full {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStrategy, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	v, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
