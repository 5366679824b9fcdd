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
	"strconv"
)

const (
	// OffsetBasis is the FNV-1a 64 offset basis and the fingerprint of the
	// empty byte sequence.
	OffsetBasis Fingerprint = 0xcbf29ce484222325

	// Prime is the FNV 64-bit prime.
	Prime uint64 = 0x00000100000001B3
)

// Fingerprint is an opaque 64-bit content or metadata digest.
//
// Equal fingerprints are treated as "unchanged". The text form is 16
// lowercase hex digits.
type Fingerprint uint64

// String returns the fingerprint as 16 lowercase hex digits.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", uint64(f))
}

// MarshalText implements encoding.TextMarshaler.
func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Fingerprint) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Parse parses the hex form produced by String.
func Parse(s string) (Fingerprint, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse fingerprint %q: %w", s, err)
	}
	return Fingerprint(v), nil
}

// Bytes returns the FNV-1a 64 fingerprint of data.
//
// Bytes(nil) == OffsetBasis.
func Bytes(data []byte) Fingerprint {
	return FoldBytes(OffsetBasis, data)
}

// FoldBytes continues the FNV-1a byte fold from state h.
//
// For any split of data into a and b,
// FoldBytes(FoldBytes(h, a), b) == FoldBytes(h, data).
func FoldBytes(h Fingerprint, data []byte) Fingerprint {
	x := uint64(h)
	for _, b := range data {
		x ^= uint64(b)
		x *= Prime
	}
	return Fingerprint(x)
}

// Fold combines a 64-bit value into a running fingerprint: (h ^ v) * Prime.
//
// Fold is order sensitive. Signed quantities are folded as their two's
// complement bit pattern.
func Fold(h Fingerprint, v uint64) Fingerprint {
	return Fingerprint((uint64(h) ^ v) * Prime)
}

// Digest is a streaming byte fold. It implements hash.Hash64.
type Digest struct {
	h Fingerprint
	n int64
}

// NewDigest returns a Digest whose state is OffsetBasis.
func NewDigest() *Digest {
	return &Digest{h: OffsetBasis}
}

// Write folds p into the digest. It never returns an error.
func (d *Digest) Write(p []byte) (int, error) {
	d.h = FoldBytes(d.h, p)
	d.n += int64(len(p))
	return len(p), nil
}

// Fingerprint returns the current state.
func (d *Digest) Fingerprint() Fingerprint { return d.h }

// Len returns the number of bytes written since the last Reset.
func (d *Digest) Len() int64 { return d.n }

// Sum64 returns the current state as a uint64.
func (d *Digest) Sum64() uint64 { return uint64(d.h) }

// Sum appends the big-endian state to b.
func (d *Digest) Sum(b []byte) []byte {
	v := uint64(d.h)
	return append(b,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// Reset restores the digest to OffsetBasis.
func (d *Digest) Reset() {
	d.h = OffsetBasis
	d.n = 0
}

// Size returns 8.
func (d *Digest) Size() int { return 8 }

// BlockSize returns 1.
func (d *Digest) BlockSize() int { return 1 }
