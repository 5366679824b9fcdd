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
	"io"
	"os"
)

// identity is the platform-specific part of a Meta fingerprint.
type identity struct {
	birth    int64
	hasBirth bool

	dev, ino, nlink uint64
	hasFileID       bool
}

// File fingerprints a single regular file with the given strategy.
//
// Description:
//
//	Meta folds size, mtime seconds, birth seconds when available and
//	device/inode/link count when available, starting from OffsetBasis.
//	Fast folds Bytes(head) and, when the file is larger than SampleSize,
//	Bytes(tail) into the Meta value. Full streams the whole content through
//	the byte fold and then folds the streamed size.
//
// Inputs:
//
//	path - Path to a regular file.
//	s - The strategy.
//
// Outputs:
//
//	Fingerprint - The file fingerprint.
//	error - *IOError for any failed stat, open or read.
//
// Limitations:
//
//	Meta and Fast are stable only while the file is not copied, touched or
//	hard linked. Full is stable across those but reads every byte.
func File(path string, s Strategy) (Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, ioErr("stat", path, err)
	}
	if !info.Mode().IsRegular() {
		return 0, ioErr("stat", path, ErrNotRegular)
	}

	switch s {
	case Meta:
		return metaFingerprint(path, info)
	case Fast:
		return fastFingerprint(path, info)
	case Full:
		return fullFingerprint(path)
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownStrategy, int(s))
	}
}

func metaFingerprint(path string, info os.FileInfo) (Fingerprint, error) {
	id, err := statIdentity(path)
	if err != nil {
		return 0, ioErr("stat", path, err)
	}

	h := OffsetBasis
	h = Fold(h, uint64(info.Size()))
	h = Fold(h, uint64(info.ModTime().Unix()))
	if id.hasBirth {
		h = Fold(h, uint64(id.birth))
	}
	if id.hasFileID {
		h = Fold(h, id.dev)
		h = Fold(h, id.ino)
		h = Fold(h, id.nlink)
	}
	return h, nil
}

func fastFingerprint(path string, info os.FileInfo) (Fingerprint, error) {
	h, err := metaFingerprint(path, info)
	if err != nil {
		return 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, ioErr("open", path, err)
	}
	defer f.Close()

	size := info.Size()
	head := make([]byte, min(size, SampleSize))
	if _, err := io.ReadFull(f, head); err != nil {
		return 0, ioErr("read", path, err)
	}
	h = Fold(h, uint64(Bytes(head)))

	if size > SampleSize {
		tail := make([]byte, SampleSize)
		if _, err := f.ReadAt(tail, size-SampleSize); err != nil {
			return 0, ioErr("read", path, err)
		}
		h = Fold(h, uint64(Bytes(tail)))
	}
	return h, nil
}

func fullFingerprint(path string) (Fingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, ioErr("open", path, err)
	}
	defer f.Close()

	d := NewDigest()
	if _, err := io.Copy(d, f); err != nil {
		return 0, ioErr("read", path, err)
	}
	return Fold(d.Fingerprint(), uint64(d.Len())), nil
}
