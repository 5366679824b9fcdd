// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

//go:build linux

package fingerprint

import (
	"errors"

	"golang.org/x/sys/unix"
)

// statIdentity uses statx so the birth time is available on filesystems that
// record it. Kernels without statx fall back to stat(2).
func statIdentity(path string) (identity, error) {
	var stx unix.Statx_t
	err := unix.Statx(unix.AT_FDCWD, path, 0, unix.STATX_BASIC_STATS|unix.STATX_BTIME, &stx)
	if errors.Is(err, unix.ENOSYS) {
		return statFallback(path)
	}
	if err != nil {
		return identity{}, err
	}

	id := identity{
		dev:       unix.Mkdev(stx.Dev_major, stx.Dev_minor),
		ino:       stx.Ino,
		nlink:     uint64(stx.Nlink),
		hasFileID: true,
	}
	if stx.Mask&unix.STATX_BTIME != 0 {
		id.birth = stx.Btime.Sec
		id.hasBirth = true
	}
	return id, nil
}

func statFallback(path string) (identity, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return identity{}, err
	}
	return identity{
		dev:       uint64(st.Dev),
		ino:       st.Ino,
		nlink:     uint64(st.Nlink),
		hasFileID: true,
	}, nil
}
