// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

//go:build darwin

package fingerprint

import "golang.org/x/sys/unix"

func statIdentity(path string) (identity, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return identity{}, err
	}
	return identity{
		birth:     st.Birthtimespec.Sec,
		hasBirth:  true,
		dev:       uint64(st.Dev),
		ino:       st.Ino,
		nlink:     uint64(st.Nlink),
		hasFileID: true,
	}, nil
}
