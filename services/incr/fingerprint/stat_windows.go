// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

//go:build windows

package fingerprint

import "golang.org/x/sys/windows"

func statIdentity(path string) (identity, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return identity{}, err
	}
	h, err := windows.CreateFile(p, 0,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil, windows.OPEN_EXISTING, windows.FILE_FLAG_BACKUP_SEMANTICS, 0)
	if err != nil {
		return identity{}, err
	}
	defer windows.CloseHandle(h)

	var d windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(h, &d); err != nil {
		return identity{}, err
	}
	return identity{
		birth:     d.CreationTime.Nanoseconds() / 1e9,
		hasBirth:  true,
		dev:       uint64(d.VolumeSerialNumber),
		ino:       uint64(d.FileIndexHigh)<<32 | uint64(d.FileIndexLow),
		nlink:     uint64(d.NumberOfLinks),
		hasFileID: true,
	}, nil
}
