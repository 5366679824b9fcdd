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
	"os"
	"path/filepath"
)

// AtomicWrite replaces path with data so that readers see either the old
// content or the new content, never a mix.
//
// Description:
//
//	Writes to a temporary sibling, fsyncs and closes it, then renames it over
//	path. The rename is the only commit point. The parent directory is
//	fsynced afterwards where the platform allows it. On any failure the
//	temporary file is removed and path is left untouched.
//
// Inputs:
//
//	path - Destination file. Its directory must exist.
//	data - Complete new content.
//
// Outputs:
//
//	error - *IOError naming the failed step.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return ioErr("create", path, err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return ioErr("write", tmpPath, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return ioErr("chmod", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		return ioErr("fsync", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return ioErr("close", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return ioErr("rename", path, err)
	}
	committed = true

	syncDir(dir)
	return nil
}

// syncDir flushes directory metadata. Failures are ignored: some platforms
// cannot open or fsync a directory.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
