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
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Options controls directory listing.
type Options struct {
	// IncludeHidden lists entries whose name starts with ".".
	IncludeHidden bool

	// FollowSymlinks descends into symlinked directories and lists symlinked
	// files. Symlinks are skipped otherwise.
	FollowSymlinks bool

	// Filter, when non-nil, is applied to each file's relative path. Files
	// for which it returns false are not listed. Directories are always
	// descended.
	Filter func(rel string) bool

	// Concurrency bounds parallel hashing in BuildMapContext and
	// DirectoryContext. Zero or negative uses DefaultConcurrency.
	Concurrency int
}

// ListFilesRecursive lists every regular file under root.
//
// Description:
//
//	Returns forward-slash paths relative to root, sorted byte-wise. Hidden
//	entries are skipped unless IncludeHidden is set. When FollowSymlinks is
//	set, symlinked directories are descended unless their resolved path is
//	already being walked, which breaks symlink cycles.
//
// Inputs:
//
//	root - Directory to list.
//	o - Listing options.
//
// Outputs:
//
//	[]string - Sorted relative paths. Empty, not nil, for an empty tree.
//	error - *IOError if root is not a directory or any readdir/stat fails.
func ListFilesRecursive(root string, o Options) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, ioErr("stat", root, err)
	}
	if !info.IsDir() {
		return nil, ioErr("list", root, ErrNotDirectory)
	}

	w := &walker{opts: o, files: []string{}, active: make(map[string]bool)}
	if o.FollowSymlinks {
		if real, err := filepath.EvalSymlinks(root); err == nil {
			w.active[real] = true
		}
	}
	if err := w.walk(root, ""); err != nil {
		return nil, err
	}
	sort.Strings(w.files)
	return w.files, nil
}

type walker struct {
	opts  Options
	files []string

	// active holds resolved directories on the current descent path.
	active map[string]bool
}

func (w *walker) walk(dir, rel string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ioErr("readdir", dir, err)
	}

	for _, e := range entries {
		name := e.Name()
		if !w.opts.IncludeHidden && strings.HasPrefix(name, ".") {
			continue
		}
		full := filepath.Join(dir, name)
		childRel := name
		if rel != "" {
			childRel = rel + "/" + name
		}

		switch mode := e.Type(); {
		case mode&fs.ModeSymlink != 0:
			if !w.opts.FollowSymlinks {
				continue
			}
			if err := w.followLink(full, childRel); err != nil {
				return err
			}
		case mode.IsDir():
			if err := w.descend(full, childRel); err != nil {
				return err
			}
		case mode.IsRegular():
			w.addFile(childRel)
		}
	}
	return nil
}

func (w *walker) followLink(full, rel string) error {
	target, err := os.Stat(full)
	if err != nil {
		return ioErr("stat", full, err)
	}
	switch {
	case target.IsDir():
		return w.descend(full, rel)
	case target.Mode().IsRegular():
		w.addFile(rel)
	}
	return nil
}

func (w *walker) descend(full, rel string) error {
	if !w.opts.FollowSymlinks {
		return w.walk(full, rel)
	}

	real, err := filepath.EvalSymlinks(full)
	if err != nil {
		return ioErr("readlink", full, err)
	}
	if w.active[real] {
		return nil
	}
	w.active[real] = true
	defer delete(w.active, real)
	return w.walk(full, rel)
}

func (w *walker) addFile(rel string) {
	if w.opts.Filter != nil && !w.opts.Filter(rel) {
		return
	}
	w.files = append(w.files, rel)
}
