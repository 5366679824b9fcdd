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

import "sort"

// Diff is the difference between two fingerprint maps.
//
// Each list is sorted and the three lists are disjoint.
type Diff struct {
	// Added holds keys present only in the current map.
	Added []string `json:"added"`

	// Changed holds keys present in both maps with different values.
	Changed []string `json:"changed"`

	// Removed holds keys present only in the previous map.
	Removed []string `json:"removed"`
}

// Empty reports whether the maps were identical.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Changed) == 0 && len(d.Removed) == 0
}

// DiffMaps compares a previous map against a current one.
func DiffMaps(prev, curr map[string]Fingerprint) Diff {
	d := Diff{Added: []string{}, Changed: []string{}, Removed: []string{}}
	for k, v := range curr {
		old, ok := prev[k]
		switch {
		case !ok:
			d.Added = append(d.Added, k)
		case old != v:
			d.Changed = append(d.Changed, k)
		}
	}
	for k := range prev {
		if _, ok := curr[k]; !ok {
			d.Removed = append(d.Removed, k)
		}
	}
	sort.Strings(d.Added)
	sort.Strings(d.Changed)
	sort.Strings(d.Removed)
	return d
}
