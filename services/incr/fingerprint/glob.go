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
	"path"
	"strings"
)

// DefaultExcludes are patterns for directories a build never owns.
var DefaultExcludes = []string{
	".git/**",
	"vendor/**",
	"node_modules/**",
	"**/testdata/**",
}

// GlobMatcher selects relative paths by include and exclude patterns.
//
// Patterns are matched segment by segment against forward-slash paths:
//   - * ? and [...] behave as in path.Match within one segment
//   - ** matches zero or more whole segments
//   - a pattern with no "/" matches the base name at any depth
//
// Excludes win over includes. An empty include list includes everything.
//
// Thread Safety: GlobMatcher is safe for concurrent use after creation.
type GlobMatcher struct {
	includes [][]string
	excludes [][]string
}

// NewGlobMatcher compiles the include and exclude patterns.
func NewGlobMatcher(includes, excludes []string) *GlobMatcher {
	return &GlobMatcher{
		includes: compilePatterns(includes),
		excludes: compilePatterns(excludes),
	}
}

func compilePatterns(patterns []string) [][]string {
	out := make([][]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.Trim(p, "/")
		if p == "" {
			continue
		}
		if !strings.Contains(p, "/") {
			p = "**/" + p
		}
		out = append(out, strings.Split(p, "/"))
	}
	return out
}

// Match reports whether rel is selected.
func (m *GlobMatcher) Match(rel string) bool {
	if m.Excluded(rel) {
		return false
	}
	if len(m.includes) == 0 {
		return true
	}
	segs := strings.Split(strings.Trim(rel, "/"), "/")
	for _, p := range m.includes {
		if matchSegments(p, segs) {
			return true
		}
	}
	return false
}

// Excluded reports whether rel matches an exclude pattern. Watchers use it
// to prune directories, which include patterns never select.
func (m *GlobMatcher) Excluded(rel string) bool {
	segs := strings.Split(strings.Trim(rel, "/"), "/")
	for _, p := range m.excludes {
		if matchSegments(p, segs) {
			return true
		}
	}
	return false
}

// Filter returns Match as an Options.Filter.
func (m *GlobMatcher) Filter() func(rel string) bool {
	return m.Match
}

func matchSegments(pat, segs []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			rest := pat[1:]
			if len(rest) == 0 {
				return true
			}
			for i := 0; i <= len(segs); i++ {
				if matchSegments(rest, segs[i:]) {
					return true
				}
			}
			return false
		}
		if len(segs) == 0 {
			return false
		}
		if ok, err := path.Match(pat[0], segs[0]); err != nil || !ok {
			return false
		}
		pat, segs = pat[1:], segs[1:]
	}
	return len(segs) == 0
}
