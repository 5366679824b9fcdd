// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrinter_PlainWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)
	assert.False(t, p.Styled())

	p.Title("ignored")
	p.Success("built %d nodes", 3)
	p.Warning("snapshot %s", "corrupt")
	p.Error("boom")
	p.KV("nodes", 4)
	p.Item(IconArrow, "lib")
	p.Box("cycle", []string{"a -> b -> a"})

	assert.Equal(t,
		"OK: built 3 nodes\n"+
			"WARN: snapshot corrupt\n"+
			"ERROR: boom\n"+
			"nodes\t4\n"+
			"lib\n"+
			"cycle: a -> b -> a\n",
		buf.String())
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))
}
