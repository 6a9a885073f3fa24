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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"rich", FormatRich},
		{"COLOR", FormatRich},
		{"plain", FormatPlain},
		{"text", FormatPlain},
		{"json", FormatJSON},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseFormat("yaml")
	assert.Error(t, err)

	auto, err := ParseFormat("auto")
	require.NoError(t, err)
	assert.Contains(t, []Format{FormatRich, FormatPlain}, auto)
}

func TestDetectFormat_NonFileIsPlain(t *testing.T) {
	assert.Equal(t, FormatPlain, DetectFormat(&bytes.Buffer{}))
}

func TestPrinter_PlainTable(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatPlain)
	p.Title("Scan 3")
	p.Table([]string{"Tag", "Value"}, [][]Cell{
		{Text("Motor"), {Text: "true", Kind: CellOn}},
		{Text("Count"), Text("12")},
	})

	want := "Scan 3\n" +
		"Tag    Value\n" +
		"Motor  true\n" +
		"Count  12\n"
	assert.Equal(t, want, buf.String())
}

func TestPrinter_RichTableKeepsContent(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatRich)
	p.Table([]string{"Tag", "Value"}, [][]Cell{{Text("Motor"), {Text: "true", Kind: CellForced}}})
	out := buf.String()
	assert.Contains(t, out, "Motor")
	assert.Contains(t, out, "true")
	assert.Contains(t, out, "╭", "rich tables are boxed")
}

func TestPrinter_JSONSuppressesText(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatJSON)
	p.Title("ignored")
	p.Line("ignored %d", 1)
	p.Status(true, "ignored")
	p.Table([]string{"A"}, [][]Cell{{Text("x")}})
	assert.Empty(t, buf.String())

	require.NoError(t, p.JSON(map[string]int{"scan_id": 3}))
	assert.JSONEq(t, `{"scan_id": 3}`, buf.String())
}

func TestPrinter_Status(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatPlain)
	p.Status(true, "ran 10 scans")
	p.Status(false, "divide by zero")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{"ok: ran 10 scans", "error: divide by zero"}, lines)
}
