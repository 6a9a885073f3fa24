// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux renders laddersim CLI output.
//
// Output comes in three formats: rich (lipgloss styling for terminals),
// plain (aligned text for pipes and logs) and json (one document per
// command for scripting). DetectFormat picks rich or plain from the
// destination.
package ux

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Aleutian color palette - deep ocean teals and arctic waters
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // highlights, energized contacts
	ColorTealPrimary = lipgloss.Color("#20B9B4") // headers
	ColorTealDeep    = lipgloss.Color("#16858E") // borders
	ColorSlate       = lipgloss.Color("#2C4A54") // muted text, de-energized
	ColorWarning     = lipgloss.Color("#F4D03F") // forced values
	ColorError       = lipgloss.Color("#E74C3C") // failures
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title   lipgloss.Style
	Header  lipgloss.Style
	Muted   lipgloss.Style
	On      lipgloss.Style
	Forced  lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
	Cell    lipgloss.Style
	Divider lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Header:  lipgloss.NewStyle().Bold(true).Foreground(ColorTealPrimary),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	On:      lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),
	Forced:  lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Foreground(ColorError),
	Box:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(ColorTealDeep).Padding(0, 1),
	Cell:    lipgloss.NewStyle().PaddingRight(2),
	Divider: lipgloss.NewStyle().Foreground(ColorTealDeep),
}

// Icon is a status glyph.
type Icon string

const (
	IconOK    Icon = "✓"
	IconError Icon = "✗"
	IconOn    Icon = "●"
	IconOff   Icon = "○"
	IconArrow Icon = "→"
)

// =============================================================================
// Format
// =============================================================================

// Format selects how a Printer renders.
type Format string

const (
	FormatRich  Format = "rich"
	FormatPlain Format = "plain"
	FormatJSON  Format = "json"
)

// ParseFormat converts a flag value into a Format. "auto" and "" map to
// DetectFormat(os.Stdout).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return DetectFormat(os.Stdout), nil
	case "rich", "color":
		return FormatRich, nil
	case "plain", "text":
		return FormatPlain, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want auto, rich, plain or json)", s)
	}
}

// DetectFormat returns FormatRich when w is a terminal and FormatPlain
// otherwise.
func DetectFormat(w io.Writer) Format {
	f, ok := w.(*os.File)
	if !ok {
		return FormatPlain
	}
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return FormatRich
	}
	return FormatPlain
}

// =============================================================================
// Printer
// =============================================================================

// Printer writes formatted output to w.
//
// Thread Safety: Not safe for concurrent use.
type Printer struct {
	w      io.Writer
	format Format
}

// NewPrinter creates a Printer.
func NewPrinter(w io.Writer, format Format) *Printer {
	return &Printer{w: w, format: format}
}

// Format returns the printer's format.
func (p *Printer) Format() Format { return p.format }

// Title prints a heading. JSON printers print nothing.
func (p *Printer) Title(text string) {
	switch p.format {
	case FormatRich:
		fmt.Fprintln(p.w, Styles.Title.Render(text))
	case FormatPlain:
		fmt.Fprintln(p.w, text)
	}
}

// Line prints a line of plain text. JSON printers print nothing.
func (p *Printer) Line(format string, args ...any) {
	if p.format == FormatJSON {
		return
	}
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Status prints a success or failure line. JSON printers print nothing.
func (p *Printer) Status(ok bool, msg string) {
	switch p.format {
	case FormatRich:
		if ok {
			fmt.Fprintln(p.w, Styles.On.Render(string(IconOK))+" "+msg)
		} else {
			fmt.Fprintln(p.w, Styles.Error.Render(string(IconError))+" "+msg)
		}
	case FormatPlain:
		if ok {
			fmt.Fprintln(p.w, "ok: "+msg)
		} else {
			fmt.Fprintln(p.w, "error: "+msg)
		}
	}
}

// JSON writes v as indented JSON regardless of format.
func (p *Printer) JSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Table renders rows under headers. Cells may carry a Cell style hint.
//
// Rich output draws a rounded box; plain output pads columns with spaces.
// JSON printers print nothing; callers emit their own document.
func (p *Printer) Table(headers []string, rows [][]Cell) {
	if p.format == FormatJSON {
		return
	}
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, c := range row {
			if i < len(widths) && len([]rune(c.Text)) > widths[i] {
				widths[i] = len([]rune(c.Text))
			}
		}
	}

	var b strings.Builder
	for i, h := range headers {
		b.WriteString(p.cell(Cell{Text: h, Kind: CellHeader}, widths[i]))
	}
	b.WriteString("\n")
	if p.format == FormatRich {
		total := 0
		for _, w := range widths {
			total += w + 2
		}
		b.WriteString(Styles.Divider.Render(strings.Repeat("─", total)))
		b.WriteString("\n")
	}
	for _, row := range rows {
		for i := range headers {
			c := Cell{}
			if i < len(row) {
				c = row[i]
			}
			b.WriteString(p.cell(c, widths[i]))
		}
		b.WriteString("\n")
	}
	out := strings.TrimRight(b.String(), "\n")
	if p.format == FormatRich {
		out = Styles.Box.Render(out)
	} else {
		out = trimLines(out)
	}
	fmt.Fprintln(p.w, out)
}

func (p *Printer) cell(c Cell, width int) string {
	pad := width - len([]rune(c.Text))
	text := c.Text + strings.Repeat(" ", pad) + "  "
	if p.format != FormatRich {
		return text
	}
	switch c.Kind {
	case CellHeader:
		return Styles.Header.Render(text)
	case CellOn:
		return Styles.On.Render(text)
	case CellMuted:
		return Styles.Muted.Render(text)
	case CellForced:
		return Styles.Forced.Render(text)
	case CellError:
		return Styles.Error.Render(text)
	default:
		return text
	}
}

func trimLines(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	return strings.Join(lines, "\n")
}

// CellKind is a styling hint for a table cell.
type CellKind int

const (
	CellNormal CellKind = iota
	CellHeader
	CellOn
	CellMuted
	CellForced
	CellError
)

// Cell is one table cell.
type Cell struct {
	Text string
	Kind CellKind
}

// Text returns a normal cell.
func Text(s string) Cell { return Cell{Text: s} }
