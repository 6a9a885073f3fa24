// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/laddersim/pkg/ux"
	"github.com/AleutianAI/laddersim/services/ladder/logic"
	"github.com/AleutianAI/laddersim/services/ladder/runner"
)

type stepFlags struct {
	program string
	scans   int
	set     []string
}

// rungTrace is one evaluated rung in step output. Writes holds the
// referenced tags whose in-flight value differs from the scan's base.
type rungTrace struct {
	ScanID   uint64         `json:"scan_id"`
	Index    int            `json:"rung"`
	Label    string         `json:"label"`
	Enabled  bool           `json:"enabled"`
	Returned bool           `json:"returned,omitempty"`
	Writes   map[string]any `json:"changed,omitempty"`
}

func newStepCmd(root *rootFlags) *cobra.Command {
	flags := &stepFlags{}
	cmd := &cobra.Command{
		Use:   "step",
		Short: "Trace scans rung by rung",
		Long: `step executes scans one rung at a time and reports, for every rung,
whether it was enabled and which of its tags now differ from the start
of the scan.
Nothing is committed until the last rung of a scan has run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return stepProgram(cmd, root, flags)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&flags.program, "program", "p", "motor", "built-in program to trace")
	f.IntVarP(&flags.scans, "scans", "n", 1, "number of scans to trace")
	f.StringArrayVar(&flags.set, "set", nil, "patch an input before the first scan (name=value)")
	return cmd
}

func stepProgram(cmd *cobra.Command, root *rootFlags, flags *stepFlags) error {
	d, err := lookupDemo(flags.program)
	if err != nil {
		return err
	}
	if flags.scans < 1 {
		return fmt.Errorf("--scans must be >= 1, got %d", flags.scans)
	}
	s, err := openSession(cmd, root)
	if err != nil {
		return err
	}
	defer s.Close()

	r, err := s.newRunner(d)
	if err != nil {
		return err
	}
	inputs, err := parseAssignments(flags.set)
	if err != nil {
		return err
	}
	for k, v := range d.inputs {
		if _, ok := inputs[k]; !ok {
			inputs[k] = v
		}
	}
	if err := r.Patch(inputs); err != nil {
		return err
	}

	var traces []rungTrace
	for i := 0; i < flags.scans; i++ {
		t, err := traceScan(cmd, r)
		if err != nil {
			return err
		}
		traces = append(traces, t...)
	}

	p := s.printer
	if p.Format() == ux.FormatJSON {
		return p.JSON(traces)
	}
	p.Title(fmt.Sprintf("%s · %d scan(s)", d.name, flags.scans))
	rows := make([][]ux.Cell, 0, len(traces))
	for _, t := range traces {
		enabled := ux.Cell{Text: string(ux.IconOff), Kind: ux.CellMuted}
		if t.Enabled {
			enabled = ux.Cell{Text: string(ux.IconOn), Kind: ux.CellOn}
		}
		writes := formatWrites(t.Writes)
		if t.Returned {
			writes = strings.TrimSpace(writes + " (return)")
		}
		rows = append(rows, []ux.Cell{
			ux.Text(strconv.FormatUint(t.ScanID, 10)),
			ux.Text(strconv.Itoa(t.Index)),
			enabled,
			ux.Text(t.Label),
			ux.Text(writes),
		})
	}
	p.Table([]string{"Scan", "Rung", "On", "Description", "Changed"}, rows)
	p.Status(true, fmt.Sprintf("committed scan %d", r.Current().ScanID()))
	return nil
}

// traceScan runs one scan through a Stepper.
func traceScan(cmd *cobra.Command, r *runner.Runner) ([]rungTrace, error) {
	st, err := r.NewStepper(cmd.Context())
	if err != nil {
		return nil, err
	}
	var out []rungTrace
	for {
		rs, done, err := st.Next()
		if err != nil {
			return nil, err
		}
		if done {
			return out, nil
		}
		t := rungTrace{
			ScanID:   st.ScanID(),
			Index:    rs.Index,
			Label:    rungLabel(rs.Rung),
			Enabled:  rs.Enabled,
			Returned: rs.Returned,
		}
		base := st.Base()
		pending := st.PendingTags()
		for _, tag := range rs.Rung.Tags() {
			v, ok := pending[tag.Name]
			if !ok {
				continue
			}
			if old, had := base.Tag(tag.Name); had && old.Equal(v) {
				continue
			}
			if t.Writes == nil {
				t.Writes = make(map[string]any)
			}
			t.Writes[tag.Name] = nativeValue(v)
		}
		out = append(out, t)
	}
}

func rungLabel(rung *logic.Rung) string {
	if c := rung.Comment(); c != "" {
		return c
	}
	line, _, _ := strings.Cut(rung.String(), "\n")
	return line
}

func formatWrites(w map[string]any) string {
	if len(w) == 0 {
		return ""
	}
	names := make([]string, 0, len(w))
	for n := range w {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%s=%v", n, w[n])
	}
	return strings.Join(parts, " ")
}
