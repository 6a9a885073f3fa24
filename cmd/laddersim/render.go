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

	"github.com/AleutianAI/laddersim/pkg/ux"
	"github.com/AleutianAI/laddersim/services/ladder/runner"
	"github.com/AleutianAI/laddersim/services/ladder/state"
)

// parseAssignments turns "name=value" flags into patch input. Values parse
// as bool, then int, then real, falling back to text.
func parseAssignments(items []string) (map[any]any, error) {
	out := make(map[any]any, len(items))
	for _, item := range items {
		name, raw, ok := strings.Cut(item, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid assignment %q (want name=value)", item)
		}
		out[name] = parseLiteral(strings.TrimSpace(raw))
	}
	return out, nil
}

func parseLiteral(s string) any {
	switch strings.ToLower(s) {
	case "true", "on":
		return true
	case "false", "off":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// nativeValue converts a Value into a plain JSON-friendly Go value.
func nativeValue(v state.Value) any {
	switch v.Kind() {
	case state.KindBool:
		return v.AsBool()
	case state.KindInt:
		return v.AsInt()
	case state.KindReal:
		return v.AsReal()
	case state.KindText:
		return v.AsText()
	default:
		return nil
	}
}

// valueCell renders a value with an on/off hint for booleans.
func valueCell(v state.Value, forced bool) ux.Cell {
	c := ux.Cell{Text: v.String()}
	switch {
	case forced:
		c.Kind = ux.CellForced
		c.Text += " (forced)"
	case v.Kind() == state.KindBool && v.AsBool():
		c.Kind = ux.CellOn
	case v.Kind() == state.KindBool:
		c.Kind = ux.CellMuted
	}
	return c
}

// visibleTags returns the tags to show: watch when given, else every
// public tag in the snapshot.
func visibleTags(snap *state.Snapshot, watch []string) []string {
	if len(watch) > 0 {
		return watch
	}
	names := snap.TagNames()
	sort.Strings(names)
	return names
}

// snapshotView is the JSON form of a snapshot.
type snapshotView struct {
	ScanID uint64         `json:"scan_id"`
	Time   float64        `json:"time"`
	Labels []string       `json:"labels,omitempty"`
	Tags   map[string]any `json:"tags"`
}

func viewOf(r *runner.Runner, snap *state.Snapshot, names []string) snapshotView {
	v := snapshotView{
		ScanID: snap.ScanID(),
		Time:   snap.Timestamp(),
		Labels: r.History().LabelsAt(snap.ScanID()),
		Tags:   make(map[string]any, len(names)),
	}
	for _, n := range names {
		if val, ok := valueAt(r, snap, n); ok {
			v.Tags[n] = nativeValue(val)
		}
	}
	return v
}

// valueAt reads name from snap, falling back to the runner for system
// points on the current snapshot.
func valueAt(r *runner.Runner, snap *state.Snapshot, name string) (state.Value, bool) {
	if v, ok := snap.Tag(name); ok {
		return v, true
	}
	if snap == r.Current() {
		return r.Value(name)
	}
	return state.Value{}, false
}

// printSnapshot renders the tag table for snap.
func printSnapshot(p *ux.Printer, r *runner.Runner, snap *state.Snapshot, names []string) {
	forces := r.Forces()
	rows := make([][]ux.Cell, 0, len(names))
	for _, n := range names {
		v, ok := valueAt(r, snap, n)
		if !ok {
			rows = append(rows, []ux.Cell{ux.Text(n), {Text: "-", Kind: ux.CellMuted}, ux.Text("")})
			continue
		}
		_, forced := forces[n]
		rows = append(rows, []ux.Cell{ux.Text(n), valueCell(v, forced), ux.Text(v.Kind().String())})
	}
	p.Table([]string{"Tag", "Value", "Kind"}, rows)
}

// printHistory renders one row per snapshot with a column per tag.
func printHistory(p *ux.Printer, r *runner.Runner, snaps []*state.Snapshot, names []string) {
	headers := append([]string{"Scan", "Time"}, names...)
	rows := make([][]ux.Cell, 0, len(snaps))
	for _, s := range snaps {
		row := []ux.Cell{
			ux.Text(strconv.FormatUint(s.ScanID(), 10)),
			ux.Text(strconv.FormatFloat(s.Timestamp(), 'f', 3, 64)),
		}
		for _, n := range names {
			if v, ok := s.Tag(n); ok {
				row = append(row, valueCell(v, false))
			} else {
				row = append(row, ux.Cell{Text: "-", Kind: ux.CellMuted})
			}
		}
		rows = append(rows, row)
	}
	p.Table(headers, rows)
}
