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
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/laddersim/pkg/ux"
	"github.com/AleutianAI/laddersim/services/ladder/runner"
	"github.com/AleutianAI/laddersim/services/ladder/state"
)

type runFlags struct {
	program string
	cycles  int
	seconds float64
	set     []string
	force   []string
	watch   []string
	until   string
	history int
	changes bool
}

// change is one committed value change seen by a monitor.
type change struct {
	ScanID   uint64 `json:"scan_id"`
	Tag      string `json:"tag"`
	Previous any    `json:"previous"`
	Current  any    `json:"current"`
}

// runResult is the JSON document printed by run.
type runResult struct {
	Program string         `json:"program"`
	Scans   int            `json:"scans"`
	Matched *bool          `json:"matched,omitempty"`
	Final   snapshotView   `json:"final"`
	Forced  []string       `json:"forced,omitempty"`
	Changes []change       `json:"changes,omitempty"`
	History []snapshotView `json:"history,omitempty"`
}

func newRunCmd(root *rootFlags) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a program for a number of scans or seconds",
		Example: `  laddersim run --program motor --cycles 40
  laddersim run --program motor --set Stop=true --cycles 5
  laddersim run --program traffic --until Phase=2 --cycles 1000 --changes`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProgram(cmd, root, flags)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&flags.program, "program", "p", "motor", "built-in program to run")
	f.IntVarP(&flags.cycles, "cycles", "n", 10, "number of scans (maximum scans with --until)")
	f.Float64Var(&flags.seconds, "seconds", 0, "run for this much simulation time instead of --cycles")
	f.StringArrayVar(&flags.set, "set", nil, "patch an input before the first scan (name=value)")
	f.StringArrayVar(&flags.force, "force", nil, "force a tag for the whole run (name=value)")
	f.StringSliceVarP(&flags.watch, "watch", "w", nil, "tags to display (default: the program's key tags)")
	f.StringVar(&flags.until, "until", "", "stop once a tag equals a value (name=value)")
	f.IntVar(&flags.history, "history", 0, "also show the last N snapshots")
	f.BoolVar(&flags.changes, "changes", false, "list every committed change of the displayed tags")
	return cmd
}

func runProgram(cmd *cobra.Command, root *rootFlags, flags *runFlags) error {
	d, err := lookupDemo(flags.program)
	if err != nil {
		return err
	}
	if flags.cycles < 0 {
		return fmt.Errorf("--cycles must be >= 0, got %d", flags.cycles)
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

	inputs := make(map[any]any, len(d.inputs)+len(flags.set))
	for k, v := range d.inputs {
		inputs[k] = v
	}
	sets, err := parseAssignments(flags.set)
	if err != nil {
		return err
	}
	for k, v := range sets {
		inputs[k] = v
	}
	if err := r.Patch(inputs); err != nil {
		return err
	}

	forces, err := parseAssignments(flags.force)
	if err != nil {
		return err
	}
	for k, v := range forces {
		if err := r.AddForce(k, v); err != nil {
			return err
		}
	}

	watch := flags.watch
	if len(watch) == 0 {
		watch = d.watch
	}
	var changes []change
	for _, name := range watch {
		name := name
		_, err := r.Monitor(name, func(cur, prev state.Value) error {
			changes = append(changes, change{
				ScanID:   r.Current().ScanID() + 1,
				Tag:      name,
				Previous: nativeValue(prev),
				Current:  nativeValue(cur),
			})
			return nil
		})
		if err != nil {
			return err
		}
	}

	start := r.Current().ScanID()
	var matched *bool
	ctx := cmd.Context()
	switch {
	case flags.until != "":
		pred, err := untilPredicate(flags.until)
		if err != nil {
			return err
		}
		_, ok, err := r.RunUntil(ctx, pred, flags.cycles)
		if err != nil {
			return err
		}
		matched = &ok
	case flags.seconds > 0:
		if _, err := r.RunFor(ctx, flags.seconds); err != nil {
			return err
		}
	default:
		if _, err := r.Run(ctx, flags.cycles); err != nil {
			return err
		}
	}

	final := r.Current()
	names := visibleTags(final, watch)
	res := runResult{
		Program: d.name,
		Scans:   int(final.ScanID() - start),
		Matched: matched,
		Final:   viewOf(r, final, names),
		Forced:  r.ForcedTags(),
	}
	if flags.changes {
		res.Changes = changes
	}
	var recent []*state.Snapshot
	if flags.history > 0 {
		recent = r.History().Latest(flags.history)
		for _, snap := range recent {
			res.History = append(res.History, viewOf(r, snap, names))
		}
	}

	p := s.printer
	if p.Format() == ux.FormatJSON {
		return p.JSON(res)
	}
	p.Title(fmt.Sprintf("%s · scan %d · t=%.3fs", d.name, final.ScanID(), final.Timestamp()))
	printSnapshot(p, r, final, names)
	if flags.changes {
		for _, c := range changes {
			p.Line("  scan %d: %s %v %s %v", c.ScanID, c.Tag, c.Previous, ux.IconArrow, c.Current)
		}
	}
	if len(recent) > 0 {
		printHistory(p, r, recent, names)
	}
	summary := fmt.Sprintf("ran %d scans (%.0f total this session)", res.Scans, s.scansTotal())
	if matched != nil {
		if *matched {
			summary += ", condition met"
		} else {
			summary += ", condition not met"
		}
	}
	p.Status(matched == nil || *matched, summary)
	return nil
}

// untilPredicate parses "name=value" into a predicate on committed
// snapshots. The literal is coerced to the stored tag's kind.
func untilPredicate(expr string) (runner.Predicate, error) {
	name, raw, ok := strings.Cut(expr, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return nil, fmt.Errorf("invalid --until %q (want name=value)", expr)
	}
	want, err := state.Of(parseLiteral(strings.TrimSpace(raw)))
	if err != nil {
		return nil, err
	}
	return func(snap *state.Snapshot) (bool, error) {
		got, ok := snap.Tag(name)
		if !ok {
			return false, nil
		}
		coerced, err := want.Coerce(got.Kind())
		if err != nil {
			return false, fmt.Errorf("--until %s: %w", name, err)
		}
		return got.Equal(coerced), nil
	}, nil
}
