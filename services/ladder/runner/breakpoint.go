// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package runner

import (
	"fmt"
	"log/slog"

	"github.com/AleutianAI/laddersim/services/ladder/state"
)

// Breakpoint is a predicate over committed snapshots with actions.
//
// Description:
//
//	Every committed scan evaluates the predicates of enabled breakpoints.
//	When a predicate holds, Pause ends the current Run, RunFor or RunUntil
//	after that scan, and Snapshot labels the scan in history. A
//	breakpoint with neither action only counts its hits.
//
// Thread Safety: Configure between scans only.
type Breakpoint struct {
	id      Handle
	pred    Predicate
	pause   bool
	labels  []string
	enabled bool
	hits    int
}

// When registers a breakpoint on pred. The breakpoint starts enabled with
// no actions.
func (r *Runner) When(pred Predicate) *Breakpoint {
	bp := &Breakpoint{id: newHandle(), pred: pred, enabled: true}
	r.breakpoints = append(r.breakpoints, bp)
	return bp
}

// ID returns the breakpoint handle.
func (b *Breakpoint) ID() Handle { return b.id }

// Pause makes the breakpoint halt run loops.
func (b *Breakpoint) Pause() *Breakpoint {
	b.pause = true
	return b
}

// Snapshot makes the breakpoint label matching scans with label.
func (b *Breakpoint) Snapshot(label string) *Breakpoint {
	b.labels = append(b.labels, label)
	return b
}

// Hits returns how many committed scans satisfied the predicate.
func (b *Breakpoint) Hits() int { return b.hits }

func (r *Runner) findBreakpoint(id Handle) (int, error) {
	for i, b := range r.breakpoints {
		if b.id == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: breakpoint %s", ErrUnknownHandle, id)
}

// EnableBreakpoint re-enables a breakpoint.
func (r *Runner) EnableBreakpoint(id Handle) error {
	i, err := r.findBreakpoint(id)
	if err != nil {
		return err
	}
	r.breakpoints[i].enabled = true
	return nil
}

// DisableBreakpoint suspends a breakpoint without removing it.
func (r *Runner) DisableBreakpoint(id Handle) error {
	i, err := r.findBreakpoint(id)
	if err != nil {
		return err
	}
	r.breakpoints[i].enabled = false
	return nil
}

// RemoveBreakpoint deletes a breakpoint.
func (r *Runner) RemoveBreakpoint(id Handle) error {
	i, err := r.findBreakpoint(id)
	if err != nil {
		return err
	}
	r.breakpoints = append(r.breakpoints[:i], r.breakpoints[i+1:]...)
	return nil
}

// checkBreakpoints evaluates enabled predicates against next and returns
// the ones that hold. Predicate errors are returned unchanged apart from
// wrapping.
func (r *Runner) checkBreakpoints(next *state.Snapshot) ([]*Breakpoint, error) {
	var hits []*Breakpoint
	for _, bp := range r.breakpoints {
		if !bp.enabled || bp.pred == nil {
			continue
		}
		ok, err := bp.pred(next)
		if err != nil {
			return nil, fmt.Errorf("breakpoint %s: %w", bp.id, err)
		}
		if ok {
			hits = append(hits, bp)
		}
	}
	return hits, nil
}

// applyBreakpoints runs the actions of breakpoints that hit on next, which
// is already installed.
func (r *Runner) applyBreakpoints(next *state.Snapshot, hits []*Breakpoint) {
	for _, bp := range hits {
		bp.hits++
		for _, label := range bp.labels {
			if err := r.history.Label(next.ScanID(), label); err != nil {
				r.logger.Warn("breakpoint label failed",
					slog.String("breakpoint", string(bp.id)),
					slog.String("error", err.Error()),
				)
				continue
			}
			r.metrics.recordBreakpoint(actionSnapshot)
		}
		if bp.pause {
			r.pause = true
			r.metrics.recordBreakpoint(actionPause)
			r.logger.Info("breakpoint paused run",
				slog.String("breakpoint", string(bp.id)),
				slog.Uint64("scan_id", next.ScanID()),
			)
		}
	}
}
