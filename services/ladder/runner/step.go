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
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/laddersim/services/ladder/logic"
	"github.com/AleutianAI/laddersim/services/ladder/scan"
	"github.com/AleutianAI/laddersim/services/ladder/state"
	"github.com/AleutianAI/laddersim/services/ladder/telemetry"
)

// timeEpsilon absorbs floating-point drift when comparing simulation time.
const timeEpsilon = 1e-9

// Predicate inspects a committed snapshot.
type Predicate func(snap *state.Snapshot) (bool, error)

// -----------------------------------------------------------------------------
// Scan procedure
// -----------------------------------------------------------------------------

// pass is one scan in progress.
type pass struct {
	base     *state.Snapshot
	tx       *scan.Transaction
	ec       *logic.Exec
	dt       float64
	wall     time.Time
	patches  map[string]state.Value
	forces   map[string]state.Value
	next     int
	returned bool
	started  time.Time
}

// begin opens a scan: transaction, scan-start hook, patches, forces, dt.
func (r *Runner) begin() (*pass, error) {
	base := r.current.Load()
	p := &pass{
		base:    base,
		tx:      scan.New(base, scan.WithResolver(r.runtime.Resolve)),
		patches: maps.Clone(r.patches),
		forces:  maps.Clone(r.forces),
		started: time.Now(),
	}

	if err := r.runtime.OnScanStart(p.tx); err != nil {
		return nil, fmt.Errorf("scan start hook: %w", err)
	}
	p.tx.SetTags(p.patches)
	p.tx.SetTags(p.forces)

	p.dt, p.wall = r.nextDt()
	p.tx.SetMemory(scan.DtKey, p.dt)
	p.ec = logic.NewExec(p.tx, r.program, r.logger)
	return p, nil
}

// nextDt returns the dt for a new scan and the wall time it was taken at.
func (r *Runner) nextDt() (float64, time.Time) {
	if r.mode == FixedStep {
		return r.dt, time.Time{}
	}
	now := r.clock()
	if !r.hasWall {
		return 0, now
	}
	dt := now.Sub(r.lastWall).Seconds()
	if dt < 0 {
		dt = 0
	}
	return dt, now
}

// remaining reports whether the pass has rungs left to evaluate.
func (r *Runner) remaining(p *pass) bool {
	return !p.returned && p.next < len(r.program.Rungs())
}

// evalNext evaluates the next top-level rung.
func (r *Runner) evalNext(p *pass) (*logic.Rung, error) {
	idx := p.next
	rung := r.program.Rungs()[idx]
	p.next++
	flow, err := rung.Evaluate(p.ec)
	if err != nil {
		return rung, fmt.Errorf("rung %d: %w", idx, err)
	}
	if flow == logic.FlowReturn {
		p.returned = true
	}
	return rung, nil
}

// finish closes a scan: shadows, scan-end hook, forces, commit, monitors,
// breakpoints, install.
func (r *Runner) finish(p *pass) (*state.Snapshot, error) {
	names := append(p.base.TagNames(), p.tx.PendingTagNames()...)
	names = append(names, r.virtual...)
	for _, n := range names {
		if v, ok := p.tx.LookupTag(n); ok {
			p.tx.SetMemory(scan.PrevKey(n), v)
		}
	}

	if err := r.runtime.OnScanEnd(p.tx); err != nil {
		return nil, fmt.Errorf("scan end hook: %w", err)
	}
	p.tx.SetTags(p.forces)

	next, err := p.tx.Commit(p.dt)
	if err != nil {
		return nil, err
	}

	if err := r.fireMonitors(p.base, next); err != nil {
		return nil, err
	}
	hits, err := r.checkBreakpoints(next)
	if err != nil {
		return nil, err
	}

	r.install(p, next)
	r.applyBreakpoints(next, hits)
	return next, nil
}

// install makes next the current snapshot.
func (r *Runner) install(p *pass, next *state.Snapshot) {
	r.current.Store(next)
	r.history.Append(next)
	for name, v := range p.patches {
		if cur, ok := r.patches[name]; ok && cur.Equal(v) {
			delete(r.patches, name)
		}
	}
	if r.mode == Realtime {
		r.lastWall = p.wall
		r.hasWall = true
	}
	r.metrics.recordScan(time.Since(p.started))
	r.logger.Debug("scan committed",
		slog.Uint64("scan_id", next.ScanID()),
		slog.Float64("dt", p.dt),
	)
}

// scanOnce runs one complete scan.
func (r *Runner) scanOnce() (*state.Snapshot, error) {
	p, err := r.begin()
	if err != nil {
		r.metrics.recordScanError()
		return nil, err
	}
	for r.remaining(p) {
		if _, err := r.evalNext(p); err != nil {
			r.metrics.recordScanError()
			return nil, err
		}
	}
	next, err := r.finish(p)
	if err != nil {
		r.metrics.recordScanError()
		return nil, err
	}
	return next, nil
}

// -----------------------------------------------------------------------------
// Execution methods
// -----------------------------------------------------------------------------

// startSpan opens a span for an execution method.
func (r *Runner) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return telemetry.StartSpan(ctx, tracerName, name, trace.WithAttributes(
		attribute.String("ladder.program", r.program.Name()),
		attribute.Int64("ladder.scan_id", int64(r.current.Load().ScanID())),
	))
}

func endSpan(span trace.Span, scans int, err error) {
	span.SetAttributes(attribute.Int("ladder.scans", scans))
	telemetry.EndSpan(span, err)
}

// loop runs up to limit scans, stopping early when stop returns true, a
// breakpoint pauses, or ctx is cancelled. limit < 0 means no limit.
func (r *Runner) loop(ctx context.Context, limit int, stop Predicate) (int, bool, error) {
	r.pause = false
	scans := 0
	for limit < 0 || scans < limit {
		if err := ctx.Err(); err != nil {
			return scans, false, fmt.Errorf("context cancelled: %w", err)
		}
		next, err := r.scanOnce()
		if err != nil {
			return scans, false, err
		}
		scans++
		if r.pause {
			r.pause = false
			return scans, false, nil
		}
		if stop != nil {
			done, err := stop(next)
			if err != nil {
				return scans, false, err
			}
			if done {
				return scans, true, nil
			}
		}
	}
	return scans, false, nil
}

// Step runs exactly one scan.
//
// Description:
//
//	Restarts first if the runner is stopped. A pause requested by a
//	breakpoint during this scan is consumed.
//
// Outputs:
//
//	*state.Snapshot - The committed snapshot.
//	error - Logic, hook or callback errors; the scan is then discarded.
func (r *Runner) Step(ctx context.Context) (*state.Snapshot, error) {
	if err := r.enter(); err != nil {
		return nil, err
	}
	defer r.leave()

	ctx, span := r.startSpan(ctx, "Runner.Step")
	if err := ctx.Err(); err != nil {
		endSpan(span, 0, err)
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	r.ensureRunning()
	next, err := r.scanOnce()
	r.pause = false
	if err != nil {
		endSpan(span, 0, err)
		return nil, err
	}
	endSpan(span, 1, nil)
	return next, nil
}

// Run runs up to cycles scans, stopping early when a breakpoint pauses.
//
// Outputs:
//
//	*state.Snapshot - The current snapshot afterwards.
//	error - The first scan error.
func (r *Runner) Run(ctx context.Context, cycles int) (*state.Snapshot, error) {
	if err := r.enter(); err != nil {
		return nil, err
	}
	defer r.leave()

	ctx, span := r.startSpan(ctx, "Runner.Run")
	r.ensureRunning()
	scans, _, err := r.loop(ctx, max(cycles, 0), nil)
	endSpan(span, scans, err)
	return r.current.Load(), err
}

// RunFor runs scans until simulation time has advanced by at least seconds.
//
// Description:
//
//	Stops early when a breakpoint pauses. In Realtime mode the call lasts
//	roughly seconds of wall time.
func (r *Runner) RunFor(ctx context.Context, seconds float64) (*state.Snapshot, error) {
	if err := r.enter(); err != nil {
		return nil, err
	}
	defer r.leave()

	ctx, span := r.startSpan(ctx, "Runner.RunFor")
	span.SetAttributes(attribute.Float64("ladder.seconds", seconds))
	r.ensureRunning()
	target := r.current.Load().Timestamp() + seconds
	if seconds <= 0 {
		endSpan(span, 0, nil)
		return r.current.Load(), nil
	}
	scans, _, err := r.loop(ctx, -1, func(s *state.Snapshot) (bool, error) {
		return s.Timestamp() >= target-timeEpsilon, nil
	})
	endSpan(span, scans, err)
	return r.current.Load(), err
}

// RunUntil runs scans until pred holds for a committed snapshot.
//
// Inputs:
//
//	pred - Checked after every committed scan. Its errors are returned.
//	maxCycles - Upper bound on scans; non-positive means unbounded.
//
// Outputs:
//
//	*state.Snapshot - The current snapshot afterwards.
//	bool - True when pred held.
//	error - Scan or predicate errors.
func (r *Runner) RunUntil(ctx context.Context, pred Predicate, maxCycles int) (*state.Snapshot, bool, error) {
	if err := r.enter(); err != nil {
		return nil, false, err
	}
	defer r.leave()

	ctx, span := r.startSpan(ctx, "Runner.RunUntil")
	r.ensureRunning()
	limit := maxCycles
	if limit <= 0 {
		limit = -1
	}
	scans, matched, err := r.loop(ctx, limit, pred)
	span.SetAttributes(attribute.Bool("ladder.matched", matched))
	endSpan(span, scans, err)
	return r.current.Load(), matched, err
}
