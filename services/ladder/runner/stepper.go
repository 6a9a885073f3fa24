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

	"github.com/AleutianAI/laddersim/services/ladder/logic"
	"github.com/AleutianAI/laddersim/services/ladder/state"
)

// RungStep describes one rung evaluated by a Stepper.
type RungStep struct {
	// Index is the rung's position in the main program.
	Index int

	// Rung is the evaluated rung.
	Rung *logic.Rung

	// Enabled reports whether the rung's conditions held before it ran.
	Enabled bool

	// Returned is true when the rung ended the scan with Return.
	Returned bool
}

// stepperState is the position of a Stepper.
type stepperState int

const (
	stepperRunning stepperState = iota
	stepperDone
	stepperFailed
)

// Stepper runs one scan a rung at a time.
//
// Description:
//
//	A Stepper holds the scan's transaction and the index of the next rung.
//	Each Next call evaluates one rung. The call after the last rung
//	finishes the scan and commits it, returning done. Until then the
//	runner's current snapshot is untouched; an abandoned Stepper has no
//	effect. If the runner commits another scan in the meantime, the
//	Stepper fails with ErrStaleStepper instead of committing.
//
// Thread Safety: Not safe for concurrent use.
type Stepper struct {
	r     *Runner
	ctx   context.Context
	p     *pass
	phase stepperState
	next  *state.Snapshot
}

// NewStepper opens a scan for rung-by-rung execution.
//
// Description:
//
//	Restarts the runner first if it is stopped. The scan-start hook,
//	patches, forces and dt are applied immediately.
func (r *Runner) NewStepper(ctx context.Context) (*Stepper, error) {
	if r.busy {
		return nil, ErrReentrant
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	r.ensureRunning()
	p, err := r.begin()
	if err != nil {
		return nil, err
	}
	return &Stepper{r: r, ctx: ctx, p: p}, nil
}

// Next evaluates the next rung, or commits when none remain.
//
// Outputs:
//
//	RungStep - The evaluated rung; zero when the call committed.
//	bool - True once the scan is committed.
//	error - Rung, hook or callback errors, ErrStaleStepper, or a cancelled
//	        context. After an error the Stepper stays failed.
func (s *Stepper) Next() (RungStep, bool, error) {
	switch s.phase {
	case stepperDone:
		return RungStep{}, true, nil
	case stepperFailed:
		return RungStep{}, false, fmt.Errorf("%w: scan failed", ErrStaleStepper)
	}
	if err := s.ctx.Err(); err != nil {
		s.phase = stepperFailed
		return RungStep{}, false, fmt.Errorf("context cancelled: %w", err)
	}

	r := s.r
	if !r.remaining(s.p) {
		if err := s.commit(); err != nil {
			return RungStep{}, false, err
		}
		return RungStep{}, true, nil
	}

	idx := s.p.next
	rung := r.program.Rungs()[idx]
	enabled, err := rung.Enabled(s.p.tx)
	if err != nil {
		s.phase = stepperFailed
		return RungStep{}, false, fmt.Errorf("rung %d: %w", idx, err)
	}
	if _, err := r.evalNext(s.p); err != nil {
		s.phase = stepperFailed
		r.metrics.recordScanError()
		return RungStep{}, false, err
	}
	return RungStep{Index: idx, Rung: rung, Enabled: enabled, Returned: s.p.returned}, false, nil
}

func (s *Stepper) commit() error {
	r := s.r
	if r.stopped || r.current.Load() != s.p.base {
		s.phase = stepperFailed
		return ErrStaleStepper
	}
	if err := r.enter(); err != nil {
		return err
	}
	defer r.leave()

	next, err := r.finish(s.p)
	if err != nil {
		s.phase = stepperFailed
		r.metrics.recordScanError()
		return err
	}
	r.pause = false
	s.phase = stepperDone
	s.next = next
	return nil
}

// Finish evaluates every remaining rung and commits.
func (s *Stepper) Finish() (*state.Snapshot, error) {
	for {
		_, done, err := s.Next()
		if err != nil {
			return nil, err
		}
		if done {
			return s.next, nil
		}
	}
}

// Done reports whether the scan has been committed.
func (s *Stepper) Done() bool { return s.phase == stepperDone }

// Committed returns the committed snapshot once Done.
func (s *Stepper) Committed() *state.Snapshot { return s.next }

// Base returns the snapshot the scan started from.
func (s *Stepper) Base() *state.Snapshot { return s.p.base }

// ScanID returns the id of the scan in progress.
func (s *Stepper) ScanID() uint64 { return s.p.base.ScanID() + 1 }

// Pending returns a tag's value as the scan in progress sees it.
func (s *Stepper) Pending(name string) (state.Value, bool) {
	return s.p.tx.LookupTag(name)
}

// PendingTags returns the tag writes made so far in the scan in progress,
// including applied patches and forces.
func (s *Stepper) PendingTags() map[string]state.Value {
	return s.p.tx.PendingTags()
}

// Position returns the index of the next rung to evaluate.
func (s *Stepper) Position() int { return s.p.next }
