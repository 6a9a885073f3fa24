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

	"github.com/AleutianAI/laddersim/services/ladder/scan"
	"github.com/AleutianAI/laddersim/services/ladder/state"
)

// Mode returns ModeStop after Stop until the next execution call.
func (r *Runner) Mode() Mode {
	if r.stopped {
		return ModeStop
	}
	return ModeRun
}

// Stop enters stop mode. Repeated calls are no-ops.
//
// Description:
//
//	The current snapshot is left as is. The next Step, Run, RunFor,
//	RunUntil or NewStepper call restarts the runner first.
func (r *Runner) Stop() {
	if r.stopped {
		return
	}
	r.stopped = true
	r.reportMode()
	r.metrics.recordTransition(transitionStop)
	r.logger.Info("runner stopped", slog.Uint64("scan_id", r.current.Load().ScanID()))
}

// ensureRunning performs the stop→run transition when stopped.
func (r *Runner) ensureRunning() {
	if !r.stopped {
		return
	}
	fresh := r.restarted(false)
	r.history.Append(fresh)
	r.metrics.recordTransition(transitionRestart)
	r.logger.Info("runner restarted",
		slog.Int("tags", fresh.TagCount()),
		slog.Int("retained", r.countRetained(fresh)),
	)
}

// Reboot power-cycles the runner.
//
// Description:
//
//	With a battery, reboot behaves like a stop→run transition: retentive
//	tags keep their values and the rest return to their defaults. Without
//	a battery every known tag returns to its default. In both cases
//	history is cleared down to the fresh scan 0 and the runner is left in
//	run mode.
func (r *Runner) Reboot() {
	fresh := r.restarted(!r.battery)
	r.history.Reset(fresh)
	r.metrics.recordTransition(transitionReboot)
	r.logger.Info("runner rebooted",
		slog.Bool("battery_present", r.battery),
		slog.Int("retained", r.countRetained(fresh)),
	)
}

// restarted builds and installs the scan-0 snapshot of a restart.
//
// Description:
//
//	Clears forces and patches, drops engine-private memory and resets
//	scan id and time. Tags reset to their effective default unless they
//	are retentive and resetAll is false. Tags without any known default
//	are removed.
func (r *Runner) restarted(resetAll bool) *state.Snapshot {
	snap := r.current.Load()

	names := make(map[string]struct{})
	for _, n := range snap.TagNames() {
		names[n] = struct{}{}
	}
	for _, n := range r.registry.Names() {
		names[n] = struct{}{}
	}

	updates := make(map[string]state.Value)
	var drop []string
	for name := range names {
		if r.runtime.IsReadOnly(name) {
			drop = append(drop, name)
			continue
		}
		if !resetAll && r.registry.IsRetentive(name) {
			if _, ok := snap.Tag(name); ok {
				continue
			}
		}
		if def, ok := r.registry.EffectiveDefault(name); ok {
			updates[name] = def
		} else {
			drop = append(drop, name)
		}
	}

	fresh := snap.
		WithoutMemory(scan.IsPrivateKey).
		WithoutTags(drop...).
		WithTags(updates).
		Restarted()

	clear(r.forces)
	clear(r.patches)
	r.metrics.setForces(0)
	r.hasWall = false
	r.pause = false
	r.stopped = false
	r.reportMode()
	r.current.Store(fresh)
	return fresh
}

func (r *Runner) countRetained(snap *state.Snapshot) int {
	n := 0
	for _, name := range snap.TagNames() {
		if r.registry.IsRetentive(name) {
			n++
		}
	}
	return n
}

// SetBattery sets whether a battery backs retentive memory at reboot.
func (r *Runner) SetBattery(present bool) {
	r.battery = present
	r.reportMode()
}

// Battery reports the battery flag.
func (r *Runner) Battery() bool { return r.battery }

// SetTimeMode switches the time mode.
//
// Inputs:
//
//	mode - FixedStep or Realtime.
//	dt - Seconds per scan for FixedStep; must be positive. Ignored for
//	     Realtime.
//
// Outputs:
//
//	error - ErrInvalidTimeMode; the mode is unchanged on error.
func (r *Runner) SetTimeMode(mode TimeMode, dt float64) error {
	if mode == Realtime {
		dt = r.dt
	}
	if err := validateTimeMode(mode, dt); err != nil {
		return err
	}
	r.mode = mode
	r.dt = dt
	r.hasWall = false
	r.logger.Info("time mode set", slog.String("mode", mode.String()), slog.Float64("dt", dt))
	return nil
}

func validateTimeMode(mode TimeMode, dt float64) error {
	switch mode {
	case FixedStep:
		if !(dt > 0) {
			return fmt.Errorf("%w: fixed step dt must be positive, got %v", ErrInvalidTimeMode, dt)
		}
	case Realtime:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidTimeMode, mode)
	}
	return nil
}
