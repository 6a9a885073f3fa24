// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package runner drives a ladder program scan by scan.
//
// A Runner owns the current snapshot, the time mode, pending patches,
// persistent forces, the history, monitors and breakpoints. Every execution
// method (Step, Run, RunFor, RunUntil and the Stepper) goes through the same
// scan procedure:
//
//	create transaction → scan-start hook → patches → forces → dt
//	  → rungs → previous-value shadows → scan-end hook → forces → commit
//
// Monitors and breakpoint predicates see the committed snapshot before it
// is installed. If any of them fails, the scan is discarded and the error is
// returned unchanged.
package runner

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/laddersim/services/ladder/history"
	"github.com/AleutianAI/laddersim/services/ladder/logic"
	"github.com/AleutianAI/laddersim/services/ladder/state"
	"github.com/AleutianAI/laddersim/services/ladder/system"
)

const tracerName = "laddersim.runner"

// Mode is the run/stop state of a Runner.
type Mode int

const (
	// ModeRun executes scans.
	ModeRun Mode = iota

	// ModeStop is entered by Stop. The next execution call restarts.
	ModeStop
)

// String returns "run" or "stop".
func (m Mode) String() string {
	if m == ModeStop {
		return "stop"
	}
	return "run"
}

// modeReporter is implemented by runtimes that mirror run mode and battery
// state, such as system.Points.
type modeReporter interface {
	SetRun(run bool)
	SetBattery(present bool)
}

// Runner executes a program against evolving snapshots.
//
// Description:
//
//	The engine is synchronous: each execution method runs its scans to
//	completion on the calling goroutine. Monitor callbacks and breakpoint
//	predicates must not call execution methods of the same runner; doing
//	so returns ErrReentrant.
//
// Thread Safety: Execution, input and lifecycle methods must be called from
// one goroutine at a time. Current, SimulationTime, Value and History are
// safe to call from any goroutine.
type Runner struct {
	program  *logic.Program
	registry *state.Registry
	runtime  system.Runtime
	history  *history.History
	logger   *slog.Logger
	metrics  *Metrics
	clock    func() time.Time

	current atomic.Pointer[state.Snapshot]

	mode     TimeMode
	dt       float64
	lastWall time.Time
	hasWall  bool

	patches map[string]state.Value
	forces  map[string]state.Value

	// virtual lists referenced read-only points, shadowed for edge detection.
	virtual []string

	monitors    []*monitor
	breakpoints []*Breakpoint

	stopped bool
	battery bool
	pause   bool
	busy    bool
}

// New creates a Runner for program.
//
// Description:
//
//	Validates the program, declares every tag it references plus WithTags
//	tags, and builds the scan-0 snapshot from declared defaults overlaid
//	with WithInitialState values. The initial snapshot is recorded in
//	history.
//
// Inputs:
//
//	program - The program to run. Must not be nil.
//	opts - Runner options.
//
// Outputs:
//
//	*Runner - The runner, in run mode at scan 0.
//	error - Program validation, tag conflicts, bad time mode or bad initial
//	        values.
func New(program *logic.Program, opts ...Option) (*Runner, error) {
	if program == nil {
		return nil, ErrNoProgram
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := validateTimeMode(o.mode, o.dt); err != nil {
		return nil, err
	}
	if err := program.Validate(); err != nil {
		return nil, fmt.Errorf("program %s: %w", program.Name(), err)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "runner"), slog.String("program", program.Name()))

	rt := o.runtime
	if rt == nil {
		rt = system.NewPoints(o.battery)
	}

	registry := state.NewRegistry()
	if err := registry.Register(program.Tags()...); err != nil {
		return nil, err
	}
	if err := registry.Register(o.tags...); err != nil {
		return nil, err
	}
	for name, slot := range o.slots {
		registry.BindSlot(name, slot)
	}

	histOpts := []history.Option{history.WithLogger(logger)}
	if o.archive != nil {
		histOpts = append(histOpts, history.WithSink(o.archive))
	}

	r := &Runner{
		program:  program,
		registry: registry,
		runtime:  rt,
		history:  history.New(o.historyLimit, histOpts...),
		logger:   logger,
		metrics:  o.metrics,
		clock:    o.clock,
		mode:     o.mode,
		dt:       o.dt,
		patches:  make(map[string]state.Value),
		forces:   make(map[string]state.Value),
		battery:  o.battery,
	}
	r.reportMode()

	defaults := make(map[string]state.Value)
	for _, name := range registry.Names() {
		if rt.IsReadOnly(name) {
			r.virtual = append(r.virtual, name)
			continue
		}
		if v, ok := registry.EffectiveDefault(name); ok {
			defaults[name] = v
		}
	}
	initial := state.NewSnapshot(defaults)
	if len(o.initial) > 0 {
		seed := make(map[any]any, len(o.initial))
		for k, v := range o.initial {
			seed[k] = v
		}
		values, err := r.resolveInputs(seed, initial)
		if err != nil {
			return nil, fmt.Errorf("initial state: %w", err)
		}
		initial = initial.WithTags(values)
	}
	r.current.Store(initial)
	r.history.Append(initial)
	r.metrics.setForces(0)
	return r, nil
}

// Program returns the program the runner executes.
func (r *Runner) Program() *logic.Program { return r.program }

// Registry returns the tag registry.
func (r *Runner) Registry() *state.Registry { return r.registry }

// Current returns the most recently committed snapshot.
func (r *Runner) Current() *state.Snapshot { return r.current.Load() }

// SimulationTime returns the timestamp of the current snapshot in seconds.
func (r *Runner) SimulationTime() float64 { return r.current.Load().Timestamp() }

// History returns the snapshot history.
func (r *Runner) History() *history.History { return r.history }

// Value returns a tag's current value.
//
// Description:
//
//	Reads system points, then the current snapshot, then the declared
//	default, the same order a scan uses.
func (r *Runner) Value(name string) (state.Value, bool) {
	return r.valueIn(r.current.Load(), name)
}

func (r *Runner) valueIn(snap *state.Snapshot, name string) (state.Value, bool) {
	if v, ok := r.runtime.Resolve(name, snap); ok {
		return v, true
	}
	if v, ok := snap.Tag(name); ok {
		return v, true
	}
	return r.registry.EffectiveDefault(name)
}

// TimeMode returns the current time mode and fixed dt.
func (r *Runner) TimeMode() (TimeMode, float64) { return r.mode, r.dt }

// enter marks the runner busy for the duration of an execution call.
func (r *Runner) enter() error {
	if r.busy {
		return ErrReentrant
	}
	r.busy = true
	return nil
}

func (r *Runner) leave() { r.busy = false }

func (r *Runner) reportMode() {
	if m, ok := r.runtime.(modeReporter); ok {
		m.SetRun(!r.stopped)
		m.SetBattery(r.battery)
	}
}
