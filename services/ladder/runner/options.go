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
	"strings"
	"time"

	"github.com/AleutianAI/laddersim/services/ladder/history"
	"github.com/AleutianAI/laddersim/services/ladder/state"
	"github.com/AleutianAI/laddersim/services/ladder/system"
)

// DefaultDt is the fixed step used when none is configured, in seconds.
const DefaultDt = 0.1

// TimeMode selects how each scan's dt is computed.
type TimeMode int

const (
	// FixedStep advances simulation time by a constant dt per scan.
	FixedStep TimeMode = iota

	// Realtime advances simulation time by the wall-clock time elapsed
	// since the previous scan. The first scan after start uses 0.
	Realtime
)

// String returns the configuration name of the mode.
func (m TimeMode) String() string {
	switch m {
	case FixedStep:
		return "fixed_step"
	case Realtime:
		return "realtime"
	default:
		return fmt.Sprintf("TimeMode(%d)", int(m))
	}
}

// ParseTimeMode parses "fixed_step" or "realtime", case-insensitively.
func ParseTimeMode(s string) (TimeMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fixed_step", "fixed":
		return FixedStep, nil
	case "realtime", "real_time":
		return Realtime, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidTimeMode, s)
}

// Option configures a Runner.
type Option func(*options)

type options struct {
	tags         []state.Tag
	slots        map[string]state.Slot
	initial      map[string]any
	mode         TimeMode
	dt           float64
	historyLimit int
	battery      bool
	runtime      system.Runtime
	logger       *slog.Logger
	metrics      *Metrics
	clock        func() time.Time
	archive      history.Sink
}

func defaultOptions() options {
	return options{
		slots:        make(map[string]state.Slot),
		mode:         FixedStep,
		dt:           DefaultDt,
		historyLimit: history.DefaultLimit,
		battery:      true,
		clock:        time.Now,
	}
}

// WithTags declares tags in addition to those the program references.
func WithTags(tags ...state.Tag) Option {
	return func(o *options) { o.tags = append(o.tags, tags...) }
}

// WithSlots attaches slot overlays (retentive marks, default overrides).
func WithSlots(slots map[string]state.Slot) Option {
	return func(o *options) {
		for name, s := range slots {
			o.slots[name] = s
		}
	}
}

// WithInitialState seeds tag values at scan 0. Values take the same forms
// as Patch values.
func WithInitialState(values map[string]any) Option {
	return func(o *options) { o.initial = values }
}

// WithTimeMode selects the time mode. dt is ignored for Realtime.
func WithTimeMode(mode TimeMode, dt float64) Option {
	return func(o *options) {
		o.mode = mode
		if mode == FixedStep {
			o.dt = dt
		}
	}
}

// WithHistoryLimit bounds the number of retained snapshots.
func WithHistoryLimit(n int) Option {
	return func(o *options) { o.historyLimit = n }
}

// WithBattery sets whether a battery backs retentive memory across reboot.
// The default is true.
func WithBattery(present bool) Option {
	return func(o *options) { o.battery = present }
}

// WithRuntime replaces the built-in system points.
func WithRuntime(rt system.Runtime) Option {
	return func(o *options) { o.runtime = rt }
}

// WithLogger sets the runner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics records runner metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock replaces the wall clock used by Realtime mode.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// WithArchive sends snapshots evicted from history to sink.
func WithArchive(sink history.Sink) Option {
	return func(o *options) { o.archive = sink }
}
