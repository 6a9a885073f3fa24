// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package system provides the runtime collaborator that supplies virtual
// system points to a runner and hooks into every scan.
package system

import (
	"math"
	"sort"
	"sync/atomic"

	"github.com/AleutianAI/laddersim/services/ladder/scan"
	"github.com/AleutianAI/laddersim/services/ladder/state"
)

// Runtime is consumed by the runner for virtual points and scan hooks.
//
// Description:
//
//	Resolve supplies values for points that are not stored in the snapshot.
//	Read-only names are rejected by patches and forces before any state
//	changes. OnScanStart runs right after the scan's transaction is created;
//	OnScanEnd runs after logic and before forces are re-asserted.
//
// Thread Safety: Implementations must tolerate Resolve being called from any
// goroutine that reads the runner; hooks run on the scanning goroutine.
type Runtime interface {
	Resolve(name string, snap *state.Snapshot) (state.Value, bool)
	IsReadOnly(name string) bool
	ReadOnlyTags() []string
	OnScanStart(tx *scan.Transaction) error
	OnScanEnd(tx *scan.Transaction) error
}

// System point names.
const (
	AlwaysOn       = "sys.always_on"
	FirstScan      = "sys.first_scan"
	ScanCount      = "sys.scan_count"
	ScanTimeMs     = "sys.scan_time_ms"
	Clock100ms     = "sys.clock_100ms"
	Clock1s        = "sys.clock_1s"
	ModeRun        = "sys.mode_run"
	BatteryPresent = "sys.battery_present"
)

// ranKey marks that at least one scan completed since the last restart. It
// is engine-private memory, so a stop→run transition clears it.
const ranKey = scan.PrivatePrefix + "sys:ran"

// Points is the built-in Runtime.
//
// Description:
//
//	  sys.always_on       true
//	  sys.first_scan      true until the first scan after (re)start ends
//	  sys.scan_count      scans committed since (re)start
//	  sys.scan_time_ms    duration of the last committed scan
//	  sys.clock_100ms     square wave, 50 ms on / 50 ms off
//	  sys.clock_1s        square wave, 500 ms on / 500 ms off
//	  sys.mode_run        false while the runner is stopped
//	  sys.battery_present battery flag used by reboot
//
//	Clocks are derived from simulation time, so they are deterministic in
//	FIXED_STEP mode.
//
// Thread Safety: Safe for concurrent use.
type Points struct {
	run     atomic.Bool
	battery atomic.Bool
}

// NewPoints creates system points in RUN mode with the given battery flag.
func NewPoints(battery bool) *Points {
	p := &Points{}
	p.run.Store(true)
	p.battery.Store(battery)
	return p
}

// SetRun records the run mode reported by sys.mode_run.
func (p *Points) SetRun(run bool) { p.run.Store(run) }

// SetBattery records the battery flag reported by sys.battery_present.
func (p *Points) SetBattery(present bool) { p.battery.Store(present) }

// Battery reports the battery flag.
func (p *Points) Battery() bool { return p.battery.Load() }

// Tags returns descriptors for every system point.
func (p *Points) Tags() []state.Tag {
	return []state.Tag{
		state.BoolTag(AlwaysOn),
		state.BoolTag(FirstScan),
		state.IntTag(ScanCount),
		state.IntTag(ScanTimeMs),
		state.BoolTag(Clock100ms),
		state.BoolTag(Clock1s),
		state.BoolTag(ModeRun),
		state.BoolTag(BatteryPresent),
	}
}

// Resolve implements Runtime.
func (p *Points) Resolve(name string, snap *state.Snapshot) (state.Value, bool) {
	switch name {
	case AlwaysOn:
		return state.Bool(true), true
	case FirstScan:
		_, ran := snap.Memory(ranKey)
		return state.Bool(!ran), true
	case ScanCount:
		return state.Int(int64(snap.ScanID())), true
	case ScanTimeMs:
		dt, _ := snap.Memory(scan.DtKey)
		f, _ := dt.(float64)
		return state.Int(int64(math.Round(f * 1000))), true
	case Clock100ms:
		return state.Bool(squareWave(snap.Timestamp(), 100)), true
	case Clock1s:
		return state.Bool(squareWave(snap.Timestamp(), 1000)), true
	case ModeRun:
		return state.Bool(p.run.Load()), true
	case BatteryPresent:
		return state.Bool(p.battery.Load()), true
	}
	return state.Value{}, false
}

// squareWave is on during the first half of each period.
func squareWave(seconds float64, periodMs int64) bool {
	ms := int64(math.Round(seconds * 1000))
	return ms%periodMs < periodMs/2
}

// IsReadOnly implements Runtime. Every system point is read-only.
func (p *Points) IsReadOnly(name string) bool {
	_, ok := p.Resolve(name, state.NewSnapshot(nil))
	return ok
}

// ReadOnlyTags implements Runtime.
func (p *Points) ReadOnlyTags() []string {
	tags := p.Tags()
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	sort.Strings(names)
	return names
}

// OnScanStart implements Runtime.
func (p *Points) OnScanStart(*scan.Transaction) error { return nil }

// OnScanEnd implements Runtime. It clears sys.first_scan for later scans.
func (p *Points) OnScanEnd(tx *scan.Transaction) error {
	if _, ok := tx.LookupMemory(ranKey); !ok {
		tx.SetMemory(ranKey, true)
	}
	return nil
}
