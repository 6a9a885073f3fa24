// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logic

import (
	"errors"
	"fmt"
	"math"

	"github.com/AleutianAI/laddersim/services/ladder/scan"
	"github.com/AleutianAI/laddersim/services/ladder/state"
)

// TimeUnit is the unit of a timer's preset and accumulator.
type TimeUnit int

const (
	UnitMs TimeUnit = iota
	UnitSec
	UnitMin
	UnitHour
	UnitDay
)

var unitMillis = [...]int64{1, 1_000, 60_000, 3_600_000, 86_400_000}
var unitNames = [...]string{"ms", "s", "min", "h", "d"}

// Millis returns the length of one unit in milliseconds.
func (u TimeUnit) Millis() int64 {
	if int(u) < len(unitMillis) {
		return unitMillis[u]
	}
	return 1
}

// String returns the unit suffix.
func (u TimeUnit) String() string {
	if int(u) < len(unitNames) {
		return unitNames[u]
	}
	return "?"
}

// ParseTimeUnit converts a unit suffix back into a TimeUnit.
func ParseTimeUnit(s string) (TimeUnit, error) {
	for i, n := range unitNames {
		if n == s {
			return TimeUnit(i), nil
		}
	}
	return UnitMs, fmt.Errorf("%w: unknown time unit %q", ErrInvalidInstruction, s)
}

type timerMode int

const (
	modeOnDelay timerMode = iota
	modeOffDelay
	modeRetentive
)

var timerModeNames = [...]string{"TON", "TOF", "RTON"}

// TimerOption configures a timer.
type TimerOption func(*TimerInstr)

// Unit sets the unit of the preset and accumulator. The default is UnitMs.
func Unit(u TimeUnit) TimerOption {
	return func(t *TimerInstr) { t.unit = u }
}

// TimerInstr is an on-delay, off-delay or retentive on-delay timer.
//
// Description:
//
//	Timers accumulate whole milliseconds from the scan delta. Sub-millisecond
//	fractions carry over in private memory so no time is lost across scans,
//	and sub-unit milliseconds carry when the accumulator tag is an integer.
//	The accumulator is reported in Unit; the done bit turns on at the first
//	scan whose accumulated time reaches the preset.
//
//	Timers always execute: a disabled rung resets (TON), holds (RTON) or
//	runs down (TOF) the timer.
type TimerInstr struct {
	mode   timerMode
	done   state.Tag
	acc    state.Tag
	preset Expr
	unit   TimeUnit
	reset  Condition
	key    string
}

func newTimer(mode timerMode, done, acc state.Tag, preset any, reset Condition, opts []TimerOption) *TimerInstr {
	t := &TimerInstr{
		mode:   mode,
		done:   done,
		acc:    acc,
		preset: operand(preset),
		reset:  reset,
		key:    privateKey("tmr"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// OnDelay builds a TON timer: done turns on once the rung has been enabled
// for preset. A false rung clears done and the accumulator.
func OnDelay(done, acc state.Tag, preset any, opts ...TimerOption) *TimerInstr {
	return newTimer(modeOnDelay, done, acc, preset, nil, opts)
}

// OffDelay builds a TOF timer: done turns on with the rung and turns off
// preset after the rung goes false.
func OffDelay(done, acc state.Tag, preset any, opts ...TimerOption) *TimerInstr {
	return newTimer(modeOffDelay, done, acc, preset, nil, opts)
}

// RetentiveOnDelay builds an RTON timer: the accumulator holds while the rung
// is false and clears only while reset holds. reset is evaluated every scan.
func RetentiveOnDelay(done, acc state.Tag, preset any, reset Condition, opts ...TimerOption) *TimerInstr {
	return newTimer(modeRetentive, done, acc, preset, reset, opts)
}

// AlwaysExecute implements Instruction.
func (t *TimerInstr) AlwaysExecute() bool { return true }

// Execute implements Instruction.
func (t *TimerInstr) Execute(ec *Exec, enabled bool) (Flow, error) {
	tx := ec.Tx
	presetMs, err := t.presetMillis(tx)
	if err != nil {
		return FlowContinue, err
	}

	switch t.mode {
	case modeOnDelay:
		if !enabled {
			t.clear(tx)
			return FlowContinue, nil
		}
		elapsed := satAdd(t.elapsed(tx), t.advance(tx))
		t.store(tx, elapsed)
		tx.SetTag(t.done.Name, state.Bool(elapsed >= presetMs))

	case modeRetentive:
		if t.reset != nil {
			reset, err := t.reset.Evaluate(tx)
			if err != nil {
				return FlowContinue, fmt.Errorf("%s reset: %w", t, err)
			}
			if reset {
				t.clear(tx)
				return FlowContinue, nil
			}
		}
		elapsed := t.elapsed(tx)
		if enabled {
			elapsed = satAdd(elapsed, t.advance(tx))
			t.store(tx, elapsed)
		}
		tx.SetTag(t.done.Name, state.Bool(elapsed >= presetMs))

	case modeOffDelay:
		if enabled {
			t.store(tx, 0)
			tx.SetMemory(t.key+":frac", 0.0)
			tx.SetTag(t.done.Name, state.Bool(true))
			return FlowContinue, nil
		}
		if !tx.GetTag(t.done.Name, t.done.Default).AsBool() {
			return FlowContinue, nil
		}
		elapsed := satAdd(t.elapsed(tx), t.advance(tx))
		t.store(tx, elapsed)
		if elapsed >= presetMs {
			tx.SetTag(t.done.Name, state.Bool(false))
		}
	}
	return FlowContinue, nil
}

func (t *TimerInstr) presetMillis(tx *scan.Transaction) (int64, error) {
	pv, err := t.preset.Eval(tx)
	if err != nil {
		return 0, fmt.Errorf("%s preset: %w", t, err)
	}
	if !pv.Kind().IsNumeric() {
		return 0, fmt.Errorf("%w: %s preset %s is not numeric", ErrTypeMismatch, t, pv)
	}
	return int64(math.Round(pv.AsReal() * float64(t.unit.Millis()))), nil
}

// advance converts this scan's delta into whole milliseconds, carrying the
// fraction.
func (t *TimerInstr) advance(tx *scan.Transaction) int64 {
	frac, _ := tx.GetMemory(t.key+":frac", 0.0).(float64)
	total := tx.Dt()*1000 + frac
	whole := math.Floor(total + 1e-6)
	tx.SetMemory(t.key+":frac", math.Max(total-whole, 0))
	return int64(whole)
}

// elapsed reconstructs the accumulated milliseconds from the accumulator tag
// and the sub-unit remainder.
func (t *TimerInstr) elapsed(tx *scan.Transaction) int64 {
	acc := tx.GetTag(t.acc.Name, t.acc.Default)
	unit := t.unit.Millis()
	if t.acc.Kind == state.KindReal {
		return int64(math.Round(acc.AsReal() * float64(unit)))
	}
	rem, _ := tx.GetMemory(t.key+":rem", int64(0)).(int64)
	return satAdd(acc.AsInt()*unit, rem)
}

func (t *TimerInstr) store(tx *scan.Transaction, elapsed int64) {
	unit := t.unit.Millis()
	if t.acc.Kind == state.KindReal {
		tx.SetTag(t.acc.Name, state.Real(float64(elapsed)/float64(unit)))
		return
	}
	tx.SetTag(t.acc.Name, state.Int(elapsed/unit))
	tx.SetMemory(t.key+":rem", elapsed%unit)
}

func (t *TimerInstr) clear(tx *scan.Transaction) {
	t.store(tx, 0)
	tx.SetMemory(t.key+":frac", 0.0)
	tx.SetTag(t.done.Name, state.Bool(false))
}

func satAdd(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

func (t *TimerInstr) String() string {
	return fmt.Sprintf("%s(%s, %s, %s%s)", timerModeNames[t.mode], t.done.Name, t.acc.Name, t.preset, t.unit)
}

func (t *TimerInstr) refs() []state.Tag {
	out := append([]state.Tag{t.done, t.acc}, t.preset.refs()...)
	if t.reset != nil {
		out = append(out, t.reset.refs()...)
	}
	return out
}

func (t *TimerInstr) check() error {
	var errs []error
	if t.done.Kind != state.KindBool {
		errs = append(errs, fmt.Errorf("%w: %s done tag must be bool", ErrInvalidInstruction, t))
	}
	if t.acc.Kind != state.KindInt && t.acc.Kind != state.KindReal {
		errs = append(errs, fmt.Errorf("%w: %s accumulator must be int or real", ErrInvalidInstruction, t))
	}
	if int(t.unit) >= len(unitMillis) || t.unit < 0 {
		errs = append(errs, fmt.Errorf("%w: %s has unknown unit", ErrInvalidInstruction, t))
	}
	errs = append(errs, t.preset.check())
	if t.reset != nil {
		errs = append(errs, t.reset.check())
	}
	return errors.Join(errs...)
}
