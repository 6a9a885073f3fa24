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
	"github.com/AleutianAI/laddersim/services/ladder/scan"
	"github.com/AleutianAI/laddersim/services/ladder/state"
)

// Instruction is a side-effecting rung operation.
//
// Description:
//
//	Execute is called with enabled=true when the instruction's rung (or
//	branch) is enabled. Instructions reporting AlwaysExecute are also called
//	with enabled=false while their rung is disabled; timers and counters use
//	this to reset or hold their state. The set of instructions is sealed.
//
// Thread Safety: Instruction values are immutable; per-scan state lives in
// transaction memory.
type Instruction interface {
	// Execute performs the instruction for this scan.
	Execute(ec *Exec, enabled bool) (Flow, error)

	// AlwaysExecute reports whether Execute must also run while disabled.
	AlwaysExecute() bool

	// String renders the instruction for logs and listings.
	String() string

	refs() []state.Tag
	check() error
}

// coiler is implemented by instructions whose outputs reset to their
// defaults while the rung is false.
type coiler interface {
	coils() []state.Tag
}

// rearmer is implemented by instructions with oneshot state.
type rearmer interface {
	rearm(tx *scan.Transaction)
}

// -----------------------------------------------------------------------------
// Options
// -----------------------------------------------------------------------------

// Option configures an instruction.
type Option func(*options)

type options struct {
	oneshot bool
}

// Oneshot limits the instruction to the first scan of each enabled period.
// It re-arms once the rung goes false.
func Oneshot() Option {
	return func(o *options) { o.oneshot = true }
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// oneshot tracks whether an instruction already fired in the current
// enabled period.
type oneshot struct {
	on  bool
	key string
}

func newOneshot(on bool) oneshot {
	if !on {
		return oneshot{}
	}
	return oneshot{on: true, key: privateKey("os")}
}

// fire reports whether the instruction acts in this scan and marks it fired.
func (o oneshot) fire(tx *scan.Transaction) bool {
	if !o.on {
		return true
	}
	if fired, _ := tx.GetMemory(o.key, false).(bool); fired {
		return false
	}
	tx.SetMemory(o.key, true)
	return true
}

func (o oneshot) rearm(tx *scan.Transaction) {
	if !o.on {
		return
	}
	if fired, _ := tx.GetMemory(o.key, false).(bool); fired {
		tx.SetMemory(o.key, false)
	}
}

// -----------------------------------------------------------------------------
// Coils
// -----------------------------------------------------------------------------

// OutInstr energizes a coil while its rung is enabled.
type OutInstr struct {
	tag state.Tag
	os  oneshot
}

// Out drives tag true while the rung is enabled. The rung resets tag to its
// default when it goes false. With Oneshot the coil is true for one scan per
// enabled period.
func Out(tag state.Tag, opts ...Option) *OutInstr {
	o := applyOptions(opts)
	return &OutInstr{tag: tag, os: newOneshot(o.oneshot)}
}

// Execute implements Instruction.
func (i *OutInstr) Execute(ec *Exec, enabled bool) (Flow, error) {
	if !enabled {
		return FlowContinue, nil
	}
	if i.os.fire(ec.Tx) {
		ec.Tx.SetTag(i.tag.Name, state.Bool(true))
	} else {
		ec.Tx.SetTag(i.tag.Name, state.Bool(false))
	}
	return FlowContinue, nil
}

// AlwaysExecute implements Instruction.
func (i *OutInstr) AlwaysExecute() bool { return false }

func (i *OutInstr) String() string { return "OUT(" + i.tag.Name + ")" }

func (i *OutInstr) refs() []state.Tag { return []state.Tag{i.tag} }
func (i *OutInstr) coils() []state.Tag { return []state.Tag{i.tag} }
func (i *OutInstr) rearm(tx *scan.Transaction) {
	i.os.rearm(tx)
}
func (i *OutInstr) check() error { return i.tag.Validate() }

// LatchInstr sets or clears a tag and leaves it there.
type LatchInstr struct {
	tag   state.Tag
	value bool
	os    oneshot
}

// Latch sets tag true while enabled. It stays true when the rung goes false.
func Latch(tag state.Tag, opts ...Option) *LatchInstr {
	o := applyOptions(opts)
	return &LatchInstr{tag: tag, value: true, os: newOneshot(o.oneshot)}
}

// Unlatch sets tag false while enabled.
func Unlatch(tag state.Tag, opts ...Option) *LatchInstr {
	o := applyOptions(opts)
	return &LatchInstr{tag: tag, os: newOneshot(o.oneshot)}
}

// Execute implements Instruction.
func (i *LatchInstr) Execute(ec *Exec, enabled bool) (Flow, error) {
	if enabled && i.os.fire(ec.Tx) {
		ec.Tx.SetTag(i.tag.Name, state.Bool(i.value))
	}
	return FlowContinue, nil
}

// AlwaysExecute implements Instruction.
func (i *LatchInstr) AlwaysExecute() bool { return false }

func (i *LatchInstr) String() string {
	if i.value {
		return "LATCH(" + i.tag.Name + ")"
	}
	return "UNLATCH(" + i.tag.Name + ")"
}

func (i *LatchInstr) refs() []state.Tag { return []state.Tag{i.tag} }
func (i *LatchInstr) rearm(tx *scan.Transaction) { i.os.rearm(tx) }
func (i *LatchInstr) check() error { return i.tag.Validate() }
