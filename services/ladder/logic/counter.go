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

	"github.com/AleutianAI/laddersim/services/ladder/state"
)

// CounterInstr counts rising edges of its rung.
//
// Description:
//
//	The count changes once per false→true transition of the rung, not once
//	per enabled scan. The reset condition is evaluated every scan and takes
//	priority over counting. An up counter resets to 0 and is done at or
//	above the preset; a down counter reloads the preset and is done at or
//	below zero.
type CounterInstr struct {
	down   bool
	done   state.Tag
	acc    state.Tag
	preset Expr
	reset  Condition
	key    string
}

// CountUp builds a CTU counter.
func CountUp(done, acc state.Tag, preset any, reset Condition) *CounterInstr {
	return &CounterInstr{done: done, acc: acc, preset: operand(preset), reset: reset, key: privateKey("ctr")}
}

// CountDown builds a CTD counter.
func CountDown(done, acc state.Tag, preset any, reset Condition) *CounterInstr {
	return &CounterInstr{down: true, done: done, acc: acc, preset: operand(preset), reset: reset, key: privateKey("ctr")}
}

// AlwaysExecute implements Instruction.
func (c *CounterInstr) AlwaysExecute() bool { return true }

// Execute implements Instruction.
func (c *CounterInstr) Execute(ec *Exec, enabled bool) (Flow, error) {
	tx := ec.Tx
	pv, err := c.preset.Eval(tx)
	if err != nil {
		return FlowContinue, fmt.Errorf("%s preset: %w", c, err)
	}
	if !pv.Kind().IsNumeric() {
		return FlowContinue, fmt.Errorf("%w: %s preset %s is not numeric", ErrTypeMismatch, c, pv)
	}
	preset := pv.AsInt()

	wasEnabled, _ := tx.GetMemory(c.key, false).(bool)
	if wasEnabled != enabled {
		tx.SetMemory(c.key, enabled)
	}
	rising := enabled && !wasEnabled

	resetting := false
	if c.reset != nil {
		resetting, err = c.reset.Evaluate(tx)
		if err != nil {
			return FlowContinue, fmt.Errorf("%s reset: %w", c, err)
		}
	}

	acc := tx.GetTag(c.acc.Name, c.acc.Default).AsInt()
	switch {
	case resetting && c.down:
		acc = preset
	case resetting:
		acc = 0
	case rising && c.down:
		acc--
	case rising:
		acc++
	}
	tx.SetTag(c.acc.Name, state.Int(acc))

	if c.down {
		tx.SetTag(c.done.Name, state.Bool(acc <= 0))
	} else {
		tx.SetTag(c.done.Name, state.Bool(acc >= preset))
	}
	return FlowContinue, nil
}

func (c *CounterInstr) String() string {
	name := "CTU"
	if c.down {
		name = "CTD"
	}
	return fmt.Sprintf("%s(%s, %s, %s)", name, c.done.Name, c.acc.Name, c.preset)
}

func (c *CounterInstr) refs() []state.Tag {
	out := append([]state.Tag{c.done, c.acc}, c.preset.refs()...)
	if c.reset != nil {
		out = append(out, c.reset.refs()...)
	}
	return out
}

func (c *CounterInstr) check() error {
	var errs []error
	if c.done.Kind != state.KindBool {
		errs = append(errs, fmt.Errorf("%w: %s done tag must be bool", ErrInvalidInstruction, c))
	}
	if c.acc.Kind != state.KindInt {
		errs = append(errs, fmt.Errorf("%w: %s accumulator must be int", ErrInvalidInstruction, c))
	}
	errs = append(errs, c.preset.check())
	if c.reset != nil {
		errs = append(errs, c.reset.check())
	}
	return errors.Join(errs...)
}
