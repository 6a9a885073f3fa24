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
	"log/slog"
	"strings"

	"github.com/AleutianAI/laddersim/services/ladder/scan"
	"github.com/AleutianAI/laddersim/services/ladder/state"
)

// MaxLoopCount bounds the iterations of a single ForLoop execution.
const MaxLoopCount = 100_000

// -----------------------------------------------------------------------------
// Call / Return
// -----------------------------------------------------------------------------

// CallInstr runs a named subroutine while enabled.
type CallInstr struct {
	name string
}

// Call runs the subroutine's rungs in order while the rung is enabled. A
// Return inside the subroutine ends it early and execution continues after
// the Call.
func Call(name string) *CallInstr { return &CallInstr{name: name} }

// Name returns the called subroutine.
func (c *CallInstr) Name() string { return c.name }

// Execute implements Instruction.
func (c *CallInstr) Execute(ec *Exec, enabled bool) (Flow, error) {
	if !enabled {
		return FlowContinue, nil
	}
	if ec.subs == nil {
		return FlowContinue, fmt.Errorf("%w: %q", ErrUnknownSubroutine, c.name)
	}
	rungs, ok := ec.subs.LookupSubroutine(c.name)
	if !ok {
		return FlowContinue, fmt.Errorf("%w: %q", ErrUnknownSubroutine, c.name)
	}
	if ec.depth >= MaxCallDepth {
		return FlowContinue, fmt.Errorf("%w: calling %q at depth %d", ErrCallDepth, c.name, ec.depth)
	}

	ec.depth++
	defer func() { ec.depth-- }()
	ec.logger.Debug("subroutine call",
		slog.String("subroutine", c.name),
		slog.Int("depth", ec.depth),
		slog.Uint64("scan_id", ec.Tx.ScanID()),
	)
	if _, err := EvaluateRungs(ec, rungs); err != nil {
		return FlowContinue, fmt.Errorf("subroutine %q: %w", c.name, err)
	}
	return FlowContinue, nil
}

// AlwaysExecute implements Instruction.
func (c *CallInstr) AlwaysExecute() bool { return false }

func (c *CallInstr) String() string { return "CALL(" + c.name + ")" }
func (c *CallInstr) refs() []state.Tag { return nil }
func (c *CallInstr) check() error {
	if strings.TrimSpace(c.name) == "" {
		return fmt.Errorf("%w: CALL without a subroutine name", ErrInvalidInstruction)
	}
	return nil
}

// ReturnInstr ends the current subroutine.
type ReturnInstr struct{}

// Return ends the current subroutine while enabled. In the main program it
// ends the scan's logic.
func Return() *ReturnInstr { return &ReturnInstr{} }

// Execute implements Instruction.
func (r *ReturnInstr) Execute(_ *Exec, enabled bool) (Flow, error) {
	if enabled {
		return FlowReturn, nil
	}
	return FlowContinue, nil
}

// AlwaysExecute implements Instruction.
func (r *ReturnInstr) AlwaysExecute() bool { return false }

func (r *ReturnInstr) String() string { return "RETURN" }
func (r *ReturnInstr) refs() []state.Tag { return nil }
func (r *ReturnInstr) check() error { return nil }

// -----------------------------------------------------------------------------
// ForLoop
// -----------------------------------------------------------------------------

// LoopInstr repeats a body of instructions within one scan.
type LoopInstr struct {
	index state.Tag
	count Expr
	body  []Instruction
}

// ForLoop runs body count times while enabled, writing the zero-based
// iteration number to index before each pass. count is evaluated once per
// scan. A Return in the body propagates to the enclosing subroutine.
func ForLoop(index state.Tag, count any, body ...Instruction) *LoopInstr {
	return &LoopInstr{index: index, count: operand(count), body: append([]Instruction(nil), body...)}
}

// Execute implements Instruction.
func (l *LoopInstr) Execute(ec *Exec, enabled bool) (Flow, error) {
	if !enabled {
		return FlowContinue, nil
	}
	cv, err := l.count.Eval(ec.Tx)
	if err != nil {
		return FlowContinue, fmt.Errorf("%s count: %w", l, err)
	}
	if !cv.Kind().IsNumeric() {
		return FlowContinue, fmt.Errorf("%w: %s count %s is not numeric", ErrTypeMismatch, l, cv)
	}
	n := cv.AsInt()
	if n < 0 || n > MaxLoopCount {
		return FlowContinue, fmt.Errorf("%w: %s count %d", ErrLoopBound, l, n)
	}

	for i := int64(0); i < n; i++ {
		if err := writeAs(ec.Tx, l.index, state.Int(i), false); err != nil {
			return FlowContinue, fmt.Errorf("%s: %w", l, err)
		}
		for _, instr := range l.body {
			flow, err := instr.Execute(ec, true)
			if err != nil {
				return FlowContinue, fmt.Errorf("%s iteration %d: %w", l, i, err)
			}
			if flow == FlowReturn {
				return FlowReturn, nil
			}
		}
	}
	return FlowContinue, nil
}

// AlwaysExecute implements Instruction.
func (l *LoopInstr) AlwaysExecute() bool { return false }

func (l *LoopInstr) String() string {
	parts := make([]string, len(l.body))
	for i, instr := range l.body {
		parts[i] = instr.String()
	}
	return fmt.Sprintf("FOR(%s < %s){%s}", l.index.Name, l.count, strings.Join(parts, "; "))
}

func (l *LoopInstr) refs() []state.Tag {
	out := append([]state.Tag{l.index}, l.count.refs()...)
	for _, instr := range l.body {
		out = append(out, instr.refs()...)
	}
	return out
}

func (l *LoopInstr) coils() []state.Tag {
	var out []state.Tag
	for _, instr := range l.body {
		if c, ok := instr.(coiler); ok {
			out = append(out, c.coils()...)
		}
	}
	return out
}

func (l *LoopInstr) rearm(tx *scan.Transaction) {
	for _, instr := range l.body {
		if r, ok := instr.(rearmer); ok {
			r.rearm(tx)
		}
	}
}

func (l *LoopInstr) check() error {
	errs := []error{l.index.Validate(), l.count.check()}
	if l.index.Kind != state.KindInt {
		errs = append(errs, fmt.Errorf("%w: FOR index %q must be int", ErrInvalidInstruction, l.index.Name))
	}
	for _, instr := range l.body {
		errs = append(errs, instr.check())
	}
	return errors.Join(errs...)
}
