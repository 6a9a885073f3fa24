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
	"strings"

	"github.com/AleutianAI/laddersim/services/ladder/scan"
	"github.com/AleutianAI/laddersim/services/ladder/state"
)

// item is one element of a rung body: exactly one of instr or branch is set.
type item struct {
	instr  Instruction
	branch *Rung
}

// Rung is an AND of conditions guarding an ordered body of instructions and
// nested branches.
//
// Description:
//
//	A Rung is built with NewRung and filled with Do and Branch. A branch is
//	itself a Rung whose conditions are ANDed with its parent's enable. Body
//	items keep the order in which they were added.
//
// Thread Safety: Build a rung on one goroutine; once handed to a Program it
// must not be modified.
type Rung struct {
	conds   []Condition
	items   []item
	comment string
}

// NewRung creates a rung enabled while every condition holds. A rung with
// no conditions is always enabled.
func NewRung(conds ...Condition) *Rung {
	return &Rung{conds: append([]Condition(nil), conds...)}
}

// Do appends instructions to the rung body and returns the rung.
func (r *Rung) Do(instrs ...Instruction) *Rung {
	for _, in := range instrs {
		r.items = append(r.items, item{instr: in})
	}
	return r
}

// Branch appends a nested branch guarded by conds and returns the branch,
// so that instructions can be added to it with Do.
func (r *Rung) Branch(conds ...Condition) *Rung {
	b := NewRung(conds...)
	r.items = append(r.items, item{branch: b})
	return b
}

// WithComment attaches a free-text comment and returns the rung.
func (r *Rung) WithComment(s string) *Rung {
	r.comment = s
	return r
}

// Comment returns the rung comment.
func (r *Rung) Comment() string { return r.comment }

// Conditions returns a copy of the rung's own conditions.
func (r *Rung) Conditions() []Condition { return append([]Condition(nil), r.conds...) }

// Instructions returns the rung's direct instructions in body order.
func (r *Rung) Instructions() []Instruction {
	var out []Instruction
	for _, it := range r.items {
		if it.instr != nil {
			out = append(out, it.instr)
		}
	}
	return out
}

// Branches returns the rung's direct branches in body order.
func (r *Rung) Branches() []*Rung {
	var out []*Rung
	for _, it := range r.items {
		if it.branch != nil {
			out = append(out, it.branch)
		}
	}
	return out
}

// Coils returns the tags the rung resets while false: the coils of its
// direct instructions. Branch coils belong to the branch.
func (r *Rung) Coils() []state.Tag {
	var out []state.Tag
	for _, it := range r.items {
		if c, ok := it.instr.(coiler); ok {
			out = append(out, c.coils()...)
		}
	}
	return out
}

// Tags returns every tag referenced by the rung and its branches, first
// occurrence first, without duplicates.
func (r *Rung) Tags() []state.Tag {
	seen := make(map[string]bool)
	var out []state.Tag
	add := func(tags []state.Tag) {
		for _, t := range tags {
			if !seen[t.Name] {
				seen[t.Name] = true
				out = append(out, t)
			}
		}
	}
	r.walk(func(n *Rung) {
		for _, c := range n.conds {
			if c != nil {
				add(c.refs())
			}
		}
		for _, it := range n.items {
			if it.instr != nil {
				add(it.instr.refs())
			}
		}
	})
	return out
}

// walk visits r and its branches depth first.
func (r *Rung) walk(fn func(*Rung)) {
	fn(r)
	for _, it := range r.items {
		if it.branch != nil {
			it.branch.walk(fn)
		}
	}
}

// Evaluate runs one scan of the rung.
//
// Description:
//
//	Computes the rung's enable from its conditions and executes its body
//	with the two-phase protocol described in the package documentation.
//
// Outputs:
//   - Flow: FlowReturn when an enabled Return was reached.
//   - error: The first condition or instruction error.
func (r *Rung) Evaluate(ec *Exec) (Flow, error) {
	enabled, err := r.Enabled(ec.Tx)
	if err != nil {
		return FlowContinue, err
	}
	return r.execute(ec, enabled)
}

// Enabled reports whether all of the rung's own conditions hold. A literal
// False disables the rung without evaluating any condition; otherwise
// conditions are evaluated left to right up to the first that fails.
func (r *Rung) Enabled(tx *scan.Transaction) (bool, error) {
	for _, c := range r.conds {
		if isLiteralFalse(c) {
			return false, nil
		}
	}
	for _, c := range r.conds {
		ok, err := c.Evaluate(tx)
		if err != nil {
			return false, fmt.Errorf("condition %s: %w", c, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (r *Rung) execute(ec *Exec, enabled bool) (Flow, error) {
	if !enabled {
		return FlowContinue, r.handleFalse(ec)
	}

	branchEnabled := make([]bool, len(r.items))
	for i, it := range r.items {
		if it.branch == nil {
			continue
		}
		ok, err := it.branch.Enabled(ec.Tx)
		if err != nil {
			return FlowContinue, fmt.Errorf("branch: %w", err)
		}
		branchEnabled[i] = ok
	}

	for i, it := range r.items {
		var (
			flow Flow
			err  error
		)
		switch {
		case it.instr != nil:
			flow, err = it.instr.Execute(ec, true)
		case it.branch != nil:
			flow, err = it.branch.execute(ec, branchEnabled[i])
		}
		if err != nil {
			return FlowContinue, err
		}
		if flow == FlowReturn {
			return FlowReturn, nil
		}
	}
	return FlowContinue, nil
}

// handleFalse applies false-rung semantics in order: always-execute
// instructions, coil reset, oneshot re-arm, then every branch.
func (r *Rung) handleFalse(ec *Exec) error {
	for _, it := range r.items {
		if it.instr != nil && it.instr.AlwaysExecute() {
			if _, err := it.instr.Execute(ec, false); err != nil {
				return err
			}
		}
	}
	for _, tag := range r.Coils() {
		ec.Tx.SetTag(tag.Name, tag.Default)
	}
	for _, it := range r.items {
		if rm, ok := it.instr.(rearmer); ok {
			rm.rearm(ec.Tx)
		}
	}
	for _, it := range r.items {
		if it.branch != nil {
			if err := it.branch.handleFalse(ec); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Rung) check() error {
	var errs []error
	r.walk(func(n *Rung) {
		for _, c := range n.conds {
			if c == nil {
				errs = append(errs, fmt.Errorf("%w: nil condition", ErrInvalidInstruction))
				continue
			}
			errs = append(errs, c.check())
		}
		for _, it := range n.items {
			switch {
			case it.instr != nil:
				errs = append(errs, it.instr.check())
			case it.branch == nil:
				errs = append(errs, fmt.Errorf("%w: nil instruction", ErrInvalidInstruction))
			}
		}
	})
	return errors.Join(errs...)
}

// calls returns the subroutine names the rung calls, including calls in
// branches and loop bodies.
func (r *Rung) calls() []string {
	var out []string
	var visit func(Instruction)
	visit = func(in Instruction) {
		switch v := in.(type) {
		case *CallInstr:
			out = append(out, v.name)
		case *LoopInstr:
			for _, b := range v.body {
				visit(b)
			}
		}
	}
	r.walk(func(n *Rung) {
		for _, it := range n.items {
			if it.instr != nil {
				visit(it.instr)
			}
		}
	})
	return out
}

// String renders the rung as one line per level.
func (r *Rung) String() string {
	var b strings.Builder
	r.format(&b, 0)
	return strings.TrimRight(b.String(), "\n")
}

func (r *Rung) format(b *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	conds := make([]string, len(r.conds))
	for i, c := range r.conds {
		conds[i] = c.String()
	}
	guard := "TRUE"
	if len(conds) > 0 {
		guard = strings.Join(conds, " AND ")
	}
	fmt.Fprintf(b, "%s%s:", indent, guard)
	if r.comment != "" {
		fmt.Fprintf(b, " // %s", r.comment)
	}
	b.WriteString("\n")
	for _, it := range r.items {
		if it.instr != nil {
			fmt.Fprintf(b, "%s  %s\n", indent, it.instr)
		} else {
			it.branch.format(b, depth+1)
		}
	}
}
