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
	"strings"

	"github.com/AleutianAI/laddersim/services/ladder/scan"
	"github.com/AleutianAI/laddersim/services/ladder/state"
)

// writeAs stores v into tag, converting to the tag kind. With round set,
// reals stored into integer tags round half away from zero instead of
// truncating.
func writeAs(tx *scan.Transaction, tag state.Tag, v state.Value, round bool) error {
	if round && tag.Kind == state.KindInt && v.Kind() == state.KindReal {
		tx.SetTag(tag.Name, state.Int(int64(math.Round(v.AsReal()))))
		return nil
	}
	c, err := v.Coerce(tag.Kind)
	if err != nil {
		return fmt.Errorf("write %s: %w", tag.Name, err)
	}
	tx.SetTag(tag.Name, c)
	return nil
}

// -----------------------------------------------------------------------------
// Copy and Calc
// -----------------------------------------------------------------------------

// MoveInstr evaluates an operand and stores it into a tag.
type MoveInstr struct {
	name  string
	src   Expr
	dst   state.Tag
	round bool
	os    oneshot
}

// Copy stores src into dst while enabled. Reals stored into integer tags
// truncate toward zero.
func Copy(src any, dst state.Tag, opts ...Option) *MoveInstr {
	o := applyOptions(opts)
	return &MoveInstr{name: "COPY", src: operand(src), dst: dst, os: newOneshot(o.oneshot)}
}

// Calc evaluates expr into dst while enabled. Reals stored into integer tags
// round half away from zero.
func Calc(expr any, dst state.Tag, opts ...Option) *MoveInstr {
	o := applyOptions(opts)
	return &MoveInstr{name: "CALC", src: operand(expr), dst: dst, round: true, os: newOneshot(o.oneshot)}
}

// Execute implements Instruction.
func (m *MoveInstr) Execute(ec *Exec, enabled bool) (Flow, error) {
	if !enabled || !m.os.fire(ec.Tx) {
		return FlowContinue, nil
	}
	v, err := m.src.Eval(ec.Tx)
	if err != nil {
		return FlowContinue, fmt.Errorf("%s: %w", m, err)
	}
	if err := writeAs(ec.Tx, m.dst, v, m.round); err != nil {
		return FlowContinue, fmt.Errorf("%s: %w", m, err)
	}
	return FlowContinue, nil
}

// AlwaysExecute implements Instruction.
func (m *MoveInstr) AlwaysExecute() bool { return false }

func (m *MoveInstr) String() string {
	return fmt.Sprintf("%s(%s -> %s)", m.name, m.src, m.dst.Name)
}

func (m *MoveInstr) refs() []state.Tag { return append(m.src.refs(), m.dst) }
func (m *MoveInstr) rearm(tx *scan.Transaction) { m.os.rearm(tx) }
func (m *MoveInstr) check() error { return errors.Join(m.src.check(), m.dst.Validate()) }

// -----------------------------------------------------------------------------
// Fill and BlockCopy
// -----------------------------------------------------------------------------

// FillInstr stores one value into every tag of a destination range.
type FillInstr struct {
	value Expr
	dst   []state.Tag
	os    oneshot
}

// Fill stores value into each tag of dst while enabled.
func Fill(value any, dst []state.Tag, opts ...Option) *FillInstr {
	o := applyOptions(opts)
	return &FillInstr{value: operand(value), dst: append([]state.Tag(nil), dst...), os: newOneshot(o.oneshot)}
}

// Execute implements Instruction.
func (f *FillInstr) Execute(ec *Exec, enabled bool) (Flow, error) {
	if !enabled || !f.os.fire(ec.Tx) {
		return FlowContinue, nil
	}
	v, err := f.value.Eval(ec.Tx)
	if err != nil {
		return FlowContinue, fmt.Errorf("%s: %w", f, err)
	}
	for _, tag := range f.dst {
		if err := writeAs(ec.Tx, tag, v, false); err != nil {
			return FlowContinue, fmt.Errorf("%s: %w", f, err)
		}
	}
	return FlowContinue, nil
}

// AlwaysExecute implements Instruction.
func (f *FillInstr) AlwaysExecute() bool { return false }

func (f *FillInstr) String() string {
	return fmt.Sprintf("FILL(%s -> %s)", f.value, rangeString(f.dst))
}

func (f *FillInstr) refs() []state.Tag { return append(f.value.refs(), f.dst...) }
func (f *FillInstr) rearm(tx *scan.Transaction) { f.os.rearm(tx) }
func (f *FillInstr) check() error {
	if len(f.dst) == 0 {
		return fmt.Errorf("%w: FILL has no destination", ErrInvalidInstruction)
	}
	return f.value.check()
}

// BlockCopyInstr copies a source range onto a destination range element by
// element.
type BlockCopyInstr struct {
	src []state.Tag
	dst []state.Tag
	os  oneshot
}

// BlockCopy copies src[i] into dst[i] while enabled. The ranges must have the
// same length. All source values are read before any destination is
// written, so overlapping ranges copy correctly.
func BlockCopy(src, dst []state.Tag, opts ...Option) *BlockCopyInstr {
	o := applyOptions(opts)
	return &BlockCopyInstr{
		src: append([]state.Tag(nil), src...),
		dst: append([]state.Tag(nil), dst...),
		os:  newOneshot(o.oneshot),
	}
}

// Execute implements Instruction.
func (b *BlockCopyInstr) Execute(ec *Exec, enabled bool) (Flow, error) {
	if !enabled || !b.os.fire(ec.Tx) {
		return FlowContinue, nil
	}
	vals := make([]state.Value, len(b.src))
	for i, tag := range b.src {
		vals[i] = ec.Tx.GetTag(tag.Name, tag.Default)
	}
	for i, tag := range b.dst[:min(len(b.dst), len(vals))] {
		if err := writeAs(ec.Tx, tag, vals[i], false); err != nil {
			return FlowContinue, fmt.Errorf("%s: %w", b, err)
		}
	}
	return FlowContinue, nil
}

// AlwaysExecute implements Instruction.
func (b *BlockCopyInstr) AlwaysExecute() bool { return false }

func (b *BlockCopyInstr) String() string {
	return fmt.Sprintf("BLKCOPY(%s -> %s)", rangeString(b.src), rangeString(b.dst))
}

func (b *BlockCopyInstr) refs() []state.Tag {
	return append(append([]state.Tag(nil), b.src...), b.dst...)
}
func (b *BlockCopyInstr) rearm(tx *scan.Transaction) { b.os.rearm(tx) }
func (b *BlockCopyInstr) check() error {
	if len(b.src) != len(b.dst) {
		return fmt.Errorf("%w: BLKCOPY source has %d tags, destination %d", ErrInvalidInstruction, len(b.src), len(b.dst))
	}
	if len(b.src) == 0 {
		return fmt.Errorf("%w: BLKCOPY range is empty", ErrInvalidInstruction)
	}
	return nil
}

func rangeString(tags []state.Tag) string {
	switch len(tags) {
	case 0:
		return "[]"
	case 1:
		return tags[0].Name
	}
	var b strings.Builder
	b.WriteString(tags[0].Name)
	b.WriteString("..")
	b.WriteString(tags[len(tags)-1].Name)
	return b.String()
}
