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

// ErrDomain is returned when a function argument is outside its domain,
// such as the square root of a negative number.
var ErrDomain = errors.New("argument outside function domain")

// Expr is a value-producing operand: a literal, a tag reference, an
// indirect reference or an arithmetic tree over those.
//
// Expr is sealed; build one with Lit, Ref, Indirect, Binary and the
// arithmetic helpers.
type Expr interface {
	// Eval computes the operand against the transaction.
	Eval(tx *scan.Transaction) (state.Value, error)

	// String renders the operand for logs and listings.
	String() string

	refs() []state.Tag
	check() error
}

// operand converts a builder argument into an Expr. Tags become references,
// Exprs pass through, anything else becomes a literal.
func operand(x any) Expr {
	switch v := x.(type) {
	case Expr:
		return v
	case state.Tag:
		return Ref(v)
	default:
		return Lit(x)
	}
}

// -----------------------------------------------------------------------------
// Literals and references
// -----------------------------------------------------------------------------

type literal struct {
	v   state.Value
	err error
}

// Lit wraps a constant. x may be a state.Value or a Go bool, integer, float
// or string. An unsupported type yields an operand that fails Eval and
// Program.Validate.
func Lit(x any) Expr {
	v, err := state.Of(x)
	return literal{v: v, err: err}
}

func (l literal) Eval(*scan.Transaction) (state.Value, error) {
	if l.err != nil {
		return state.Value{}, l.err
	}
	return l.v, nil
}
func (l literal) String() string {
	if l.err != nil {
		return "<invalid>"
	}
	return l.v.String()
}
func (l literal) refs() []state.Tag { return nil }
func (l literal) check() error { return l.err }

type tagRef struct{ tag state.Tag }

// Ref reads the current value of tag, falling back to its default.
func Ref(tag state.Tag) Expr { return tagRef{tag: tag} }

func (r tagRef) Eval(tx *scan.Transaction) (state.Value, error) {
	return tx.GetTag(r.tag.Name, r.tag.Default), nil
}
func (r tagRef) String() string { return r.tag.Name }
func (r tagRef) refs() []state.Tag { return []state.Tag{r.tag} }
func (r tagRef) check() error { return r.tag.Validate() }

type indirectRef struct {
	bank  state.Bank
	index Expr
}

// Indirect reads the element of bank addressed by index at scan time.
//
// Description:
//
//	The index expression is evaluated every scan, so the referenced tag can
//	change while the program runs. An index outside the bank fails with
//	ErrIndexOutOfRange.
func Indirect(bank state.Bank, index any) Expr {
	return indirectRef{bank: bank, index: operand(index)}
}

func (r indirectRef) resolve(tx *scan.Transaction) (state.Tag, error) {
	idx, err := r.index.Eval(tx)
	if err != nil {
		return state.Tag{}, err
	}
	if !idx.Kind().IsNumeric() {
		return state.Tag{}, fmt.Errorf("%w: index %s is not numeric", ErrTypeMismatch, idx)
	}
	tag, ok := r.bank.At(int(idx.AsInt()))
	if !ok {
		return state.Tag{}, fmt.Errorf("%w: %s[%d] (bank %d..%d)",
			ErrIndexOutOfRange, r.bank.Prefix, idx.AsInt(), r.bank.Start, r.bank.Start+r.bank.Len()-1)
	}
	return tag, nil
}

func (r indirectRef) Eval(tx *scan.Transaction) (state.Value, error) {
	tag, err := r.resolve(tx)
	if err != nil {
		return state.Value{}, err
	}
	return tx.GetTag(tag.Name, tag.Default), nil
}
func (r indirectRef) String() string {
	return fmt.Sprintf("%s[%s]", r.bank.Prefix, r.index)
}
func (r indirectRef) refs() []state.Tag {
	out := append([]state.Tag(nil), r.bank.Tags...)
	return append(out, r.index.refs()...)
}
func (r indirectRef) check() error {
	if r.bank.Len() == 0 {
		return fmt.Errorf("%w: indirect reference into empty bank %q", ErrInvalidInstruction, r.bank.Prefix)
	}
	return r.index.check()
}

// -----------------------------------------------------------------------------
// Arithmetic
// -----------------------------------------------------------------------------

// BinaryOp names an arithmetic or bitwise operator.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpShr
)

var binaryOpSymbols = map[BinaryOp]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%", OpPow: "**",
	OpBitAnd: "&", OpBitOr: "|", OpBitXor: "^", OpShl: "<<", OpShr: ">>",
}

// String returns the operator symbol.
func (op BinaryOp) String() string {
	if s, ok := binaryOpSymbols[op]; ok {
		return s
	}
	return "?"
}

type binary struct {
	op   BinaryOp
	l, r Expr
}

// Binary combines two operands with op. Operands may be Exprs, tags or
// literals.
func Binary(op BinaryOp, l, r any) Expr { return binary{op: op, l: operand(l), r: operand(r)} }

// Add returns l + r. Two text operands concatenate.
func Add(l, r any) Expr { return Binary(OpAdd, l, r) }

// Sub returns l - r.
func Sub(l, r any) Expr { return Binary(OpSub, l, r) }

// Mul returns l * r.
func Mul(l, r any) Expr { return Binary(OpMul, l, r) }

// Div returns l / r. Integer division truncates toward zero.
func Div(l, r any) Expr { return Binary(OpDiv, l, r) }

// Mod returns the remainder of l / r with the sign of l.
func Mod(l, r any) Expr { return Binary(OpMod, l, r) }

// Pow returns l raised to r as a real.
func Pow(l, r any) Expr { return Binary(OpPow, l, r) }

// BitAnd returns l & r on integers.
func BitAnd(l, r any) Expr { return Binary(OpBitAnd, l, r) }

// BitOr returns l | r on integers.
func BitOr(l, r any) Expr { return Binary(OpBitOr, l, r) }

// BitXor returns l ^ r on integers.
func BitXor(l, r any) Expr { return Binary(OpBitXor, l, r) }

// Shl returns l << r on integers.
func Shl(l, r any) Expr { return Binary(OpShl, l, r) }

// Shr returns the arithmetic shift l >> r on integers.
func Shr(l, r any) Expr { return Binary(OpShr, l, r) }

func (b binary) Eval(tx *scan.Transaction) (state.Value, error) {
	lv, err := b.l.Eval(tx)
	if err != nil {
		return state.Value{}, err
	}
	rv, err := b.r.Eval(tx)
	if err != nil {
		return state.Value{}, err
	}
	return arith(b.op, lv, rv)
}
func (b binary) String() string { return fmt.Sprintf("(%s %s %s)", b.l, b.op, b.r) }
func (b binary) refs() []state.Tag { return append(b.l.refs(), b.r.refs()...) }
func (b binary) check() error { return errors.Join(b.l.check(), b.r.check()) }

// intLike reports whether v takes part in integer arithmetic.
func intLike(v state.Value) bool {
	return v.Kind() == state.KindInt || v.Kind() == state.KindBool
}

// arith applies op to two evaluated operands.
//
// Description:
//
//	Integer (and bool) operands stay integer; any real operand promotes the
//	result to real. Text only supports concatenation with OpAdd. Bitwise
//	operators and shifts require integers.
func arith(op BinaryOp, a, b state.Value) (state.Value, error) {
	if a.IsNone() || b.IsNone() {
		return state.Value{}, fmt.Errorf("%w: %s %s %s", ErrTypeMismatch, a, op, b)
	}
	if a.Kind() == state.KindText || b.Kind() == state.KindText {
		if op == OpAdd && a.Kind() == state.KindText && b.Kind() == state.KindText {
			return state.Text(a.AsText() + b.AsText()), nil
		}
		return state.Value{}, fmt.Errorf("%w: %s %s %s", ErrTypeMismatch, a, op, b)
	}

	switch op {
	case OpBitAnd, OpBitOr, OpBitXor, OpShl, OpShr:
		if !intLike(a) || !intLike(b) {
			return state.Value{}, fmt.Errorf("%w: %s requires integers, got %s and %s", ErrTypeMismatch, op, a.Kind(), b.Kind())
		}
		x, y := a.AsInt(), b.AsInt()
		switch op {
		case OpBitAnd:
			return state.Int(x & y), nil
		case OpBitOr:
			return state.Int(x | y), nil
		case OpBitXor:
			return state.Int(x ^ y), nil
		}
		if y < 0 {
			return state.Value{}, fmt.Errorf("%w: negative shift count %d", ErrTypeMismatch, y)
		}
		if op == OpShl {
			return state.Int(x << uint64(y)), nil
		}
		return state.Int(x >> uint64(y)), nil
	case OpPow:
		return state.Real(math.Pow(a.AsReal(), b.AsReal())), nil
	}

	if intLike(a) && intLike(b) {
		x, y := a.AsInt(), b.AsInt()
		switch op {
		case OpAdd:
			return state.Int(x + y), nil
		case OpSub:
			return state.Int(x - y), nil
		case OpMul:
			return state.Int(x * y), nil
		case OpDiv:
			if y == 0 {
				return state.Value{}, fmt.Errorf("%w: %d / 0", ErrDivideByZero, x)
			}
			return state.Int(x / y), nil
		case OpMod:
			if y == 0 {
				return state.Value{}, fmt.Errorf("%w: %d %% 0", ErrDivideByZero, x)
			}
			return state.Int(x % y), nil
		}
	}

	x, y := a.AsReal(), b.AsReal()
	switch op {
	case OpAdd:
		return state.Real(x + y), nil
	case OpSub:
		return state.Real(x - y), nil
	case OpMul:
		return state.Real(x * y), nil
	case OpDiv:
		if y == 0 {
			return state.Value{}, fmt.Errorf("%w: %g / 0", ErrDivideByZero, x)
		}
		return state.Real(x / y), nil
	case OpMod:
		if y == 0 {
			return state.Value{}, fmt.Errorf("%w: %g %% 0", ErrDivideByZero, x)
		}
		return state.Real(math.Mod(x, y)), nil
	}
	return state.Value{}, fmt.Errorf("%w: operator %d", ErrUnknownFunction, int(op))
}

type negate struct{ x Expr }

// Neg returns -x.
func Neg(x any) Expr { return negate{x: operand(x)} }

func (n negate) Eval(tx *scan.Transaction) (state.Value, error) {
	v, err := n.x.Eval(tx)
	if err != nil {
		return state.Value{}, err
	}
	switch {
	case intLike(v):
		return state.Int(-v.AsInt()), nil
	case v.Kind() == state.KindReal:
		return state.Real(-v.AsReal()), nil
	}
	return state.Value{}, fmt.Errorf("%w: cannot negate %s", ErrTypeMismatch, v)
}
func (n negate) String() string { return fmt.Sprintf("-%s", n.x) }
func (n negate) refs() []state.Tag { return n.x.refs() }
func (n negate) check() error { return n.x.check() }

// -----------------------------------------------------------------------------
// Functions
// -----------------------------------------------------------------------------

type call struct {
	name string
	args []Expr
}

func fn(name string, args ...any) Expr {
	c := call{name: name, args: make([]Expr, len(args))}
	for i, a := range args {
		c.args[i] = operand(a)
	}
	return c
}

// Abs returns |x|, preserving integers.
func Abs(x any) Expr { return fn("abs", x) }

// Min returns the smallest argument. All-integer arguments give an integer.
func Min(x any, rest ...any) Expr { return fn("min", append([]any{x}, rest...)...) }

// Max returns the largest argument. All-integer arguments give an integer.
func Max(x any, rest ...any) Expr { return fn("max", append([]any{x}, rest...)...) }

// Sqrt returns the real square root of x.
func Sqrt(x any) Expr { return fn("sqrt", x) }

// Round returns x rounded half away from zero, as an integer.
func Round(x any) Expr { return fn("round", x) }

// Trunc returns x truncated toward zero, as an integer.
func Trunc(x any) Expr { return fn("trunc", x) }

func (c call) Eval(tx *scan.Transaction) (state.Value, error) {
	vals := make([]state.Value, len(c.args))
	for i, a := range c.args {
		v, err := a.Eval(tx)
		if err != nil {
			return state.Value{}, err
		}
		if !v.Kind().IsNumeric() {
			return state.Value{}, fmt.Errorf("%w: %s(%s)", ErrTypeMismatch, c.name, v)
		}
		vals[i] = v
	}

	switch c.name {
	case "abs":
		v := vals[0]
		if intLike(v) {
			n := v.AsInt()
			if n < 0 {
				n = -n
			}
			return state.Int(n), nil
		}
		return state.Real(math.Abs(v.AsReal())), nil
	case "min", "max":
		return extreme(c.name == "max", vals), nil
	case "sqrt":
		f := vals[0].AsReal()
		if f < 0 {
			return state.Value{}, fmt.Errorf("%w: sqrt(%g)", ErrDomain, f)
		}
		return state.Real(math.Sqrt(f)), nil
	case "round":
		return state.Int(int64(math.Round(vals[0].AsReal()))), nil
	case "trunc":
		return state.Int(int64(math.Trunc(vals[0].AsReal()))), nil
	}
	return state.Value{}, fmt.Errorf("%w: %s", ErrUnknownFunction, c.name)
}

func extreme(wantMax bool, vals []state.Value) state.Value {
	allInt := true
	for _, v := range vals {
		if !intLike(v) {
			allInt = false
			break
		}
	}
	if allInt {
		best := vals[0].AsInt()
		for _, v := range vals[1:] {
			n := v.AsInt()
			if (wantMax && n > best) || (!wantMax && n < best) {
				best = n
			}
		}
		return state.Int(best)
	}
	best := vals[0].AsReal()
	for _, v := range vals[1:] {
		if wantMax {
			best = math.Max(best, v.AsReal())
		} else {
			best = math.Min(best, v.AsReal())
		}
	}
	return state.Real(best)
}

func (c call) String() string {
	parts := make([]string, len(c.args))
	for i, a := range c.args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", c.name, strings.Join(parts, ", "))
}

func (c call) refs() []state.Tag {
	var out []state.Tag
	for _, a := range c.args {
		out = append(out, a.refs()...)
	}
	return out
}

func (c call) check() error {
	errs := make([]error, 0, len(c.args))
	for _, a := range c.args {
		errs = append(errs, a.check())
	}
	return errors.Join(errs...)
}
