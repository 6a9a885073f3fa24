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
	"cmp"
	"errors"
	"fmt"
	"strings"

	"github.com/AleutianAI/laddersim/services/ladder/scan"
	"github.com/AleutianAI/laddersim/services/ladder/state"
)

// Condition is a pure boolean predicate over the current scan.
//
// Description:
//
//	Evaluate reads the transaction and never writes to it. The set of
//	conditions is sealed: contacts (Bit, NC), edges (Rise, Fall),
//	comparisons (Eq .. Ge), composites (All, Any) and the constants True and
//	False.
//
// Thread Safety: Conditions are immutable values.
type Condition interface {
	// Evaluate reports whether the predicate holds in this scan.
	Evaluate(tx *scan.Transaction) (bool, error)

	// String renders the predicate for logs and listings.
	String() string

	refs() []state.Tag
	check() error
}

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

type constant bool

// True returns a condition that always holds.
func True() Condition { return constant(true) }

// False returns a condition that never holds. A literal False among a rung's
// conditions disables the rung without evaluating its siblings.
func False() Condition { return constant(false) }

func (c constant) Evaluate(*scan.Transaction) (bool, error) { return bool(c), nil }
func (c constant) String() string {
	if c {
		return "TRUE"
	}
	return "FALSE"
}
func (c constant) refs() []state.Tag { return nil }
func (c constant) check() error { return nil }

func isLiteralFalse(c Condition) bool {
	k, ok := c.(constant)
	return ok && !bool(k)
}

// -----------------------------------------------------------------------------
// Contacts
// -----------------------------------------------------------------------------

type contact struct {
	tag    state.Tag
	closed bool
}

// Bit is a normally-open contact: it holds while tag is truthy.
func Bit(tag state.Tag) Condition { return contact{tag: tag} }

// NC is a normally-closed contact: it holds while tag is falsy.
func NC(tag state.Tag) Condition { return contact{tag: tag, closed: true} }

func (c contact) Evaluate(tx *scan.Transaction) (bool, error) {
	v := tx.GetTag(c.tag.Name, c.tag.Default).AsBool()
	return v != c.closed, nil
}
func (c contact) String() string {
	if c.closed {
		return "NOT " + c.tag.Name
	}
	return c.tag.Name
}
func (c contact) refs() []state.Tag { return []state.Tag{c.tag} }
func (c contact) check() error { return c.tag.Validate() }

// -----------------------------------------------------------------------------
// Edges
// -----------------------------------------------------------------------------

type edge struct {
	tag     state.Tag
	falling bool
}

// Rise holds for the one scan in which tag goes from falsy to truthy.
//
// Description:
//
//	The previous value is the tag's value at the end of the previous scan,
//	which the runner shadows under scan.PrevKey. When no shadow exists yet
//	the tag's default stands in, so a tag patched true on the very first
//	scan still produces a rising edge.
func Rise(tag state.Tag) Condition { return edge{tag: tag} }

// Fall holds for the one scan in which tag goes from truthy to falsy.
func Fall(tag state.Tag) Condition { return edge{tag: tag, falling: true} }

func (e edge) Evaluate(tx *scan.Transaction) (bool, error) {
	cur := tx.GetTag(e.tag.Name, e.tag.Default).AsBool()
	prevVal, ok := tx.Previous(e.tag.Name)
	if !ok {
		prevVal = e.tag.Default
	}
	prev := prevVal.AsBool()
	if e.falling {
		return prev && !cur, nil
	}
	return !prev && cur, nil
}
func (e edge) String() string {
	if e.falling {
		return "FALL(" + e.tag.Name + ")"
	}
	return "RISE(" + e.tag.Name + ")"
}
func (e edge) refs() []state.Tag { return []state.Tag{e.tag} }
func (e edge) check() error { return e.tag.Validate() }

// -----------------------------------------------------------------------------
// Comparisons
// -----------------------------------------------------------------------------

// CmpOp names a comparison operator.
type CmpOp int

const (
	CmpEq CmpOp = iota
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
)

var cmpSymbols = [...]string{"==", "!=", "<", "<=", ">", ">="}

// String returns the operator symbol.
func (op CmpOp) String() string {
	if int(op) < len(cmpSymbols) {
		return cmpSymbols[op]
	}
	return "?"
}

type compare struct {
	op   CmpOp
	l, r Expr
}

// Compare builds a comparison. Operands may be Exprs, tags or literals.
func Compare(op CmpOp, l, r any) Condition {
	return compare{op: op, l: operand(l), r: operand(r)}
}

// Eq holds when l == r.
func Eq(l, r any) Condition { return Compare(CmpEq, l, r) }

// Ne holds when l != r.
func Ne(l, r any) Condition { return Compare(CmpNe, l, r) }

// Lt holds when l < r.
func Lt(l, r any) Condition { return Compare(CmpLt, l, r) }

// Le holds when l <= r.
func Le(l, r any) Condition { return Compare(CmpLe, l, r) }

// Gt holds when l > r.
func Gt(l, r any) Condition { return Compare(CmpGt, l, r) }

// Ge holds when l >= r.
func Ge(l, r any) Condition { return Compare(CmpGe, l, r) }

func (c compare) Evaluate(tx *scan.Transaction) (bool, error) {
	lv, err := c.l.Eval(tx)
	if err != nil {
		return false, err
	}
	rv, err := c.r.Eval(tx)
	if err != nil {
		return false, err
	}
	return compareValues(c.op, lv, rv)
}
func (c compare) String() string { return fmt.Sprintf("%s %s %s", c.l, c.op, c.r) }
func (c compare) refs() []state.Tag { return append(c.l.refs(), c.r.refs()...) }
func (c compare) check() error { return errors.Join(c.l.check(), c.r.check()) }

// compareValues orders two evaluated operands.
//
// Description:
//
//	Numbers compare numerically, as integers when both sides are integer
//	or bool. Text compares lexically with text. Text against a number is
//	never equal, and ordering it fails with ErrTypeMismatch.
func compareValues(op CmpOp, a, b state.Value) (bool, error) {
	if a.IsNone() || b.IsNone() {
		return false, fmt.Errorf("%w: %s %s %s", ErrTypeMismatch, a, op, b)
	}
	aText, bText := a.Kind() == state.KindText, b.Kind() == state.KindText

	var c int
	switch {
	case aText && bText:
		c = strings.Compare(a.AsText(), b.AsText())
	case aText || bText:
		switch op {
		case CmpEq:
			return false, nil
		case CmpNe:
			return true, nil
		}
		return false, fmt.Errorf("%w: cannot order %s and %s", ErrTypeMismatch, a.Kind(), b.Kind())
	case intLike(a) && intLike(b):
		x, y := a.AsInt(), b.AsInt()
		c = cmp.Compare(x, y)
	default:
		x, y := a.AsReal(), b.AsReal()
		c = cmp.Compare(x, y)
	}

	switch op {
	case CmpEq:
		return c == 0, nil
	case CmpNe:
		return c != 0, nil
	case CmpLt:
		return c < 0, nil
	case CmpLe:
		return c <= 0, nil
	case CmpGt:
		return c > 0, nil
	case CmpGe:
		return c >= 0, nil
	}
	return false, fmt.Errorf("%w: comparison %d", ErrUnknownFunction, int(op))
}

// -----------------------------------------------------------------------------
// Composites
// -----------------------------------------------------------------------------

type composite struct {
	or    bool
	items []Condition
}

// All holds when every item holds.
//
// Description:
//
//	Items are Conditions or boolean tags (treated as Bit contacts). They are
//	evaluated left to right and evaluation stops at the first item that does
//	not hold. A literal False among the items makes All false without
//	evaluating anything.
//
// Outputs:
//   - Condition: The conjunction.
//   - error: ErrPrecedence when an item is neither a Condition nor a
//     boolean tag.
func All(items ...any) (Condition, error) {
	conds, err := conditions("All", items)
	if err != nil {
		return nil, err
	}
	return composite{items: conds}, nil
}

// Any holds when at least one item holds. Items follow the rules of All and
// evaluation stops at the first item that holds.
func Any(items ...any) (Condition, error) {
	conds, err := conditions("Any", items)
	if err != nil {
		return nil, err
	}
	return composite{or: true, items: conds}, nil
}

// MustAll is All that panics on a malformed item. Intended for program
// literals whose shape is fixed at compile time.
func MustAll(items ...any) Condition {
	c, err := All(items...)
	if err != nil {
		panic(err)
	}
	return c
}

// MustAny is Any that panics on a malformed item.
func MustAny(items ...any) Condition {
	c, err := Any(items...)
	if err != nil {
		panic(err)
	}
	return c
}

func conditions(op string, items []any) ([]Condition, error) {
	out := make([]Condition, 0, len(items))
	for i, item := range items {
		switch v := item.(type) {
		case Condition:
			out = append(out, v)
		case state.Tag:
			if v.Kind != state.KindBool {
				return nil, fmt.Errorf("%w: %s item %d is %s tag %q", ErrPrecedence, op, i, v.Kind, v.Name)
			}
			out = append(out, Bit(v))
		default:
			return nil, fmt.Errorf("%w: %s item %d has type %T", ErrPrecedence, op, i, item)
		}
	}
	return out, nil
}

func (c composite) Evaluate(tx *scan.Transaction) (bool, error) {
	if !c.or {
		for _, item := range c.items {
			if isLiteralFalse(item) {
				return false, nil
			}
		}
	}
	for _, item := range c.items {
		ok, err := item.Evaluate(tx)
		if err != nil {
			return false, err
		}
		if ok == c.or {
			return ok, nil
		}
	}
	return !c.or, nil
}

func (c composite) String() string {
	parts := make([]string, len(c.items))
	for i, item := range c.items {
		parts[i] = item.String()
	}
	sep := " AND "
	if c.or {
		sep = " OR "
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func (c composite) refs() []state.Tag {
	var out []state.Tag
	for _, item := range c.items {
		out = append(out, item.refs()...)
	}
	return out
}

func (c composite) check() error {
	errs := make([]error, 0, len(c.items))
	for _, item := range c.items {
		errs = append(errs, item.check())
	}
	return errors.Join(errs...)
}
