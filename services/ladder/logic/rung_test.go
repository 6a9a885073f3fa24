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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/laddersim/services/ladder/state"
)

func TestRung_CoilFollowsRung(t *testing.T) {
	start, motor := state.BoolTag("Start"), state.BoolTag("Motor")
	rung := NewRung(Bit(start)).Do(Out(motor))

	h := newHarness(map[string]state.Value{"Start": state.Bool(true)})
	h.step(t, rung)
	assert.True(t, h.boolTag("Motor"))

	h.patch(map[string]state.Value{"Start": state.Bool(false)})
	h.step(t, rung)
	assert.False(t, h.boolTag("Motor"), "coil resets the scan its rung goes false")

	t.Run("coil resets to its declared default", func(t *testing.T) {
		lamp := state.BoolTag("Lamp", state.WithDefault(state.Bool(true)))
		h := newHarness(nil)
		h.step(t, NewRung(False()).Do(Out(lamp)))
		assert.True(t, h.boolTag("Lamp"))
	})
}

func TestRung_LatchHolds(t *testing.T) {
	set, reset, q := state.BoolTag("Set"), state.BoolTag("Reset"), state.BoolTag("Q")
	rungs := []*Rung{
		NewRung(Bit(set)).Do(Latch(q)),
		NewRung(Bit(reset)).Do(Unlatch(q)),
	}
	h := newHarness(map[string]state.Value{"Set": state.Bool(true)})
	h.step(t, rungs...)
	h.patch(map[string]state.Value{"Set": state.Bool(false)})
	h.step(t, rungs...)
	assert.True(t, h.boolTag("Q"), "latch survives its rung going false")

	h.patch(map[string]state.Value{"Reset": state.Bool(true)})
	h.step(t, rungs...)
	assert.False(t, h.boolTag("Q"))
}

func TestRung_BranchEnablesArePrecomputed(t *testing.T) {
	flag := state.BoolTag("Flag")
	first, second := state.BoolTag("First"), state.BoolTag("Second")

	rung := NewRung()
	rung.Branch(NC(flag)).Do(Latch(flag), Out(first))
	rung.Branch(Bit(flag)).Do(Out(second))

	h := newHarness(nil)
	h.step(t, rung)
	assert.True(t, h.boolTag("Flag"))
	assert.True(t, h.boolTag("First"))
	assert.False(t, h.boolTag("Second"), "sibling enable was computed before the first branch wrote Flag")

	h.step(t, rung)
	assert.False(t, h.boolTag("First"))
	assert.True(t, h.boolTag("Second"))
}

func TestRung_FalseHandling(t *testing.T) {
	en := state.BoolTag("En")
	inner := state.BoolTag("Inner")
	coil, branchCoil := state.BoolTag("Coil"), state.BoolTag("BranchCoil")
	pulse := state.BoolTag("Pulse")
	cnt := state.IntTag("Cnt")
	done, acc := state.BoolTag("Done"), state.IntTag("Acc")

	build := func() *Rung {
		r := NewRung(Bit(en)).Do(
			Out(coil),
			Out(pulse, Oneshot()),
			OnDelay(done, acc, 1000),
		)
		r.Branch(Bit(inner)).Do(Out(branchCoil), Copy(Add(cnt, 1), cnt, Oneshot()))
		return r
	}
	rung := build()

	h := newHarness(map[string]state.Value{"En": state.Bool(true), "Inner": state.Bool(true)})
	h.step(t, rung)
	assert.True(t, h.boolTag("Coil"))
	assert.True(t, h.boolTag("Pulse"))
	assert.True(t, h.boolTag("BranchCoil"))
	assert.Equal(t, int64(100), h.intTag("Acc"))
	assert.Equal(t, int64(1), h.intTag("Cnt"))

	h.step(t, rung)
	assert.False(t, h.boolTag("Pulse"), "oneshot coil is on for one scan")
	assert.Equal(t, int64(1), h.intTag("Cnt"), "oneshot copy does not repeat")
	assert.Equal(t, int64(200), h.intTag("Acc"))

	h.patch(map[string]state.Value{"En": state.Bool(false)})
	h.step(t, rung)
	assert.False(t, h.boolTag("Coil"))
	assert.False(t, h.boolTag("BranchCoil"), "branch coils reset with the parent")
	assert.Equal(t, int64(0), h.intTag("Acc"), "always-execute timer saw enabled=false")

	h.patch(map[string]state.Value{"En": state.Bool(true)})
	h.step(t, rung)
	assert.True(t, h.boolTag("Pulse"), "oneshot re-armed by the false scan")
	assert.Equal(t, int64(2), h.intTag("Cnt"), "branch oneshot re-armed too")
}

func TestRung_LiteralFalseSkipsConditions(t *testing.T) {
	out := state.BoolTag("Out")
	rung := NewRung(Gt(Div(1, 0), 0), False()).Do(Out(out))
	h := newHarness(nil)
	h.step(t, rung)
	assert.False(t, h.boolTag("Out"))
}

func TestSubroutines(t *testing.T) {
	a, b, c := state.IntTag("A"), state.IntTag("B"), state.IntTag("C")
	stop := state.BoolTag("Stop")

	prog := NewProgram(
		NewRung().Do(Call("work"), Copy(1, c)),
	).DefineSubroutine("work",
		NewRung().Do(Copy(1, a)),
		NewRung(Bit(stop)).Do(Return()),
		NewRung().Do(Copy(1, b)),
	)
	require.NoError(t, prog.Validate())

	t.Run("runs to the end", func(t *testing.T) {
		h := newHarness(nil)
		h.subs = prog
		h.step(t, prog.Rungs()...)
		assert.Equal(t, int64(1), h.intTag("A"))
		assert.Equal(t, int64(1), h.intTag("B"))
		assert.Equal(t, int64(1), h.intTag("C"))
	})

	t.Run("return ends only the subroutine", func(t *testing.T) {
		h := newHarness(map[string]state.Value{"Stop": state.Bool(true)})
		h.subs = prog
		h.step(t, prog.Rungs()...)
		assert.Equal(t, int64(1), h.intTag("A"))
		assert.Equal(t, int64(0), h.intTag("B"))
		assert.Equal(t, int64(1), h.intTag("C"), "caller continues after the call")
	})

	t.Run("return in main ends the scan's logic", func(t *testing.T) {
		h := newHarness(nil)
		rungs := []*Rung{NewRung().Do(Copy(1, a), Return(), Copy(1, b)), NewRung().Do(Copy(1, c))}
		h.step(t, rungs...)
		assert.Equal(t, int64(1), h.intTag("A"))
		assert.Equal(t, int64(0), h.intTag("B"))
		assert.Equal(t, int64(0), h.intTag("C"))
	})

	t.Run("unbounded recursion hits the depth limit", func(t *testing.T) {
		rec := NewProgram(NewRung().Do(Call("loop"))).DefineSubroutine("loop", NewRung().Do(Call("loop")))
		h := newHarness(nil)
		h.subs = rec
		_, err := h.try(rec.Rungs()...)
		assert.ErrorIs(t, err, ErrCallDepth)
	})

	t.Run("unknown subroutine", func(t *testing.T) {
		p := NewProgram(NewRung().Do(Call("nope")))
		assert.ErrorIs(t, p.Validate(), ErrUnknownSubroutine)

		h := newHarness(nil)
		h.subs = p
		_, err := h.try(p.Rungs()...)
		assert.ErrorIs(t, err, ErrUnknownSubroutine)
	})
}

func TestForLoop(t *testing.T) {
	bank := state.NewBank("DS", 0, 4, state.KindInt)
	idx, sum := state.IntTag("I"), state.IntTag("Sum")
	h := newHarness(map[string]state.Value{
		"DS[0]": state.Int(1), "DS[1]": state.Int(2), "DS[2]": state.Int(3), "DS[3]": state.Int(4),
	})

	rung := NewRung().Do(
		Copy(0, sum),
		ForLoop(idx, bank.Len(), Calc(Add(sum, Indirect(bank, idx)), sum)),
	)
	h.step(t, rung)
	assert.Equal(t, int64(10), h.intTag("Sum"))
	assert.Equal(t, int64(3), h.intTag("I"))

	t.Run("negative count", func(t *testing.T) {
		_, err := newHarness(nil).try(NewRung().Do(ForLoop(idx, -1)))
		assert.ErrorIs(t, err, ErrLoopBound)
	})

	t.Run("return propagates", func(t *testing.T) {
		h := newHarness(nil)
		h.step(t,
			NewRung().Do(ForLoop(idx, 5, Calc(Add(sum, 1), sum), Return())),
			NewRung().Do(Copy(99, sum)),
		)
		assert.Equal(t, int64(1), h.intTag("Sum"))
	})
}

func TestProgram_TagsAndValidate(t *testing.T) {
	a := state.BoolTag("A")
	n := state.IntTag("N")
	prog := NewProgram(
		NewRung(Bit(a)).Do(Copy(5, n)),
	).DefineSubroutine("s", NewRung().Do(Out(state.BoolTag("Z"))))

	names := make([]string, 0)
	for _, tag := range prog.Tags() {
		names = append(names, tag.Name)
	}
	assert.Equal(t, []string{"A", "N", "Z"}, names)
	assert.NoError(t, prog.Validate())

	t.Run("conflicting declarations", func(t *testing.T) {
		p := NewProgram(NewRung(Bit(a)).Do(Copy(1, state.IntTag("A"))))
		assert.ErrorIs(t, p.Validate(), state.ErrTagConflict)
	})

	t.Run("malformed instructions", func(t *testing.T) {
		p := NewProgram(NewRung().Do(
			OnDelay(n, n, 10),
			BlockCopy(state.Block("X", 0, 2, state.KindInt), state.Block("Y", 0, 3, state.KindInt)),
		))
		assert.ErrorIs(t, p.Validate(), ErrInvalidInstruction)
	})

	assert.Contains(t, prog.String(), "SUB s")
}
