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

	"github.com/AleutianAI/laddersim/services/ladder/state"
)

func TestCopyAndCalc(t *testing.T) {
	n := state.IntTag("N")
	r := state.RealTag("R")
	s := state.TextTag("S")

	h := newHarness(nil)
	h.step(t, NewRung().Do(Copy(2.7, n), Copy(3, r), Copy("hi", s)))
	assert.Equal(t, int64(2), h.intTag("N"), "copy truncates")
	v, _ := h.snap.Tag("R")
	assert.True(t, state.Real(3).Equal(v), "int widened to the real tag kind")

	h.step(t, NewRung().Do(Calc(Mul(r, 0.9), n)))
	assert.Equal(t, int64(3), h.intTag("N"), "calc rounds 2.7 up")

	_, err := newHarness(nil).try(NewRung().Do(Copy("text", n)))
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestFillAndBlockCopy(t *testing.T) {
	src := state.Block("S", 1, 3, state.KindInt)
	dst := state.Block("D", 1, 3, state.KindInt)

	h := newHarness(map[string]state.Value{"S[1]": state.Int(7), "S[2]": state.Int(8), "S[3]": state.Int(9)})
	h.step(t, NewRung().Do(Fill(5, dst)))
	assert.Equal(t, int64(5), h.intTag("D[3]"))

	h.step(t, NewRung().Do(BlockCopy(src, dst)))
	assert.Equal(t, int64(7), h.intTag("D[1]"))
	assert.Equal(t, int64(9), h.intTag("D[3]"))

	t.Run("overlapping ranges read before write", func(t *testing.T) {
		h := newHarness(map[string]state.Value{"S[1]": state.Int(1), "S[2]": state.Int(2), "S[3]": state.Int(3)})
		h.step(t, NewRung().Do(BlockCopy(src[:2], src[1:])))
		assert.Equal(t, int64(1), h.intTag("S[2]"))
		assert.Equal(t, int64(2), h.intTag("S[3]"))
	})
}
