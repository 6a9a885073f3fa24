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

func TestCountUp(t *testing.T) {
	pulse, rst := state.BoolTag("Pulse"), state.BoolTag("Rst")
	done, acc := state.BoolTag("Done"), state.IntTag("Acc")
	rung := NewRung(Bit(pulse)).Do(CountUp(done, acc, 2, Bit(rst)))
	h := newHarness(nil)

	press := func() {
		h.patch(map[string]state.Value{"Pulse": state.Bool(true)})
		h.step(t, rung)
		h.step(t, rung)
		h.patch(map[string]state.Value{"Pulse": state.Bool(false)})
		h.step(t, rung)
	}

	press()
	assert.Equal(t, int64(1), h.intTag("Acc"), "held input counts once")
	assert.False(t, h.boolTag("Done"))

	press()
	assert.Equal(t, int64(2), h.intTag("Acc"))
	assert.True(t, h.boolTag("Done"))

	h.patch(map[string]state.Value{"Rst": state.Bool(true), "Pulse": state.Bool(true)})
	h.step(t, rung)
	assert.Equal(t, int64(0), h.intTag("Acc"), "reset wins over a simultaneous edge")
	assert.False(t, h.boolTag("Done"))
}

func TestCountDown(t *testing.T) {
	pulse, load := state.BoolTag("Pulse"), state.BoolTag("Load")
	done, acc := state.BoolTag("Done"), state.IntTag("Acc")
	rung := NewRung(Bit(pulse)).Do(CountDown(done, acc, 2, Bit(load)))

	h := newHarness(map[string]state.Value{"Load": state.Bool(true)})
	h.step(t, rung)
	assert.Equal(t, int64(2), h.intTag("Acc"), "reset loads the preset")
	assert.False(t, h.boolTag("Done"))

	h.patch(map[string]state.Value{"Load": state.Bool(false)})
	for i := 0; i < 2; i++ {
		h.patch(map[string]state.Value{"Pulse": state.Bool(true)})
		h.step(t, rung)
		h.patch(map[string]state.Value{"Pulse": state.Bool(false)})
		h.step(t, rung)
	}
	assert.Equal(t, int64(0), h.intTag("Acc"))
	assert.True(t, h.boolTag("Done"))
}
