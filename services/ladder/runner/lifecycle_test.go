// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/laddersim/services/ladder/archive"
	"github.com/AleutianAI/laddersim/services/ladder/logic"
	"github.com/AleutianAI/laddersim/services/ladder/state"
	"github.com/AleutianAI/laddersim/services/ladder/system"
)

// lifecycleRunner runs a counter into a retentive tag and a plain tag.
func lifecycleRunner(t *testing.T, opts ...Option) *Runner {
	t.Helper()
	kept := state.IntTag("Kept", state.Retentive())
	lost := state.IntTag("Lost", state.WithDefault(state.Int(-1)))
	opts = append([]Option{WithSlots(map[string]state.Slot{
		"Slotted": {Retentive: true},
		"Preset":  {Default: state.Int(99)},
	})}, opts...)
	return newRunner(t, []*logic.Rung{
		logic.NewRung().Do(
			logic.Calc(logic.Add(kept, 1), kept),
			logic.Calc(logic.Add(lost, 1), lost),
			logic.Calc(logic.Add(state.IntTag("Slotted"), 1), state.IntTag("Slotted")),
			logic.Calc(logic.Add(state.IntTag("Preset"), 1), state.IntTag("Preset")),
		),
	}, opts...)
}

func TestStop_RestartOnNextExecution(t *testing.T) {
	r := lifecycleRunner(t)
	ctx := context.Background()
	_, err := r.Run(ctx, 3)
	require.NoError(t, err)
	require.NoError(t, r.AddForce("Forced", true))
	patch(t, r, map[any]any{"Queued": 1})

	r.Stop()
	r.Stop()
	assert.Equal(t, ModeStop, r.Mode())
	assert.False(t, boolOf(r, system.ModeRun))
	assert.Equal(t, uint64(3), r.Current().ScanID(), "stop leaves state alone")

	snap := step(t, r)
	assert.Equal(t, ModeRun, r.Mode())
	assert.Equal(t, uint64(1), snap.ScanID(), "restart resets to scan 0")
	assert.Empty(t, r.Forces())
	assert.Empty(t, r.PendingPatches())

	assert.Equal(t, int64(4), intOf(r, "Kept"), "retentive tag survives")
	assert.Equal(t, int64(4), intOf(r, "Slotted"), "slot marks retentive")
	assert.Equal(t, int64(0), intOf(r, "Lost"), "non-retentive resets to default then counts once")
	assert.Equal(t, int64(100), intOf(r, "Preset"), "slot default applies on restart")
	_, ok := r.Current().Tag("Forced")
	assert.False(t, ok, "undeclared tags are dropped")
}

func TestStop_RestartDropsPrivateMemory(t *testing.T) {
	r := newRunner(t, []*logic.Rung{
		logic.NewRung(logic.Bit(tagEn)).Do(logic.OnDelay(tagDone, tagAcc, 1000)),
	}, WithInitialState(map[string]any{"En": true}))
	_, err := r.Run(context.Background(), 3)
	require.NoError(t, err)
	assert.NotEmpty(t, r.Current().MemoryKeys())

	r.Stop()
	r.ensureRunning()
	for _, k := range r.Current().MemoryKeys() {
		assert.NotEqual(t, "_", k[:1], "private key %s survived restart", k)
	}
	assert.Equal(t, uint64(0), r.Current().ScanID())
	assert.Zero(t, r.SimulationTime())
}

func TestStop_LabelsDoNotCarryIntoNextRun(t *testing.T) {
	r := lifecycleRunner(t)
	ctx := context.Background()
	_, err := r.Run(ctx, 5)
	require.NoError(t, err)
	require.NoError(t, r.History().Label(5, "before-stop"))
	labeled := r.Current()

	r.Stop()
	_, err = r.Run(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, uint64(5), r.Current().ScanID())

	got := r.History().Labeled("before-stop")
	require.Len(t, got, 1)
	assert.Same(t, labeled, got[0])
	assert.Empty(t, r.History().LabelsAt(5))
}

func TestReboot(t *testing.T) {
	t.Run("battery present keeps retentive and clears history", func(t *testing.T) {
		r := lifecycleRunner(t)
		_, err := r.Run(context.Background(), 5)
		require.NoError(t, err)
		require.NoError(t, r.History().Label(5, "before"))

		r.Reboot()
		assert.Equal(t, uint64(0), r.Current().ScanID())
		assert.Equal(t, int64(5), intOf(r, "Kept"))
		assert.Equal(t, int64(-1), intOf(r, "Lost"))
		assert.Equal(t, 1, r.History().Len())
		assert.Empty(t, r.History().Labeled("before"))
	})

	t.Run("battery absent resets everything", func(t *testing.T) {
		r := lifecycleRunner(t, WithBattery(false))
		assert.False(t, boolOf(r, system.BatteryPresent))
		_, err := r.Run(context.Background(), 5)
		require.NoError(t, err)

		r.Reboot()
		assert.Equal(t, int64(0), intOf(r, "Kept"))
		assert.Equal(t, int64(0), intOf(r, "Slotted"))
		assert.Equal(t, int64(-1), intOf(r, "Lost"))
		assert.Equal(t, int64(99), intOf(r, "Preset"))
	})

	t.Run("set battery at runtime", func(t *testing.T) {
		r := lifecycleRunner(t)
		_, err := r.Run(context.Background(), 2)
		require.NoError(t, err)
		r.SetBattery(false)
		assert.False(t, r.Battery())
		r.Reboot()
		assert.Equal(t, int64(0), intOf(r, "Kept"))
	})
}

func TestSetTimeMode(t *testing.T) {
	r := newRunner(t, nil)
	mode, dt := r.TimeMode()
	assert.Equal(t, FixedStep, mode)
	assert.Equal(t, DefaultDt, dt)

	require.NoError(t, r.SetTimeMode(FixedStep, 0.5))
	step(t, r)
	assert.InDelta(t, 0.5, r.SimulationTime(), 1e-9)
	assert.Equal(t, int64(500), intOf(r, system.ScanTimeMs))

	assert.ErrorIs(t, r.SetTimeMode(FixedStep, -1), ErrInvalidTimeMode)
	assert.ErrorIs(t, r.SetTimeMode(TimeMode(9), 1), ErrInvalidTimeMode)
	mode, dt = r.TimeMode()
	assert.Equal(t, FixedStep, mode)
	assert.Equal(t, 0.5, dt)

	m, err := ParseTimeMode("REALTIME")
	require.NoError(t, err)
	assert.Equal(t, Realtime, m)
	_, err = ParseTimeMode("warp")
	assert.ErrorIs(t, err, ErrInvalidTimeMode)
}

func TestArchive_EvictedScansStayReachable(t *testing.T) {
	store, err := archive.Open(archive.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	r := newRunner(t, []*logic.Rung{
		logic.NewRung().Do(logic.Calc(logic.Add(tagN, 1), tagN)),
	}, WithHistoryLimit(3), WithArchive(store))
	_, err = r.Run(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 3, r.History().Len())
	assert.Equal(t, 8, store.Len())
	old, err := r.History().At(2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), old.TagOr("N", state.Int(0)).AsInt())
}
