// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package system

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/laddersim/services/ladder/scan"
	"github.com/AleutianAI/laddersim/services/ladder/state"
)

func TestPoints_Resolve(t *testing.T) {
	p := NewPoints(true)
	snap := state.NewSnapshot(nil)

	v, ok := p.Resolve(AlwaysOn, snap)
	require.True(t, ok)
	assert.True(t, v.AsBool())

	v, _ = p.Resolve(FirstScan, snap)
	assert.True(t, v.AsBool())

	v, _ = p.Resolve(BatteryPresent, snap)
	assert.True(t, v.AsBool())

	p.SetRun(false)
	v, _ = p.Resolve(ModeRun, snap)
	assert.False(t, v.AsBool())

	_, ok = p.Resolve("Motor", snap)
	assert.False(t, ok)
}

func TestPoints_FirstScanClearsAfterOneScan(t *testing.T) {
	p := NewPoints(false)
	snap := state.NewSnapshot(nil)

	tx := scan.New(snap, scan.WithResolver(p.Resolve))
	require.NoError(t, p.OnScanStart(tx))
	assert.True(t, tx.GetTag(FirstScan, state.Bool(false)).AsBool())
	require.NoError(t, p.OnScanEnd(tx))
	next, err := tx.Commit(0.01)
	require.NoError(t, err)

	v, _ := p.Resolve(FirstScan, next)
	assert.False(t, v.AsBool())

	v, _ = p.Resolve(ScanCount, next)
	assert.Equal(t, int64(1), v.AsInt())

	restarted := next.WithoutMemory(scan.IsPrivateKey)
	v, _ = p.Resolve(FirstScan, restarted)
	assert.True(t, v.AsBool(), "dropping private memory re-arms first scan")
}

func TestPoints_Clocks(t *testing.T) {
	p := NewPoints(false)
	at := func(seconds float64) *state.Snapshot {
		snap := state.NewSnapshot(nil)
		return snap.NextScan(seconds)
	}

	v, _ := p.Resolve(Clock100ms, at(0.02))
	assert.True(t, v.AsBool())
	v, _ = p.Resolve(Clock100ms, at(0.07))
	assert.False(t, v.AsBool())
	v, _ = p.Resolve(Clock1s, at(1.2))
	assert.True(t, v.AsBool())
	v, _ = p.Resolve(Clock1s, at(1.6))
	assert.False(t, v.AsBool())
}

func TestPoints_ReadOnly(t *testing.T) {
	p := NewPoints(false)
	assert.True(t, p.IsReadOnly(ScanCount))
	assert.False(t, p.IsReadOnly("Motor"))
	assert.Len(t, p.ReadOnlyTags(), len(p.Tags()))
	assert.Contains(t, p.ReadOnlyTags(), FirstScan)
}
