// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package history

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/laddersim/services/ladder/state"
)

// memSink is an in-process Sink for tests.
type memSink struct {
	stored map[uint64]*state.Snapshot
	resets int
}

func newMemSink() *memSink { return &memSink{stored: make(map[uint64]*state.Snapshot)} }

func (m *memSink) Store(s *state.Snapshot) error {
	m.stored[s.ScanID()] = s
	return nil
}

func (m *memSink) Load(id uint64) (*state.Snapshot, error) {
	if s, ok := m.stored[id]; ok {
		return s, nil
	}
	return nil, errors.New("not found")
}

func (m *memSink) Reset() error {
	m.stored = make(map[uint64]*state.Snapshot)
	m.resets++
	return nil
}

// chain returns snapshots with scan ids 0..n-1.
func chain(n int) []*state.Snapshot {
	out := make([]*state.Snapshot, n)
	s := state.NewSnapshot(nil)
	for i := range out {
		out[i] = s
		s = s.NextScan(0.1)
	}
	return out
}

func TestRing(t *testing.T) {
	r := NewRing[int](3)
	for i := 1; i <= 3; i++ {
		_, evicted := r.Push(i)
		assert.False(t, evicted)
	}
	old, evicted := r.Push(4)
	assert.True(t, evicted)
	assert.Equal(t, 1, old)

	assert.Equal(t, []int{2, 3, 4}, r.Last(10))
	assert.Equal(t, []int{3, 4}, r.Last(2))
	n, _ := r.Newest()
	assert.Equal(t, 4, n)
	o, _ := r.Oldest()
	assert.Equal(t, 2, o)

	var seen []int
	r.Scan(func(v int) bool { seen = append(seen, v); return v != 3 })
	assert.Equal(t, []int{4, 3}, seen)

	r.Clear()
	assert.Equal(t, 0, r.Len())
	_, ok := r.Newest()
	assert.False(t, ok)
}

func TestHistory_EvictionAndLookup(t *testing.T) {
	sink := newMemSink()
	h := New(3, WithSink(sink))
	for _, s := range chain(5) {
		h.Append(s)
	}

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, 3, h.Limit())
	assert.Len(t, sink.stored, 2, "scans 0 and 1 evicted to the sink")

	s, err := h.At(4)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), s.ScanID())

	s, err = h.At(0)
	require.NoError(t, err, "evicted scans are served by the sink")
	assert.Equal(t, uint64(0), s.ScanID())

	_, err = h.At(99)
	assert.ErrorIs(t, err, ErrUnknownScan)

	ids := func(snaps []*state.Snapshot) []uint64 {
		out := make([]uint64, len(snaps))
		for i, s := range snaps {
			out[i] = s.ScanID()
		}
		return out
	}
	assert.Equal(t, []uint64{3, 4}, ids(h.Latest(2)))
	assert.Equal(t, []uint64{2, 3}, ids(h.Range(0, 3)))
}

func TestHistory_RepeatedScanIDsReturnNewest(t *testing.T) {
	h := New(10)
	first := state.NewSnapshot(map[string]state.Value{"run": state.Int(1)})
	second := state.NewSnapshot(map[string]state.Value{"run": state.Int(2)})
	h.Append(first)
	h.Append(second)

	s, err := h.At(0)
	require.NoError(t, err)
	assert.Same(t, second, s)
}

func TestHistory_Labels(t *testing.T) {
	h := New(10)
	for _, s := range chain(3) {
		h.Append(s)
	}

	require.NoError(t, h.Label(1, "start"))
	require.NoError(t, h.Label(1, "start"))
	require.NoError(t, h.Label(2, "start"))
	require.NoError(t, h.Label(1, "alarm"))
	assert.ErrorIs(t, h.Label(42, "x"), ErrUnknownScan)

	assert.Len(t, h.Labeled("start"), 2, "duplicate pair recorded once")
	assert.Equal(t, []string{"alarm", "start"}, h.LabelsAt(1))
	assert.Empty(t, h.Labeled("missing"))
}

func TestHistory_LabelsStayWithTheirRun(t *testing.T) {
	sink := newMemSink()
	h := New(4, WithSink(sink))
	first := chain(4)
	for _, s := range first {
		h.Append(s)
	}
	require.NoError(t, h.Label(2, "before-stop"))

	second := chain(4)
	for _, s := range second[:2] {
		h.Append(s)
	}
	assert.Equal(t, []string{"before-stop"}, h.LabelsAt(2), "earlier run still newest at scan 2")

	h.Append(second[2])
	h.Append(second[3])
	assert.Empty(t, h.LabelsAt(2), "new run reached scan 2")

	labeled := h.Labeled("before-stop")
	require.Len(t, labeled, 1)
	assert.Same(t, first[2], labeled[0])

	require.NoError(t, h.Label(2, "before-stop"))
	assert.Len(t, h.Labeled("before-stop"), 2, "same id in a new run is a new pair")
	assert.Equal(t, []string{"before-stop"}, h.LabelsAt(2))
}

func TestHistory_Reset(t *testing.T) {
	sink := newMemSink()
	h := New(2, WithSink(sink))
	for _, s := range chain(4) {
		h.Append(s)
	}
	require.NoError(t, h.Label(3, "x"))

	fresh := state.NewSnapshot(nil)
	h.Reset(fresh)
	assert.Equal(t, 1, h.Len())
	assert.Empty(t, h.LabelsAt(3))
	assert.Equal(t, 1, sink.resets)
	assert.Empty(t, sink.stored)

	newest, ok := h.Newest()
	require.True(t, ok)
	assert.Same(t, fresh, newest)
}
