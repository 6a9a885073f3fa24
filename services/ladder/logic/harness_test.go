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

	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/laddersim/services/ladder/scan"
	"github.com/AleutianAI/laddersim/services/ladder/state"
)

// harness drives rungs scan by scan the way the runner does: dt into
// memory, rungs in order, previous-value shadows, commit.
type harness struct {
	snap *state.Snapshot
	subs SubroutineResolver
	dt   float64
}

func newHarness(initial map[string]state.Value) *harness {
	return &harness{snap: state.NewSnapshot(initial), dt: 0.1}
}

// step runs one scan and returns the committed snapshot.
func (h *harness) step(t *testing.T, rungs ...*Rung) *state.Snapshot {
	t.Helper()
	next, err := h.try(rungs...)
	require.NoError(t, err)
	return next
}

func (h *harness) try(rungs ...*Rung) (*state.Snapshot, error) {
	tx := scan.New(h.snap)
	tx.SetMemory(scan.DtKey, h.dt)
	ec := NewExec(tx, h.subs, nil)
	if _, err := EvaluateRungs(ec, rungs); err != nil {
		return nil, err
	}
	names := append(h.snap.TagNames(), tx.PendingTagNames()...)
	for _, n := range names {
		if v, ok := tx.LookupTag(n); ok {
			tx.SetMemory(scan.PrevKey(n), v)
		}
	}
	next, err := tx.Commit(h.dt)
	if err != nil {
		return nil, err
	}
	h.snap = next
	return next, nil
}

// patch writes tag values directly into the current snapshot.
func (h *harness) patch(values map[string]state.Value) {
	h.snap = h.snap.WithTags(values)
}

func (h *harness) boolTag(name string) bool {
	v, _ := h.snap.Tag(name)
	return v.AsBool()
}

func (h *harness) intTag(name string) int64 {
	v, _ := h.snap.Tag(name)
	return v.AsInt()
}

// txOver returns a fresh transaction over h's current snapshot.
func (h *harness) txOver() *scan.Transaction { return scan.New(h.snap) }
