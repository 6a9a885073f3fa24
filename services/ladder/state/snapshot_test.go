// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package state

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_StructuralSharing(t *testing.T) {
	s := NewSnapshot(map[string]Value{"A": Bool(true)})

	t.Run("WithMemory keeps tag map identity", func(t *testing.T) {
		next := s.WithMemory(map[string]any{"_dt": 0.01})
		assert.Same(t, s.TagMap(), next.TagMap())
		assert.NotSame(t, s.MemoryMap(), next.MemoryMap())
	})

	t.Run("WithTags keeps memory map identity", func(t *testing.T) {
		next := s.WithTags(map[string]Value{"B": Int(3)})
		assert.Same(t, s.MemoryMap(), next.MemoryMap())
		assert.NotSame(t, s.TagMap(), next.TagMap())
	})

	t.Run("empty update shares both maps", func(t *testing.T) {
		next := s.WithTags(nil)
		assert.Same(t, s.TagMap(), next.TagMap())
		assert.Same(t, s.MemoryMap(), next.MemoryMap())
	})
}

func TestSnapshot_Immutability(t *testing.T) {
	s := NewSnapshot(map[string]Value{"A": Int(1)})
	next := s.WithTags(map[string]Value{"A": Int(2), "B": Bool(true)})

	v, ok := s.Tag("A")
	require.True(t, ok)
	assert.Equal(t, int64(1), v.AsInt())
	_, ok = s.Tag("B")
	assert.False(t, ok, "original snapshot must not see new tag")

	v, _ = next.Tag("A")
	assert.Equal(t, int64(2), v.AsInt())
	assert.Equal(t, []string{"A", "B"}, next.TagNames())
}

func TestSnapshot_NextScan(t *testing.T) {
	s := NewSnapshot(nil)
	next := s.NextScan(0.25).NextScan(0.25)

	assert.Equal(t, uint64(0), s.ScanID())
	assert.Equal(t, uint64(2), next.ScanID())
	assert.InDelta(t, 0.5, next.Timestamp(), 1e-12)
	assert.Same(t, s.TagMap(), next.TagMap())
	assert.Same(t, s.MemoryMap(), next.MemoryMap())

	restarted := next.Restarted()
	assert.Equal(t, uint64(0), restarted.ScanID())
	assert.Zero(t, restarted.Timestamp())
}

func TestSnapshot_WithoutMemory(t *testing.T) {
	s := NewSnapshot(nil).WithMemory(map[string]any{
		"_prev:A": true,
		"_dt":     0.1,
		"user":    "kept",
	})
	next := s.WithoutMemory(func(k string) bool { return strings.HasPrefix(k, "_") })

	assert.Equal(t, []string{"user"}, next.MemoryKeys())
	assert.Len(t, s.MemoryKeys(), 3)
}

func TestSnapshot_WithoutTags(t *testing.T) {
	s := NewSnapshot(map[string]Value{"A": Int(1), "B": Int(2)})
	next := s.WithoutTags("A", "missing")
	assert.Equal(t, []string{"B"}, next.TagNames())
	assert.Equal(t, 2, s.TagCount())
}

func TestSnapshot_JSONRoundTrip(t *testing.T) {
	s := NewSnapshot(map[string]Value{
		"Run":   Bool(true),
		"Count": Int(-4),
		"Temp":  Real(21.5),
		"Name":  Text("line 1"),
	}).NextScan(0.5)

	data, err := s.MarshalJSON()
	require.NoError(t, err)

	decoded, err := DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, s.ScanID(), decoded.ScanID())
	assert.Equal(t, s.Timestamp(), decoded.Timestamp())
	assert.Equal(t, s.Tags(), decoded.Tags())
}
