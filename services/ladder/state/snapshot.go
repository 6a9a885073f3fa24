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
	"encoding/json"
	"sort"

	"github.com/benbjohnson/immutable"
)

// -----------------------------------------------------------------------------
// Snapshot
// -----------------------------------------------------------------------------

// TagMap is the persistent tag map type held by a Snapshot.
type TagMap = immutable.SortedMap[string, Value]

// MemoryMap is the persistent engine-memory map type held by a Snapshot.
type MemoryMap = immutable.Map[string, any]

// Snapshot is one immutable instant of the controller.
//
// Description:
//
//	Holds the scan id, the simulation timestamp in seconds, the tag values
//	and the engine-private memory. Every "mutation" returns a new Snapshot
//	that shares unchanged structure with its predecessor.
//
// Thread Safety: Immutable, safe for concurrent use.
type Snapshot struct {
	scanID    uint64
	timestamp float64
	tags      *TagMap
	memory    *MemoryMap
}

// NewSnapshot creates the scan-0 snapshot at time zero.
//
// Inputs:
//   - tags: Initial tag values. May be nil.
//
// Outputs:
//   - *Snapshot: The new snapshot. Never nil.
func NewSnapshot(tags map[string]Value) *Snapshot {
	s := &Snapshot{
		tags:   immutable.NewSortedMap[string, Value](immutable.NewComparer("")),
		memory: immutable.NewMap[string, any](immutable.NewHasher("")),
	}
	if len(tags) == 0 {
		return s
	}
	return s.WithTags(tags)
}

// ScanID returns the number of committed scans that produced this snapshot.
func (s *Snapshot) ScanID() uint64 { return s.scanID }

// Timestamp returns the simulation time in seconds.
func (s *Snapshot) Timestamp() float64 { return s.timestamp }

// TagMap returns the persistent tag map. Callers must not rely on anything
// but read access and pointer identity.
func (s *Snapshot) TagMap() *TagMap { return s.tags }

// MemoryMap returns the persistent memory map.
func (s *Snapshot) MemoryMap() *MemoryMap { return s.memory }

// Tag returns the committed value of a tag.
func (s *Snapshot) Tag(name string) (Value, bool) {
	return s.tags.Get(name)
}

// TagOr returns the committed value of a tag or def when absent.
func (s *Snapshot) TagOr(name string, def Value) Value {
	if v, ok := s.tags.Get(name); ok {
		return v
	}
	return def
}

// Memory returns an engine-memory entry.
func (s *Snapshot) Memory(key string) (any, bool) {
	return s.memory.Get(key)
}

// TagCount returns the number of tags with a committed value.
func (s *Snapshot) TagCount() int { return s.tags.Len() }

// TagNames returns committed tag names in sorted order.
func (s *Snapshot) TagNames() []string {
	names := make([]string, 0, s.tags.Len())
	itr := s.tags.Iterator()
	for !itr.Done() {
		k, _, ok := itr.Next()
		if !ok {
			break
		}
		names = append(names, k)
	}
	return names
}

// Tags returns a plain copy of the tag values.
func (s *Snapshot) Tags() map[string]Value {
	out := make(map[string]Value, s.tags.Len())
	itr := s.tags.Iterator()
	for !itr.Done() {
		k, v, ok := itr.Next()
		if !ok {
			break
		}
		out[k] = v
	}
	return out
}

// MemoryKeys returns memory keys in sorted order.
func (s *Snapshot) MemoryKeys() []string {
	keys := make([]string, 0, s.memory.Len())
	itr := s.memory.Iterator()
	for !itr.Done() {
		k, _, ok := itr.Next()
		if !ok {
			break
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WithTags returns a snapshot with updates merged into the tag map.
//
// Description:
//
//	The memory map object of the result is identical to s.MemoryMap().
//	An empty update returns a snapshot sharing both maps.
func (s *Snapshot) WithTags(updates map[string]Value) *Snapshot {
	next := *s
	if len(updates) == 0 {
		return &next
	}
	// Sorted application keeps construction deterministic.
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	m := s.tags
	for _, k := range keys {
		m = m.Set(k, updates[k])
	}
	next.tags = m
	return &next
}

// WithoutTags returns a snapshot with the named tags removed.
func (s *Snapshot) WithoutTags(names ...string) *Snapshot {
	next := *s
	m := s.tags
	for _, n := range names {
		m = m.Delete(n)
	}
	next.tags = m
	return &next
}

// WithMemory returns a snapshot with updates merged into engine memory.
//
// Description:
//
//	The tag map object of the result is identical to s.TagMap().
func (s *Snapshot) WithMemory(updates map[string]any) *Snapshot {
	next := *s
	if len(updates) == 0 {
		return &next
	}
	m := s.memory
	for k, v := range updates {
		m = m.Set(k, v)
	}
	next.memory = m
	return &next
}

// WithoutMemory returns a snapshot without the memory keys matching drop.
func (s *Snapshot) WithoutMemory(drop func(key string) bool) *Snapshot {
	next := *s
	m := s.memory
	itr := s.memory.Iterator()
	for !itr.Done() {
		k, _, ok := itr.Next()
		if !ok {
			break
		}
		if drop(k) {
			m = m.Delete(k)
		}
	}
	next.memory = m
	return &next
}

// NextScan returns a snapshot one scan later.
//
// Description:
//
//	Increments the scan id by exactly one and advances the timestamp by dt.
//	Tags and memory are shared unchanged.
func (s *Snapshot) NextScan(dt float64) *Snapshot {
	next := *s
	next.scanID = s.scanID + 1
	next.timestamp = s.timestamp + dt
	return &next
}

// Restarted returns a snapshot reset to scan 0 at time zero.
//
// Description:
//
//	Keeps memory and tag maps; callers combine it with WithTags,
//	WithoutTags and WithoutMemory to implement stop→run and reboot.
func (s *Snapshot) Restarted() *Snapshot {
	next := *s
	next.scanID = 0
	next.timestamp = 0
	return &next
}

// snapshotJSON is the JSON form of a snapshot. Memory is not encoded: it
// holds engine-private values of arbitrary Go types.
type snapshotJSON struct {
	ScanID    uint64           `json:"scan_id"`
	Timestamp float64          `json:"timestamp"`
	Tags      map[string]Value `json:"tags"`
}

// MarshalJSON encodes scan id, timestamp and tags.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotJSON{
		ScanID:    s.scanID,
		Timestamp: s.timestamp,
		Tags:      s.Tags(),
	})
}

// DecodeSnapshot rebuilds a snapshot from MarshalJSON output.
//
// The result has empty memory.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var raw snapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	s := NewSnapshot(raw.Tags)
	s.scanID = raw.ScanID
	s.timestamp = raw.Timestamp
	return s, nil
}
