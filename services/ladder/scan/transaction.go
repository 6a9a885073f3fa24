// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scan provides the per-scan write buffer of the ladder engine.
//
// A Transaction wraps one immutable state.Snapshot and collects every tag and
// memory write made during a scan. Reads see the scan's own writes first, so
// logic later in the scan observes earlier rungs, while the wrapped Snapshot is
// never touched. Commit folds the pending writes into a new Snapshot exactly
// once.
//
// Thread Safety: A Transaction belongs to a single scan on a single goroutine
// and is NOT safe for concurrent use.
package scan

import (
	"errors"
	"sort"

	"github.com/AleutianAI/laddersim/services/ladder/state"
)

// ErrCommitted is returned when Commit is called on a Transaction that has
// already produced its snapshot.
var ErrCommitted = errors.New("transaction already committed")

// Resolver supplies virtual tag values that are not stored in the snapshot,
// such as system points.
//
// Inputs:
//   - name: The tag being read.
//   - snap: The snapshot the transaction wraps.
//
// Outputs:
//   - state.Value: The virtual value.
//   - bool: False when the resolver does not own the name.
type Resolver func(name string, snap *state.Snapshot) (state.Value, bool)

// Option configures a Transaction.
type Option func(*Transaction)

// WithResolver installs a virtual-tag resolver consulted after pending writes
// and before the wrapped snapshot.
func WithResolver(r Resolver) Option {
	return func(tx *Transaction) { tx.resolver = r }
}

// Transaction is the read-through write buffer of one scan.
//
// Description:
//
//	Reads consult, in order: pending writes of this scan, the resolver,
//	the wrapped snapshot, and finally the caller's default. Writes land in
//	the pending maps only.
type Transaction struct {
	base      *state.Snapshot
	resolver  Resolver
	tags      map[string]state.Value
	memory    map[string]any
	committed bool
}

// New creates a Transaction over snap.
func New(snap *state.Snapshot, opts ...Option) *Transaction {
	tx := &Transaction{
		base:   snap,
		tags:   make(map[string]state.Value),
		memory: make(map[string]any),
	}
	for _, opt := range opts {
		opt(tx)
	}
	return tx
}

// Base returns the snapshot the transaction reads through to.
func (tx *Transaction) Base() *state.Snapshot { return tx.base }

// ScanID returns the scan id of the wrapped snapshot.
func (tx *Transaction) ScanID() uint64 { return tx.base.ScanID() }

// LookupTag returns the current value of a tag within this scan.
func (tx *Transaction) LookupTag(name string) (state.Value, bool) {
	if v, ok := tx.tags[name]; ok {
		return v, true
	}
	if tx.resolver != nil {
		if v, ok := tx.resolver(name, tx.base); ok {
			return v, true
		}
	}
	return tx.base.Tag(name)
}

// GetTag returns the current value of a tag or def when it has none.
func (tx *Transaction) GetTag(name string, def state.Value) state.Value {
	if v, ok := tx.LookupTag(name); ok {
		return v
	}
	return def
}

// LookupMemory returns the current value of a memory key within this scan.
func (tx *Transaction) LookupMemory(key string) (any, bool) {
	if v, ok := tx.memory[key]; ok {
		return v, true
	}
	return tx.base.Memory(key)
}

// GetMemory returns the current value of a memory key or def.
func (tx *Transaction) GetMemory(key string, def any) any {
	if v, ok := tx.LookupMemory(key); ok {
		return v
	}
	return def
}

// SetTag records a tag write.
func (tx *Transaction) SetTag(name string, v state.Value) {
	tx.tags[name] = v
}

// SetTags records several tag writes.
func (tx *Transaction) SetTags(updates map[string]state.Value) {
	for k, v := range updates {
		tx.tags[k] = v
	}
}

// SetMemory records a memory write.
func (tx *Transaction) SetMemory(key string, v any) {
	tx.memory[key] = v
}

// SetMemoryBulk records several memory writes.
func (tx *Transaction) SetMemoryBulk(updates map[string]any) {
	for k, v := range updates {
		tx.memory[k] = v
	}
}

// PendingTagNames returns the names written in this scan, sorted.
func (tx *Transaction) PendingTagNames() []string {
	names := make([]string, 0, len(tx.tags))
	for n := range tx.tags {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// PendingTags returns a copy of the tag writes made in this scan.
func (tx *Transaction) PendingTags() map[string]state.Value {
	out := make(map[string]state.Value, len(tx.tags))
	for k, v := range tx.tags {
		out[k] = v
	}
	return out
}

// Committed reports whether Commit has run.
func (tx *Transaction) Committed() bool { return tx.committed }

// Commit folds pending writes into a new snapshot one scan later.
//
// Description:
//
//	Applies the pending tag and memory writes to the wrapped snapshot's
//	persistent maps and advances scan id and timestamp by dt. A map with no
//	pending writes is shared unchanged with the wrapped snapshot.
//
// Inputs:
//   - dt: Seconds of simulation time the scan consumed.
//
// Outputs:
//   - *state.Snapshot: The committed snapshot.
//   - error: ErrCommitted on a second call.
func (tx *Transaction) Commit(dt float64) (*state.Snapshot, error) {
	if tx.committed {
		return nil, ErrCommitted
	}
	tx.committed = true
	next := tx.base.WithTags(tx.tags).WithMemory(tx.memory).NextScan(dt)
	return next, nil
}
