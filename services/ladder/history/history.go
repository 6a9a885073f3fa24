// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history retains committed snapshots for inspection.
//
// History keeps the newest snapshots in a bounded ring and evicts the oldest
// first. Evicted snapshots can be handed to a Sink (the archive package
// provides one) so that lookups by scan id keep working after eviction.
// Labels attach free-form names to individual snapshots.
package history

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/AleutianAI/laddersim/services/ladder/state"
)

// DefaultLimit is the retention used when none is configured.
const DefaultLimit = 1000

// ErrUnknownScan is returned when no retained or archived snapshot has the
// requested scan id.
var ErrUnknownScan = errors.New("unknown scan id")

// Sink receives evicted snapshots and serves them back by scan id.
type Sink interface {
	Store(snap *state.Snapshot) error
	Load(scanID uint64) (*state.Snapshot, error)
}

// Option configures a History.
type Option func(*History)

// WithSink archives evicted snapshots into sink.
func WithSink(sink Sink) Option {
	return func(h *History) { h.sink = sink }
}

// WithLogger sets the logger used for archive failures.
func WithLogger(logger *slog.Logger) Option {
	return func(h *History) { h.logger = logger }
}

// entry is a retained snapshot tagged with the run it belongs to.
type entry struct {
	epoch uint64
	snap  *state.Snapshot
}

// labelRef pins a label to one snapshot of one run.
type labelRef struct {
	epoch  uint64
	scanID uint64
	snap   *state.Snapshot
}

// History is the bounded store of committed snapshots.
//
// # Description
//
// Scan ids restart at 0 after a stop→run transition, so the same id can be
// retained more than once; lookups by id return the most recent match.
// Each restart opens a new epoch. A label is bound to the snapshot it was
// attached to, so a later run reaching the same scan id does not inherit
// it. Labels are deduplicated per (label, epoch, scan id).
//
// # Thread Safety
//
// Safe for concurrent use.
type History struct {
	mu       sync.RWMutex
	ring     *Ring[entry]
	epoch    uint64
	archived map[uint64]uint64 // scan id -> epoch of the copy held by the sink
	labels   map[string][]labelRef
	sink     Sink
	logger   *slog.Logger
}

// New creates a History retaining up to limit snapshots. A non-positive
// limit uses DefaultLimit.
func New(limit int, opts ...Option) *History {
	if limit <= 0 {
		limit = DefaultLimit
	}
	h := &History{
		ring:     NewRing[entry](limit),
		archived: make(map[uint64]uint64),
		labels:   make(map[string][]labelRef),
		logger:   slog.Default().With(slog.String("component", "history")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Append records a committed snapshot, evicting the oldest when full.
//
// # Description
//
// A scan id that does not advance past the newest retained one starts a
// new epoch. An evicted snapshot goes to the sink when one is configured.
// Sink failures are logged and do not fail the append.
func (h *History) Append(snap *state.Snapshot) {
	h.mu.Lock()
	if newest, ok := h.ring.Newest(); ok && snap.ScanID() <= newest.snap.ScanID() {
		h.epoch++
	}
	evicted, ok := h.ring.Push(entry{epoch: h.epoch, snap: snap})
	sink := h.sink
	if ok && sink != nil {
		h.archived[evicted.snap.ScanID()] = evicted.epoch
	}
	h.mu.Unlock()

	if ok && sink != nil {
		if err := sink.Store(evicted.snap); err != nil {
			h.logger.Warn("archive evicted snapshot failed",
				slog.Uint64("scan_id", evicted.snap.ScanID()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// At returns the most recent snapshot with scanID.
//
// # Outputs
//
//   - *state.Snapshot: The snapshot, from the ring or the sink.
//   - error: ErrUnknownScan when neither has it.
func (h *History) At(scanID uint64) (*state.Snapshot, error) {
	e, err := h.lookup(scanID)
	if err != nil {
		return nil, err
	}
	return e.snap, nil
}

// lookup finds the most recent entry with scanID in the ring, then the sink.
func (h *History) lookup(scanID uint64) (entry, error) {
	h.mu.RLock()
	var found entry
	h.ring.Scan(func(e entry) bool {
		if e.snap.ScanID() == scanID {
			found = e
			return false
		}
		return true
	})
	sink := h.sink
	epoch, archived := h.archived[scanID]
	h.mu.RUnlock()

	if found.snap != nil {
		return found, nil
	}
	if sink != nil && archived {
		if snap, err := sink.Load(scanID); err == nil {
			return entry{epoch: epoch, snap: snap}, nil
		}
	}
	return entry{}, fmt.Errorf("%w: %d", ErrUnknownScan, scanID)
}

func snapshots(entries []entry) []*state.Snapshot {
	if len(entries) == 0 {
		return nil
	}
	out := make([]*state.Snapshot, len(entries))
	for i, e := range entries {
		out[i] = e.snap
	}
	return out
}

// Newest returns the most recent snapshot.
func (h *History) Newest() (*state.Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.ring.Newest()
	return e.snap, ok
}

// Latest returns up to n of the newest snapshots, oldest first.
func (h *History) Latest(n int) []*state.Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return snapshots(h.ring.Last(n))
}

// Range returns retained snapshots with from <= scan id <= to, oldest first.
func (h *History) Range(from, to uint64) []*state.Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*state.Snapshot
	for i := 0; i < h.ring.Len(); i++ {
		e, _ := h.ring.At(i)
		if id := e.snap.ScanID(); id >= from && id <= to {
			out = append(out, e.snap)
		}
	}
	return out
}

// Label attaches label to the most recent snapshot with scanID. Adding the
// same pair twice is a no-op.
//
// # Outputs
//
//   - error: ErrUnknownScan when scanID is not retained or archived.
func (h *History) Label(scanID uint64, label string) error {
	e, err := h.lookup(scanID)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ref := range h.labels[label] {
		if ref.epoch == e.epoch && ref.scanID == scanID {
			return nil
		}
	}
	h.labels[label] = append(h.labels[label], labelRef{epoch: e.epoch, scanID: scanID, snap: e.snap})
	return nil
}

// Labeled returns the snapshots carrying label, in labeling order. The
// labeled snapshots stay reachable after eviction until Reset.
func (h *History) Labeled(label string) []*state.Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	refs := h.labels[label]
	if len(refs) == 0 {
		return nil
	}
	out := make([]*state.Snapshot, len(refs))
	for i, ref := range refs {
		out[i] = ref.snap
	}
	return out
}

// LabelsAt returns the labels on the most recent snapshot with scanID,
// sorted. Labels from an earlier run are not reported once a later run has
// reached the same scan id.
func (h *History) LabelsAt(scanID uint64) []string {
	e, err := h.lookup(scanID)
	if err != nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []string
	for label, refs := range h.labels {
		for _, ref := range refs {
			if ref.epoch == e.epoch && ref.scanID == scanID {
				out = append(out, label)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of retained snapshots.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ring.Len()
}

// Limit returns the retention limit.
func (h *History) Limit() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ring.Cap()
}

// resetter is implemented by sinks that can drop their contents.
type resetter interface {
	Reset() error
}

// Reset drops every retained snapshot and label, and the sink's contents when
// the sink supports it, then records initial when it is non-nil.
func (h *History) Reset(initial *state.Snapshot) {
	h.mu.Lock()
	h.ring.Clear()
	h.epoch = 0
	h.archived = make(map[uint64]uint64)
	h.labels = make(map[string][]labelRef)
	sink := h.sink
	h.mu.Unlock()
	if r, ok := sink.(resetter); ok {
		if err := r.Reset(); err != nil {
			h.logger.Warn("archive reset failed", slog.String("error", err.Error()))
		}
	}
	if initial != nil {
		h.Append(initial)
	}
}
