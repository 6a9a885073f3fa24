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
	"fmt"
	"sort"
	"sync"
)

// Slot is a configuration overlay for one tag.
//
// Description:
//
//	Hardware configurations decide per memory slot whether a point survives
//	power loss and what it powers up to. A Slot marks a tag retentive (it
//	never un-marks one) and may replace the declared default.
type Slot struct {
	// Retentive marks the tag retentive regardless of its declaration.
	Retentive bool

	// Default, when not none, replaces the declared default.
	Default Value
}

// Registry records declared tags and their slot overlays.
//
// Thread Safety: Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tags  map[string]Tag
	slots map[string]Slot
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tags:  make(map[string]Tag),
		slots: make(map[string]Slot),
	}
}

// Register declares tags.
//
// Description:
//
//	Re-declaring a tag with identical metadata is a no-op. Re-declaring it
//	with a different kind, retentive flag or default fails with
//	ErrTagConflict. Registration is all-or-nothing: on error no tag from the
//	call is recorded.
//
// Inputs:
//   - tags: Descriptors to declare. Each must pass Tag.Validate.
//
// Outputs:
//   - error: ErrInvalidTag or ErrTagConflict.
func (r *Registry) Register(tags ...Tag) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := make(map[string]Tag, len(tags))
	for _, t := range tags {
		if err := t.Validate(); err != nil {
			return err
		}
		existing, ok := r.tags[t.Name]
		if !ok {
			existing, ok = pending[t.Name]
		}
		if ok && !existing.SameAs(t) {
			return fmt.Errorf("%w: %q declared as %s (retentive=%t, default=%s), redeclared as %s (retentive=%t, default=%s)",
				ErrTagConflict, t.Name,
				existing.Kind, existing.Retentive, existing.Default,
				t.Kind, t.Retentive, t.Default)
		}
		pending[t.Name] = t
	}
	for name, t := range pending {
		r.tags[name] = t
	}
	return nil
}

// BindSlot attaches a slot overlay to a tag name.
//
// The tag does not have to be declared yet. A slot default must match the
// tag kind once the tag is known; mismatches are reported by
// EffectiveDefault falling back to the declared default.
func (r *Registry) BindSlot(name string, slot Slot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[name] = slot
}

// Lookup returns the declared tag for name.
func (r *Registry) Lookup(name string) (Tag, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tags[name]
	return t, ok
}

// IsRetentive reports whether the tag or its slot is retentive.
func (r *Registry) IsRetentive(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.slots[name]; ok && s.Retentive {
		return true
	}
	t, ok := r.tags[name]
	return ok && t.Retentive
}

// EffectiveDefault returns the power-up value of a tag.
//
// Outputs:
//   - Value: The slot default when set and compatible, else the declared
//     default.
//   - bool: False when the tag is neither declared nor slot-configured.
func (r *Registry) EffectiveDefault(name string) (Value, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, declared := r.tags[name]
	s, slotted := r.slots[name]
	if slotted && !s.Default.IsNone() {
		if !declared {
			return s.Default, true
		}
		if v, err := s.Default.Coerce(t.Kind); err == nil {
			return v, true
		}
	}
	if declared {
		return t.Default, true
	}
	return Value{}, false
}

// Names returns every declared or slot-configured tag name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{}, len(r.tags)+len(r.slots))
	for n := range r.tags {
		seen[n] = struct{}{}
	}
	for n := range r.slots {
		seen[n] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of declared tags.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tags)
}
