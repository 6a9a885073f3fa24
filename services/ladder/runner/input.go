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
	"fmt"
	"log/slog"
	"maps"
	"sort"

	"github.com/AleutianAI/laddersim/services/ladder/state"
)

// -----------------------------------------------------------------------------
// Key and value conversion
// -----------------------------------------------------------------------------

// keyName accepts a tag name or a state.Tag.
func keyName(key any) (string, *state.Tag, error) {
	switch k := key.(type) {
	case string:
		if k == "" {
			return "", nil, fmt.Errorf("%w: empty name", ErrInvalidKey)
		}
		return k, nil, nil
	case state.Tag:
		if err := k.Validate(); err != nil {
			return "", nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
		}
		return k.Name, &k, nil
	case *state.Tag:
		if k == nil {
			return "", nil, fmt.Errorf("%w: nil tag", ErrInvalidKey)
		}
		return keyName(*k)
	default:
		return "", nil, fmt.Errorf("%w: %T", ErrInvalidKey, key)
	}
}

// resolveInputs converts caller-supplied keys and values into typed tag
// writes.
//
// Description:
//
//	Every entry is checked before anything changes: key form, read-only
//	status, value form and kind. Tags passed as keys are declared at the
//	end; a declaration conflict fails the whole call. The kind a value is
//	coerced to comes from the key tag, then the registry, then the value
//	already in snap.
//
// Outputs:
//
//	map[string]state.Value - Typed writes keyed by tag name.
//	error - ErrInvalidKey, ErrReadOnlyTag, ErrInvalidValue or
//	        state.ErrTagConflict.
func (r *Runner) resolveInputs(values map[any]any, snap *state.Snapshot) (map[string]state.Value, error) {
	out := make(map[string]state.Value, len(values))
	var declare []state.Tag

	for key, raw := range values {
		name, tag, err := keyName(key)
		if err != nil {
			return nil, err
		}
		if r.runtime.IsReadOnly(name) {
			return nil, fmt.Errorf("%w: %s", ErrReadOnlyTag, name)
		}
		v, err := state.Of(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidValue, name, err)
		}

		kind := v.Kind()
		switch {
		case tag != nil:
			kind = tag.Kind
			declare = append(declare, *tag)
		default:
			if t, ok := r.registry.Lookup(name); ok {
				kind = t.Kind
			} else if cur, ok := snap.Tag(name); ok {
				kind = cur.Kind()
			}
		}
		if v, err = v.Coerce(kind); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidValue, name, err)
		}
		out[name] = v
	}

	if len(declare) > 0 {
		if err := r.registry.Register(declare...); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Patches
// -----------------------------------------------------------------------------

// Patch queues one-shot tag writes for the next scan.
//
// Description:
//
//	Patched values are written before logic runs and are then cleared.
//	Logic may overwrite them within the scan, and forces win over them.
//	A later Patch of the same tag before the scan replaces the earlier one.
//
// Inputs:
//
//	values - Keys are tag names or state.Tag; values are Go bool, integer,
//	         float or string values, or state.Value.
//
// Outputs:
//
//	error - On any invalid entry nothing is queued.
func (r *Runner) Patch(values map[any]any) error {
	typed, err := r.resolveInputs(values, r.current.Load())
	if err != nil {
		return err
	}
	maps.Copy(r.patches, typed)
	return nil
}

// PendingPatches returns a copy of the queued patches.
func (r *Runner) PendingPatches() map[string]state.Value {
	return maps.Clone(r.patches)
}

// -----------------------------------------------------------------------------
// Forces
// -----------------------------------------------------------------------------

// AddForce pins a tag to value until the force is removed.
//
// Description:
//
//	A forced value is written before logic and written again after logic
//	and the scan-end hook, so it overrides both patches and logic writes
//	in the committed snapshot. Logic still observes its own writes within
//	the scan.
func (r *Runner) AddForce(key, value any) error {
	typed, err := r.resolveInputs(map[any]any{key: value}, r.current.Load())
	if err != nil {
		return err
	}
	for name, v := range typed {
		r.forces[name] = v
		r.logger.Info("force added", slog.String("tag", name), slog.String("value", v.String()))
	}
	r.metrics.setForces(len(r.forces))
	return nil
}

// RemoveForce releases a forced tag. Removing an unforced tag is a no-op.
func (r *Runner) RemoveForce(key any) error {
	name, _, err := keyName(key)
	if err != nil {
		return err
	}
	if _, ok := r.forces[name]; ok {
		delete(r.forces, name)
		r.logger.Info("force removed", slog.String("tag", name))
	}
	r.metrics.setForces(len(r.forces))
	return nil
}

// ClearForces releases every force.
func (r *Runner) ClearForces() {
	if len(r.forces) > 0 {
		r.logger.Info("forces cleared", slog.Int("count", len(r.forces)))
	}
	clear(r.forces)
	r.metrics.setForces(0)
}

// Forces returns a copy of the active forces.
func (r *Runner) Forces() map[string]state.Value {
	return maps.Clone(r.forces)
}

// ForcedTags returns the names of forced tags, sorted.
func (r *Runner) ForcedTags() []string {
	names := make([]string, 0, len(r.forces))
	for n := range r.forces {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// WithForces runs fn with additional forces applied.
//
// Description:
//
//	The force set in effect before the call is restored when fn returns,
//	fails or panics. Forces added or removed by fn itself are discarded
//	with the rest.
//
// Inputs:
//
//	values - Forces to add, in the same forms as Patch.
//	fn - The scoped work, typically calls to Step or Run.
//
// Outputs:
//
//	error - Input validation errors (fn is not called), or fn's error.
func (r *Runner) WithForces(values map[any]any, fn func() error) error {
	typed, err := r.resolveInputs(values, r.current.Load())
	if err != nil {
		return err
	}
	saved := maps.Clone(r.forces)
	defer func() {
		r.forces = saved
		r.metrics.setForces(len(saved))
	}()

	maps.Copy(r.forces, typed)
	r.metrics.setForces(len(r.forces))
	return fn()
}
