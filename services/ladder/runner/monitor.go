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

	"github.com/google/uuid"

	"github.com/AleutianAI/laddersim/services/ladder/state"
)

// Handle identifies a monitor or breakpoint.
type Handle string

func newHandle() Handle { return Handle(uuid.NewString()) }

// MonitorFunc receives a tag's committed value and its previous committed
// value. previous.IsNone() is true when the tag had no value before.
type MonitorFunc func(current, previous state.Value) error

type monitor struct {
	id      Handle
	tag     string
	fn      MonitorFunc
	enabled bool
}

// Monitor registers fn to run whenever tag's committed value changes.
//
// Description:
//
//	Monitors compare each committed snapshot with the one it replaces.
//	Writes that leave the value unchanged never fire. An error returned by
//	fn aborts the scan and is returned to the caller of the execution
//	method.
//
// Inputs:
//
//	tag - Tag name or state.Tag.
//	fn - The callback. Must not call execution methods of this runner.
//
// Outputs:
//
//	Handle - Used to enable, disable or remove the monitor.
//	error - ErrInvalidKey.
func (r *Runner) Monitor(tag any, fn MonitorFunc) (Handle, error) {
	name, _, err := keyName(tag)
	if err != nil {
		return "", err
	}
	if fn == nil {
		return "", fmt.Errorf("%w: nil monitor callback", ErrInvalidValue)
	}
	m := &monitor{id: newHandle(), tag: name, fn: fn, enabled: true}
	r.monitors = append(r.monitors, m)
	return m.id, nil
}

func (r *Runner) findMonitor(id Handle) (int, error) {
	for i, m := range r.monitors {
		if m.id == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: monitor %s", ErrUnknownHandle, id)
}

// EnableMonitor re-enables a disabled monitor.
func (r *Runner) EnableMonitor(id Handle) error {
	i, err := r.findMonitor(id)
	if err != nil {
		return err
	}
	r.monitors[i].enabled = true
	return nil
}

// DisableMonitor stops a monitor from firing without removing it.
func (r *Runner) DisableMonitor(id Handle) error {
	i, err := r.findMonitor(id)
	if err != nil {
		return err
	}
	r.monitors[i].enabled = false
	return nil
}

// RemoveMonitor deletes a monitor.
func (r *Runner) RemoveMonitor(id Handle) error {
	i, err := r.findMonitor(id)
	if err != nil {
		return err
	}
	r.monitors = append(r.monitors[:i], r.monitors[i+1:]...)
	return nil
}

// fireMonitors runs every enabled monitor whose tag changed between prev
// and next, in registration order.
func (r *Runner) fireMonitors(prev, next *state.Snapshot) error {
	for _, m := range append([]*monitor(nil), r.monitors...) {
		if !m.enabled {
			continue
		}
		before, hadBefore := r.valueIn(prev, m.tag)
		after, hasAfter := r.valueIn(next, m.tag)
		if !hasAfter || (hadBefore && before.Equal(after)) {
			continue
		}
		if !hadBefore {
			before = state.Value{}
		}
		r.metrics.recordMonitor()
		if err := m.fn(after, before); err != nil {
			return fmt.Errorf("monitor %s on %s: %w", m.id, m.tag, err)
		}
	}
	return nil
}
