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

import "errors"

var (
	// ErrInvalidKey is returned when a patch or force key is neither a tag
	// name nor a state.Tag.
	ErrInvalidKey = errors.New("invalid tag key")

	// ErrInvalidValue is returned when a patch or force value has no tag
	// value form or does not fit the tag's kind.
	ErrInvalidValue = errors.New("invalid tag value")

	// ErrReadOnlyTag is returned when a patch or force targets a read-only
	// system point.
	ErrReadOnlyTag = errors.New("tag is read-only")

	// ErrUnknownHandle is returned for monitor or breakpoint handles the
	// runner does not know.
	ErrUnknownHandle = errors.New("unknown handle")

	// ErrStaleStepper is returned when a stepper tries to commit after the
	// runner's state moved on without it.
	ErrStaleStepper = errors.New("stepper is stale")

	// ErrReentrant is returned when an execution method is called from a
	// monitor callback or breakpoint predicate of the same runner.
	ErrReentrant = errors.New("runner is already scanning")

	// ErrInvalidTimeMode is returned for unknown time modes and for a
	// non-positive fixed step.
	ErrInvalidTimeMode = errors.New("invalid time mode")

	// ErrNoProgram is returned by New when the program is nil.
	ErrNoProgram = errors.New("program is required")

	// ErrNoActiveRunner is returned by ReadTag and WriteTag when the context
	// carries no runner.
	ErrNoActiveRunner = errors.New("no active runner in context")
)
