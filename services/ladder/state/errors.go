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

import "errors"

var (
	// ErrTypeMismatch is returned when a value cannot be converted to the
	// kind a tag or operation requires.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrUnsupportedValue is returned when a Go value has no Value form.
	ErrUnsupportedValue = errors.New("unsupported value")

	// ErrTagConflict is returned when a tag name is declared twice with
	// different kind, retentive flag or default.
	ErrTagConflict = errors.New("conflicting tag declaration")

	// ErrInvalidTag is returned for malformed tag descriptors.
	ErrInvalidTag = errors.New("invalid tag")
)
