// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scan

import (
	"strings"

	"github.com/AleutianAI/laddersim/services/ladder/state"
)

// Engine-private memory keys all start with PrivatePrefix. A stop→run
// transition drops every key carrying it.
const (
	PrivatePrefix = "_"

	// DtKey holds the float64 seconds consumed by the current scan.
	DtKey = "_dt"

	prevPrefix = "_prev:"
)

// PrevKey returns the memory key holding a tag's value at the end of the
// previous scan.
func PrevKey(name string) string { return prevPrefix + name }

// IsPrivateKey reports whether a memory key belongs to the engine.
func IsPrivateKey(key string) bool { return strings.HasPrefix(key, PrivatePrefix) }

// Dt returns the scan delta recorded under DtKey, or 0.
func (tx *Transaction) Dt() float64 {
	if f, ok := tx.GetMemory(DtKey, 0.0).(float64); ok {
		return f
	}
	return 0
}

// Previous returns a tag's value at the end of the previous scan.
//
// Outputs:
//   - state.Value: The shadow value.
//   - bool: False on the first scan a tag is seen.
func (tx *Transaction) Previous(name string) (state.Value, bool) {
	raw, ok := tx.LookupMemory(PrevKey(name))
	if !ok {
		return state.Value{}, false
	}
	v, ok := raw.(state.Value)
	return v, ok
}
