// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package state holds the immutable controller state of the ladder engine.
//
// # Architecture Overview
//
// A Snapshot is one instant of a simulated controller. Every committed scan
// produces a new Snapshot; nothing ever mutates an existing one.
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                    Snapshot (immutable)                      │
//	│                                                              │
//	│   scan_id ─ timestamp                                        │
//	│   ┌───────────────────────┐   ┌───────────────────────────┐  │
//	│   │ tags   (SortedMap)    │   │ memory (HAMT Map)         │  │
//	│   │ name -> Value         │   │ "_prev:<tag>", "_dt", ... │  │
//	│   └───────────────────────┘   └───────────────────────────┘  │
//	└──────────────────────────────────────────────────────────────┘
//
// Both maps are persistent (structurally shared) maps from
// github.com/benbjohnson/immutable. WithTags leaves the memory map object
// untouched and WithMemory leaves the tag map object untouched, so callers can
// rely on pointer identity of the untouched side.
//
// # Values and Tags
//
// Value is a small tagged union over bool, int64, float64 and string. A Tag is
// an immutable descriptor (name, kind, retentive flag, default) and never
// stores data itself; storage lives in Snapshot.
//
// Registry records every declared Tag and rejects re-declaration with
// conflicting metadata. Slots let a configuration mark a tag retentive or
// override its default without touching the program that declared it.
//
// # Thread Safety
//
// Snapshot and Value are immutable and safe for concurrent use. Registry is
// safe for concurrent use.
package state
