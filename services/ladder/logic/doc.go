// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logic models ladder programs: conditions, instructions, rungs and
// subroutines, and evaluates them against a scan.Transaction.
//
// # Building Blocks
//
//   - Expr: operands and arithmetic trees (literals, tag refs, indirect refs).
//   - Condition: pure boolean predicates (contacts, edges, comparisons,
//     composites). Conditions never write to the transaction.
//   - Instruction: side-effecting operations (coils, latches, timers,
//     counters, data moves, subroutine calls, loops).
//   - Rung: an AND of conditions guarding instructions and nested branches.
//   - Program: the main rung list plus named subroutines.
//
// All three interfaces are sealed: the set of implementations is fixed by
// this package and evaluated by type, so the engine's behavior is fully
// described here.
//
// # Rung Evaluation
//
// Each nesting level is evaluated in two phases:
//
//	Phase 1 (enable):   rung conditions ──► enabled?
//	                    if enabled, every direct branch's own conditions
//	                    are evaluated BEFORE any instruction runs
//
//	Phase 2 (execute):  items in source order
//	                    enabled  → instructions execute, branches recurse
//	                              with their precomputed enable
//	                    disabled → (a) always-execute instructions run with
//	                                   enabled=false
//	                               (b) coils reset to their defaults
//	                               (c) oneshots re-arm
//	                               (d) every branch gets false handling
//
// Precomputing sibling branch enables keeps one branch's writes from
// changing whether a sibling runs in the same scan.
//
// # Control Flow
//
// Execute returns a Flow alongside its error. FlowReturn stops the remaining
// items and rungs of the current subroutine only; the Call that started it
// converts it back to FlowContinue.
//
// # Thread Safety
//
// Program objects are immutable once built and may be shared between
// runners. Per-scan state lives in the transaction, never on the objects.
package logic
