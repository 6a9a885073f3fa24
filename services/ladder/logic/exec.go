// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logic

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/AleutianAI/laddersim/services/ladder/scan"
)

// MaxCallDepth bounds subroutine nesting, including recursion.
const MaxCallDepth = 32

// Flow tells the caller whether to continue with the next item.
type Flow int

const (
	// FlowContinue proceeds with the next item or rung.
	FlowContinue Flow = iota

	// FlowReturn abandons the rest of the current subroutine.
	FlowReturn
)

// String returns the flow name.
func (f Flow) String() string {
	if f == FlowReturn {
		return "return"
	}
	return "continue"
}

// SubroutineResolver looks up a named subroutine's rungs. Program implements
// it.
type SubroutineResolver interface {
	LookupSubroutine(name string) ([]*Rung, bool)
}

// Exec is the per-scan execution context handed to instructions.
//
// Description:
//
//	Exec pairs the scan's transaction with the subroutine table and tracks
//	call depth. A new Exec is created for every scan.
//
// Thread Safety: Single scan, single goroutine.
type Exec struct {
	// Tx is the scan's transaction. All reads and writes go through it.
	Tx *scan.Transaction

	subs   SubroutineResolver
	logger *slog.Logger
	depth  int
}

// NewExec creates an execution context. subs may be nil when the program has
// no subroutines; logger may be nil to use slog.Default.
func NewExec(tx *scan.Transaction, subs SubroutineResolver, logger *slog.Logger) *Exec {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exec{Tx: tx, subs: subs, logger: logger}
}

// Dt returns the seconds the current scan consumes.
func (ec *Exec) Dt() float64 { return ec.Tx.Dt() }

// Depth returns the current subroutine nesting depth, 0 in the main program.
func (ec *Exec) Depth() int { return ec.depth }

// Logger returns the scan logger.
func (ec *Exec) Logger() *slog.Logger { return ec.logger }

// EvaluateRungs runs rungs in order against ec.
//
// Outputs:
//   - Flow: FlowReturn when a Return instruction ended the list early.
//   - error: The first evaluation error, wrapped with the rung index.
func EvaluateRungs(ec *Exec, rungs []*Rung) (Flow, error) {
	for i, r := range rungs {
		flow, err := r.Evaluate(ec)
		if err != nil {
			return FlowContinue, fmt.Errorf("rung %d: %w", i, err)
		}
		if flow == FlowReturn {
			return FlowReturn, nil
		}
	}
	return FlowContinue, nil
}

// keySerial numbers instruction instances so each owns distinct private
// memory keys.
var keySerial atomic.Uint64

// privateKey returns a fresh engine-private memory key for an instruction.
func privateKey(kind string) string {
	return fmt.Sprintf("%s%s:%d", scan.PrivatePrefix, kind, keySerial.Add(1))
}
