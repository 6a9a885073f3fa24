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
	"errors"

	"github.com/AleutianAI/laddersim/services/ladder/state"
)

var (
	// ErrPrecedence is returned when a composite condition receives an
	// operand that is neither a Condition nor a boolean tag. This is almost
	// always a comparison that bound to the wrong operand.
	ErrPrecedence = errors.New("operand is not a condition (check grouping of comparisons)")

	// ErrDivideByZero is returned by division and modulo with a zero divisor.
	ErrDivideByZero = errors.New("divide by zero")

	// ErrTypeMismatch is returned when operands cannot be combined. It is the
	// same sentinel as state.ErrTypeMismatch.
	ErrTypeMismatch = state.ErrTypeMismatch

	// ErrUnknownFunction is returned for an unsupported expression function.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrIndexOutOfRange is returned when an indirect reference addresses
	// outside its bank.
	ErrIndexOutOfRange = errors.New("indirect index out of range")

	// ErrUnknownSubroutine is returned when Call names no subroutine.
	ErrUnknownSubroutine = errors.New("unknown subroutine")

	// ErrCallDepth is returned when subroutine calls nest too deeply.
	ErrCallDepth = errors.New("subroutine call depth exceeded")

	// ErrLoopBound is returned when a loop count is negative or too large.
	ErrLoopBound = errors.New("loop count out of bounds")

	// ErrInvalidInstruction is returned by Program.Validate for malformed
	// instructions.
	ErrInvalidInstruction = errors.New("invalid instruction")
)
