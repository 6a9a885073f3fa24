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
	"context"
	"fmt"

	"github.com/AleutianAI/laddersim/services/ladder/state"
)

// activeKey is the context key of the active runner.
type activeKey struct{}

// Bind returns a context whose active runner is r. An inner Bind shadows an
// outer one for the derived context only.
func Bind(ctx context.Context, r *Runner) context.Context {
	return context.WithValue(ctx, activeKey{}, r)
}

// FromContext returns the active runner of ctx.
func FromContext(ctx context.Context) (*Runner, bool) {
	r, ok := ctx.Value(activeKey{}).(*Runner)
	return r, ok && r != nil
}

// Use runs fn with r as the active runner.
//
// Description:
//
//	The binding exists only in the context handed to fn, so it ends on
//	every exit path, including panics, and the caller's context keeps
//	whatever runner it had.
func Use(ctx context.Context, r *Runner, fn func(ctx context.Context) error) error {
	return fn(Bind(ctx, r))
}

// ReadTag returns a tag's current value from the active runner.
//
// Outputs:
//
//	state.Value - The value, or the declared default.
//	error - ErrNoActiveRunner, or ErrInvalidKey when the tag is unknown.
func ReadTag(ctx context.Context, name string) (state.Value, error) {
	r, ok := FromContext(ctx)
	if !ok {
		return state.Value{}, ErrNoActiveRunner
	}
	v, ok := r.Value(name)
	if !ok {
		return state.Value{}, fmt.Errorf("%w: unknown tag %s", ErrInvalidKey, name)
	}
	return v, nil
}

// WriteTag patches a tag on the active runner for its next scan.
func WriteTag(ctx context.Context, key, value any) error {
	r, ok := FromContext(ctx)
	if !ok {
		return ErrNoActiveRunner
	}
	return r.Patch(map[any]any{key: value})
}
