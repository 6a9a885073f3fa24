// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// restoreProvider puts the global tracer provider back after a test.
func restoreProvider(t *testing.T) {
	t.Helper()
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
}

func TestInit_NilContext(t *testing.T) {
	//nolint:staticcheck // nil context is the case under test
	_, err := Init(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestInit_None(t *testing.T) {
	shutdown, err := Init(context.Background(), DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_UnknownExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "zipkin"
	_, err := Init(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrUnknownExporter)
}

func TestInit_StdoutExportsSpans(t *testing.T) {
	restoreProvider(t)
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.TraceExporter = ExporterStdout
	cfg.Output = &buf

	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)

	ctx, span := StartSpan(context.Background(), "test", "Runner.Step")
	assert.NotEmpty(t, TraceID(ctx))
	EndSpan(span, nil)

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "Runner.Step")
	assert.Contains(t, buf.String(), "laddersim")
}

func TestEndSpan_Status(t *testing.T) {
	restoreProvider(t)
	rec := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))

	_, ok := StartSpan(context.Background(), "test", "ok")
	EndSpan(ok, nil)
	_, failed := StartSpan(context.Background(), "test", "failed")
	EndSpan(failed, errors.New("boom"))

	ended := rec.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, codes.Ok, ended[0].Status().Code)
	assert.Equal(t, codes.Error, ended[1].Status().Code)
	assert.Equal(t, "boom", ended[1].Status().Description)
	require.Len(t, ended[1].Events(), 1)

	assert.Empty(t, TraceID(context.Background()))
	assert.NotPanics(t, func() { RecordError(nil, errors.New("x")) })
}
