// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/laddersim/services/ladder/logic"
	"github.com/AleutianAI/laddersim/services/ladder/runner"
	"github.com/AleutianAI/laddersim/services/ladder/state"
)

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)
	assert.Equal(t, "fixed_step", cfg.TimeMode)
	assert.Equal(t, 0.1, cfg.Dt)
	assert.Equal(t, 1000, cfg.HistoryLimit)
	assert.True(t, cfg.BatteryPresent)
	assert.False(t, cfg.Archive.Enabled)
	assert.Equal(t, "none", cfg.Telemetry.TraceExporter)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel())
}

func TestParse_OverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
dt: 0.01
log:
  level: debug
tags:
  - name: Count
    kind: int
    retentive: true
  - name: Speed
    kind: real
    default: 3
slots:
  Preset:
    default: 42
`))
	require.NoError(t, err)
	assert.Equal(t, 0.01, cfg.Dt)
	assert.Equal(t, "fixed_step", cfg.TimeMode, "unset fields keep defaults")
	assert.Equal(t, 1000, cfg.HistoryLimit)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())
	require.Len(t, cfg.Tags, 2)
	assert.Contains(t, cfg.Slots, "Preset")
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown time mode", "time_mode: warp"},
		{"zero dt", "dt: 0"},
		{"zero history", "history_limit: 0"},
		{"bad log level", "log: {level: loud}"},
		{"otlp without endpoint", "telemetry: {trace_exporter: otlp}"},
		{"unknown kind", "tags: [{name: A, kind: word}]"},
		{"missing name", "tags: [{kind: int}]"},
		{"default of wrong kind", "tags: [{name: A, kind: int, default: abc}]"},
		{"conflicting declarations", "tags: [{name: A, kind: int}, {name: A, kind: bool}]"},
		{"negative archive size", "archive: {max_entries: -1}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	t.Run("conflict keeps the state error", func(t *testing.T) {
		_, err := Parse([]byte("tags: [{name: A, kind: int}, {name: A, kind: bool}]"))
		assert.ErrorIs(t, err, state.ErrTagConflict)
	})

	t.Run("yaml syntax", func(t *testing.T) {
		_, err := Parse([]byte("dt: [unclosed"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("oversized document", func(t *testing.T) {
		_, err := Parse([]byte(strings.Repeat("#", MaxFileSize+1)))
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("reads file", func(t *testing.T) {
		path := filepath.Join(dir, "ok.yaml")
		require.NoError(t, os.WriteFile(path, []byte("time_mode: realtime\n"), 0o600))
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "realtime", cfg.TimeMode)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "absent.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("too large", func(t *testing.T) {
		path := filepath.Join(dir, "big.yaml")
		require.NoError(t, os.WriteFile(path, make([]byte, MaxFileSize+1), 0o600))
		_, err := Load(path)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestRunnerOptions(t *testing.T) {
	cfg, err := Parse([]byte(`
dt: 0.5
battery_present: false
tags:
  - name: Speed
    kind: real
    default: 3
slots:
  Preset:
    retentive: true
    default: 42
`))
	require.NoError(t, err)

	opts, err := cfg.RunnerOptions()
	require.NoError(t, err)
	r, err := runner.New(logic.NewProgram(), opts...)
	require.NoError(t, err)

	mode, dt := r.TimeMode()
	assert.Equal(t, runner.FixedStep, mode)
	assert.Equal(t, 0.5, dt)
	assert.False(t, r.Battery())

	speed, ok := r.Value("Speed")
	require.True(t, ok)
	assert.Equal(t, state.Real(3), speed)
	preset, ok := r.Value("Preset")
	require.True(t, ok)
	assert.Equal(t, int64(42), preset.AsInt())
	assert.True(t, r.Registry().IsRetentive("Preset"))
}

func TestOpenArchive(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)
	store, err := cfg.OpenArchive(nil)
	require.NoError(t, err)
	assert.Nil(t, store)

	cfg.Archive.Enabled = true
	cfg.Archive.MaxEntries = 10
	store, err = cfg.OpenArchive(slog.Default())
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.NoError(t, store.Close())
}
