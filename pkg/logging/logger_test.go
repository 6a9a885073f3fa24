// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{" warning ", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnknownLevel) {
				t.Errorf("ParseLevel(%q) error = %v, want ErrUnknownLevel", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Logger Tests
// =============================================================================

func TestNew_WritesToOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Output: &buf, Service: "laddersim"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer logger.Close()

	logger.Info("scan committed", "scan_id", 3)
	out := buf.String()
	for _, want := range []string{"scan committed", "scan_id=3", "service=laddersim"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Output: &buf, JSON: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Warn("force added", "tag", "Motor")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if rec["msg"] != "force added" || rec["tag"] != "Motor" || rec["level"] != "WARN" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Output: &buf, Level: LevelWarn})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")

	out := buf.String()
	if strings.Contains(out, "msg=debug") || strings.Contains(out, "msg=info") {
		t.Errorf("records below Warn leaked: %q", out)
	}
	if !strings.Contains(out, "msg=warn") || !strings.Contains(out, "msg=error") {
		t.Errorf("records at or above Warn missing: %q", out)
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	child := logger.With("component", "runner")
	child.Info("child")
	logger.Info("parent")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if !strings.Contains(lines[0], "component=runner") {
		t.Errorf("child line missing attribute: %q", lines[0])
	}
	if strings.Contains(lines[1], "component=runner") {
		t.Errorf("parent line gained child attribute: %q", lines[1])
	}
	if child.Slog() == logger.Slog() {
		t.Error("With() should return a distinct slog.Logger")
	}
}

func TestNew_WithLogDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var buf bytes.Buffer
	logger, err := New(Config{Output: &buf, Service: "sim", LogDir: dir})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Info("to both")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "sim_*.log"))
	if len(matches) != 1 {
		t.Fatalf("found %d log files, want 1", len(matches))
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"to both"`) {
		t.Errorf("file log missing JSON record: %q", data)
	}
	if !strings.Contains(buf.String(), "to both") {
		t.Errorf("primary output missing record: %q", buf.String())
	}
}

func TestNew_WithLogDir_InvalidPath(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := New(Config{LogDir: filepath.Join(file, "sub")}); err == nil {
		t.Error("New() with a log dir under a file should fail")
	}
}

func TestNew_Quiet(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Output: &buf, Quiet: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Error("dropped")
	if buf.Len() != 0 {
		t.Errorf("quiet logger wrote %q", buf.String())
	}
}

func TestDefault(t *testing.T) {
	logger := Default()
	if logger == nil || logger.Slog() == nil {
		t.Fatal("Default() returned an unusable logger")
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestLogger_ConcurrentUse(t *testing.T) {
	var mu sync.Mutex
	var buf bytes.Buffer
	logger, err := New(Config{Output: &lockedWriter{mu: &mu, w: &buf}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			logger.With("worker", i).Info("tick")
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if got := strings.Count(buf.String(), "msg=tick"); got != 8 {
		t.Errorf("got %d records, want 8", got)
	}
}

type lockedWriter struct {
	mu *sync.Mutex
	w  *bytes.Buffer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// =============================================================================
// Multi-Handler Tests
// =============================================================================

func TestMultiHandler(t *testing.T) {
	var debug, warn bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&warn, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}}
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Enabled(Debug) = false, want true")
	}

	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("k", "v")}).WithGroup("g"))
	logger.Info("info", "x", 1)
	logger.Warn("warn", "x", 2)

	if !strings.Contains(debug.String(), "msg=info") || !strings.Contains(debug.String(), "msg=warn") {
		t.Errorf("debug handler missing records: %q", debug.String())
	}
	if strings.Contains(warn.String(), "msg=info") {
		t.Errorf("warn handler received info: %q", warn.String())
	}
	if !strings.Contains(warn.String(), "k=v") || !strings.Contains(warn.String(), "g.x=2") {
		t.Errorf("attrs or group lost: %q", warn.String())
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandPath("~/logs"); got != filepath.Join(home, "logs") {
		t.Errorf("expandPath(~/logs) = %q", got)
	}
	if got := expandPath("/var/log"); got != "/var/log" {
		t.Errorf("expandPath(/var/log) = %q", got)
	}
}
