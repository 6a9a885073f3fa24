// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads runner configuration from YAML.
//
// Configuration starts from embedded defaults; a file passed to Load
// overrides them field by field. The result is validated with struct tags
// and converted into runner options.
//
// Thread Safety:
//
//	A loaded Config is not modified by this package and may be shared.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/laddersim/services/ladder/archive"
	"github.com/AleutianAI/laddersim/services/ladder/runner"
	"github.com/AleutianAI/laddersim/services/ladder/state"
)

// =============================================================================
// Constants (file size limits)
// =============================================================================

// MaxFileSize is the maximum accepted configuration file size (1MB).
const MaxFileSize = 1024 * 1024

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// =============================================================================
// Embedded defaults
// =============================================================================

//go:embed defaults.yaml
var defaultYAML []byte

var validate = validator.New()

// =============================================================================
// Types
// =============================================================================

// Config is the root of a runner configuration file.
type Config struct {
	TimeMode       string                `yaml:"time_mode" validate:"oneof=fixed_step realtime"`
	Dt             float64               `yaml:"dt" validate:"gt=0"`
	HistoryLimit   int                   `yaml:"history_limit" validate:"gte=1,lte=1000000"`
	BatteryPresent bool                  `yaml:"battery_present"`
	Archive        ArchiveConfig         `yaml:"archive"`
	Log            LogConfig             `yaml:"log"`
	Telemetry      TelemetryConfig       `yaml:"telemetry"`
	Tags           []TagConfig           `yaml:"tags" validate:"max=10000,dive"`
	Slots          map[string]SlotConfig `yaml:"slots" validate:"dive,keys,required,endkeys"`
}

// ArchiveConfig controls the evicted-history archive.
type ArchiveConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxEntries int  `yaml:"max_entries" validate:"gte=0"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
}

// TelemetryConfig controls tracing export.
type TelemetryConfig struct {
	TraceExporter string `yaml:"trace_exporter" validate:"oneof=none stdout otlp"`
	OTLPEndpoint  string `yaml:"otlp_endpoint" validate:"required_if=TraceExporter otlp"`
}

// TagConfig declares one tag.
type TagConfig struct {
	Name      string `yaml:"name" validate:"required,max=256"`
	Kind      string `yaml:"kind" validate:"oneof=bool boolean int integer real float text string"`
	Retentive bool   `yaml:"retentive"`
	Default   any    `yaml:"default"`
}

// SlotConfig overlays retentive and default settings onto a tag name.
type SlotConfig struct {
	Retentive bool `yaml:"retentive"`
	Default   any  `yaml:"default"`
}

// =============================================================================
// Loading
// =============================================================================

// Default returns the embedded default configuration.
func Default() (*Config, error) {
	return Parse(nil)
}

// Parse overlays data onto the embedded defaults and validates the result.
//
// Inputs:
//
//	data - YAML document. Empty or nil yields the defaults.
//
// Outputs:
//
//	*Config - The validated configuration.
//	error - YAML syntax errors or ErrInvalidConfig.
func Parse(data []byte) (*Config, error) {
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("%w: document is %d bytes, limit %d", ErrInvalidConfig, len(data), MaxFileSize)
	}
	var cfg Config
	if err := yaml.Unmarshal(defaultYAML, &cfg); err != nil {
		return nil, fmt.Errorf("parse embedded defaults: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse configuration: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads, parses and validates the configuration file at path.
//
// Outputs:
//
//	*Config - The validated configuration.
//	error - I/O errors, files over MaxFileSize, YAML errors or
//	        ErrInvalidConfig.
func Load(path string) (*Config, error) {
	clean := filepath.Clean(path)
	info, err := os.Stat(clean)
	if err != nil {
		return nil, fmt.Errorf("stat config %s: %w", clean, err)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrInvalidConfig, clean, info.Size(), MaxFileSize)
	}
	data, err := os.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", clean, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", clean, err)
	}
	return cfg, nil
}

// =============================================================================
// Validation and conversion
// =============================================================================

// Validate checks struct tags and tag declarations.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.declaredTags(); err != nil {
		return err
	}
	if _, err := c.slots(); err != nil {
		return err
	}
	return nil
}

// declaredTags converts the tag list and checks for conflicts.
func (c *Config) declaredTags() ([]state.Tag, error) {
	reg := state.NewRegistry()
	tags := make([]state.Tag, 0, len(c.Tags))
	for i, tc := range c.Tags {
		kind, err := state.ParseKind(tc.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: tags[%d]: %w", ErrInvalidConfig, i, err)
		}
		var opts []state.TagOption
		if tc.Retentive {
			opts = append(opts, state.Retentive())
		}
		if tc.Default != nil {
			def, err := typedValue(tc.Default, kind)
			if err != nil {
				return nil, fmt.Errorf("%w: tags[%d] %s default: %w", ErrInvalidConfig, i, tc.Name, err)
			}
			opts = append(opts, state.WithDefault(def))
		}
		t := state.NewTag(tc.Name, kind, opts...)
		if err := reg.Register(t); err != nil {
			return nil, fmt.Errorf("%w: tags[%d]: %w", ErrInvalidConfig, i, err)
		}
		tags = append(tags, t)
	}
	return tags, nil
}

// slots converts slot overlays. Slot defaults keep their YAML kind; the
// registry coerces them to the declared kind.
func (c *Config) slots() (map[string]state.Slot, error) {
	names := make([]string, 0, len(c.Slots))
	for n := range c.Slots {
		names = append(names, n)
	}
	sort.Strings(names)

	out := make(map[string]state.Slot, len(c.Slots))
	for _, name := range names {
		sc := c.Slots[name]
		slot := state.Slot{Retentive: sc.Retentive}
		if sc.Default != nil {
			v, err := state.Of(sc.Default)
			if err != nil {
				return nil, fmt.Errorf("%w: slots.%s default: %w", ErrInvalidConfig, name, err)
			}
			slot.Default = v
		}
		out[name] = slot
	}
	return out, nil
}

func typedValue(raw any, kind state.Kind) (state.Value, error) {
	v, err := state.Of(raw)
	if err != nil {
		return state.Value{}, err
	}
	return v.Coerce(kind)
}

// LogLevel returns the configured slog level.
func (c *Config) LogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// RunnerOptions converts the configuration into runner options.
//
// Description:
//
//	Covers time mode, history limit, battery, tags and slots. Resources
//	that need closing (the archive) and process-level collaborators
//	(logger, metrics) are added by the caller; see OpenArchive.
func (c *Config) RunnerOptions() ([]runner.Option, error) {
	mode, err := runner.ParseTimeMode(c.TimeMode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	tags, err := c.declaredTags()
	if err != nil {
		return nil, err
	}
	slots, err := c.slots()
	if err != nil {
		return nil, err
	}
	return []runner.Option{
		runner.WithTimeMode(mode, c.Dt),
		runner.WithHistoryLimit(c.HistoryLimit),
		runner.WithBattery(c.BatteryPresent),
		runner.WithTags(tags...),
		runner.WithSlots(slots),
	}, nil
}

// OpenArchive opens the evicted-history archive when enabled.
//
// Outputs:
//
//	*archive.Store - The archive, or nil when disabled. Caller must Close it.
//	error - Non-nil if BadgerDB cannot be opened.
func (c *Config) OpenArchive(logger *slog.Logger) (*archive.Store, error) {
	if !c.Archive.Enabled {
		return nil, nil
	}
	return archive.Open(archive.Config{MaxEntries: c.Archive.MaxEntries, Logger: logger})
}
