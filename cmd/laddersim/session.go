// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/laddersim/pkg/logging"
	"github.com/AleutianAI/laddersim/pkg/ux"
	"github.com/AleutianAI/laddersim/services/ladder/archive"
	"github.com/AleutianAI/laddersim/services/ladder/config"
	"github.com/AleutianAI/laddersim/services/ladder/runner"
	"github.com/AleutianAI/laddersim/services/ladder/telemetry"
)

// session holds the per-command resources around a Runner.
type session struct {
	cfg      *config.Config
	logger   *logging.Logger
	printer  *ux.Printer
	archive  *archive.Store
	registry *prometheus.Registry
	metrics  *runner.Metrics
	shutdown func(context.Context) error
}

// openSession loads configuration and starts logging, tracing and the
// archive. The caller must Close the session.
func openSession(cmd *cobra.Command, flags *rootFlags) (*session, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	format, err := ux.ParseFormat(flags.format)
	if err != nil {
		return nil, err
	}
	if flags.format == "auto" || flags.format == "" {
		format = ux.DetectFormat(cmd.OutOrStdout())
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Config{
		Level:   level,
		Service: "laddersim",
		JSON:    cfg.Log.JSON,
		Output:  cmd.ErrOrStderr(),
		LogDir:  flags.logDir,
	})
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, logger: logger, printer: ux.NewPrinter(cmd.OutOrStdout(), format)}

	tcfg := telemetry.DefaultConfig()
	tcfg.TraceExporter = cfg.Telemetry.TraceExporter
	if cfg.Telemetry.OTLPEndpoint != "" {
		tcfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	}
	tcfg.Output = cmd.ErrOrStderr()
	s.shutdown, err = telemetry.Init(cmd.Context(), tcfg)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	s.archive, err = cfg.OpenArchive(logger.Slog())
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("open archive: %w", err)
	}

	s.registry = prometheus.NewRegistry()
	s.metrics = runner.NewMetrics(s.registry)
	return s, nil
}

func loadConfig(flags *rootFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.Load(flags.configPath)
	} else {
		cfg, err = config.Default()
	}
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if flags.logJSON {
		cfg.Log.JSON = true
	}
	if flags.traceExporter != "" {
		cfg.Telemetry.TraceExporter = flags.traceExporter
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newRunner builds a Runner for d with the session's configuration.
func (s *session) newRunner(d demo) (*runner.Runner, error) {
	opts, err := s.cfg.RunnerOptions()
	if err != nil {
		return nil, err
	}
	opts = append(opts,
		runner.WithLogger(s.logger.Slog()),
		runner.WithMetrics(s.metrics),
	)
	if s.archive != nil {
		opts = append(opts, runner.WithArchive(s.archive))
	}
	return runner.New(d.build(), opts...)
}

// Close releases every resource the session opened.
func (s *session) Close() error {
	var errs []error
	if s.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
	}
	if s.archive != nil {
		if err := s.archive.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close archive: %w", err))
		}
	}
	if s.logger != nil {
		if err := s.logger.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// scansTotal reads the scan counter from the session registry.
func (s *session) scansTotal() float64 {
	families, err := s.registry.Gather()
	if err != nil {
		return 0
	}
	for _, mf := range families {
		if mf.GetName() == "laddersim_runner_scans_total" {
			total := 0.0
			for _, m := range mf.GetMetric() {
				total += m.GetCounter().GetValue()
			}
			return total
		}
	}
	return 0
}
