// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command laddersim runs ladder-logic programs through the scan-cycle
// simulator.
//
// Usage:
//
//	laddersim programs
//	laddersim run --program motor --cycles 50
//	laddersim run --program traffic --seconds 8 --watch Phase --format json
//	laddersim step --program blink --scans 2
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// rootFlags are the persistent flags shared by every subcommand.
type rootFlags struct {
	configPath    string
	logLevel      string
	logJSON       bool
	logDir        string
	format        string
	traceExporter string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:   "laddersim",
		Short: "Simulate ladder-logic programs scan by scan",
		Long: `laddersim executes ladder-logic programs the way a PLC does:
read inputs, evaluate every rung in order, commit outputs. Each scan
produces an immutable snapshot that can be inspected, replayed or exported.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "runner configuration file (YAML)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level override: debug, info, warn, error")
	pf.BoolVar(&flags.logJSON, "log-json", false, "log as JSON")
	pf.StringVar(&flags.logDir, "log-dir", "", "also write JSON logs to this directory")
	pf.StringVarP(&flags.format, "format", "o", "auto", "output format: auto, rich, plain, json")
	pf.StringVar(&flags.traceExporter, "trace-exporter", "", "trace exporter override: none, stdout, otlp")

	rootCmd.AddCommand(
		newProgramsCmd(flags),
		newRunCmd(flags),
		newStepCmd(flags),
	)
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}
