// Copyright 2025 Matthew Gall <me@matthewgall.dev>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
)

// stringList collects a repeatable string flag
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

func main() {
	// Define command-line flags
	var inputs, urls stringList
	flag.Var(&inputs, "input", "Consumption file to analyze (.csv, .txt, .xlsx, .xlsm); repeatable")
	flag.Var(&urls, "url", "URL of a consumption file to analyze; repeatable")
	configPath := flag.String("config", defaultConfigFile, "Path to configuration file")
	profile := flag.String("profile", "", "Forecast profile (overrides config; \"none\" disables forecasting)")
	months := flag.Int("months", 0, "Number of months to forecast (overrides config)")
	year := flag.Int("year", 0, "Year for the monthly breakdown and report tables")
	outputPath := flag.String("output", "", "Output file for report (default: stdout)")
	htmlOutput := flag.Bool("html", false, "Generate HTML report instead of Markdown")
	serveAddr := flag.String("serve", "", "Serve the HTTP API on this address instead of writing reports")
	debug := flag.Bool("debug", false, "Enable debug logging")
	jsonLogs := flag.Bool("json-logs", false, "Emit logs as JSON")
	showVersion := flag.Bool("version", false, "Show version and exit")

	flag.Parse()

	// Show version and exit
	if *showVersion {
		fmt.Printf("powercast %s\n", GetVersion())
		os.Exit(0)
	}

	logger := newCLILogger(*debug, *jsonLogs)
	logger.Info("Starting powercast", "version", GetVersion())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Check for updates (non-blocking)
	go CheckForUpdates(ctx, logger)

	// Load configuration
	logger.Info("Loading configuration", "config_file", *configPath)
	config, err := LoadConfig(*configPath)
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Override with command-line flags
	if *profile != "" {
		config.Forecast.Profile = *profile
	}
	if *months > 0 {
		config.Forecast.Months = *months
	}
	if *serveAddr != "" {
		config.Server.Addr = *serveAddr
	}
	if *debug || *jsonLogs {
		config.Debug = config.Debug || *debug
		config.JSONLogs = config.JSONLogs || *jsonLogs
	}
	// Recreate logger with the effective settings
	logger = newCLILogger(config.Debug, config.JSONLogs)

	forecastProfile := config.Forecast.Profile
	if strings.EqualFold(forecastProfile, "none") {
		forecastProfile = ""
		config.Forecast.Profile = ""
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Configuration loaded successfully")

	app, err := newApp(ctx, config, logger)
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if *serveAddr != "" {
		server := NewServer(config.Server, app.collector, app.analyzer, app.storage, app.metrics, logger)
		if err := server.ListenAndServe(ctx); err != nil {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
		return
	}

	sources := make([]InputSource, 0, len(inputs)+len(urls)+1)
	for _, path := range inputs {
		sources = append(sources, InputSource{Path: path})
	}
	for _, u := range urls {
		sources = append(sources, InputSource{URL: u, FallbackURL: config.Source.FallbackURL})
	}
	if len(sources) == 0 && config.Source.URL != "" {
		sources = append(sources, InputSource{URL: config.Source.URL, FallbackURL: config.Source.FallbackURL})
	}
	if len(sources) == 0 {
		logger.Error("No input given; use -input, -url, source.url in the config, or -serve")
		flag.Usage()
		os.Exit(2)
	}

	opts := AnalysisOptions{
		Profile: forecastProfile,
		Months:  config.Forecast.Months,
		Year:    *year,
		Charts:  *htmlOutput,
	}

	logger.Info("Analyzing inputs", "count", len(sources), "profile", opts.Profile, "months", opts.Months)
	results, err := app.collector.CollectAll(ctx, sources, opts)
	if err != nil {
		logger.Error("Collection aborted", "error", err)
		os.Exit(1)
	}

	failed := 0
	for i, collected := range results {
		if collected.Err != nil {
			failed++
			reportInputError(logger, collected)
			continue
		}

		output := reportPath(*outputPath, i, len(results), collected.Source)
		if err := writeReport(logger, collected.Result, output, *htmlOutput, ReportOptions{Year: *year}); err != nil {
			logger.Error("Failed to generate report", "source", collected.Source.String(), "error", err)
			failed++
		}
	}

	if failed > 0 {
		logger.Error("Some inputs failed", "failed", failed, "total", len(results))
		os.Exit(1)
	}

	logger.Info("Analysis completed successfully")
}

func newCLILogger(debug, jsonLogs bool) *Logger {
	if jsonLogs {
		return NewJSONLogger(debug)
	}
	return NewLogger(debug)
}

// reportInputError explains a failed input, listing validation findings when present
func reportInputError(logger *Logger, collected CollectedResult) {
	logger.Error("Failed to analyze input", "source", collected.Source.String(), "error", collected.Err)

	var validationErr *ValidationFailedError
	if errors.As(collected.Err, &validationErr) {
		for _, line := range validationErr.Report.Lines() {
			logger.UserMessage("  - %s", line)
		}
	}
}

// reportPath derives one output file per input when several inputs share -output
func reportPath(output string, index, total int, source InputSource) string {
	if output == "" || total == 1 {
		return output
	}
	ext := filepath.Ext(output)
	base := strings.TrimSuffix(output, ext)
	name := strings.TrimSuffix(filepath.Base(source.String()), filepath.Ext(source.String()))
	return fmt.Sprintf("%s-%d-%s%s", base, index+1, name, ext)
}

func writeReport(logger *Logger, result *AnalysisResult, output string, html bool, opts ReportOptions) error {
	if html {
		return NewHTMLReporter(logger).GenerateHTMLReport(result, output, opts)
	}
	return NewReporter(logger).GenerateReport(result, output, opts)
}
