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
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with domain-specific methods
type Logger struct {
	*slog.Logger
}

// NewLogger creates a text-formatted logger
func NewLogger(debug bool) *Logger {
	return newLogger(os.Stderr, debug, false)
}

// NewJSONLogger creates a JSON-formatted logger
func NewJSONLogger(debug bool) *Logger {
	return newLogger(os.Stderr, debug, true)
}

// NewDiscardLogger creates a logger that drops everything, for tests
func NewDiscardLogger() *Logger {
	return newLogger(io.Discard, false, false)
}

func newLogger(w io.Writer, debug, jsonFormat bool) *Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if jsonFormat {
		handler = slog.NewJSONHandler(w, opts)
	}
	return &Logger{slog.New(handler)}
}

// WithComponent adds a component field to the logger
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{l.With("component", component)}
}

// WithDataset adds the dataset name and id to the logger
func (l *Logger) WithDataset(name, id string) *Logger {
	return &Logger{l.With("dataset", name, "dataset_id", id)}
}

// LogPipelineStage logs pipeline stage completion
func (l *Logger) LogPipelineStage(stage string, records int) {
	l.Info("Pipeline stage completed",
		"stage", stage,
		"records", records,
	)
}

// LogSkippedRow logs an upload row that could not be parsed
func (l *Logger) LogSkippedRow(file string, line int, reason, value string) {
	l.Debug("Skipping row",
		"file", file,
		"line", line,
		"reason", reason,
		"value", value,
	)
}

// LogValidationFinding logs a single validation finding at a matching level
func (l *Logger) LogValidationFinding(f Finding) {
	switch f.Level {
	case FindingInvalid:
		l.Warn("Validation failed", "finding", f.Message)
	case FindingWarn:
		l.Warn("Validation warning", "finding", f.Message)
	default:
		l.Debug("Validation check", "finding", f.Message)
	}
}

// LogForecast logs a generated forecast
func (l *Logger) LogForecast(profile string, months int, cached bool) {
	l.Info("Forecast ready",
		"profile", profile,
		"months", months,
		"cached", cached,
	)
}

// LogSourceRequest logs a remote dataset request
func (l *Logger) LogSourceRequest(url string, attempt int) {
	l.Debug("Source request",
		"url", url,
		"attempt", attempt,
	)
}

// LogStorageOperation logs storage operations
func (l *Logger) LogStorageOperation(operation, path string) {
	l.Debug("Storage operation",
		"operation", operation,
		"path", path,
	)
}

// UserMessage outputs a message directly to stdout (bypassing structured logging)
func (l *Logger) UserMessage(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
}
