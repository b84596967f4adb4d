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
	"time"
)

// app holds the wired components shared by the CLI and the HTTP API
type app struct {
	storage   *Storage
	metrics   *Metrics
	analyzer  *Analyzer
	collector *Collector
	sink      SeriesSink
}

// newApp builds every component from the configuration
func newApp(ctx context.Context, config *Config, logger *Logger) (*app, error) {
	logger.Info("Initializing storage", "path", config.StoragePath)
	storage, err := NewStorage(config.StoragePath, logger)
	if err != nil {
		return nil, err
	}

	seed := config.Forecast.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	forecaster := NewForecaster(config.ProfileSet(), NewRandomSource(seed))

	metrics := NewMetrics()
	analyzer := NewAnalyzer(forecaster, storage.Cache(), metrics, logger)

	parser := NewParser(logger)
	scanner := NewContentScanner(config.Server.MaxUploadBytes)
	client := NewSourceClient(config.Source, config.Server.MaxUploadBytes, parser, scanner, logger)

	var sink SeriesSink
	if config.Influx.Enabled() {
		influx, err := NewInfluxSink(ctx, config.Influx, logger)
		if err != nil {
			// Export is optional; analysis still works without it
			logger.Warn("InfluxDB export disabled", "error", err)
		} else {
			sink = influx
		}
	}

	return &app{
		storage:   storage,
		metrics:   metrics,
		analyzer:  analyzer,
		collector: NewCollector(parser, scanner, client, analyzer, storage, sink, metrics, logger),
		sink:      sink,
	}, nil
}

// Close releases external connections
func (a *app) Close() {
	if a.sink != nil {
		a.sink.Close()
	}
}
