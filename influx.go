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
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Series kinds written as the "kind" tag
const (
	kindObserved     = "observed"
	kindInterpolated = "interpolated"
	kindForecast     = "forecast"
)

// SeriesSink receives the processed series of every analysis
type SeriesSink interface {
	WriteSeries(ctx context.Context, result *AnalysisResult) error
	Close()
}

// InfluxSink writes processed series to an InfluxDB v2 bucket
type InfluxSink struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPIBlocking
	measurement string
	logger      *Logger
}

// NewInfluxSink initializes the InfluxDB client and verifies connectivity
func NewInfluxSink(ctx context.Context, cfg InfluxConfig, logger *Logger) (*InfluxSink, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	// Verify credentials and reachability before accepting uploads
	if _, err := client.Health(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}

	measurement := cfg.Measurement
	if measurement == "" {
		measurement = "consumption_monthly"
	}

	logger = logger.WithComponent("influx")
	logger.Info("Connected to InfluxDB", "url", cfg.URL, "bucket", cfg.Bucket)

	return &InfluxSink{
		client:      client,
		writeAPI:    client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		measurement: measurement,
		logger:      logger,
	}, nil
}

// WriteSeries writes the combined historical and forecast series
func (s *InfluxSink) WriteSeries(ctx context.Context, result *AnalysisResult) error {
	points := seriesPoints(s.measurement, result)
	if len(points) == 0 {
		return nil
	}

	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("failed to write %d points: %w", len(points), err)
	}

	s.logger.Debug("Wrote series", "dataset", result.Dataset, "points", len(points))
	return nil
}

// Close closes the InfluxDB client
func (s *InfluxSink) Close() {
	s.client.Close()
}

// seriesPoints converts an analysis into one point per month
func seriesPoints(measurement string, result *AnalysisResult) []*write.Point {
	combined := result.Combined()
	points := make([]*write.Point, 0, len(combined))

	for _, r := range combined {
		point := write.NewPoint(
			measurement,
			map[string]string{
				"dataset": result.Dataset,
				"profile": result.Profile,
				"kind":    recordKind(r),
			},
			map[string]interface{}{
				"consumption_kwh": r.Consumption,
			},
			r.Date,
		)
		points = append(points, point)
	}

	return points
}

func recordKind(r ConsumptionRecord) string {
	switch {
	case r.IsPrediction:
		return kindForecast
	case r.IsInterpolated:
		return kindInterpolated
	default:
		return kindObserved
	}
}
