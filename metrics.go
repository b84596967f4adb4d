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
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the pipeline and the API.
// Each instance owns its registry so tests can create as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	analyses      *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	forecasts     *prometheus.CounterVec
	skippedRows   prometheus.Counter
	scanRejects   prometheus.Counter
	httpRequests  *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		analyses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "powercast_analyses_total",
			Help: "Analyses run, by outcome.",
		}, []string{"outcome"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "powercast_stage_duration_seconds",
			Help:    "Duration of each pipeline stage.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"stage"}),
		forecasts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "powercast_forecasts_total",
			Help: "Forecasts produced, by profile and cache result.",
		}, []string{"profile", "cache"}),
		skippedRows: factory.NewCounter(prometheus.CounterOpts{
			Name: "powercast_skipped_rows_total",
			Help: "Upload rows skipped because they could not be parsed.",
		}),
		scanRejects: factory.NewCounter(prometheus.CounterOpts{
			Name: "powercast_scan_rejections_total",
			Help: "Uploads rejected by the security scan.",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "powercast_http_requests_total",
			Help: "HTTP requests, by route and status code.",
		}, []string{"route", "status"}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveStage records how long a pipeline stage took
func (m *Metrics) ObserveStage(stage string, started time.Time) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

// RecordAnalysis counts an analysis by outcome (ok, invalid, empty, error)
func (m *Metrics) RecordAnalysis(outcome string) {
	if m == nil {
		return
	}
	m.analyses.WithLabelValues(outcome).Inc()
}

// RecordForecast counts a forecast and whether it came from the cache
func (m *Metrics) RecordForecast(profile string, cached bool) {
	if m == nil {
		return
	}
	result := "miss"
	if cached {
		result = "hit"
	}
	m.forecasts.WithLabelValues(profile, result).Inc()
}

// RecordSkippedRows adds to the skipped row counter
func (m *Metrics) RecordSkippedRows(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.skippedRows.Add(float64(n))
}

// RecordScanRejection counts an upload rejected by the scanner
func (m *Metrics) RecordScanRejection() {
	if m == nil {
		return
	}
	m.scanRejects.Inc()
}

// RecordRequest counts a served HTTP request
func (m *Metrics) RecordRequest(route, status string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, status).Inc()
}
