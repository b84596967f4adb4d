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
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics()

	m.RecordAnalysis("ok")
	m.RecordAnalysis("ok")
	m.RecordAnalysis("invalid")
	m.RecordForecast("GRU", false)
	m.RecordForecast("GRU", true)
	m.RecordSkippedRows(3)
	m.RecordSkippedRows(0)
	m.RecordScanRejection()
	m.RecordRequest("/health", "200")
	m.ObserveStage("normalize", time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.analyses.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.analyses.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.forecasts.WithLabelValues("GRU", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.forecasts.WithLabelValues("GRU", "miss")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.skippedRows))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scanRejects))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/health", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.stageDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordAnalysis("ok")
		m.RecordForecast("GRU", true)
		m.RecordSkippedRows(1)
		m.RecordScanRejection()
		m.RecordRequest("/", "200")
		m.ObserveStage("forecast", time.Now())
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.RecordAnalysis("ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `powercast_analyses_total{outcome="ok"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
