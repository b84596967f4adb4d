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
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink captures exported results
type recordingSink struct {
	mu      sync.Mutex
	written []string
	err     error
}

func (s *recordingSink) WriteSeries(_ context.Context, result *AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = append(s.written, result.Dataset)
	return s.err
}

func (s *recordingSink) Close() {}

func newTestCollector(t *testing.T, sink SeriesSink) (*Collector, *Storage) {
	t.Helper()
	logger := NewDiscardLogger()
	storage := newTestStorage(t)
	analyzer := newTestAnalyzer(storage.Cache(), nil)
	scanner := NewContentScanner(1 << 20)
	parser := NewParser(logger)
	client := NewSourceClient(SourceConfig{Attempts: 1}, 1<<20, parser, scanner, logger)
	return NewCollector(parser, scanner, client, analyzer, storage, sink, NewMetrics(), logger), storage
}

func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestCollector_CollectAll(t *testing.T) {
	dir := t.TempDir()
	server, _ := flakyServer(t, 0, 0, sampleCSV)
	sink := &recordingSink{}
	collector, storage := newTestCollector(t, sink)

	sources := []InputSource{
		{Path: writeInput(t, dir, "first.csv", sampleCSV)},
		{Path: filepath.Join(dir, "missing.csv")},
		{URL: server.URL + "/remote.csv"},
		{Path: writeInput(t, dir, "invalid.csv", "date,consumption\n2024-01-01,-4\n2024-02-01,5\n")},
		{Path: writeInput(t, dir, "evil.csv", "date,consumption\n2024-01-01,1\neval(1),2\n")},
	}

	results, err := collector.CollectAll(context.Background(), sources, AnalysisOptions{Profile: "GRU", Months: 6})
	require.NoError(t, err)
	require.Len(t, results, len(sources))

	for i, r := range results {
		assert.Equal(t, sources[i], r.Source)
	}

	require.NoError(t, results[0].Err)
	assert.Equal(t, "first.csv", results[0].Result.Dataset)
	assert.Len(t, results[0].Result.Forecast, 6)

	var parseErr *ParseError
	assert.True(t, errors.As(results[1].Err, &parseErr))

	require.NoError(t, results[2].Err)
	assert.Equal(t, "remote.csv", results[2].Result.Dataset)

	var validationErr *ValidationFailedError
	assert.True(t, errors.As(results[3].Err, &validationErr))

	var scanErr *ScanError
	assert.True(t, errors.As(results[4].Err, &scanErr))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.metrics.scanRejects))

	stored, err := storage.ListAnalysisResults()
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	assert.ElementsMatch(t, []string{"first.csv", "remote.csv"}, sink.written)
}

func TestCollector_RemoteSourcesNeedClient(t *testing.T) {
	logger := NewDiscardLogger()
	collector := NewCollector(NewParser(logger), nil, nil, newTestAnalyzer(nil, nil), nil, nil, nil, logger)

	results, err := collector.CollectAll(context.Background(), []InputSource{{URL: "https://example.com/a.csv"}}, AnalysisOptions{})
	require.NoError(t, err)

	var configErr *ConfigError
	assert.True(t, errors.As(results[0].Err, &configErr))
}

func TestCollector_ProcessUpload(t *testing.T) {
	sink := &recordingSink{err: errors.New("influx down")}
	collector, storage := newTestCollector(t, sink)

	result, err := collector.ProcessUpload(context.Background(), "usage.csv", "text/csv", []byte(sampleCSV), AnalysisOptions{})
	require.NoError(t, err, "sink failures do not fail the upload")

	assert.NotEmpty(t, result.ID)
	loaded, err := storage.LoadAnalysisResult(result.ID)
	require.NoError(t, err)
	assert.Equal(t, "usage.csv", loaded.Dataset)
	assert.Equal(t, []string{"usage.csv"}, sink.written)
}

func TestCollector_ProcessUploadParseError(t *testing.T) {
	collector, _ := newTestCollector(t, nil)

	_, err := collector.ProcessUpload(context.Background(), "usage.csv", "text/csv", []byte("when,what\n1,2\n"), AnalysisOptions{})

	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestCollector_ProcessDatasetKeepsID(t *testing.T) {
	collector, _ := newTestCollector(t, nil)
	dataset := &Dataset{ID: "3b241101-e2bb-4255-8caf-4136c566a962", Name: "api", Records: monthlySeries(2024, 1, 1, 2, 3)}

	result, err := collector.ProcessDataset(context.Background(), dataset, AnalysisOptions{})
	require.NoError(t, err)

	assert.Equal(t, dataset.ID, result.ID)
	assert.False(t, dataset.UploadedAt.IsZero())
}

func TestCollector_CancelledBatch(t *testing.T) {
	collector, _ := newTestCollector(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := collector.CollectAll(ctx, []InputSource{{Path: writeInput(t, t.TempDir(), "a.csv", sampleCSV)}}, AnalysisOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInputSource_String(t *testing.T) {
	assert.Equal(t, "a.csv", InputSource{Path: "a.csv"}.String())
	assert.Equal(t, "https://x/a.csv", InputSource{URL: "https://x/a.csv", Path: "ignored"}.String())
}
