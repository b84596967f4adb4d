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
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentInputs bounds how many inputs are processed at once
const maxConcurrentInputs = 4

// InputSource is a local file or a remote URL to analyze
type InputSource struct {
	Path        string
	URL         string
	FallbackURL string
}

// String names the source in logs and reports
func (s InputSource) String() string {
	if s.URL != "" {
		return s.URL
	}
	return s.Path
}

// CollectedResult is the outcome for one input
type CollectedResult struct {
	Source InputSource
	Result *AnalysisResult
	Err    error
}

// Collector loads datasets and runs them through the analysis pipeline
type Collector struct {
	parser   *Parser
	scanner  FileScanner
	client   *SourceClient
	analyzer *Analyzer
	storage  *Storage
	sink     SeriesSink
	metrics  *Metrics
	logger   *Logger
}

// NewCollector creates a new collector. client, storage, sink and metrics may be nil.
func NewCollector(parser *Parser, scanner FileScanner, client *SourceClient, analyzer *Analyzer, storage *Storage, sink SeriesSink, metrics *Metrics, logger *Logger) *Collector {
	return &Collector{
		parser:   parser,
		scanner:  scanner,
		client:   client,
		analyzer: analyzer,
		storage:  storage,
		sink:     sink,
		metrics:  metrics,
		logger:   logger.WithComponent("collector"),
	}
}

// CollectAll processes every source concurrently. Results keep the order of
// sources; a failing source does not stop the others.
func (c *Collector) CollectAll(ctx context.Context, sources []InputSource, opts AnalysisOptions) ([]CollectedResult, error) {
	c.logger.Info("Starting collection", "sources", len(sources))

	results := make([]CollectedResult, len(sources))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentInputs)

	for i, source := range sources {
		i, source := i, source
		g.Go(func() error {
			result, err := c.collect(ctx, source, opts)
			results[i] = CollectedResult{Source: source, Result: result, Err: err}
			if err != nil {
				c.logger.Warn("Input failed", "source", source.String(), "error", err)
			}
			// Per-input failures are reported in results; only cancellation aborts the batch
			return ctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}

	return results, nil
}

func (c *Collector) collect(ctx context.Context, source InputSource, opts AnalysisOptions) (*AnalysisResult, error) {
	if source.URL != "" {
		if c.client == nil {
			return nil, &ConfigError{Field: "source", Message: "remote sources are not configured"}
		}
		dataset, err := c.client.FetchWithFallback(ctx, source.URL, source.FallbackURL)
		if err != nil {
			return nil, err
		}
		return c.ProcessDataset(ctx, dataset, opts)
	}

	content, err := os.ReadFile(source.Path)
	if err != nil {
		return nil, &ParseError{File: source.Path, Message: "failed to read file", Err: err}
	}
	return c.ProcessUpload(ctx, filepath.Base(source.Path), "", content, opts)
}

// ProcessUpload scans, parses and analyzes uploaded file content
func (c *Collector) ProcessUpload(ctx context.Context, name, mimeType string, content []byte, opts AnalysisOptions) (*AnalysisResult, error) {
	if c.scanner != nil {
		if scan := c.scanner.Scan(ctx, name, mimeType, content); !scan.Passed {
			c.metrics.RecordScanRejection()
			return nil, &ScanError{File: name, Message: scan.Message}
		}
	}

	started := time.Now()
	dataset, err := c.parser.Parse(name, bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	c.metrics.ObserveStage("parse", started)

	return c.ProcessDataset(ctx, dataset, opts)
}

// ProcessDataset analyzes a parsed dataset, stores the result and exports its series
func (c *Collector) ProcessDataset(ctx context.Context, dataset *Dataset, opts AnalysisOptions) (*AnalysisResult, error) {
	if dataset.ID == "" {
		dataset.ID = uuid.NewString()
	}
	if dataset.UploadedAt.IsZero() {
		dataset.UploadedAt = time.Now().UTC()
	}
	c.metrics.RecordSkippedRows(dataset.SkippedRows)

	result, err := c.analyzer.Analyze(ctx, dataset, opts)
	if err != nil {
		return nil, err
	}

	if c.storage != nil {
		if err := c.storage.SaveAnalysisResult(result); err != nil {
			return nil, fmt.Errorf("failed to save analysis result: %w", err)
		}
	}

	if c.sink != nil {
		if err := c.sink.WriteSeries(ctx, result); err != nil {
			// Export is best effort; the analysis itself succeeded
			c.logger.Warn("Failed to export series", "dataset", result.Dataset, "error", err)
		}
	}

	return result, nil
}
