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
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"
)

// SourceClient downloads consumption tables published at a URL
type SourceClient struct {
	httpClient *http.Client
	parser     *Parser
	scanner    FileScanner
	logger     *Logger

	attempts   int
	retryDelay time.Duration
	maxBytes   int64
}

// NewSourceClient creates a client for remote datasets
func NewSourceClient(cfg SourceConfig, maxBytes int64, parser *Parser, scanner FileScanner, logger *Logger) *SourceClient {
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return &SourceClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		parser:     parser,
		scanner:    scanner,
		logger:     logger.WithComponent("source"),
		attempts:   attempts,
		retryDelay: cfg.RetryDelay,
		maxBytes:   maxBytes,
	}
}

// FetchWithFallback fetches the primary URL and, if every attempt fails, the
// fallback URL. An empty fallback disables the second stage.
func (c *SourceClient) FetchWithFallback(ctx context.Context, primary, fallback string) (*Dataset, error) {
	dataset, err := c.Fetch(ctx, primary)
	if err == nil || fallback == "" || ctx.Err() != nil {
		return dataset, err
	}

	c.logger.Warn("Primary source failed, trying fallback",
		"primary", primary,
		"fallback", fallback,
		"error", err,
	)

	dataset, fallbackErr := c.Fetch(ctx, fallback)
	if fallbackErr != nil {
		return nil, errors.Join(err, fallbackErr)
	}
	return dataset, nil
}

// Fetch downloads and parses a dataset, retrying transient failures with a
// fixed delay between attempts
func (c *SourceClient) Fetch(ctx context.Context, rawURL string) (*Dataset, error) {
	name, err := sourceFileName(rawURL)
	if err != nil {
		return nil, &SourceError{URL: rawURL, Message: "invalid source URL", Err: err}
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		content, mimeType, err := c.download(ctx, rawURL, attempt)
		if err == nil {
			return c.parse(ctx, name, mimeType, content)
		}

		lastErr = err
		var srcErr *SourceError
		if errors.As(err, &srcErr) && !srcErr.IsRetryable() {
			break
		}
		c.logger.Warn("Source request failed", "url", rawURL, "attempt", attempt, "error", err)
	}

	return nil, lastErr
}

func (c *SourceClient) download(ctx context.Context, rawURL string, attempt int) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", GetUserAgent())

	c.logger.LogSourceRequest(rawURL, attempt)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", &SourceError{
			URL:     rawURL,
			Message: "failed to fetch dataset",
			Err:     err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, "", &SourceError{
			StatusCode: resp.StatusCode,
			URL:        rawURL,
			Message:    string(bodyBytes),
		}
	}

	reader := io.Reader(resp.Body)
	if c.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, c.maxBytes+1)
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", &SourceError{
			StatusCode: resp.StatusCode,
			URL:        rawURL,
			Message:    "failed to read response body",
			Err:        err,
		}
	}

	return content, resp.Header.Get("Content-Type"), nil
}

func (c *SourceClient) parse(ctx context.Context, name, mimeType string, content []byte) (*Dataset, error) {
	if c.scanner != nil {
		if result := c.scanner.Scan(ctx, name, mimeType, content); !result.Passed {
			return nil, &ScanError{File: name, Message: result.Message}
		}
	}
	return c.parser.Parse(name, bytes.NewReader(content))
}

// sourceFileName derives the file name, and with it the format, from a URL path
func sourceFileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	name := path.Base(u.Path)
	if !SupportedExtension(name) {
		return "", fmt.Errorf("unsupported file type %q", path.Ext(name))
	}
	return name, nil
}
