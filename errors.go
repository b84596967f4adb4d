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
	"strings"
)

// SourceError represents a failure fetching a remote dataset
type SourceError struct {
	StatusCode int
	URL        string
	Message    string
	Err        error
}

func (e *SourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("source error at %s (status %d): %s: %v", e.URL, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("source error at %s (status %d): %s", e.URL, e.StatusCode, e.Message)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if this error should be retried
func (e *SourceError) IsRetryable() bool {
	if e.StatusCode == 0 {
		return true
	}
	return isRetryableStatus(e.StatusCode)
}

func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// ParseError represents an upload that could not be read as a consumption table
type ParseError struct {
	File    string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error in %s: %s: %v", e.File, e.Message, e.Err)
	}
	return fmt.Sprintf("parse error in %s: %s", e.File, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ScanError represents a file rejected by the security scan
type ScanError struct {
	File    string
	Message string
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("security scan rejected %s: %s", e.File, e.Message)
}

// ValidationFailedError carries the report of a series that failed validation
type ValidationFailedError struct {
	Dataset string
	Report  ValidationReport
}

func (e *ValidationFailedError) Error() string {
	var problems []string
	for _, f := range e.Report.Findings {
		if f.Level == FindingInvalid {
			problems = append(problems, f.Message)
		}
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Dataset, strings.Join(problems, "; "))
}

// StorageError represents a storage operation error
type StorageError struct {
	Operation string
	Path      string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s at %s: %v", e.Operation, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// DataError represents insufficient or missing data error
type DataError struct {
	DataType string
	Message  string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("data error for %s: %s", e.DataType, e.Message)
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}
