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

const (
	// Granularity classification thresholds, in days between samples
	dailyMaxGapDays   = 7.0
	monthlyMaxGapDays = 45.0

	// granularitySamplePairs caps how many consecutive pairs feed the median
	granularitySamplePairs = 10

	// significantGapFactor marks a gap as significant above this multiple of the median
	significantGapFactor = 2.0

	// Seasonal amplitude used when the history is too short to learn one
	syntheticSeasonalAmplitude = 0.2

	// Annual growth bounds before the profile's trend strength is applied
	minAnnualGrowth = -0.20
	maxAnnualGrowth = 0.30

	// maxNoiseFraction is the noise amplitude for a profile with zero noise reduction
	maxNoiseFraction = 0.05

	// seasonalYears is the most whole years used to learn the seasonal index
	seasonalYears = 3

	// monthlyChangeLimit clamps month-over-month percentages
	monthlyChangeLimit = 200.0

	// DefaultForecastMonths is six years of monthly predictions
	DefaultForecastMonths = 72

	// DefaultProfile is the profile selected when none is configured
	DefaultProfile = "GRU"
)

// Header keywords used to locate the date and consumption columns of an upload
var (
	dateHeaderKeywords        = []string{"date", "time"}
	consumptionHeaderKeywords = []string{"consumption", "kwh", "usage"}
)

// suspiciousPatterns are rejected by the content scanner
var suspiciousPatterns = []string{
	"<script", "javascript:", "vbscript:",
	"data:", "onerror=", "onload=",
	"#!/", "import os", "system(",
	"exec(", "eval(", "Function(",
}
