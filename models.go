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
	"encoding/json"
	"time"
)

// dateLayout is the wire format for record dates
const dateLayout = "2006-01-02"

// ConsumptionRecord is a single month of electricity consumption
type ConsumptionRecord struct {
	Date           time.Time // Canonically the first day of the month, UTC
	Consumption    float64   // kWh
	IsPrediction   bool
	IsInterpolated bool
}

type consumptionRecordJSON struct {
	Date           string  `json:"date"`
	Consumption    float64 `json:"consumption"`
	IsPrediction   bool    `json:"isPrediction"`
	IsInterpolated bool    `json:"isInterpolated,omitempty"`
}

// MarshalJSON encodes the record with a YYYY-MM-DD date
func (r ConsumptionRecord) MarshalJSON() ([]byte, error) {
	out := consumptionRecordJSON{
		Consumption:    r.Consumption,
		IsPrediction:   r.IsPrediction,
		IsInterpolated: r.IsInterpolated,
	}
	if !r.Date.IsZero() {
		out.Date = r.Date.Format(dateLayout)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a record. An unparsable date is kept as the zero time
// so the validator can report it instead of the decoder rejecting the payload.
func (r *ConsumptionRecord) UnmarshalJSON(data []byte) error {
	var in consumptionRecordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	r.Date = time.Time{}
	if date, ok := parseDate(in.Date); ok {
		r.Date = date
	}
	r.Consumption = in.Consumption
	r.IsPrediction = in.IsPrediction
	r.IsInterpolated = in.IsInterpolated
	return nil
}

// NewRecord builds an observed record for the given calendar month
func NewRecord(year int, month time.Month, consumption float64) ConsumptionRecord {
	return ConsumptionRecord{
		Date:        time.Date(year, month, 1, 0, 0, 0, 0, time.UTC),
		Consumption: consumption,
	}
}

// Granularity is the inferred sampling interval of a raw series
type Granularity string

const (
	GranularityDaily   Granularity = "daily"
	GranularityMonthly Granularity = "monthly"
	GranularityYearly  Granularity = "yearly"
)

// MonthValue names a month and its consumption
type MonthValue struct {
	Month       string  `json:"month"`
	Consumption float64 `json:"consumption"`
}

// YearlySummary aggregates one calendar year of a series
type YearlySummary struct {
	Year               int        `json:"year"`
	TotalConsumption   float64    `json:"totalConsumption"`
	YearOverYearChange float64    `json:"yearOverYearChange"` // Percent, 2 decimals
	HighestMonth       MonthValue `json:"highestMonth"`
	LowestMonth        MonthValue `json:"lowestMonth"`
}

// MonthlyEntry is one month of a yearly breakdown
type MonthlyEntry struct {
	Date          time.Time `json:"date"`
	Month         string    `json:"month"`
	Consumption   float64   `json:"consumption"`
	ChangePercent float64   `json:"changePercent"` // Versus the previous calendar month, clamped
	IsPrediction  bool      `json:"isPrediction"`
}

// FindingLevel classifies a validation finding
type FindingLevel string

const (
	FindingValid   FindingLevel = "valid"
	FindingInfo    FindingLevel = "info"
	FindingWarn    FindingLevel = "warn"
	FindingInvalid FindingLevel = "invalid"
)

// Finding is one line of a validation report
type Finding struct {
	Level   FindingLevel `json:"level"`
	Message string       `json:"message"`
}

// ValidationReport is the outcome of validating an uploaded series
type ValidationReport struct {
	IsValid  bool      `json:"isValid"`
	Findings []Finding `json:"findings"`
}

// Lines returns the findings as human readable report lines
func (v ValidationReport) Lines() []string {
	lines := make([]string, len(v.Findings))
	for i, f := range v.Findings {
		lines[i] = f.Message
	}
	return lines
}

// Warnings returns the number of advisory findings
func (v ValidationReport) Warnings() int {
	count := 0
	for _, f := range v.Findings {
		if f.Level == FindingWarn {
			count++
		}
	}
	return count
}

// ModelMetrics are externally evaluated accuracy figures for a profile
type ModelMetrics struct {
	MAE float64 `json:"mae" yaml:"mae"`
	MSE float64 `json:"mse" yaml:"mse"`
	R2  float64 `json:"r2" yaml:"r2"`
}

// Dataset is a parsed upload ready for analysis
type Dataset struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Records     []ConsumptionRecord `json:"records"`
	SkippedRows int                 `json:"skippedRows"`
	UploadedAt  time.Time           `json:"uploadedAt"`
}

// AnalysisOptions select what the analyzer produces beyond the clean series
type AnalysisOptions struct {
	Profile string // Empty disables forecasting
	Months  int
	Year    int // Year for the monthly breakdown; 0 picks the latest historical year
	Charts  bool
}

// AnalysisResult holds the complete analysis output
type AnalysisResult struct {
	ID                string              `json:"id"`
	Dataset           string              `json:"dataset"`
	GeneratedAt       time.Time           `json:"generatedAt"`
	Granularity       Granularity         `json:"granularity"`
	Validation        ValidationReport    `json:"validation"`
	Historical        []ConsumptionRecord `json:"historical"`
	Forecast          []ConsumptionRecord `json:"forecast,omitempty"`
	Profile           string              `json:"profile,omitempty"`
	ForecastMonths    int                 `json:"forecastMonths,omitempty"`
	Metrics           *ModelMetrics       `json:"metrics,omitempty"`
	YearlySummaries   []YearlySummary     `json:"yearlySummaries"`
	BreakdownYear     int                 `json:"breakdownYear,omitempty"`
	MonthlyBreakdown  []MonthlyEntry      `json:"monthlyBreakdown,omitempty"`
	InterpolatedCount int                 `json:"interpolatedCount"`
	SkippedRows       int                 `json:"skippedRows"`
	AverageMonthly    float64             `json:"averageMonthly"`
	Anomalies         []Anomaly           `json:"anomalies,omitempty"`
	// Charts (base64 encoded PNG images)
	ConsumptionChart string `json:"consumptionChart,omitempty"`
	YearlyChart      string `json:"yearlyChart,omitempty"`
}

// Anomaly is an observed month far outside the series' usual range
type Anomaly struct {
	Date             time.Time `json:"date"`
	Type             string    `json:"type"` // low_usage or consumption_spike
	Description      string    `json:"description"`
	ActualValue      float64   `json:"actualValue"`
	ExpectedValue    float64   `json:"expectedValue"`
	DeviationPercent float64   `json:"deviationPercent"`
}

// Combined returns the historical series followed by the forecast
func (r *AnalysisResult) Combined() []ConsumptionRecord {
	combined := make([]ConsumptionRecord, 0, len(r.Historical)+len(r.Forecast))
	combined = append(combined, r.Historical...)
	return append(combined, r.Forecast...)
}
