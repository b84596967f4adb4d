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
	"math"
	"time"

	"github.com/google/uuid"
)

// minAnomalyMonths is the shortest observed history anomaly detection runs on
const minAnomalyMonths = 7

// Analyzer runs the consumption pipeline over a parsed dataset
type Analyzer struct {
	forecaster *Forecaster
	cache      *ForecastCache
	charts     *ChartGenerator
	metrics    *Metrics
	logger     *Logger
}

// NewAnalyzer creates a new analyzer. cache and metrics may be nil.
func NewAnalyzer(forecaster *Forecaster, cache *ForecastCache, metrics *Metrics, logger *Logger) *Analyzer {
	return &Analyzer{
		forecaster: forecaster,
		cache:      cache,
		charts:     NewChartGenerator(),
		metrics:    metrics,
		logger:     logger.WithComponent("analyzer"),
	}
}

// Profiles returns the profiles the analyzer can forecast with
func (a *Analyzer) Profiles() ProfileSet {
	return a.forecaster.Profiles()
}

// Analyze validates the raw records and, when they are usable, produces the
// clean monthly series, summaries and an optional forecast
func (a *Analyzer) Analyze(ctx context.Context, dataset *Dataset, opts AnalysisOptions) (*AnalysisResult, error) {
	id := dataset.ID
	if id == "" {
		id = uuid.NewString()
	}
	logger := a.logger.WithDataset(dataset.Name, id)
	logger.Info("Starting analysis", "records", len(dataset.Records), "skipped_rows", dataset.SkippedRows)

	if len(dataset.Records) == 0 {
		a.metrics.RecordAnalysis("empty")
		return nil, &DataError{
			DataType: dataset.Name,
			Message:  "no valid consumption rows found",
		}
	}

	// Validate the records as uploaded; invalid rows halt the pipeline
	started := time.Now()
	validation := ValidateData(dataset.Records)
	for _, f := range validation.Findings {
		logger.LogValidationFinding(f)
	}
	a.metrics.ObserveStage("validate", started)
	if !validation.IsValid {
		a.metrics.RecordAnalysis("invalid")
		return nil, &ValidationFailedError{Dataset: dataset.Name, Report: validation}
	}

	result := &AnalysisResult{
		ID:          id,
		Dataset:     dataset.Name,
		GeneratedAt: time.Now().UTC(),
		Granularity: DetectGranularity(dataset.Records),
		Validation:  validation,
		SkippedRows: dataset.SkippedRows,
	}

	started = time.Now()
	normalized := NormalizeGranularity(dataset.Records)
	a.metrics.ObserveStage("normalize", started)
	logger.LogPipelineStage("normalize", len(normalized))

	started = time.Now()
	result.Historical = InterpolateMissingMonths(normalized)
	result.InterpolatedCount = countInterpolated(result.Historical)
	a.metrics.ObserveStage("interpolate", started)
	logger.LogPipelineStage("interpolate", len(result.Historical))

	if err := ctx.Err(); err != nil {
		a.metrics.RecordAnalysis("error")
		return nil, err
	}

	if opts.Profile != "" {
		a.forecast(logger, result, opts)
	}

	// Summaries cover the combined series so forecast years are reported too
	started = time.Now()
	combined := result.Combined()
	result.YearlySummaries = SortedSummaries(GenerateYearlySummary(combined))
	result.BreakdownYear = opts.Year
	if result.BreakdownYear == 0 {
		result.BreakdownYear = latestHistoricalYear(result.Historical)
	}
	result.MonthlyBreakdown = GenerateMonthlyBreakdown(combined, result.BreakdownYear)
	a.metrics.ObserveStage("summarize", started)
	logger.LogPipelineStage("summarize", len(result.YearlySummaries))

	values := make([]float64, len(result.Historical))
	for i, r := range result.Historical {
		values[i] = r.Consumption
	}
	result.AverageMonthly = roundTo(calculateMean(values), 2)
	result.Anomalies = a.detectAnomalies(logger, result.Historical)

	if opts.Charts {
		a.renderCharts(logger, result)
	}

	a.metrics.RecordAnalysis("ok")
	logger.Info("Analysis completed",
		"granularity", result.Granularity,
		"months", len(result.Historical),
		"interpolated", result.InterpolatedCount,
		"forecast_months", len(result.Forecast),
		"anomalies", len(result.Anomalies),
	)

	return result, nil
}

// forecast extends the result with predictions, reusing cached forecasts
func (a *Analyzer) forecast(logger *Logger, result *AnalysisResult, opts AnalysisOptions) {
	months := opts.Months
	if months <= 0 {
		months = DefaultForecastMonths
	}

	started := time.Now()
	key := ForecastKey(result.Historical, a.forecaster.Profiles().Lookup(opts.Profile), months)

	forecast, cached := a.cachedForecast(key)
	if !cached {
		forecast = a.forecaster.GeneratePredictions(result.Historical, months, opts.Profile)
		if a.cache != nil {
			if err := a.cache.Set(key, forecast); err != nil {
				logger.Warn("Failed to cache forecast", "error", err)
			}
		}
	}

	result.Forecast = forecast
	result.Profile = opts.Profile
	result.ForecastMonths = months
	result.Metrics = a.forecaster.Profiles().MetricsFor(opts.Profile)

	a.metrics.ObserveStage("forecast", started)
	a.metrics.RecordForecast(opts.Profile, cached)
	logger.LogForecast(opts.Profile, months, cached)
}

func (a *Analyzer) cachedForecast(key string) ([]ConsumptionRecord, bool) {
	if a.cache == nil {
		return nil, false
	}
	return a.cache.Get(key)
}

// renderCharts embeds charts in the result. Chart failures are not fatal.
func (a *Analyzer) renderCharts(logger *Logger, result *AnalysisResult) {
	started := time.Now()

	chart, err := a.charts.GenerateConsumptionChart(result.Historical, result.Forecast)
	if err != nil {
		logger.Warn("Failed to generate consumption chart", "error", err)
	} else {
		result.ConsumptionChart = chart
	}

	chart, err = a.charts.GenerateYearlyChart(result.YearlySummaries)
	if err != nil {
		logger.Warn("Failed to generate yearly chart", "error", err)
	} else {
		result.YearlyChart = chart
	}

	a.metrics.ObserveStage("charts", started)
}

// detectAnomalies flags observed months far from the series mean. Interpolated
// months carry no information of their own and are ignored.
func (a *Analyzer) detectAnomalies(logger *Logger, historical []ConsumptionRecord) []Anomaly {
	var observed []ConsumptionRecord
	for _, r := range historical {
		if !r.IsInterpolated {
			observed = append(observed, r)
		}
	}
	if len(observed) < minAnomalyMonths {
		// Need enough months for meaningful statistics
		return nil
	}

	values := make([]float64, len(observed))
	for i, r := range observed {
		values[i] = r.Consumption
	}

	mean := calculateMean(values)
	stdDev := calculateStdDev(values, mean)
	if mean <= 0 {
		return nil
	}

	var anomalies []Anomaly
	for _, r := range observed {
		// Check for very low usage (< 10% of mean)
		if r.Consumption < mean*0.1 {
			anomalies = append(anomalies, Anomaly{
				Date:             r.Date,
				Type:             "low_usage",
				Description:      fmt.Sprintf("Unusually low usage in %s", r.Date.Format("January 2006")),
				ActualValue:      r.Consumption,
				ExpectedValue:    roundTo(mean, 2),
				DeviationPercent: roundTo((r.Consumption-mean)/mean*100, 2),
			})
			continue
		}

		// Check for consumption spike (> 2 standard deviations above mean)
		if stdDev > 0 && r.Consumption > mean+2*stdDev {
			deviation := (r.Consumption - mean) / mean * 100
			logger.Debug("Consumption spike", "month", r.Date.Format("2006-01"), "deviation", deviation)
			anomalies = append(anomalies, Anomaly{
				Date:             r.Date,
				Type:             "consumption_spike",
				Description:      fmt.Sprintf("Unusually high consumption in %s", r.Date.Format("January 2006")),
				ActualValue:      r.Consumption,
				ExpectedValue:    roundTo(mean, 2),
				DeviationPercent: roundTo(deviation, 2),
			})
		}
	}

	return anomalies
}

// Statistical helper functions

// calculateMean calculates the mean of a slice of float64 values
func calculateMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

// calculateStdDev calculates the population standard deviation
func calculateStdDev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sumSquaredDiff := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquaredDiff += diff * diff
	}

	return math.Sqrt(sumSquaredDiff / float64(len(values)))
}

// FormatKWh formats a consumption value
func FormatKWh(value float64) string {
	return fmt.Sprintf("%s kWh", formatNumber(value))
}

// FormatPercentage formats a value as a percentage
func FormatPercentage(value float64) string {
	return fmt.Sprintf("%.1f%%", value)
}
