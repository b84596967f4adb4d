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
	"encoding/base64"
	"fmt"
	"strconv"

	charts "github.com/vicanso/go-charts/v2"
)

// ChartGenerator handles chart generation
type ChartGenerator struct {
	theme string
}

// NewChartGenerator creates a new chart generator
func NewChartGenerator() *ChartGenerator {
	return &ChartGenerator{
		theme: "dark", // Match our HTML report dark theme
	}
}

// GenerateConsumptionChart creates a line chart of the monthly history with the
// forecast drawn as a second series continuing from the last observed month
func (cg *ChartGenerator) GenerateConsumptionChart(historical, forecast []ConsumptionRecord) (string, error) {
	if len(historical) == 0 {
		return "", fmt.Errorf("no consumption data available")
	}

	historical = sortedCopy(historical)
	forecast = sortedCopy(forecast)

	total := len(historical) + len(forecast)
	labels := make([]string, 0, total)
	observedValues := make([]float64, 0, total)
	forecastValues := make([]float64, 0, total)

	for i, r := range historical {
		labels = append(labels, r.Date.Format("Jan 2006"))
		observedValues = append(observedValues, r.Consumption)
		if i == len(historical)-1 && len(forecast) > 0 {
			forecastValues = append(forecastValues, r.Consumption)
		} else {
			forecastValues = append(forecastValues, charts.GetNullValue())
		}
	}
	for _, r := range forecast {
		labels = append(labels, r.Date.Format("Jan 2006"))
		observedValues = append(observedValues, charts.GetNullValue())
		forecastValues = append(forecastValues, r.Consumption)
	}

	values := [][]float64{observedValues}
	legendLabels := []string{"Consumption (kWh)"}
	if len(forecast) > 0 {
		values = append(values, forecastValues)
		legendLabels = append(legendLabels, "Forecast (kWh)")
	}

	p, err := charts.LineRender(
		values,
		charts.TitleTextOptionFunc("Monthly Consumption"),
		charts.XAxisDataOptionFunc(labels),
		charts.LegendLabelsOptionFunc(legendLabels, charts.PositionRight),
		charts.ThemeOptionFunc(cg.getTheme()),
		charts.WidthOptionFunc(1200),
		charts.HeightOptionFunc(400),
		charts.PaddingOptionFunc(charts.Box{
			Top:    20,
			Right:  20,
			Bottom: 20,
			Left:   20,
		}),
	)
	if err != nil {
		return "", fmt.Errorf("failed to render consumption chart: %w", err)
	}

	return encodeChart(p)
}

// GenerateYearlyChart creates a bar chart of yearly consumption totals
func (cg *ChartGenerator) GenerateYearlyChart(summaries []YearlySummary) (string, error) {
	if len(summaries) == 0 {
		return "", fmt.Errorf("no yearly summaries available")
	}

	labels := make([]string, len(summaries))
	totals := make([]float64, len(summaries))
	for i, s := range summaries {
		labels[i] = strconv.Itoa(s.Year)
		totals[i] = s.TotalConsumption
	}

	p, err := charts.BarRender(
		[][]float64{totals},
		charts.TitleTextOptionFunc("Yearly Consumption"),
		charts.XAxisDataOptionFunc(labels),
		charts.LegendLabelsOptionFunc([]string{"Total (kWh)"}, charts.PositionRight),
		charts.ThemeOptionFunc(cg.getTheme()),
		charts.WidthOptionFunc(1200),
		charts.HeightOptionFunc(400),
		charts.PaddingOptionFunc(charts.Box{
			Top:    20,
			Right:  20,
			Bottom: 20,
			Left:   20,
		}),
	)
	if err != nil {
		return "", fmt.Errorf("failed to render yearly chart: %w", err)
	}

	return encodeChart(p)
}

// encodeChart converts a rendered chart to base64 for embedding in HTML
func encodeChart(p *charts.Painter) (string, error) {
	buf, err := p.Bytes()
	if err != nil {
		return "", fmt.Errorf("failed to generate chart bytes: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf), nil
}

// getTheme returns the chart theme name
func (cg *ChartGenerator) getTheme() string {
	return cg.theme
}
