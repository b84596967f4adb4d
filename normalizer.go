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

import "time"

// DetectGranularity infers whether a raw series was sampled daily, monthly or
// yearly. Series with fewer than two records are treated as monthly.
func DetectGranularity(records []ConsumptionRecord) Granularity {
	median, ok := medianGapDays(sortedCopy(records))
	if !ok {
		return GranularityMonthly
	}
	return classifyGranularity(median)
}

// NormalizeGranularity rewrites a raw series into one record per calendar
// month dated on the first of the month. Daily data is averaged per month,
// yearly data is spread over twelve months and monthly data only has its
// dates canonicalized. The input is never modified.
func NormalizeGranularity(records []ConsumptionRecord) []ConsumptionRecord {
	if len(records) <= 1 {
		out := make([]ConsumptionRecord, len(records))
		copy(out, records)
		return out
	}

	sorted := sortedCopy(records)
	median, _ := medianGapDays(sorted)

	switch classifyGranularity(median) {
	case GranularityDaily:
		return averageByMonth(sorted)
	case GranularityYearly:
		return expandYearly(sorted)
	default:
		return canonicalizeMonthly(sorted)
	}
}

// monthGroup accumulates the records that fall in one calendar month
type monthGroup struct {
	date       time.Time
	total      float64
	count      int
	prediction bool
	first      ConsumptionRecord
}

// groupByMonth buckets an ascending series by calendar month, preserving order
func groupByMonth(sorted []ConsumptionRecord) []*monthGroup {
	var groups []*monthGroup
	index := make(map[time.Time]*monthGroup)

	for _, r := range sorted {
		key := monthStart(r.Date)
		g, ok := index[key]
		if !ok {
			g = &monthGroup{date: key, first: r}
			index[key] = g
			groups = append(groups, g)
		}
		g.total += r.Consumption
		g.count++
		g.prediction = g.prediction || r.IsPrediction
	}

	return groups
}

// averageByMonth collapses daily samples into monthly averages
func averageByMonth(sorted []ConsumptionRecord) []ConsumptionRecord {
	groups := groupByMonth(sorted)
	out := make([]ConsumptionRecord, 0, len(groups))
	for _, g := range groups {
		out = append(out, ConsumptionRecord{
			Date:         g.date,
			Consumption:  roundKWh(g.total / float64(g.count)),
			IsPrediction: g.prediction,
		})
	}
	return out
}

// canonicalizeMonthly moves every record to its month start. Records sharing a
// month are averaged so the one-record-per-month guarantee holds.
func canonicalizeMonthly(sorted []ConsumptionRecord) []ConsumptionRecord {
	groups := groupByMonth(sorted)
	out := make([]ConsumptionRecord, 0, len(groups))
	for _, g := range groups {
		if g.count == 1 {
			r := g.first
			r.Date = g.date
			out = append(out, r)
			continue
		}
		out = append(out, ConsumptionRecord{
			Date:         g.date,
			Consumption:  roundKWh(g.total / float64(g.count)),
			IsPrediction: g.prediction,
		})
	}
	return out
}

// expandYearly spreads each yearly value over its twelve months, blending
// linearly towards the following year and applying a fixed seasonal shape.
func expandYearly(sorted []ConsumptionRecord) []ConsumptionRecord {
	out := make([]ConsumptionRecord, 0, len(sorted)*12)
	seen := make(map[time.Time]bool)

	for i, current := range sorted {
		next := current
		if i+1 < len(sorted) {
			next = sorted[i+1]
		}

		year := current.Date.Year()
		for m := 0; m < 12; m++ {
			date := time.Date(year, time.Month(m+1), 1, 0, 0, 0, 0, time.UTC)
			if seen[date] {
				continue
			}
			seen[date] = true

			fraction := float64(m) / 12
			base := current.Consumption + (next.Consumption-current.Consumption)*fraction
			out = append(out, ConsumptionRecord{
				Date:         date,
				Consumption:  roundKWh(base * syntheticSeasonalFactor(m)),
				IsPrediction: current.IsPrediction,
			})
		}
	}

	return out
}
