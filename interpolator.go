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

// InterpolateMissingMonths fills every calendar month between the first and
// last record with a value. Missing months take the mean of the nearest
// observed neighbours on each side, or the single neighbour when only one
// side has data. Series of one record or fewer are returned as-is.
func InterpolateMissingMonths(records []ConsumptionRecord) []ConsumptionRecord {
	if len(records) <= 1 {
		out := make([]ConsumptionRecord, len(records))
		copy(out, records)
		return out
	}

	sorted := sortedCopy(records)

	existing := make(map[time.Time]ConsumptionRecord, len(sorted))
	for _, r := range sorted {
		existing[monthStart(r.Date)] = r
	}

	start := monthStart(sorted[0].Date)
	end := monthStart(sorted[len(sorted)-1].Date)

	var result []ConsumptionRecord
	for current := start; !current.After(end); current = addMonths(current, 1) {
		if r, ok := existing[current]; ok {
			result = append(result, r)
			continue
		}

		result = append(result, ConsumptionRecord{
			Date:           current,
			Consumption:    roundKWh(neighbourMean(sorted, current)),
			IsPrediction:   false,
			IsInterpolated: true,
		})
	}

	return result
}

// neighbourMean averages the closest observed values before and after month
func neighbourMean(sorted []ConsumptionRecord, month time.Time) float64 {
	total := 0.0
	found := 0

	for i := len(sorted) - 1; i >= 0; i-- {
		if monthStart(sorted[i].Date).Before(month) {
			total += sorted[i].Consumption
			found++
			break
		}
	}

	for i := 0; i < len(sorted); i++ {
		if monthStart(sorted[i].Date).After(month) {
			total += sorted[i].Consumption
			found++
			break
		}
	}

	if found == 0 {
		return 0
	}
	return total / float64(found)
}

// countInterpolated reports how many records were synthesized by the interpolator
func countInterpolated(records []ConsumptionRecord) int {
	count := 0
	for _, r := range records {
		if r.IsInterpolated {
			count++
		}
	}
	return count
}
