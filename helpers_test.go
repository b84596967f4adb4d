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

// fixedSource always returns the same value; 0.5 yields zero noise
type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }

func day(year int, month time.Month, d int, consumption float64) ConsumptionRecord {
	return ConsumptionRecord{
		Date:        time.Date(year, month, d, 0, 0, 0, 0, time.UTC),
		Consumption: consumption,
	}
}

func monthDate(year int, month time.Month) time.Time {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

// monthlySeries builds consecutive monthly records starting at year/month
func monthlySeries(year int, month time.Month, values ...float64) []ConsumptionRecord {
	records := make([]ConsumptionRecord, len(values))
	start := monthDate(year, month)
	for i, v := range values {
		records[i] = ConsumptionRecord{Date: addMonths(start, i), Consumption: v}
	}
	return records
}

func repeat(v float64, n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = v
	}
	return values
}
