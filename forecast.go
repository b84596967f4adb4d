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
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// Profile is a named forecasting style. Strengths are in [0,1].
type Profile struct {
	Name             string        `json:"name" yaml:"name" validate:"required"`
	SeasonalStrength float64       `json:"seasonalStrength" yaml:"seasonal_strength" validate:"gte=0,lte=1"`
	TrendStrength    float64       `json:"trendStrength" yaml:"trend_strength" validate:"gte=0,lte=1"`
	NoiseReduction   float64       `json:"noiseReduction" yaml:"noise_reduction" validate:"gte=0,lte=1"`
	Metrics          *ModelMetrics `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// defaultProfileParams apply to profile names that are not configured
var defaultProfileParams = Profile{
	SeasonalStrength: 0.7,
	TrendStrength:    0.8,
	NoiseReduction:   0.6,
}

// ProfileSet maps profile names to their parameters
type ProfileSet map[string]Profile

// BuiltinProfiles returns the profiles shipped with powercast. Metrics are the
// offline evaluation figures published alongside each model.
func BuiltinProfiles() ProfileSet {
	return ProfileSet{
		"GRU": {
			Name:             "GRU",
			SeasonalStrength: 0.75,
			TrendStrength:    0.85,
			NoiseReduction:   0.65,
			Metrics:          &ModelMetrics{MAE: 0.08247126781120773, MSE: 0.00986050934169316, R2: 0.8653740589636583},
		},
		"Bidirectional LSTM": {
			Name:             "Bidirectional LSTM",
			SeasonalStrength: 0.85,
			TrendStrength:    0.8,
			NoiseReduction:   0.75,
			Metrics:          &ModelMetrics{MAE: 0.06898624264029979, MSE: 0.007775012006380435, R2: 0.8938474401619412},
		},
		"DeepAR": {
			Name:             "DeepAR",
			SeasonalStrength: 0.8,
			TrendStrength:    0.7,
			NoiseReduction:   0.7,
			Metrics:          &ModelMetrics{MAE: 0.07626980876023641, MSE: 0.010184665602040177, R2: 0.8508961090804059},
		},
		"NBEATS": {
			Name:             "NBEATS",
			SeasonalStrength: 0.9,
			TrendStrength:    0.75,
			NoiseReduction:   0.8,
		},
	}
}

// Lookup returns the named profile, falling back to the default parameters
// for unknown names
func (ps ProfileSet) Lookup(name string) Profile {
	if p, ok := ps[name]; ok {
		return p
	}
	p := defaultProfileParams
	p.Name = name
	return p
}

// MetricsFor returns the metrics for a profile. Profiles without published
// metrics report the default profile's figures.
func (ps ProfileSet) MetricsFor(name string) *ModelMetrics {
	if p, ok := ps[name]; ok && p.Metrics != nil {
		m := *p.Metrics
		return &m
	}
	if p, ok := ps[DefaultProfile]; ok && p.Metrics != nil {
		m := *p.Metrics
		return &m
	}
	return nil
}

// Names returns the configured profile names in alphabetical order
func (ps ProfileSet) Names() []string {
	names := make([]string, 0, len(ps))
	for name := range ps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RandomSource yields pseudo-random numbers in [0,1). *rand.Rand satisfies it.
type RandomSource interface {
	Float64() float64
}

// lockedSource makes a rand.Rand safe to share between goroutines
type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomSource returns a goroutine-safe source seeded with seed
func NewRandomSource(seed int64) RandomSource {
	return &lockedSource{rng: rand.New(rand.NewSource(seed))}
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Forecaster projects a monthly series forward using trend, seasonality and
// bounded noise. It holds no state between calls besides its random source.
type Forecaster struct {
	profiles ProfileSet
	random   RandomSource
}

// NewForecaster creates a forecaster. A nil random source is seeded from the clock.
func NewForecaster(profiles ProfileSet, random RandomSource) *Forecaster {
	if profiles == nil {
		profiles = BuiltinProfiles()
	}
	if random == nil {
		random = NewRandomSource(time.Now().UnixNano())
	}
	return &Forecaster{profiles: profiles, random: random}
}

// Profiles returns the profile set the forecaster resolves names against
func (f *Forecaster) Profiles() ProfileSet {
	return f.profiles
}

// GeneratePredictions returns numMonths forecast records following the last
// historical month. Only the forecast is returned; callers append it to the
// history themselves.
func (f *Forecaster) GeneratePredictions(historical []ConsumptionRecord, numMonths int, profileName string) []ConsumptionRecord {
	if len(historical) == 0 || numMonths <= 0 {
		return []ConsumptionRecord{}
	}

	sorted := sortedCopy(historical)
	last := sorted[len(sorted)-1]
	profile := f.profiles.Lookup(profileName)

	annualGrowth := clamp(estimateAnnualGrowth(sorted), minAnnualGrowth, maxAnnualGrowth) * profile.TrendStrength
	seasonal := seasonalIndex(sorted)
	noiseScale := maxNoiseFraction * (1 - profile.NoiseReduction)

	predictions := make([]ConsumptionRecord, 0, numMonths)
	lastMonth := monthStart(last.Date)

	for i := 1; i <= numMonths; i++ {
		date := addMonths(lastMonth, i)

		growthFactor := math.Pow(1+annualGrowth/12, float64(i))
		seasonalFactor := 1 + (seasonal[date.Month()-1]-1)*profile.SeasonalStrength

		predicted := last.Consumption * growthFactor * seasonalFactor
		noise := (f.random.Float64()*2 - 1) * noiseScale * predicted
		predicted += noise

		predictions = append(predictions, ConsumptionRecord{
			Date:         date,
			Consumption:  roundKWh(predicted),
			IsPrediction: true,
		})
	}

	return predictions
}

// GeneratePredictions forecasts with the built-in profiles and a clock-seeded source
func GeneratePredictions(historical []ConsumptionRecord, numMonths int, profile string) []ConsumptionRecord {
	return NewForecaster(nil, nil).GeneratePredictions(historical, numMonths, profile)
}

// estimateAnnualGrowth compares the latest value with the same month a year
// earlier, or annualizes the compound monthly rate over shorter histories.
func estimateAnnualGrowth(sorted []ConsumptionRecord) float64 {
	n := len(sorted)
	last := sorted[n-1].Consumption

	var growth float64
	switch {
	case n >= 13:
		yearAgo := sorted[n-13].Consumption
		if yearAgo == 0 {
			return 0
		}
		growth = (last - yearAgo) / yearAgo
	case n >= 2:
		first := sorted[0].Consumption
		if first == 0 {
			return 0
		}
		monthsElapsed := float64(n - 1)
		growth = (math.Pow(last/first, 1/monthsElapsed) - 1) * 12
	default:
		return 0
	}

	if math.IsNaN(growth) || math.IsInf(growth, 0) {
		return 0
	}
	return growth
}

// seasonalIndex learns a 12-month multiplier vector from up to the last three
// whole years, or falls back to a sinusoid for histories shorter than a year.
func seasonalIndex(sorted []ConsumptionRecord) [12]float64 {
	var index [12]float64

	if len(sorted) < 12 {
		for m := 0; m < 12; m++ {
			index[m] = syntheticSeasonalFactor(m)
		}
		return index
	}

	years := len(sorted) / 12
	if years > seasonalYears {
		years = seasonalYears
	}
	window := sorted[len(sorted)-years*12:]

	var sums [12]float64
	var counts [12]int
	for _, r := range window {
		m := r.Date.Month() - 1
		sums[m] += r.Consumption
		counts[m]++
	}

	var averages [12]float64
	overall := 0.0
	for m := 0; m < 12; m++ {
		if counts[m] > 0 {
			averages[m] = sums[m] / float64(counts[m])
		}
		overall += averages[m]
	}
	overall /= 12

	for m := 0; m < 12; m++ {
		if overall == 0 || counts[m] == 0 {
			index[m] = 1
			continue
		}
		index[m] = averages[m] / overall
	}

	return index
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
