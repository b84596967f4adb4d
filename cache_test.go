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
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForecastKey(t *testing.T) {
	profiles := BuiltinProfiles()
	gru := profiles.Lookup("GRU")
	history := monthlySeries(2024, time.January, 100, 110, 120)
	key := ForecastKey(history, gru, 12)

	assert.Regexp(t, `^[0-9a-f]{16}\|GRU\|12$`, key)

	// Order of the input does not matter
	reversed := []ConsumptionRecord{history[2], history[1], history[0]}
	assert.Equal(t, key, ForecastKey(reversed, gru, 12))

	changed := monthlySeries(2024, time.January, 100, 110, 121)
	assert.NotEqual(t, key, ForecastKey(changed, gru, 12))
	assert.NotEqual(t, key, ForecastKey(history, profiles.Lookup("DeepAR"), 12))
	assert.NotEqual(t, key, ForecastKey(history, gru, 24))

	// Same name, overridden parameters
	tuned := gru
	tuned.TrendStrength = 0.1
	assert.NotEqual(t, key, ForecastKey(history, tuned, 12))
}

func TestForecastCache_InMemory(t *testing.T) {
	cache := NewForecastCache("", NewDiscardLogger())

	_, ok := cache.Get("missing")
	assert.False(t, ok)

	forecast := monthlySeries(2025, time.January, 1, 2, 3)
	require.NoError(t, cache.Set("k", forecast))
	assert.Equal(t, 1, cache.Len())

	got, ok := cache.Get("k")
	require.True(t, ok)
	assert.Equal(t, forecast, got)

	// Stored and returned slices are copies
	forecast[0].Consumption = 99
	got[1].Consumption = 99
	again, _ := cache.Get("k")
	assert.Equal(t, 1.0, again[0].Consumption)
	assert.Equal(t, 2.0, again[1].Consumption)

	require.NoError(t, cache.Clear())
	assert.Equal(t, 0, cache.Len())
}

func TestForecastCache_Persistence(t *testing.T) {
	dir := t.TempDir()
	forecast := monthlySeries(2025, time.June, 10, 20)

	first := NewForecastCache(dir, NewDiscardLogger())
	require.NoError(t, first.Set("abc|GRU|2", forecast))
	assert.FileExists(t, filepath.Join(dir, forecastCacheFile))

	second := NewForecastCache(dir, NewDiscardLogger())
	got, ok := second.Get("abc|GRU|2")
	require.True(t, ok)
	assert.Equal(t, forecast, got)
}

func TestForecastCache_CorruptFileStartsFresh(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, forecastCacheFile), []byte("{not json"), 0644))

	cache := NewForecastCache(dir, NewDiscardLogger())

	assert.Equal(t, 0, cache.Len())
	require.NoError(t, cache.Set("k", nil))
	assert.Equal(t, 1, cache.Len())
}

func TestForecastCache_ConcurrentAccess(t *testing.T) {
	cache := NewForecastCache("", NewDiscardLogger())
	forecast := monthlySeries(2025, time.January, 1)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := ForecastKey(forecast, BuiltinProfiles().Lookup("GRU"), i%4)
			_ = cache.Set(key, forecast)
			cache.Get(key)
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, cache.Len())
}
