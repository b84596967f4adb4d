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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// forecastCacheFile is the persisted cache inside the storage path
const forecastCacheFile = "forecast_cache.json"

// ForecastCacheEntry is a cached forecast
type ForecastCacheEntry struct {
	Forecast []ConsumptionRecord `json:"forecast"`
	CachedAt time.Time           `json:"cached_at"`
}

// forecastCacheStore is the on-disk form of the cache
type forecastCacheStore struct {
	Entries map[string]*ForecastCacheEntry `json:"entries"`
}

// ForecastCache memoizes forecasts by input series, profile and horizon.
// Entries are never evicted. An empty file path keeps the cache in memory.
type ForecastCache struct {
	filePath string
	store    *forecastCacheStore
	mutex    sync.RWMutex
	logger   *Logger
}

// NewForecastCache creates a cache persisted under basePath, or in memory when
// basePath is empty
func NewForecastCache(basePath string, logger *Logger) *ForecastCache {
	cache := &ForecastCache{
		store:  &forecastCacheStore{Entries: make(map[string]*ForecastCacheEntry)},
		logger: logger.WithComponent("cache"),
	}

	if basePath == "" {
		return cache
	}
	cache.filePath = filepath.Join(basePath, forecastCacheFile)

	// Load existing cache from file
	if err := cache.load(); err != nil {
		if !os.IsNotExist(err) {
			cache.logger.Warn("Failed to load forecast cache, starting fresh", "error", err)
		}
	}

	cache.logger.Debug("Forecast cache initialized", "path", cache.filePath, "entries", len(cache.store.Entries))
	return cache
}

// ForecastKey identifies a forecast request. The fingerprint covers every date
// and value of the history and the resolved profile parameters, so a profile
// overridden in config never reuses a persisted forecast.
func ForecastKey(historical []ConsumptionRecord, profile Profile, months int) string {
	h := sha256.New()
	for _, r := range sortedCopy(historical) {
		h.Write([]byte(r.Date.Format(dateLayout)))
		h.Write([]byte{'='})
		h.Write([]byte(strconv.FormatFloat(r.Consumption, 'g', -1, 64)))
		h.Write([]byte{';'})
	}
	for _, p := range []float64{profile.SeasonalStrength, profile.TrendStrength, profile.NoiseReduction} {
		h.Write([]byte(strconv.FormatFloat(p, 'g', -1, 64)))
		h.Write([]byte{'/'})
	}
	return fmt.Sprintf("%s|%s|%d", hex.EncodeToString(h.Sum(nil))[:16], profile.Name, months)
}

// Get returns a copy of a cached forecast
func (c *ForecastCache) Get(key string) ([]ConsumptionRecord, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.store.Entries[key]
	if !exists {
		c.logger.Debug("Cache miss", "key", key)
		return nil, false
	}

	c.logger.Debug("Cache hit", "key", key, "age", time.Since(entry.CachedAt).Round(time.Second))
	return append([]ConsumptionRecord(nil), entry.Forecast...), true
}

// Set stores a forecast and persists the cache when it is file backed
func (c *ForecastCache) Set(key string, forecast []ConsumptionRecord) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.store.Entries[key] = &ForecastCacheEntry{
		Forecast: append([]ConsumptionRecord(nil), forecast...),
		CachedAt: time.Now(),
	}

	if err := c.save(); err != nil {
		return err
	}

	c.logger.Debug("Cache set", "key", key, "months", len(forecast))
	return nil
}

// Len returns the number of cached forecasts
func (c *ForecastCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.store.Entries)
}

// Clear removes all cache entries
func (c *ForecastCache) Clear() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	count := len(c.store.Entries)
	c.store.Entries = make(map[string]*ForecastCacheEntry)

	if err := c.save(); err != nil {
		return err
	}

	c.logger.Info("Cleared forecast cache", "count", count)
	return nil
}

// load reads the cache from disk
func (c *ForecastCache) load() error {
	data, err := os.ReadFile(c.filePath)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, c.store); err != nil {
		return fmt.Errorf("failed to unmarshal cache file: %w", err)
	}
	if c.store.Entries == nil {
		c.store.Entries = make(map[string]*ForecastCacheEntry)
	}

	return nil
}

// save writes the cache to disk (must be called with lock held)
func (c *ForecastCache) save() error {
	if c.filePath == "" {
		return nil
	}

	data, err := json.MarshalIndent(c.store, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	if err := os.WriteFile(c.filePath, data, 0644); err != nil {
		return &StorageError{Operation: "save_cache", Path: c.filePath, Err: err}
	}

	return nil
}
