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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// envPrefix prefixes every environment override, e.g. POWERCAST_FORECAST_MONTHS
const envPrefix = "POWERCAST"

// Config holds the application configuration
type Config struct {
	// Forecasting
	Forecast ForecastConfig `yaml:"forecast" envconfig:"FORECAST"`
	Profiles []Profile      `yaml:"profiles" ignored:"true" validate:"dive"`

	// Storage
	StoragePath string `yaml:"storage_path" envconfig:"STORAGE_PATH"`

	// HTTP API
	Server ServerConfig `yaml:"server" envconfig:"SERVER"`

	// Optional InfluxDB export of processed series
	Influx InfluxConfig `yaml:"influx" envconfig:"INFLUX"`

	// Remote dataset sources
	Source SourceConfig `yaml:"source" envconfig:"SOURCE"`

	// Debugging
	Debug    bool `yaml:"debug" envconfig:"DEBUG"`
	JSONLogs bool `yaml:"json_logs" envconfig:"JSON_LOGS"`
}

// ForecastConfig selects the default forecast produced for an upload
type ForecastConfig struct {
	Profile string `yaml:"profile" envconfig:"PROFILE"`
	Months  int    `yaml:"months" envconfig:"MONTHS" validate:"gte=1,lte=240"`
	Seed    int64  `yaml:"seed" envconfig:"SEED"` // 0 seeds from the clock
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr           string        `yaml:"addr" envconfig:"ADDR" validate:"required"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" validate:"gt=0"`
	ReadTimeout    time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout   time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	UploadRPS      float64       `yaml:"upload_rps" envconfig:"UPLOAD_RPS" validate:"gt=0"`
	UploadBurst    int           `yaml:"upload_burst" envconfig:"UPLOAD_BURST" validate:"gte=1"`
}

// InfluxConfig configures the InfluxDB sink. An empty URL disables it.
type InfluxConfig struct {
	URL         string `yaml:"url" envconfig:"URL" validate:"omitempty,url"`
	Token       string `yaml:"token" envconfig:"TOKEN" validate:"required_with=URL"`
	Org         string `yaml:"org" envconfig:"ORG" validate:"required_with=URL"`
	Bucket      string `yaml:"bucket" envconfig:"BUCKET" validate:"required_with=URL"`
	Measurement string `yaml:"measurement" envconfig:"MEASUREMENT"`
}

// Enabled reports whether series should be exported to InfluxDB
func (c InfluxConfig) Enabled() bool {
	return c.URL != ""
}

// SourceConfig configures remote dataset fetching
type SourceConfig struct {
	URL         string        `yaml:"url" envconfig:"URL" validate:"omitempty,url"`
	FallbackURL string        `yaml:"fallback_url" envconfig:"FALLBACK_URL" validate:"omitempty,url"`
	Attempts    int           `yaml:"attempts" envconfig:"ATTEMPTS" validate:"gte=1,lte=10"`
	RetryDelay  time.Duration `yaml:"retry_delay" envconfig:"RETRY_DELAY" validate:"gte=0"`
	Timeout     time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
}

// defaultConfig returns the configuration used before file and environment overrides
func defaultConfig() *Config {
	return &Config{
		Forecast: ForecastConfig{
			Profile: DefaultProfile,
			Months:  DefaultForecastMonths,
		},
		StoragePath: getDefaultStoragePath(),
		Server: ServerConfig{
			Addr:           ":8080",
			MaxUploadBytes: 10 << 20,
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   30 * time.Second,
			UploadRPS:      2,
			UploadBurst:    5,
		},
		Influx: InfluxConfig{
			Measurement: "consumption_monthly",
		},
		Source: SourceConfig{
			Attempts:   3,
			RetryDelay: time.Second,
			Timeout:    30 * time.Second,
		},
	}
}

// LoadConfig loads configuration from a YAML file. A missing default file is
// not an error; environment variables are applied last.
func LoadConfig(path string) (*Config, error) {
	config := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist) && path == defaultConfigFile:
			// Defaults only
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := envconfig.Process(envPrefix, config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	return config, nil
}

// defaultConfigFile is the config path used when -config is not given
const defaultConfigFile = "config.yaml"

// getDefaultStoragePath returns the default storage path
func getDefaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".powercast"
	}
	return filepath.Join(home, ".config", "powercast")
}

// ProfileSet returns the built-in profiles overlaid with configured ones
func (c *Config) ProfileSet() ProfileSet {
	profiles := BuiltinProfiles()
	for _, p := range c.Profiles {
		if p.Metrics == nil {
			if existing, ok := profiles[p.Name]; ok {
				p.Metrics = existing.Metrics
			}
		}
		profiles[p.Name] = p
	}
	return profiles
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var problems []string

	if err := validator.New().Struct(c); err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
		for _, fe := range fieldErrors {
			problems = append(problems, describeFieldError(fe))
		}
	}

	if c.Forecast.Profile != "" {
		if _, ok := c.ProfileSet()[c.Forecast.Profile]; !ok {
			problems = append(problems, fmt.Sprintf("forecast.profile %q is not a known profile", c.Forecast.Profile))
		}
	}

	seen := make(map[string]bool)
	for _, p := range c.Profiles {
		if seen[p.Name] {
			problems = append(problems, fmt.Sprintf("profile %q is defined more than once", p.Name))
		}
		seen[p.Name] = true
	}

	// Set default storage path if empty
	if c.StoragePath == "" {
		c.StoragePath = getDefaultStoragePath()
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}

	return nil
}

// describeFieldError turns a validator error into a config-file oriented message
func describeFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required", "required_with":
		return fmt.Sprintf("%s is required", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "gte", "gt", "lte":
		return fmt.Sprintf("%s must be %s %s", field, comparisonWords[fe.Tag()], fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

var comparisonWords = map[string]string{
	"gte": "at least",
	"gt":  "greater than",
	"lte": "at most",
}
