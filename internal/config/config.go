// Package config provides configuration loading and validation for pocforge.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joshsymonds/pocforge/internal/provider"
)

// Documented defaults.
const (
	DefaultMaxTokens   = 4096
	DefaultTimeoutMS   = 120000
	DefaultRetries     = 2
	DefaultConcurrency = 1
	DefaultMaxItems    = 10
	DefaultDelayMS     = 2000
	DefaultTemperature = 1.0
	DefaultSelection   = "severity"
)

// Upper bounds; larger values fall back to the default.
const (
	MaxRetries   = 10
	MaxTimeoutMS = 60 * 60 * 1000
	MaxDelayMS   = 10 * 60 * 1000
)

// Transport names.
const (
	TransportHTTP = "http"
	TransportSDK  = "sdk"
)

// Environment variables for dispatch tuning.
const (
	EnvMaxTokens   = "LLM_POC_MAX_TOKENS"
	EnvTimeoutMS   = "LLM_POC_TIMEOUT_MS"
	EnvRetries     = "LLM_POC_RETRIES"
	EnvConcurrency = "LLM_POC_CONCURRENCY"
	EnvMaxItems    = "LLM_POC_MAX"
	EnvDelayMS     = "LLM_POC_DELAY_MS"
)

// LookupFunc has the shape of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Config represents the complete configuration for a generation run.
type Config struct {
	Provider  provider.Settings `yaml:"provider,omitempty"`
	Transport string            `yaml:"transport,omitempty"`
	Selection string            `yaml:"selection,omitempty"`
	Dispatch  Dispatch          `yaml:"dispatch,omitempty"`
}

// Dispatch tunes the request executor and batch dispatcher.
type Dispatch struct {
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutMS   int     `yaml:"timeout_ms"`
	Retries     int     `yaml:"retries"`
	Concurrency int     `yaml:"concurrency"`
	MaxItems    int     `yaml:"max_items"`
	DelayMS     int     `yaml:"delay_ms"`
	Temperature float64 `yaml:"temperature"`
}

// Default returns a configuration with every documented default applied.
func Default() *Config {
	return &Config{
		Transport: TransportHTTP,
		Selection: DefaultSelection,
		Dispatch:  DefaultDispatch(),
	}
}

// DefaultDispatch returns the documented dispatch defaults.
func DefaultDispatch() Dispatch {
	return Dispatch{
		MaxTokens:   DefaultMaxTokens,
		TimeoutMS:   DefaultTimeoutMS,
		Retries:     DefaultRetries,
		Concurrency: DefaultConcurrency,
		MaxItems:    DefaultMaxItems,
		DelayMS:     DefaultDelayMS,
		Temperature: DefaultTemperature,
	}
}

// Timeout is the per-attempt request timeout.
func (d Dispatch) Timeout() time.Duration {
	return time.Duration(d.TimeoutMS) * time.Millisecond
}

// InterRequestDelay is the cooldown between admissions.
func (d Dispatch) InterRequestDelay() time.Duration {
	return time.Duration(d.DelayMS) * time.Millisecond
}

// Normalize replaces out-of-range values with their defaults.
func (d *Dispatch) Normalize() {
	if d.MaxTokens <= 0 {
		d.MaxTokens = DefaultMaxTokens
	}
	if d.TimeoutMS <= 0 || d.TimeoutMS > MaxTimeoutMS {
		d.TimeoutMS = DefaultTimeoutMS
	}
	if d.Retries < 0 || d.Retries > MaxRetries {
		d.Retries = DefaultRetries
	}
	if d.Concurrency < 1 {
		d.Concurrency = DefaultConcurrency
	}
	if d.MaxItems < 0 {
		d.MaxItems = DefaultMaxItems
	}
	if d.DelayMS < 0 || d.DelayMS > MaxDelayMS {
		d.DelayMS = DefaultDelayMS
	}
	if d.Temperature < 0 {
		d.Temperature = DefaultTemperature
	}
}

// LoadConfig reads and parses a YAML configuration file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is from trusted source (config file)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	config.Dispatch.Normalize()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Load builds the effective configuration: defaults, then the optional YAML
// file at path, then the environment seen through lookup.
func Load(path string, lookup LookupFunc) (*Config, error) {
	config := Default()
	if path != "" {
		var err error
		if config, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}

	config.ApplyEnv(lookup)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// ApplyEnv overlays environment values. Malformed integers resolve to the
// documented default rather than the previous value.
func (c *Config) ApplyEnv(lookup LookupFunc) {
	if lookup == nil {
		return
	}

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str(provider.EnvProvider, &c.Provider.Override)
	str(provider.EnvKimiCodeKey, &c.Provider.KimiCodeAPIKey)
	str(provider.EnvMoonshotKey, &c.Provider.MoonshotAPIKey)
	str(provider.EnvModel, &c.Provider.Model)
	str(provider.EnvSharedModel, &c.Provider.SharedModel)
	str(provider.EnvEndpoint, &c.Provider.Endpoint)

	num := func(key string, dst *int, def int) {
		if v, ok := lookup(key); ok {
			*dst = safeInt(v, def)
		}
	}
	num(EnvMaxTokens, &c.Dispatch.MaxTokens, DefaultMaxTokens)
	num(EnvTimeoutMS, &c.Dispatch.TimeoutMS, DefaultTimeoutMS)
	num(EnvRetries, &c.Dispatch.Retries, DefaultRetries)
	num(EnvConcurrency, &c.Dispatch.Concurrency, DefaultConcurrency)
	num(EnvMaxItems, &c.Dispatch.MaxItems, DefaultMaxItems)
	num(EnvDelayMS, &c.Dispatch.DelayMS, DefaultDelayMS)

	c.Dispatch.Normalize()
}

// safeInt parses raw as a base-10 integer, returning def when it is not one.
func safeInt(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return n
}

// Validate ensures the configuration is valid.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportHTTP, TransportSDK:
	default:
		return fmt.Errorf("transport must be %q or %q, got %q", TransportHTTP, TransportSDK, c.Transport)
	}

	if strings.TrimSpace(c.Selection) == "" {
		return fmt.Errorf("selection strategy is required")
	}

	return nil
}

// Redacted returns a copy safe to print: credentials are masked.
func (c *Config) Redacted() *Config {
	out := *c
	out.Provider.KimiCodeAPIKey = provider.Redact(c.Provider.KimiCodeAPIKey)
	out.Provider.MoonshotAPIKey = provider.Redact(c.Provider.MoonshotAPIKey)
	return &out
}
