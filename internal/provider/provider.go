// Package provider resolves which LLM backend, endpoint, model and credential a run uses.
package provider

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Provider identifies an OpenAI-compatible chat completion backend.
type Provider string

// Known providers. Auto is only meaningful as an override value.
const (
	Auto     Provider = "auto"
	KimiCode Provider = "kimi_code"
	Moonshot Provider = "moonshot"
)

// Environment variables consulted when building Settings.
const (
	EnvProvider    = "POC_PROVIDER"
	EnvKimiCodeKey = "KIMI_CODE_API_KEY"
	EnvMoonshotKey = "MOONSHOT_API_KEY"
	EnvModel       = "LLM_POC_MODEL"
	EnvSharedModel = "MOONSHOT_MODEL"
	EnvEndpoint    = "LLM_POC_ENDPOINT"
)

// DefaultModel is used when no model override is configured.
const DefaultModel = "kimi-k2.5"

const (
	kimiCodeEndpoint = "https://api.kimi.com/coding/v1/chat/completions"
	moonshotEndpoint = "https://api.moonshot.ai/v1/chat/completions"
)

// Settings are the raw inputs to provider resolution.
type Settings struct {
	Override       string `yaml:"override,omitempty"`
	KimiCodeAPIKey string `yaml:"kimi_code_api_key,omitempty"`
	MoonshotAPIKey string `yaml:"moonshot_api_key,omitempty"`
	Model          string `yaml:"model,omitempty"`
	SharedModel    string `yaml:"shared_model,omitempty"`
	Endpoint       string `yaml:"endpoint,omitempty"`
}

// Config is a resolved provider. It is immutable for the lifetime of a run.
type Config struct {
	Provider Provider
	Endpoint string
	APIKey   string
	Model    string
}

// ConfigError reports a provider that cannot be used, typically for lack of a credential.
type ConfigError struct {
	Provider Provider
	EnvVar   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("no API key for provider %s: set %s", e.Provider.Label(), e.EnvVar)
}

// Parse maps an override string onto a known provider. Unknown values yield Auto.
func Parse(s string) Provider {
	switch Provider(strings.ToLower(strings.TrimSpace(s))) {
	case KimiCode:
		return KimiCode
	case Moonshot:
		return Moonshot
	default:
		return Auto
	}
}

// Select picks the provider without looking at anything but Settings.
// A recognised override wins; otherwise Kimi Code is preferred when its key is present.
func Select(s Settings) Provider {
	if p := Parse(s.Override); p != Auto {
		return p
	}
	if strings.TrimSpace(s.KimiCodeAPIKey) != "" {
		return KimiCode
	}
	return Moonshot
}

// Resolve selects the provider and computes its endpoint, model and credential.
func Resolve(s Settings) (Config, error) {
	p := Select(s)

	cfg := Config{
		Provider: p,
		Endpoint: p.Endpoint(),
		APIKey:   strings.TrimSpace(p.apiKey(s)),
		Model:    ModelFor(s),
	}
	if s.Endpoint != "" {
		cfg.Endpoint = s.Endpoint
	}

	if cfg.APIKey == "" {
		return Config{}, &ConfigError{Provider: p, EnvVar: p.KeyEnv()}
	}
	return cfg, nil
}

// ModelFor applies model precedence: explicit model, then shared model, then the default.
func ModelFor(s Settings) string {
	if m := strings.TrimSpace(s.Model); m != "" {
		return m
	}
	if m := strings.TrimSpace(s.SharedModel); m != "" {
		return m
	}
	return DefaultModel
}

// Endpoint returns the chat completions URL for the provider.
func (p Provider) Endpoint() string {
	if p == KimiCode {
		return kimiCodeEndpoint
	}
	return moonshotEndpoint
}

// KeyEnv names the environment variable holding the provider's credential.
func (p Provider) KeyEnv() string {
	if p == KimiCode {
		return EnvKimiCodeKey
	}
	return EnvMoonshotKey
}

func (p Provider) apiKey(s Settings) string {
	if p == KimiCode {
		return s.KimiCodeAPIKey
	}
	return s.MoonshotAPIKey
}

// Label returns a human readable provider name, e.g. "Kimi Code".
func (p Provider) Label() string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(p), "_", " "))
}

func (p Provider) String() string {
	return string(p)
}

// Redact masks a secret for display, keeping only its last four characters.
func Redact(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
