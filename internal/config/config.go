// Package config holds process-level configuration for FlowPaste.
//
// Values are resolved by Viper from, in order of precedence: command-line
// flags bound by internal/cmd, FLOWPASTE_* environment variables, the
// optional flowpaste.config.yaml file, and the defaults below.
//
// The cloud API key is the only credential. It should be supplied through
// FLOWPASTE_API_KEY; OPENAI_API_KEY is accepted as a quickstart fallback and
// logs a warning when used.
package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/flowpaste/flowpaste/internal/llm"
	"github.com/flowpaste/flowpaste/internal/privacy"
)

// Viper keys. Each maps to an env var with the FLOWPASTE_ prefix
// (e.g. "local_base_url" → FLOWPASTE_LOCAL_BASE_URL) and to a YAML field
// in flowpaste.config.yaml.
const (
	KeyProvider           = "provider"
	KeyLocalBaseURL       = "local_base_url"
	KeyLocalModel         = "local_model"
	KeyCloudBaseURL       = "cloud_base_url"
	KeyCloudModel         = "cloud_model"
	KeyAPIKey             = "api_key"
	KeyMaxTokens          = "max_tokens"
	KeyTemperature        = "temperature"
	KeyPrivacyShield      = "privacy_shield"
	KeyListenAddr         = "listen_addr"
	KeyRateLimitRPS       = "rate_limit_rps"
	KeyRateLimitBurst     = "rate_limit_burst"
	KeyAPITokens          = "api_tokens"
	KeyRequestTimeout     = "request_timeout"
	KeyPatternFile        = "pattern_file"
	KeyDisabledCategories = "disabled_categories"
)

// EnvPrefix is the environment variable prefix.
const EnvPrefix = "FLOWPASTE"

// Defaults.
const (
	DefaultProvider       = "local"
	DefaultListenAddr     = "127.0.0.1:7878"
	DefaultRateLimitRPS   = 10.0
	DefaultRateLimitBurst = 20
)

// Config holds resolved configuration.
type Config struct {
	Provider           llm.Kind
	LocalBaseURL       string
	LocalModel         string
	CloudBaseURL       string
	CloudModel         string
	APIKey             string
	MaxTokens          int
	Temperature        float64
	PrivacyShield      bool
	ListenAddr         string
	RateLimitRPS       float64
	RateLimitBurst     int
	APITokens          []string
	RequestTimeout     time.Duration
	PatternFile        string
	DisabledCategories []privacy.Category

	usingEnvFallbackKey bool
}

// UsingEnvFallbackKey reports whether the API key came from OPENAI_API_KEY.
func (c *Config) UsingEnvFallbackKey() bool {
	return c.usingEnvFallbackKey
}

// ProviderConfig returns the request configuration for kind.
func (c *Config) ProviderConfig(kind llm.Kind) llm.Config {
	cfg := llm.Config{
		Kind:        kind,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
	}
	switch kind {
	case llm.KindLocal:
		cfg.BaseURL = c.LocalBaseURL
		cfg.Model = c.LocalModel
	case llm.KindCloud:
		cfg.BaseURL = c.CloudBaseURL
		cfg.Model = c.CloudModel
		cfg.Credential = c.APIKey
	}
	return cfg.WithDefaults()
}

// DefaultProviderConfig returns the request configuration for the configured
// provider.
func (c *Config) DefaultProviderConfig() llm.Config {
	return c.ProviderConfig(c.Provider)
}

// ScannerOptions returns the privacy scanner options for this configuration.
func (c *Config) ScannerOptions() []privacy.ScannerOption {
	var opts []privacy.ScannerOption
	if c.PatternFile != "" {
		opts = append(opts, privacy.WithPatternFile(c.PatternFile))
	}
	if len(c.DisabledCategories) > 0 {
		opts = append(opts, privacy.WithDisabledCategories(c.DisabledCategories))
	}
	return opts
}

// MaskedAPIKey returns the API key with all but the last four characters
// hidden, or "" when unset.
func (c *Config) MaskedAPIKey() string {
	return MaskSecret(c.APIKey)
}

// MaskSecret hides all but the last four characters of s.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", 8) + s[len(s)-4:]
}

func init() {
	SetDefaults(viper.GetViper())
}

// SetDefaults configures env binding and defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetDefault(KeyProvider, DefaultProvider)
	v.SetDefault(KeyLocalBaseURL, llm.DefaultLocalBaseURL)
	v.SetDefault(KeyLocalModel, llm.DefaultLocalModel)
	v.SetDefault(KeyCloudBaseURL, llm.DefaultCloudBaseURL)
	v.SetDefault(KeyCloudModel, llm.DefaultCloudModel)
	v.SetDefault(KeyMaxTokens, llm.DefaultMaxTokens)
	v.SetDefault(KeyTemperature, llm.DefaultTemperature)
	v.SetDefault(KeyPrivacyShield, true)
	v.SetDefault(KeyListenAddr, DefaultListenAddr)
	v.SetDefault(KeyRateLimitRPS, DefaultRateLimitRPS)
	v.SetDefault(KeyRateLimitBurst, DefaultRateLimitBurst)
	v.SetDefault(KeyRequestTimeout, "0s")
}

// Load reads configuration from the global Viper instance and returns a
// validated Config.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads configuration from v and returns a validated Config.
func LoadFrom(v *viper.Viper) (*Config, error) {
	kind, err := llm.ParseKind(v.GetString(KeyProvider))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %s: %w", KeyProvider, err)
	}

	cfg := &Config{
		Provider:       kind,
		LocalBaseURL:   v.GetString(KeyLocalBaseURL),
		LocalModel:     v.GetString(KeyLocalModel),
		CloudBaseURL:   v.GetString(KeyCloudBaseURL),
		CloudModel:     v.GetString(KeyCloudModel),
		APIKey:         v.GetString(KeyAPIKey),
		MaxTokens:      v.GetInt(KeyMaxTokens),
		Temperature:    v.GetFloat64(KeyTemperature),
		PrivacyShield:  v.GetBool(KeyPrivacyShield),
		ListenAddr:     v.GetString(KeyListenAddr),
		RateLimitRPS:   v.GetFloat64(KeyRateLimitRPS),
		RateLimitBurst: v.GetInt(KeyRateLimitBurst),
		APITokens:      splitList(v.GetStringSlice(KeyAPITokens)),
		RequestTimeout: v.GetDuration(KeyRequestTimeout),
		PatternFile:    v.GetString(KeyPatternFile),
	}

	for _, name := range splitList(v.GetStringSlice(KeyDisabledCategories)) {
		c, err := privacy.ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("invalid configuration: %s: %w", KeyDisabledCategories, err)
		}
		cfg.DisabledCategories = append(cfg.DisabledCategories, c)
	}

	if cfg.APIKey == "" {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			cfg.APIKey = key
			cfg.usingEnvFallbackKey = true
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// WarnIfEnvFallbackKey logs a warning when the API key came from
// OPENAI_API_KEY instead of FLOWPASTE_API_KEY or the config file.
func (c *Config) WarnIfEnvFallbackKey() {
	if c.usingEnvFallbackKey {
		log.Warn().Msg("Using OPENAI_API_KEY as quickstart fallback; set FLOWPASTE_API_KEY or api_key in flowpaste.config.yaml")
	}
}

func (c *Config) validate() error {
	if c.MaxTokens < 0 {
		return fmt.Errorf("%s must not be negative", KeyMaxTokens)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%s must be between 0 and 2", KeyTemperature)
	}
	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return fmt.Errorf("%s %q: %w", KeyListenAddr, c.ListenAddr, err)
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("%s must not be negative", KeyRateLimitRPS)
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		return fmt.Errorf("%s must be at least 1 when rate limiting is enabled", KeyRateLimitBurst)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("%s must not be negative", KeyRequestTimeout)
	}
	return nil
}

// splitList flattens values that may be comma-separated (env vars) into a
// list without blanks.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
