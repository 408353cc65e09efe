package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowpaste/flowpaste/internal/llm"
	"github.com/flowpaste/flowpaste/internal/privacy"
)

func freshViper(t *testing.T) *viper.Viper {
	t.Helper()
	for _, k := range []string{
		KeyProvider, KeyLocalBaseURL, KeyLocalModel, KeyCloudBaseURL, KeyCloudModel,
		KeyAPIKey, KeyMaxTokens, KeyTemperature, KeyPrivacyShield, KeyListenAddr,
		KeyRateLimitRPS, KeyRateLimitBurst, KeyAPITokens, KeyRequestTimeout,
		KeyPatternFile, KeyDisabledCategories,
	} {
		t.Setenv("FLOWPASTE_"+strings.ToUpper(k), "")
	}
	t.Setenv("OPENAI_API_KEY", "")
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadFrom(freshViper(t))
	require.NoError(t, err)

	assert.Equal(t, llm.KindLocal, cfg.Provider)
	assert.Equal(t, llm.DefaultLocalBaseURL, cfg.LocalBaseURL)
	assert.Equal(t, llm.DefaultLocalModel, cfg.LocalModel)
	assert.Equal(t, llm.DefaultCloudBaseURL, cfg.CloudBaseURL)
	assert.Equal(t, 2048, cfg.MaxTokens)
	assert.Equal(t, 0.7, cfg.Temperature)
	assert.True(t, cfg.PrivacyShield)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, time.Duration(0), cfg.RequestTimeout)
	assert.Empty(t, cfg.APIKey)
	assert.Empty(t, cfg.APITokens)
	assert.False(t, cfg.UsingEnvFallbackKey())
}

func TestLoad_EnvOverrides(t *testing.T) {
	v := freshViper(t)
	t.Setenv("FLOWPASTE_PROVIDER", "openai")
	t.Setenv("FLOWPASTE_API_KEY", "sk-live-abcdefgh1234")
	t.Setenv("FLOWPASTE_CLOUD_MODEL", "gpt-4o")
	t.Setenv("FLOWPASTE_API_TOKENS", "tok-a, tok-b")
	t.Setenv("FLOWPASTE_DISABLED_CATEGORIES", "ipaddress,Email")
	t.Setenv("FLOWPASTE_REQUEST_TIMEOUT", "45s")

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, llm.KindCloud, cfg.Provider)
	assert.Equal(t, []string{"tok-a", "tok-b"}, cfg.APITokens)
	assert.Equal(t, []privacy.Category{privacy.CategoryIPAddress, privacy.CategoryEmail}, cfg.DisabledCategories)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout)

	pc := cfg.DefaultProviderConfig()
	assert.Equal(t, llm.KindCloud, pc.Kind)
	assert.Equal(t, "gpt-4o", pc.Model)
	assert.Equal(t, "sk-live-abcdefgh1234", pc.Credential)
	assert.Equal(t, "********1234", cfg.MaskedAPIKey())
}

func TestLoad_OpenAIFallbackKey(t *testing.T) {
	v := freshViper(t)
	t.Setenv("OPENAI_API_KEY", "sk-fallback-key-0000")

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, "sk-fallback-key-0000", cfg.APIKey)
	assert.True(t, cfg.UsingEnvFallbackKey())
}

func TestLoad_ConfigFile(t *testing.T) {
	v := freshViper(t)
	path := filepath.Join(t.TempDir(), "flowpaste.config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
provider: cloud
cloud_base_url: https://gateway.example.com/v1
api_key: sk-from-file-12345678
privacy_shield: false
api_tokens:
  - one
  - two
`), 0o600))
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, llm.KindCloud, cfg.Provider)
	assert.False(t, cfg.PrivacyShield)
	assert.Equal(t, []string{"one", "two"}, cfg.APITokens)
	assert.Equal(t, "https://gateway.example.com/v1", cfg.ProviderConfig(llm.KindCloud).BaseURL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"unknown provider", map[string]string{"FLOWPASTE_PROVIDER": "anthropic"}, "provider"},
		{"negative max tokens", map[string]string{"FLOWPASTE_MAX_TOKENS": "-1"}, "max_tokens"},
		{"temperature too high", map[string]string{"FLOWPASTE_TEMPERATURE": "2.5"}, "temperature"},
		{"bad listen addr", map[string]string{"FLOWPASTE_LISTEN_ADDR": "nope"}, "listen_addr"},
		{"zero burst", map[string]string{"FLOWPASTE_RATE_LIMIT_BURST": "0"}, "rate_limit_burst"},
		{"unknown category", map[string]string{"FLOWPASTE_DISABLED_CATEGORIES": "Passport"}, "disabled_categories"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := freshViper(t)
			for k, val := range tt.env {
				t.Setenv(k, val)
			}
			_, err := LoadFrom(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestScannerOptions(t *testing.T) {
	cfg := &Config{DisabledCategories: []privacy.Category{privacy.CategoryEmail}}
	s, err := privacy.NewScanner(cfg.ScannerOptions()...)
	require.NoError(t, err)
	assert.False(t, s.Scan("a@b.com").HasPII)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret(""))
	assert.Equal(t, "*****", MaskSecret("short"))
	assert.Equal(t, "********wxyz", MaskSecret("sk-abcdefghijklmnopqrstuvwxyz"))
}
