package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/flowpaste/flowpaste/internal/config"
)

// shownConfig is the printable form of config.Config. The API key is masked
// and API tokens are only counted.
type shownConfig struct {
	ConfigFile         string   `yaml:"config_file"`
	Provider           string   `yaml:"provider"`
	LocalBaseURL       string   `yaml:"local_base_url"`
	LocalModel         string   `yaml:"local_model"`
	CloudBaseURL       string   `yaml:"cloud_base_url"`
	CloudModel         string   `yaml:"cloud_model"`
	APIKey             string   `yaml:"api_key"`
	MaxTokens          int      `yaml:"max_tokens"`
	Temperature        float64  `yaml:"temperature"`
	PrivacyShield      bool     `yaml:"privacy_shield"`
	ListenAddr         string   `yaml:"listen_addr"`
	RateLimitRPS       float64  `yaml:"rate_limit_rps"`
	RateLimitBurst     int      `yaml:"rate_limit_burst"`
	APITokens          int      `yaml:"api_tokens"`
	RequestTimeout     string   `yaml:"request_timeout"`
	PatternFile        string   `yaml:"pattern_file,omitempty"`
	DisabledCategories []string `yaml:"disabled_categories,omitempty"`
}

func showConfig(cfg *config.Config) shownConfig {
	s := shownConfig{
		ConfigFile:     viper.ConfigFileUsed(),
		Provider:       string(cfg.Provider),
		LocalBaseURL:   cfg.LocalBaseURL,
		LocalModel:     cfg.LocalModel,
		CloudBaseURL:   cfg.CloudBaseURL,
		CloudModel:     cfg.CloudModel,
		APIKey:         cfg.MaskedAPIKey(),
		MaxTokens:      cfg.MaxTokens,
		Temperature:    cfg.Temperature,
		PrivacyShield:  cfg.PrivacyShield,
		ListenAddr:     cfg.ListenAddr,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		APITokens:      len(cfg.APITokens),
		RequestTimeout: cfg.RequestTimeout.String(),
		PatternFile:    cfg.PatternFile,
	}
	if s.ConfigFile == "" {
		s.ConfigFile = "(none)"
	}
	if s.APIKey == "" {
		s.APIKey = "(not set)"
	}
	for _, c := range cfg.DisabledCategories {
		s.DisabledCategories = append(s.DisabledCategories, string(c))
	}
	return s
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration",
	Long:  "Print the configuration after applying defaults, the config file and FLOWPASTE_* environment variables. The API key is masked.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "config.show")
		defer span.End()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		cfg.WarnIfEnvFallbackKey()
		out, err := yaml.Marshal(showConfig(cfg))
		if err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
