package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowpaste/flowpaste/internal/config"
	"github.com/flowpaste/flowpaste/internal/llm"
)

var (
	healthProvider string
	healthBaseURL  string
)

// errUnreachable makes the command exit non-zero when the provider is down.
var errUnreachable = errors.New("provider unreachable")

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check whether a provider is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "health")
		defer span.End()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		pcfg, err := providerConfig(cfg, healthProvider, healthBaseURL, "")
		if err != nil {
			return err
		}
		provider, err := llm.NewDefaultRegistry(nil).Get(pcfg.Kind)
		if err != nil {
			return err
		}
		if !provider.HealthCheck(ctx, pcfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: unreachable\n", pcfg.Kind, pcfg.BaseURL)
			return errUnreachable
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s: ok\n", pcfg.Kind, pcfg.BaseURL)
		return nil
	},
}

func init() {
	healthCmd.Flags().StringVar(&healthProvider, "provider", string(llm.KindLocal), "provider: local|cloud")
	healthCmd.Flags().StringVar(&healthBaseURL, "base-url", "", "provider base URL (default from config)")
	rootCmd.AddCommand(healthCmd)
}
