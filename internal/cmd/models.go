package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowpaste/flowpaste/internal/config"
	"github.com/flowpaste/flowpaste/internal/llm"
)

var (
	modelsProvider string
	modelsBaseURL  string
	modelsJSON     bool
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models a provider offers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "models")
		defer span.End()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		pcfg, err := providerConfig(cfg, modelsProvider, modelsBaseURL, "")
		if err != nil {
			return err
		}
		provider, err := llm.NewDefaultRegistry(nil).Get(pcfg.Kind)
		if err != nil {
			return err
		}
		models, err := provider.ListModels(ctx, pcfg)
		if err != nil {
			return err
		}
		if modelsJSON {
			return printJSON(cmd.OutOrStdout(), models)
		}
		for _, m := range models {
			fmt.Fprintln(cmd.OutOrStdout(), m.ID)
		}
		return nil
	},
}

func init() {
	modelsCmd.Flags().StringVar(&modelsProvider, "provider", string(llm.KindLocal), "provider: local|cloud")
	modelsCmd.Flags().StringVar(&modelsBaseURL, "base-url", "", "provider base URL (default from config)")
	modelsCmd.Flags().BoolVar(&modelsJSON, "json", false, "print models as JSON")
	rootCmd.AddCommand(modelsCmd)
}
