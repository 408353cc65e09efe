package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowpaste/flowpaste/internal/config"
	"github.com/flowpaste/flowpaste/internal/privacy"
)

var scanCmd = &cobra.Command{
	Use:   "scan [text]",
	Short: "Detect PII in text",
	Long:  "Scan text (arguments or stdin) for PII and print the matches as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "scan")
		defer span.End()

		text, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		scanner, err := loadScanner()
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), scanner.Scan(text))
	},
}

// loadScanner builds a scanner from the pattern file and disabled categories
// in the configuration.
func loadScanner() (*privacy.Scanner, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	s, err := privacy.NewScanner(cfg.ScannerOptions()...)
	if err != nil {
		return nil, fmt.Errorf("building scanner: %w", err)
	}
	return s, nil
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
