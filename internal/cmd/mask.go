package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	maskJSON       bool
	maskMappingOut string
)

var maskCmd = &cobra.Command{
	Use:   "mask [text]",
	Short: "Replace PII with placeholders",
	Long: `Mask text (arguments or stdin) and print the masked text.

Use --mapping-out to save the placeholder mapping for a later
"flowpaste restore", or --json to print the masked text, mapping and
matches together.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "mask")
		defer span.End()

		text, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		scanner, err := loadScanner()
		if err != nil {
			return err
		}
		res := scanner.MaskText(ctx, text)

		if maskMappingOut != "" {
			b, err := json.MarshalIndent(res.Mapping, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding mapping: %w", err)
			}
			if err := os.WriteFile(maskMappingOut, b, 0o600); err != nil {
				return fmt.Errorf("writing mapping: %w", err)
			}
		}
		if maskJSON {
			return printJSON(cmd.OutOrStdout(), res)
		}
		_, err = io.WriteString(cmd.OutOrStdout(), res.Masked+"\n")
		return err
	},
}

func init() {
	maskCmd.Flags().BoolVar(&maskJSON, "json", false, "print masked text, mapping and matches as JSON")
	maskCmd.Flags().StringVar(&maskMappingOut, "mapping-out", "", "write the placeholder mapping to this JSON file (mode 0600)")
	rootCmd.AddCommand(maskCmd)
}
