package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowpaste/flowpaste/internal/privacy"
)

var restoreMapping string

var restoreCmd = &cobra.Command{
	Use:   "restore [text]",
	Short: "Replace placeholders with their original values",
	Long:  "Restore text (arguments or stdin) using a mapping file written by \"flowpaste mask --mapping-out\". Unknown placeholders are left as-is.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "restore")
		defer span.End()

		b, err := os.ReadFile(restoreMapping)
		if err != nil {
			return fmt.Errorf("reading mapping: %w", err)
		}
		var mapping privacy.Mapping
		if err := json.Unmarshal(b, &mapping); err != nil {
			return fmt.Errorf("parsing mapping %s: %w", restoreMapping, err)
		}
		text, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		_, err = io.WriteString(cmd.OutOrStdout(), privacy.Restore(text, mapping)+"\n")
		return err
	},
}

func init() {
	restoreCmd.Flags().StringVar(&restoreMapping, "mapping", "", "placeholder mapping JSON file")
	_ = restoreCmd.MarkFlagRequired("mapping")
	rootCmd.AddCommand(restoreCmd)
}
