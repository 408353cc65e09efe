package cmd

import (
	"github.com/spf13/cobra"

	"github.com/flowpaste/flowpaste/internal/intent"
)

var intentCmd = &cobra.Command{
	Use:   "intent [text]",
	Short: "Detect the content type of text and suggest actions",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "intent")
		defer span.End()

		text, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), intent.Detect(text))
	},
}

func init() {
	rootCmd.AddCommand(intentCmd)
}
