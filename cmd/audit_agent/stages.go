package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/textaudit/layered-audit/internal/observability"
	"github.com/textaudit/layered-audit/internal/pipeline/steps"
)

var stagesJSON bool

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "Print the audit stages in canonical order",
	RunE:  runStages,
}

func init() {
	stagesCmd.Flags().BoolVar(&stagesJSON, "json", false, "Print the stage ids as a JSON array")
	rootCmd.AddCommand(stagesCmd)
}

func runStages(cmd *cobra.Command, _ []string) error {
	if stagesJSON {
		data, err := json.Marshal(steps.Order())
		if err != nil {
			return fmt.Errorf("failed to encode stage order: %w", err)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	observability.NewPrinter(cmd.OutOrStdout(), false).PrintStageCatalogue(steps.Catalogue)
	return nil
}
