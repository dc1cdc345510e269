package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shriguhanp/AdaptivePedagogyAI/internal/llm"
)

var fallbacksCmd = &cobra.Command{
	Use:   "fallbacks",
	Short: "Show the model substituted when a model is rate limited",
	RunE: func(cmd *cobra.Command, args []string) error {
		table := llm.DefaultFallbacks.Snapshot()
		rows := make([][]string, 0, len(table))
		for _, primary := range llm.DefaultFallbacks.Primaries() {
			rows = append(rows, []string{primary, table[primary]})
		}
		if len(rows) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No fallbacks configured.")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Model", "Fallback"}, rows, nil))
		return nil
	},
}
