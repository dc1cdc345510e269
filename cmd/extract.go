package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/shriguhanp/AdaptivePedagogyAI/internal/extract"
)

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Print the first JSON object or array found in text",
	Long: "Read model output from a file, or stdin when no file is given, and print the\n" +
		"first well-formed JSON object or array in it. Fenced ```json blocks win over\n" +
		"bare values.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			data []byte
			err  error
		)
		if len(args) == 1 && args[0] != "-" {
			data, err = os.ReadFile(args[0])
		} else {
			data, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		res, ok := extract.Extract(string(data))
		if !ok {
			return extract.ErrNotFound
		}

		if raw, _ := cmd.Flags().GetBool("raw"); raw {
			fmt.Fprintln(cmd.OutOrStdout(), string(res.Raw))
			return nil
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, res.Raw, "", "  "); err != nil {
			return fmt.Errorf("format result: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), buf.String())
		return nil
	},
}

func init() {
	extractCmd.Flags().Bool("raw", false, "Print the matched span exactly as it appears in the input")
}
