package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shriguhanp/AdaptivePedagogyAI/internal/llm"
)

var completeCmd = &cobra.Command{
	Use:   "complete [prompt...]",
	Short: "Run one completion and print the generated text",
	Long: "Run one completion against the configured provider. The prompt is taken from\n" +
		"the arguments, or from stdin when none are given or the only one is \"-\".\n" +
		"The text goes to stdout; the model that produced it goes to stderr.",
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt, err := readPrompt(cmd, args)
		if err != nil {
			return err
		}

		cfg := appConfig
		if m, _ := cmd.Flags().GetString("model"); m != "" {
			cfg.Model = m
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		req := cfg.Request(prompt)
		req.System, _ = cmd.Flags().GetString("system")
		if cmd.Flags().Changed("max-retries") {
			req.Retry.MaxRetries, _ = cmd.Flags().GetInt("max-retries")
		}
		if cmd.Flags().Changed("retry-delay") {
			req.Retry.RetryDelay, _ = cmd.Flags().GetDuration("retry-delay")
		}
		if cmd.Flags().Changed("max-tokens") {
			req.Params.MaxTokens, _ = cmd.Flags().GetInt("max-tokens")
		}

		opts := []llm.Option{
			llm.WithLogger(appLog.Entry),
			llm.WithTimeout(cfg.Timeout),
		}
		if record, _ := cmd.Flags().GetBool("record"); record {
			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			opts = append(opts, llm.WithRecorder(s.EventRepo()))
		}
		completer := llm.NewCompleter(opts...)

		purpose, _ := cmd.Flags().GetString("purpose")
		ctx := llm.WithPurpose(cmd.Context(), purpose)

		asJSON, _ := cmd.Flags().GetBool("json")
		schemaPath, _ := cmd.Flags().GetString("schema")
		if !asJSON && schemaPath == "" {
			comp, err := completer.Complete(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), comp.Text)
			printServedBy(cmd, comp)
			return nil
		}

		var schema *llm.Schema
		if schemaPath != "" {
			if schema, err = loadSchema(schemaPath); err != nil {
				return err
			}
		}
		sc, err := completer.CompleteJSON(ctx, req, schema)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(sc.Result.Value, "", "  ")
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		printServedBy(cmd, sc.Completion)
		return nil
	},
}

func readPrompt(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("empty prompt: pass it as arguments or on stdin")
	}
	return prompt, nil
}

func printServedBy(cmd *cobra.Command, comp *llm.Completion) {
	w := cmd.ErrOrStderr()
	if comp.FellBack {
		fmt.Fprintf(w, "model: %s (fallback for rate-limited %s)\n", comp.Model, comp.RequestedModel)
	} else {
		fmt.Fprintf(w, "model: %s\n", comp.Model)
	}
	fmt.Fprintf(w, "attempts: %d, tokens: %d in / %d out\n",
		len(comp.Attempts), comp.Usage.InputTokens, comp.Usage.OutputTokens)
}

func loadSchema(path string) (*llm.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	var def map[string]any
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", path, err)
	}
	return &llm.Schema{Name: path, Definition: def}, nil
}

func init() {
	completeCmd.Flags().StringP("model", "m", "", "Model to request (default from config)")
	completeCmd.Flags().StringP("system", "s", "", "System prompt")
	completeCmd.Flags().Int("max-retries", 0, "Retries after the first attempt on transient failures")
	completeCmd.Flags().Duration("retry-delay", 0, "Wait between transient retries")
	completeCmd.Flags().Int("max-tokens", 0, "Maximum tokens to generate")
	completeCmd.Flags().Bool("json", false, "Print the first JSON object or array in the reply")
	completeCmd.Flags().String("schema", "", "Validate the extracted JSON against this JSON Schema file (implies --json)")
	completeCmd.Flags().Bool("record", false, "Record every attempt to the database")
	completeCmd.Flags().StringP("purpose", "p", "cli", "Purpose label for recorded attempts")
}
