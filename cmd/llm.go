package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shriguhanp/AdaptivePedagogyAI/internal/llm"
	"github.com/shriguhanp/AdaptivePedagogyAI/internal/store"
)

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect recorded LLM attempts",
}

var llmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent LLM attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := store.QueryOpts{}
		opts.Limit, _ = cmd.Flags().GetInt("limit")
		opts.Purpose, _ = cmd.Flags().GetString("purpose")
		opts.Model, _ = cmd.Flags().GetString("model")
		opts.CallID, _ = cmd.Flags().GetString("call")

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		events, err := s.EventRepo().QueryLLMEvents(cmd.Context(), opts)
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(events) == 0 {
			fmt.Fprintln(out, "No LLM events found.")
			return nil
		}

		rows := make([][]string, 0, len(events))
		for _, e := range events {
			rows = append(rows, []string{
				strconv.Itoa(e.ID),
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				truncate(e.CallID, 8),
				e.Purpose,
				truncate(e.Model, 28),
				e.Outcome,
				strconv.Itoa(e.InputTokens),
				strconv.Itoa(e.OutputTokens),
				strconv.FormatInt(e.LatencyMs, 10),
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"ID", "Timestamp", "Call", "Purpose", "Model", "Outcome", "In", "Out", "Ms"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
		))
		return nil
	},
}

var llmViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "View full request/response for an LLM attempt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid ID %q: %w", args[0], err)
		}

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		e, err := s.EventRepo().GetLLMEvent(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}
		if e == nil {
			return fmt.Errorf("event %d not found", id)
		}

		out := cmd.OutOrStdout()
		sep := strings.Repeat("─", 60)

		fmt.Fprintf(out, "ID:        %d\n", e.ID)
		fmt.Fprintf(out, "Time:      %s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05"))
		fmt.Fprintf(out, "Call:      %s\n", e.CallID)
		fmt.Fprintf(out, "Provider:  %s\n", e.Provider)
		fmt.Fprintf(out, "Model:     %s\n", e.Model)
		fmt.Fprintf(out, "Purpose:   %s\n", e.Purpose)
		fmt.Fprintf(out, "Outcome:   %s\n", e.Outcome)
		fmt.Fprintf(out, "Tokens:    %d in / %d out\n", e.InputTokens, e.OutputTokens)
		fmt.Fprintf(out, "Latency:   %dms\n", e.LatencyMs)
		if e.ErrorMessage != "" {
			fmt.Fprintf(out, "Error:     %s\n", e.ErrorMessage)
		}

		for _, section := range []struct{ title, body string }{
			{"REQUEST", e.RequestBody},
			{"RESPONSE", e.ResponseBody},
		} {
			fmt.Fprintln(out)
			fmt.Fprintln(out, sep)
			fmt.Fprintln(out, section.title)
			fmt.Fprintln(out, sep)
			if section.body != "" {
				fmt.Fprintln(out, section.body)
			} else {
				fmt.Fprintln(out, "(not captured)")
			}
		}
		return nil
	},
}

var llmStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregated LLM token usage and estimated cost",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		stats, err := s.EventRepo().LLMUsageByPurpose(ctx)
		if err != nil {
			return fmt.Errorf("query usage: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(stats) == 0 {
			fmt.Fprintln(out, "No LLM usage recorded yet.")
			return nil
		}

		var totalCalls, totalFailures, totalIn, totalOut int
		rows := make([][]string, 0, len(stats)+1)
		for _, st := range stats {
			rows = append(rows, []string{
				st.Purpose,
				strconv.Itoa(st.Calls),
				strconv.Itoa(st.Failures),
				strconv.Itoa(st.InputTokens),
				strconv.Itoa(st.OutputTokens),
				strconv.FormatInt(st.AvgLatencyMs, 10),
			})
			totalCalls += st.Calls
			totalFailures += st.Failures
			totalIn += st.InputTokens
			totalOut += st.OutputTokens
		}
		rows = append(rows, []string{"TOTAL", strconv.Itoa(totalCalls), strconv.Itoa(totalFailures),
			strconv.Itoa(totalIn), strconv.Itoa(totalOut), ""})

		fmt.Fprintln(out, "Usage by Purpose")
		fmt.Fprintln(out, renderTable(
			[]string{"Purpose", "Attempts", "Failed", "Input", "Output", "Avg Ms"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
		))

		modelUsage, err := s.EventRepo().LLMUsageByModel(ctx)
		if err != nil {
			return fmt.Errorf("query model usage: %w", err)
		}
		if len(modelUsage) == 0 {
			return nil
		}

		var (
			totalCost     float64
			unknownModels []string
		)
		rows = rows[:0]
		for _, mu := range modelUsage {
			cost := "?"
			if c := llm.LookupCost(mu.Model); c != nil {
				usd := c.Cost(mu.InputTokens, mu.OutputTokens)
				totalCost += usd
				cost = formatCost(usd)
			} else {
				unknownModels = append(unknownModels, mu.Model)
			}
			rows = append(rows, []string{
				truncate(mu.Model, 32),
				strconv.Itoa(mu.Calls),
				strconv.Itoa(mu.RateLimited),
				strconv.Itoa(mu.InputTokens),
				strconv.Itoa(mu.OutputTokens),
				cost,
			})
		}
		label := "TOTAL"
		if len(unknownModels) > 0 {
			label = "TOTAL (partial)"
		}
		rows = append(rows, []string{label, "", "", "", "", formatCost(totalCost)})

		fmt.Fprintln(out)
		fmt.Fprintln(out, "Estimated Cost (USD)")
		fmt.Fprintln(out, renderTable(
			[]string{"Model", "Attempts", "Rate Limited", "Input", "Output", "Cost"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
		))
		if len(unknownModels) > 0 {
			fmt.Fprintf(out, "\nPricing unavailable for: %s\n", strings.Join(unknownModels, ", "))
		}
		return nil
	},
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func formatCost(usd float64) string {
	if usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}

func init() {
	llmListCmd.Flags().IntP("limit", "n", 20, "Number of attempts to show")
	llmListCmd.Flags().StringP("purpose", "p", "", "Filter by purpose (e.g. question-gen, hint, cli)")
	llmListCmd.Flags().StringP("model", "m", "", "Filter by model")
	llmListCmd.Flags().String("call", "", "Show only the attempts of one completion call")

	llmCmd.AddCommand(llmListCmd)
	llmCmd.AddCommand(llmViewCmd)
	llmCmd.AddCommand(llmStatsCmd)
}
