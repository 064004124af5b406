package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"filetriage/internal/config"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Show the effective configuration and check the relay",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to get app instance: %w", err)
		}
		cfg := appInstance.Config
		out := cmd.OutOrStdout()

		printConfig(out, cfg.Redacted())

		for _, p := range []string{"qwen", "deepseek"} {
			if cfg.APIKey(p) == "" {
				fmt.Fprintf(out, "%s no %s API key configured\n", color.YellowString("WARN"), p)
			}
		}

		if cfg.LLM.Mode != config.ModeRelay {
			fmt.Fprintln(out, "Direct mode: relay check skipped.")
			return nil
		}
		fmt.Fprintf(out, "Checking relay at %s...\n", cfg.LLM.RelayURL)
		if err := appInstance.CheckRelay(ctx, cfg.LLM.RelayURL); err != nil {
			return fmt.Errorf("relay check failed: %w", err)
		}
		fmt.Fprintln(out, color.GreenString("Relay is healthy."))
		return nil
	},
}

func printConfig(w io.Writer, cfg config.Config) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Setting", "Value"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk([][]string{
		{"llm.provider", cfg.LLM.Provider},
		{"llm.model", orDash(cfg.LLM.Model)},
		{"llm.mode", cfg.LLM.Mode},
		{"llm.relay_url", cfg.LLM.RelayURL},
		{"llm.quota", fmt.Sprint(cfg.LLM.Quota)},
		{"llm.low_water", fmt.Sprint(cfg.LLM.LowWater)},
		{"llm.max_chars", fmt.Sprint(cfg.LLM.MaxChars)},
		{"llm.prompt_file", orDash(cfg.LLM.PromptFile)},
		{"llm.api_keys.qwen", orDash(cfg.LLM.APIKeys.Qwen)},
		{"llm.api_keys.deepseek", orDash(cfg.LLM.APIKeys.DeepSeek)},
		{"llm.shared_keys.qwen", orDash(cfg.LLM.SharedKeys.Qwen)},
		{"llm.shared_keys.deepseek", orDash(cfg.LLM.SharedKeys.DeepSeek)},
		{"relay.listen", cfg.Relay.Addr + ":" + cfg.Relay.Port},
		{"relay.base_path", orDash(cfg.Relay.BasePath)},
		{"relay.rate_limit", fmt.Sprint(cfg.Relay.RateLimit)},
		{"relay.upstreams.qwen", cfg.Relay.Upstreams.Qwen},
		{"relay.upstreams.deepseek", cfg.Relay.Upstreams.DeepSeek},
		{"categories", fmt.Sprintf("%d custom", len(cfg.Categories))},
		{"log.level", cfg.Log.Level},
	})
	table.Render()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
