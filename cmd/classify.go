package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"filetriage/internal/clix"
	"filetriage/internal/config"
	"filetriage/internal/fileingest"
	"filetriage/pkg/categorizer"
)

var (
	classifyProvider string
	classifyAPIKey   string
	classifyModel    string
	classifyRelayURL string
	classifyDirect   bool
	classifyQuota    int
	classifyHidden   bool
	classifySummary  bool
	classifyOutput   string
	classifyOnly     string
)

// classifyCmd asks the configured LLM provider for a category per file.
var classifyCmd = &cobra.Command{
	Use:   "classify [directory]",
	Short: "Categorize the files of a folder by asking an LLM about their content",
	Long: `Sends the text of each file, one at a time, to Qwen or DeepSeek and uses
the returned label as its category. Calls go through the relay unless
--direct is given. A batch stops once its quota is spent; files that fail
are reported as "classification failed" and do not stop the batch.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get app instance: %w", err)
		}
		cfg := appInstance.Config
		flags := cmd.Flags()

		if err := validateOutput(classifyOutput); err != nil {
			return err
		}
		only, err := clix.ParseList(flags, "only")
		if err != nil {
			return err
		}
		llmCfg, err := appInstance.LLMConfig(classifyProvider, classifyAPIKey, classifyModel)
		if err != nil {
			return err
		}

		mode := cfg.LLM.Mode
		if flags.Changed("relay-url") {
			mode = config.ModeRelay
		}
		if classifyDirect {
			mode = config.ModeDirect
		}
		if err := appInstance.SetTransport(mode, clix.StringOr(flags, "relay-url", cfg.LLM.RelayURL)); err != nil {
			return err
		}

		classifier := appInstance.Classifier
		classifier.Quota = clix.IntOr(flags, "quota", classifier.Quota)
		if classifier.Quota <= 0 {
			return errors.New("--quota must be a positive integer")
		}

		files, err := fileingest.Discover(ctx, args[0], classifyHidden)
		if err != nil {
			return fmt.Errorf("failed to discover files: %w", err)
		}
		files = filterCategories(appInstance.Lookup, files, only)

		out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
		if len(files) == 0 {
			fmt.Fprintf(out, "No files found under %s\n", args[0])
			return nil
		}
		if llmCfg.APIKey == "" && classifier.SharedKeys[llmCfg.Provider] == "" {
			fmt.Fprintf(errOut, "%s no %s API key configured; files will be marked %q\n",
				color.YellowString("Warning:"), llmCfg.Provider, categorizer.FailedCategory)
		}

		fmt.Fprintf(errOut, "Classifying %d files with %s (quota %d)\n", len(files), llmCfg.Provider, classifier.Quota)
		obs := categorizer.ObserverFuncs{
			OnProgress: func(done, total int) {
				fmt.Fprintf(errOut, "\r  %d/%d", done, total)
			},
			OnQuotaLow: func(remaining int) {
				fmt.Fprintf(errOut, "\n%s only %d classification(s) left in this batch\n",
					color.YellowString("Warning:"), remaining)
			},
		}

		var results []categorizer.ClassificationResult
		for r := range classifier.Classify(ctx, files, llmCfg, obs) {
			results = append(results, r)
		}
		fmt.Fprintln(errOut)

		switch {
		case ctx.Err() != nil:
			fmt.Fprintf(errOut, "%s stopped after %d of %d files\n", color.YellowString("Interrupted:"), len(results), len(files))
		case len(results) < len(files):
			fmt.Fprintf(errOut, "%s %d file(s) were not classified\n", color.YellowString("Quota exhausted:"), len(files)-len(results))
		}
		failed := 0
		for _, r := range results {
			if r.Category == categorizer.FailedCategory {
				failed++
			}
		}
		if failed > 0 {
			fmt.Fprintf(errOut, "%s %d file(s) could not be classified\n", color.RedString("Failed:"), failed)
		}

		if err := renderResults(out, classifyOutput, results); err != nil {
			return err
		}
		if classifySummary && classifyOutput != outputJSON {
			fmt.Fprintln(out)
			renderSummary(out, results)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().StringVarP(&classifyProvider, "provider", "p", "", "LLM provider (qwen, deepseek); defaults to llm.provider")
	classifyCmd.Flags().StringVarP(&classifyAPIKey, "api-key", "k", "", "Provider API key; defaults to llm.api_keys.<provider>")
	classifyCmd.Flags().StringVarP(&classifyModel, "model", "m", "", "Model name; defaults to the provider's standard model")
	classifyCmd.Flags().StringVar(&classifyRelayURL, "relay-url", "", "Relay base URL; defaults to llm.relay_url")
	classifyCmd.Flags().BoolVar(&classifyDirect, "direct", false, "Call the provider directly instead of through the relay")
	classifyCmd.Flags().IntVarP(&classifyQuota, "quota", "q", categorizer.DefaultQuota, "Maximum number of files classified in this run")
	classifyCmd.Flags().BoolVar(&classifyHidden, "hidden", false, "Include hidden files and directories")
	classifyCmd.Flags().BoolVarP(&classifySummary, "summary", "s", false, "Print per-category counts after the table")
	classifyCmd.Flags().StringVarP(&classifyOutput, "output", "o", outputTable, "Output format (table, json)")
	classifyCmd.Flags().StringVar(&classifyOnly, "only", "", "Comma-separated extension categories to send (e.g. 'Word document,PDF document')")
}
