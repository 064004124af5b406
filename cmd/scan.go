package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"filetriage/internal/clix"
	"filetriage/internal/fileingest"
)

var (
	scanHidden  bool
	scanSummary bool
	scanOutput  string
	scanOnly    string
)

// scanCmd categorizes files by extension only; no LLM is involved.
var scanCmd = &cobra.Command{
	Use:   "scan [directory]",
	Short: "Categorize the files of a folder by extension",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to get app instance: %w", err)
		}
		if err := validateOutput(scanOutput); err != nil {
			return err
		}
		only, err := clix.ParseList(cmd.Flags(), "only")
		if err != nil {
			return err
		}

		files, err := fileingest.Discover(ctx, args[0], scanHidden)
		if err != nil {
			return fmt.Errorf("failed to discover files: %w", err)
		}
		files = filterCategories(appInstance.Lookup, files, only)

		out := cmd.OutOrStdout()
		if len(files) == 0 {
			fmt.Fprintf(out, "No files found under %s\n", args[0])
			return nil
		}

		results := appInstance.Lookup.Categorize(files)
		if err := renderResults(out, scanOutput, results); err != nil {
			return err
		}
		if scanSummary && scanOutput != outputJSON {
			fmt.Fprintln(out)
			renderSummary(out, results)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().BoolVar(&scanHidden, "hidden", false, "Include hidden files and directories")
	scanCmd.Flags().BoolVarP(&scanSummary, "summary", "s", false, "Print per-category counts after the table")
	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", outputTable, "Output format (table, json)")
	scanCmd.Flags().StringVar(&scanOnly, "only", "", "Comma-separated categories to keep (e.g. 'image,PDF document')")
}
