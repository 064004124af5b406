package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"filetriage/pkg/categorizer"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

// validateOutput rejects an unknown --output value before any work is done.
func validateOutput(format string) error {
	switch format {
	case outputTable, outputJSON, "":
		return nil
	}
	return fmt.Errorf("unknown output format %q (table, json)", format)
}

func renderResults(w io.Writer, format string, results []categorizer.ClassificationResult) error {
	if err := validateOutput(format); err != nil {
		return err
	}
	if format == outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	renderTable(w, results)
	return nil
}

func renderTable(w io.Writer, results []categorizer.ClassificationResult) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Name", "Type", "Category", "Path"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	for i, r := range results {
		mimeType := r.MimeType
		if mimeType == "" {
			mimeType = "-"
		}
		table.Append([]string{
			strconv.Itoa(i + 1),
			r.Name,
			mimeType,
			categorizer.Icon(r.Category) + " " + r.Category,
			r.RelativePath,
		})
	}
	table.Render()
}

func renderSummary(w io.Writer, results []categorizer.ClassificationResult) {
	counts := categorizer.Summarize(results)
	if len(counts) == 0 {
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Category", "Files"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, c := range counts {
		table.Append([]string{categorizer.Icon(c.Category) + " " + c.Category, strconv.Itoa(c.Count)})
	}
	table.SetFooter([]string{"Total", strconv.Itoa(len(results))})
	table.Render()
}

// filterCategories keeps files whose extension category is in only.
func filterCategories(lookup *categorizer.Lookup, files []categorizer.FileDescriptor, only []string) []categorizer.FileDescriptor {
	if len(only) == 0 {
		return files
	}
	keep := make(map[string]bool, len(only))
	for _, c := range only {
		keep[c] = true
	}
	var out []categorizer.FileDescriptor
	for _, f := range files {
		if keep[lookup.CategoryOf(f.Name)] {
			out = append(out, f)
		}
	}
	return out
}
