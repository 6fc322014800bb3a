// ABOUTME: Lint command: advisory findings over a workflow without aborting on them
// ABOUTME: Tolerates documents the strict loader would reject outright

package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarlalian/newton/internal/expr"
	"github.com/sarlalian/newton/internal/lint"
	"github.com/sarlalian/newton/internal/schema"
)

var lintFormat string

var lintCmd = &cobra.Command{
	Use:   "lint [workflow.yaml]",
	Short: "Report advisory findings without failing to load",
	Long: `Lint parses a workflow leniently — tolerating duplicate task ids,
dangling transitions, and other problems the strict loader treats as
fatal — and reports every advisory finding it can detect: duplicate ids,
unknown transition targets, unknown task references, $expr syntax and
type errors, and disallowed shell usage.

Output formats:
• text: human-readable, one line per finding (default)
• json: the full finding list as JSON

Examples:
  newton lint workflow.yaml
  newton lint workflow.yaml --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runLint,
}

func runLint(cmd *cobra.Command, args []string) error {
	workflowPath := args[0]

	data, err := os.ReadFile(workflowPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", workflowPath, err)
	}

	doc, err := schema.ParseStringLenient(string(data))
	if err != nil {
		return fmt.Errorf("lint: %w", err)
	}

	ev, err := expr.New()
	if err != nil {
		return fmt.Errorf("building expression evaluator: %w", err)
	}

	results := lint.New().Run(doc, ev)

	switch lintFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(results); err != nil {
			return err
		}
	default:
		if len(results) == 0 {
			fmt.Println("✅ no findings")
		}
		for _, r := range results {
			fmt.Printf("%-8s %-22s %-10s %s\n", r.Severity, r.Code, r.Location, r.Message)
		}
	}

	if n := countErrors(results); n > 0 {
		return fmt.Errorf("lint found %d error-severity finding(s)", n)
	}
	return nil
}

func countErrors(results []lint.LintResult) int {
	n := 0
	for _, r := range results {
		if r.Severity == lint.SeverityError {
			n++
		}
	}
	return n
}

func init() {
	rootCmd.AddCommand(lintCmd)
	lintCmd.Flags().StringVar(&lintFormat, "format", "text", "output format (text, json)")
}
