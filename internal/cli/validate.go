// ABOUTME: Validate command: parses, transforms, and statically checks a workflow
// ABOUTME: without scheduling any task, surfacing the first fatal error if any

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [workflow.yaml]",
	Short: "Parse, transform, and statically validate a workflow",
	Long: `Validate loads a workflow file, runs the full transform pipeline
(macro expansion, include-if pruning, template interpolation, expression
pre-compile), and checks every task's params against its declared
operator, without scheduling a single task.

Examples:
  newton validate workflow.yaml
  newton validate workflow.yaml --verbose`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	workflowPath := args[0]
	logger := GetLogger()
	logger.Info().Str("workflow", workflowPath).Msg("validating workflow")

	result, err := loadAndTransform(workflowPath)
	if err != nil {
		fmt.Printf("❌ %s\n", describeError(err))
		return fmt.Errorf("validation failed")
	}

	eng, err := newEngine(result.Document.Workflow.Settings.Artifacts)
	if err != nil {
		return err
	}

	if err := validateOperators(result.Document, eng.registry); err != nil {
		fmt.Printf("❌ %s\n", describeError(err))
		return fmt.Errorf("validation failed")
	}

	fmt.Printf("✅ workflow is valid (hash=%s)\n", result.WorkflowHash)
	return nil
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
