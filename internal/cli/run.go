// ABOUTME: Run command for executing a workflow to completion
// ABOUTME: Wires the loader, transform pipeline, operator registry, and scheduler together

package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarlalian/newton/internal/scheduler"
	"github.com/sarlalian/newton/pkg/types"
)

var (
	runParallelLimit  int
	runMaxTimeSeconds int64
)

var runCmd = &cobra.Command{
	Use:   "run [workflow.yaml]",
	Short: "Execute a workflow to completion",
	Long: `Run parses a workflow, transforms it into its canonical form, and
schedules its tasks to completion: macro expansion and include-if
pruning are already resolved by the time scheduling starts, so only
template/expression-driven branching happens at run time.

A checkpoint is written after every task completion under
<workspace>/.newton/state/workflows/<execution-id>/, letting a run be
resumed later with 'newton resume <execution-id> <workflow.yaml>'.

Examples:
  newton run workflow.yaml
  newton run workflow.yaml --parallel-limit 8
  newton run workflow.yaml --max-time-seconds 300`,
	Args: cobra.ExactArgs(1),
	RunE: runWorkflow,
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	workflowPath := args[0]
	logger := GetLogger()

	result, err := loadAndTransform(workflowPath)
	if err != nil {
		fmt.Printf("❌ %s\n", describeError(err))
		return fmt.Errorf("failed to load workflow")
	}

	eng, err := newEngine(result.Document.Workflow.Settings.Artifacts)
	if err != nil {
		return err
	}

	if err := validateOperators(result.Document, eng.registry); err != nil {
		fmt.Printf("❌ %s\n", describeError(err))
		return fmt.Errorf("failed to validate operator params")
	}

	overrides := types.ExecutionOverrides{}
	if cmd.Flags().Changed("parallel-limit") {
		overrides.ParallelLimit = &runParallelLimit
	}
	if cmd.Flags().Changed("max-time-seconds") {
		overrides.MaxTimeSeconds = &runMaxTimeSeconds
	}

	executionID := newExecutionID()
	sched := scheduler.New(result.Document, result.WorkflowHash, eng.registry, eng.eval,
		eng.artifacts, eng.checkpoints, logger, eng.root, executionID, overrides)

	logger.Info().Str("execution_id", executionID.String()).Str("workflow_hash", result.WorkflowHash).Msg("starting execution")

	exec, err := sched.Run(context.Background(), nil)
	if err != nil {
		fmt.Printf("❌ %s\n", describeError(err))
		return fmt.Errorf("execution failed")
	}

	printExecutionSummary(exec)

	if exec.Status != types.ExecutionCompleted {
		os.Exit(1)
	}
	return nil
}

func printExecutionSummary(exec *types.Execution) {
	icon := "✅"
	if exec.Status != types.ExecutionCompleted {
		icon = "❌"
	}

	fmt.Printf("\n%s Execution: %s\n", icon, exec.ID)
	fmt.Printf("   Status: %s\n", exec.Status)
	fmt.Printf("   Task runs: %d\n\n", len(exec.TaskRuns))

	for _, tr := range exec.TaskRuns {
		runIcon := "✅"
		switch tr.Status {
		case types.TaskFailure:
			runIcon = "❌"
		case types.TaskSkipped:
			runIcon = "⏭️"
		case types.TaskTerminated:
			runIcon = "⏱️"
		}
		fmt.Printf("  %s %s (run %d) - %s\n", runIcon, tr.TaskID, tr.RunSeq, tr.Status)
		if tr.Message != "" && verboseMode {
			fmt.Printf("    %s\n", tr.Message)
		}
	}
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVar(&runParallelLimit, "parallel-limit", 0, "override workflow.settings.parallel_limit")
	runCmd.Flags().Int64Var(&runMaxTimeSeconds, "max-time-seconds", 0, "override workflow.settings.max_time_seconds")
}
