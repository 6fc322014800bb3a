// ABOUTME: Resume command for continuing a checkpointed execution
// ABOUTME: Re-loads and re-transforms the workflow to re-verify its hash before resuming

package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sarlalian/newton/internal/scheduler"
	"github.com/sarlalian/newton/pkg/types"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <execution-id> <workflow.yaml>",
	Short: "Continue a checkpointed execution from its last persisted state",
	Long: `Resume re-loads and re-transforms workflow.yaml, recomputes its
canonical hash, and restores the checkpointed ready queue, iteration
counters, and completed-task set for execution-id under
<workspace>/.newton/state/workflows/<execution-id>/.

The recomputed hash must match what was persisted at checkpoint time
(WFG-CKPT-001) — resuming against an edited workflow file is refused
rather than silently replaying a different graph.

Examples:
  newton resume 3fa85f64-5717-4562-b3fc-2c963f66afa6 workflow.yaml`,
	Args: cobra.ExactArgs(2),
	RunE: runResume,
}

func runResume(cmd *cobra.Command, args []string) error {
	executionID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid execution id %q: %w", args[0], err)
	}
	workflowPath := args[1]
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

	sched := scheduler.New(result.Document, result.WorkflowHash, eng.registry, eng.eval,
		eng.artifacts, eng.checkpoints, logger, eng.root, executionID, types.ExecutionOverrides{})

	logger.Info().Str("execution_id", executionID.String()).Str("workflow_hash", result.WorkflowHash).Msg("resuming execution")

	exec, err := sched.Resume(context.Background())
	if err != nil {
		fmt.Printf("❌ %s\n", describeError(err))
		return fmt.Errorf("resume failed")
	}

	printExecutionSummary(exec)

	if exec.Status != types.ExecutionCompleted {
		os.Exit(1)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}
