// ABOUTME: Shared wiring for CLI subcommands: load+transform a document and
// ABOUTME: assemble the operator registry, evaluator, artifact and checkpoint stores

package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/sarlalian/newton/internal/artifact"
	"github.com/sarlalian/newton/internal/checkpoint"
	"github.com/sarlalian/newton/internal/expr"
	"github.com/sarlalian/newton/internal/fsresolver"
	"github.com/sarlalian/newton/internal/operator"
	"github.com/sarlalian/newton/internal/operator/builtin"
	"github.com/sarlalian/newton/internal/schema"
	"github.com/sarlalian/newton/internal/transform"
	"github.com/sarlalian/newton/pkg/types"
)

// engine bundles everything a run/resume command needs once a document has
// been loaded and transformed.
type engine struct {
	fs          afero.Fs
	root        string
	eval        *expr.Evaluator
	registry    *operator.Registry
	artifacts   *artifact.Store
	checkpoints *checkpoint.Store
}

func newEngine(settings types.ArtifactStorageSettings) (*engine, error) {
	fs, root, err := fsresolver.ResolveWorkspace(workspacePath, nil)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace %q: %w", workspacePath, err)
	}

	ev, err := expr.New()
	if err != nil {
		return nil, fmt.Errorf("building expression evaluator: %w", err)
	}

	checkpoints := checkpoint.New(fs, root)

	reg := operator.New()
	builtin.RegisterAll(reg, fs, GetLogger(), builtin.NewConsoleInterviewer(os.Stdin, os.Stdout), checkpoints)

	return &engine{
		fs:          fs,
		root:        root,
		eval:        ev,
		registry:    reg,
		artifacts:   artifact.New(fs, settings),
		checkpoints: checkpoints,
	}, nil
}

// loadAndTransform parses workflowPath in strict mode and runs the default
// transform pipeline, returning the canonical document and its pinned hash.
func loadAndTransform(workflowPath string) (*transform.Result, error) {
	loader := schema.New(nil)
	doc, err := loader.ParseFile(workflowPath)
	if err != nil {
		return nil, err
	}

	ev, err := expr.New()
	if err != nil {
		return nil, fmt.Errorf("building expression evaluator: %w", err)
	}

	return transform.ApplyDefaultPipeline(doc, ev)
}

// validateOperators runs every task's static params through its declared
// operator's ValidateParams, the load-time half of the operator contract.
func validateOperators(doc *types.Document, reg *operator.Registry) error {
	for _, task := range doc.Workflow.Tasks {
		if task.IsMacroPlaceholder() {
			continue
		}
		if err := reg.ValidateParams(task.Operator, task.ID, task.Params, &doc.Workflow.Settings); err != nil {
			return err
		}
	}
	return nil
}

// describeError renders a GraphError's stable code/location alongside any
// plain error, so CLI output can switch on a code without string-matching.
func describeError(err error) string {
	var buf bytes.Buffer
	if code, ok := types.CodeOf(err); ok {
		fmt.Fprintf(&buf, "[%s] ", code)
	}
	buf.WriteString(err.Error())
	return buf.String()
}

// newExecutionID generates a fresh execution id for a `run` invocation.
func newExecutionID() uuid.UUID {
	return uuid.New()
}
