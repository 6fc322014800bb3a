// ABOUTME: Orchestrates the transform pipeline and pins the resulting
// ABOUTME: canonical document with a SHA-256 workflow hash

package transform

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/sarlalian/newton/internal/expr"
	"github.com/sarlalian/newton/pkg/types"
)

// Result is the output of ApplyDefaultPipeline: the canonical document and
// its pinned workflow hash.
type Result struct {
	Document     *types.Document
	WorkflowHash string
}

// ApplyDefaultPipeline runs the four-stage transform in spec order: macro
// expansion, include_if pruning, template interpolation, $expr
// precompilation, then hashes the result. The input document is not
// mutated; a deep copy is transformed instead.
func ApplyDefaultPipeline(doc *types.Document, eval *expr.Evaluator) (*Result, error) {
	working, err := cloneDocument(doc)
	if err != nil {
		return nil, types.NewError(types.ErrControlFileInvalid, "cloning document for transform", err)
	}

	if err := expandMacros(working); err != nil {
		return nil, err
	}
	if err := checkEntryTaskResolves(working); err != nil {
		return nil, err
	}
	if err := pruneIncludeIf(working, eval); err != nil {
		return nil, err
	}
	if err := interpolateTemplates(working, eval); err != nil {
		return nil, err
	}
	if err := precompileExpressions(working, eval); err != nil {
		return nil, err
	}

	hash, err := WorkflowHash(working)
	if err != nil {
		return nil, err
	}

	return &Result{Document: working, WorkflowHash: hash}, nil
}

func checkEntryTaskResolves(doc *types.Document) error {
	for _, task := range doc.Workflow.Tasks {
		if task.ID == doc.Workflow.Settings.EntryTask {
			return nil
		}
	}
	return types.NewError(types.ErrControlFileInvalid,
		fmt.Sprintf("entry_task %q does not name a task after macro expansion", doc.Workflow.Settings.EntryTask), nil)
}

// cloneDocument deep-copies doc via a JSON round-trip, which is sufficient
// here since Document contains only JSON-representable fields.
func cloneDocument(doc *types.Document) (*types.Document, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var clone types.Document
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, err
	}
	return &clone, nil
}

// WorkflowHash computes the SHA-256 digest of the document's canonical
// JSON encoding. Go's encoding/json sorts map keys, and struct field order
// is fixed by the type definition, so two documents with identical
// semantic content always hash identically (spec.md §3's "pinned workflow
// hash").
func WorkflowHash(doc *types.Document) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("transform: marshaling canonical document: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
