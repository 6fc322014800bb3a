// ABOUTME: YAML loader and static validator for workflow graph documents
// ABOUTME: Strict-mode decoding catches typos; Validate enforces document-shape invariants

package schema

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/sarlalian/newton/pkg/types"
)

// Loader parses and statically validates workflow graph documents.
type Loader struct {
	fs afero.Fs
}

// New creates a loader backed by fs. A nil fs defaults to the local
// filesystem, matching the teacher's parser convention.
func New(fs afero.Fs) *Loader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Loader{fs: fs}
}

// Parse decodes a document from YAML bytes in strict mode and validates
// its static shape.
func (l *Loader) Parse(data []byte) (*types.Document, error) {
	var doc types.Document

	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("schema: parsing workflow document: %w", err)
	}

	l.setDefaults(&doc)

	if err := l.Validate(&doc); err != nil {
		return nil, err
	}

	return &doc, nil
}

// ParseLenient decodes a document in strict field mode and applies
// defaults, but skips Validate. The advisory lint pass (internal/lint)
// uses this: a linter's whole point is diagnosing documents that would
// otherwise fail to load, so it must tolerate the structural problems
// Validate treats as fatal (duplicate ids, dangling transitions).
func (l *Loader) ParseLenient(data []byte) (*types.Document, error) {
	var doc types.Document

	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("schema: parsing workflow document: %w", err)
	}

	l.setDefaults(&doc)
	return &doc, nil
}

// ParseFile loads and parses a document from a file path.
func (l *Loader) ParseFile(filename string) (*types.Document, error) {
	exists, err := afero.Exists(l.fs, filename)
	if err != nil {
		return nil, fmt.Errorf("schema: checking %s: %w", filename, err)
	}
	if !exists {
		return nil, fmt.Errorf("schema: workflow file %s does not exist", filename)
	}

	data, err := afero.ReadFile(l.fs, filename)
	if err != nil {
		return nil, fmt.Errorf("schema: reading %s: %w", filename, err)
	}

	return l.Parse(data)
}

func (l *Loader) setDefaults(doc *types.Document) {
	if doc.Mode == "" {
		doc.Mode = "workflow_graph"
	}
	if doc.Workflow.Context == nil {
		doc.Workflow.Context = make(map[string]interface{})
	}
	if doc.Workflow.Settings.ParallelLimit == 0 {
		doc.Workflow.Settings.ParallelLimit = 4
	}
	if doc.Workflow.Settings.MaxTaskIterations == 0 {
		doc.Workflow.Settings.MaxTaskIterations = 1
	}
	if doc.Workflow.Settings.MaxWorkflowIterations == 0 {
		doc.Workflow.Settings.MaxWorkflowIterations = 100
	}

	artifacts := &doc.Workflow.Settings.Artifacts
	if artifacts.BasePath == "" {
		artifacts.BasePath = ".newton/artifacts"
	}
	if artifacts.MaxInlineBytes == 0 {
		artifacts.MaxInlineBytes = 4096
	}
	if artifacts.MaxArtifactBytes == 0 {
		artifacts.MaxArtifactBytes = 10 << 20
	}
	if artifacts.MaxTotalBytes == 0 {
		artifacts.MaxTotalBytes = 1 << 30
	}
	if artifacts.CleanupPolicy == "" {
		artifacts.CleanupPolicy = types.CleanupLRU
	}
}

// Validate enforces the document's static invariants: version present,
// at least one task, a resolvable entry_task, no duplicate task ids, no
// transition to an undeclared task, and (per spec.md §9's Open Question)
// a document with declared required_triggers is rejected at load time if
// it declares no triggers schema.
func (l *Loader) Validate(doc *types.Document) error {
	if doc.Version == "" {
		return fmt.Errorf("schema: document version is required")
	}
	if len(doc.Workflow.Tasks) == 0 {
		return fmt.Errorf("schema: workflow must declare at least one task")
	}
	if doc.Workflow.Settings.EntryTask == "" {
		return fmt.Errorf("schema: workflow.settings.entry_task is required")
	}
	if doc.Workflow.Settings.ParallelLimit < 1 {
		return fmt.Errorf("schema: settings.parallel_limit must be >= 1")
	}
	if doc.Workflow.Settings.MaxTaskIterations < 0 {
		return fmt.Errorf("schema: settings.max_task_iterations must not be negative")
	}
	if doc.Workflow.Settings.MaxWorkflowIterations < 0 {
		return fmt.Errorf("schema: settings.max_workflow_iterations must not be negative")
	}

	seen := make(map[string]bool, len(doc.Workflow.Tasks))
	entryFound := false
	hasMacroPlaceholder := false
	for i, task := range doc.Workflow.Tasks {
		if task.IsMacroPlaceholder() {
			hasMacroPlaceholder = true
			continue // resolved later by internal/transform macro expansion
		}
		if task.ID == "" {
			return fmt.Errorf("schema: task[%d] is missing an id", i)
		}
		if seen[task.ID] {
			return types.NewLocatedError(types.ErrLintDuplicateID,
				fmt.Sprintf("duplicate task id %q", task.ID), "workflow.tasks["+task.ID+"]", nil)
		}
		seen[task.ID] = true
		if task.ID == doc.Workflow.Settings.EntryTask {
			entryFound = true
		}
		if task.Operator == "" {
			return fmt.Errorf("schema: task %q is missing an operator", task.ID)
		}
	}
	// When the task list still contains macro placeholders, entry_task may
	// legitimately name a task that only exists after expansion; the
	// transform pipeline re-checks resolution once macros have expanded.
	if !entryFound && !hasMacroPlaceholder {
		return fmt.Errorf("schema: entry_task %q does not name a declared task", doc.Workflow.Settings.EntryTask)
	}

	for _, task := range doc.Workflow.Tasks {
		if task.IsMacroPlaceholder() {
			continue
		}
		for _, t := range task.Transitions {
			if t.To != "" && !seen[t.To] {
				return types.NewLocatedError(types.ErrLintUnknownTarget,
					fmt.Sprintf("task %q transitions to unknown task %q", task.ID, t.To),
					"workflow.tasks["+task.ID+"].transitions", nil)
			}
		}
	}

	if len(doc.Workflow.Settings.RequiredTriggers) > 0 && doc.Triggers == nil {
		return fmt.Errorf("schema: settings.required_triggers is set but the document declares no triggers schema")
	}

	return nil
}

// ParseString is a convenience wrapper for parsing an in-memory document.
func ParseString(yamlContent string) (*types.Document, error) {
	return New(nil).Parse([]byte(yamlContent))
}

// ParseFileFromPath is a convenience wrapper for parsing a document file.
func ParseFileFromPath(filename string) (*types.Document, error) {
	return New(nil).ParseFile(filename)
}

// ParseStringLenient is a convenience wrapper for ParseLenient over an
// in-memory document.
func ParseStringLenient(yamlContent string) (*types.Document, error) {
	return New(nil).ParseLenient([]byte(yamlContent))
}
