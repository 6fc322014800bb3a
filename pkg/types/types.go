// ABOUTME: Core document and execution types for the workflow graph engine
// ABOUTME: Defines the workflow document model, execution record, and shared interfaces

package types

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the terminal (or running) state of one task run.
type TaskStatus string

const (
	TaskRunning    TaskStatus = "Running"
	TaskSuccess    TaskStatus = "Success"
	TaskFailure    TaskStatus = "Failure"
	TaskSkipped    TaskStatus = "Skipped"
	TaskTerminated TaskStatus = "Terminated"
)

// ExecutionStatus is the overall state of a workflow execution.
type ExecutionStatus string

const (
	ExecutionRunning    ExecutionStatus = "Running"
	ExecutionCompleted  ExecutionStatus = "Completed"
	ExecutionFailed     ExecutionStatus = "Failed"
	ExecutionCancelled  ExecutionStatus = "Cancelled"
	ExecutionTerminated ExecutionStatus = "Terminated"
)

// TerminalClass classifies a task as a workflow terminal node.
type TerminalClass string

const (
	TerminalNone    TerminalClass = ""
	TerminalSuccess TerminalClass = "success"
	TerminalFailure TerminalClass = "failure"
)

// ArtifactCleanupPolicy decides which artifacts are evicted when a write
// would exceed max_total_bytes.
type ArtifactCleanupPolicy string

const (
	CleanupLRU ArtifactCleanupPolicy = "lru"
	CleanupTTL ArtifactCleanupPolicy = "ttl"
)

// GoalGateFailureBehavior governs what happens when a declared goal-gate
// group has no successful member at terminal evaluation time.
type GoalGateFailureBehavior string

const (
	GoalGateFail     GoalGateFailureBehavior = "fail"
	GoalGateContinue GoalGateFailureBehavior = "continue"
)

// TriggerType enumerates the kinds of payload that can seed an execution.
type TriggerType string

const (
	TriggerManual   TriggerType = "manual"
	TriggerWebhook  TriggerType = "webhook"
	TriggerSchedule TriggerType = "schedule"
)

// Document is the versioned container parsed from a workflow file
// (spec.md §3, §6).
type Document struct {
	Version  string         `yaml:"version" json:"version"`
	Mode     string         `yaml:"mode" json:"mode"`
	Macros   []Macro        `yaml:"macros,omitempty" json:"macros,omitempty"`
	Triggers *TriggerSchema `yaml:"triggers,omitempty" json:"triggers,omitempty"`
	Workflow Workflow       `yaml:"workflow" json:"workflow"`
}

// TriggerSchema declares the type and schema version a trigger payload
// must conform to, plus an optional literal payload used as the
// transform-time default — e.g. for validating a workflow offline before
// any real trigger has fired. An Execution's runtime TriggerPayload, when
// present, takes precedence over this default.
type TriggerSchema struct {
	Type          TriggerType            `yaml:"type" json:"type"`
	SchemaVersion string                 `yaml:"schema_version" json:"schema_version"`
	Payload       map[string]interface{} `yaml:"payload,omitempty" json:"payload,omitempty"`
}

// TriggerPayload is the optional runtime payload fed alongside a document
// at execution start (spec.md §6).
type TriggerPayload struct {
	Type          TriggerType            `json:"type"`
	SchemaVersion string                 `json:"schema_version"`
	Payload       map[string]interface{} `json:"payload"`
}

// Macro is a named template producing zero or more tasks at transform time.
type Macro struct {
	Name  string    `yaml:"name" json:"name"`
	Tasks []RawTask `yaml:"tasks" json:"tasks"`
}

// Workflow holds the free-form context, immutable settings, and task list.
type Workflow struct {
	Context  map[string]interface{} `yaml:"context" json:"context"`
	Settings Settings               `yaml:"settings" json:"settings"`
	Tasks    []RawTask              `yaml:"tasks" json:"tasks"`
}

// RawTask is a task entry as it appears pre- or mid-transform: either a
// concrete task, or a `macro:`/`with:` placeholder that macro expansion
// replaces in place.
type RawTask struct {
	// Macro placeholder form.
	MacroRef string                 `yaml:"macro,omitempty" json:"macro,omitempty"`
	With     map[string]interface{} `yaml:"with,omitempty" json:"with,omitempty"`

	// Concrete task form.
	ID                    string                 `yaml:"id,omitempty" json:"id,omitempty"`
	Operator              string                 `yaml:"operator,omitempty" json:"operator,omitempty"`
	Params                map[string]interface{} `yaml:"params,omitempty" json:"params,omitempty"`
	Transitions           []Transition           `yaml:"transitions,omitempty" json:"transitions,omitempty"`
	IncludeIf             *ExprNode              `yaml:"include_if,omitempty" json:"include_if,omitempty"`
	Terminal              TerminalClass          `yaml:"terminal,omitempty" json:"terminal,omitempty"`
	GoalGate              bool                   `yaml:"goal_gate,omitempty" json:"goal_gate,omitempty"`
	GoalGateGroup         string                 `yaml:"goal_gate_group,omitempty" json:"goal_gate_group,omitempty"`
	MaxIterationsOverride int                    `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty"`
}

// IsMacroPlaceholder reports whether this entry is a `macro:` reference
// still awaiting expansion.
func (t *RawTask) IsMacroPlaceholder() bool {
	return t.MacroRef != ""
}

// ExprNode wraps a `$expr` string, carried through YAML/JSON as
// `{ "$expr": "..." }`.
type ExprNode struct {
	Expr string `yaml:"$expr" json:"$expr"`
}

// Transition is one outgoing edge from a task.
type Transition struct {
	To       string    `yaml:"to" json:"to"`
	Priority int       `yaml:"priority,omitempty" json:"priority,omitempty"`
	When     *ExprNode `yaml:"when,omitempty" json:"when,omitempty"`
}

// CommandOperatorSettings gates CommandOperator's shell mode.
type CommandOperatorSettings struct {
	AllowShell bool `yaml:"allow_shell,omitempty" json:"allow_shell,omitempty"`
}

// CompletionPolicy governs the termination predicate (spec.md §4.5).
type CompletionPolicy struct {
	StopOnTerminal                bool                    `yaml:"stop_on_terminal" json:"stop_on_terminal"`
	RequireGoalGates              bool                    `yaml:"require_goal_gates" json:"require_goal_gates"`
	GoalGateFailureBehavior       GoalGateFailureBehavior `yaml:"goal_gate_failure_behavior,omitempty" json:"goal_gate_failure_behavior,omitempty"`
	SuccessRequiresNoTaskFailures bool                    `yaml:"success_requires_no_task_failures" json:"success_requires_no_task_failures"`
}

// ArtifactStorageSettings configures the artifact store (spec.md §4.4).
type ArtifactStorageSettings struct {
	BasePath         string                `yaml:"base_path" json:"base_path"`
	MaxInlineBytes   int64                 `yaml:"max_inline_bytes" json:"max_inline_bytes"`
	MaxArtifactBytes int64                 `yaml:"max_artifact_bytes" json:"max_artifact_bytes"`
	MaxTotalBytes    int64                 `yaml:"max_total_bytes" json:"max_total_bytes"`
	RetentionHours   int                   `yaml:"retention_hours" json:"retention_hours"`
	CleanupPolicy    ArtifactCleanupPolicy `yaml:"cleanup_policy" json:"cleanup_policy"`
}

// CheckpointSettings configures journal durability.
type CheckpointSettings struct {
	Enabled         bool `yaml:"enabled" json:"enabled"`
	IntervalSeconds int  `yaml:"interval_seconds,omitempty" json:"interval_seconds,omitempty"`
	OnTaskComplete  bool `yaml:"on_task_complete" json:"on_task_complete"`
	KeepHistory     int  `yaml:"keep_history,omitempty" json:"keep_history,omitempty"`
}

// WebhookSettings is a placeholder record for an external collaborator;
// the engine stores it verbatim but never dials out itself.
type WebhookSettings struct {
	URL     string            `yaml:"url,omitempty" json:"url,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// HumanInTheLoopSettings is a placeholder record; the engine stores it
// verbatim and no built-in operator reads it.
type HumanInTheLoopSettings struct {
	DefaultTimeoutSeconds int `yaml:"default_timeout_seconds,omitempty" json:"default_timeout_seconds,omitempty"`
}

// Settings is the workflow's immutable-after-load configuration record.
type Settings struct {
	EntryTask                     string                  `yaml:"entry_task" json:"entry_task"`
	ParallelLimit                 int                     `yaml:"parallel_limit" json:"parallel_limit"`
	MaxTimeSeconds                int64                   `yaml:"max_time_seconds" json:"max_time_seconds"`
	ContinueOnError               bool                    `yaml:"continue_on_error" json:"continue_on_error"`
	MaxTaskIterations             int                     `yaml:"max_task_iterations" json:"max_task_iterations"`
	MaxWorkflowIterations         int                     `yaml:"max_workflow_iterations" json:"max_workflow_iterations"`
	CommandOperator               CommandOperatorSettings `yaml:"command_operator,omitempty" json:"command_operator,omitempty"`
	Completion                    CompletionPolicy        `yaml:"completion,omitempty" json:"completion,omitempty"`
	Artifacts                     ArtifactStorageSettings `yaml:"artifacts,omitempty" json:"artifacts,omitempty"`
	Checkpoint                    CheckpointSettings      `yaml:"checkpoint,omitempty" json:"checkpoint,omitempty"`
	Webhook                       *WebhookSettings        `yaml:"webhook,omitempty" json:"webhook,omitempty"`
	HumanInTheLoop                *HumanInTheLoopSettings `yaml:"human_in_the_loop,omitempty" json:"human_in_the_loop,omitempty"`
	Redaction                     []string                `yaml:"redaction,omitempty" json:"redaction,omitempty"`
	RequiredTriggers              []string                `yaml:"required_triggers,omitempty" json:"required_triggers,omitempty"`
}

// OutputRefKind discriminates the OutputRef sum type.
type OutputRefKind string

const (
	OutputInline   OutputRefKind = "inline"
	OutputArtifact OutputRefKind = "artifact"
)

// OutputRef is the sum type Inline(value) | Artifact{path,size,sha256}
// (spec.md §3).
type OutputRef struct {
	Kind      OutputRefKind `json:"kind"`
	Value     interface{}   `json:"value,omitempty"`
	Path      string        `json:"path,omitempty"`
	SizeBytes int64         `json:"size_bytes,omitempty"`
	SHA256    string        `json:"sha256,omitempty"`
}

// InlineOutput builds an Inline OutputRef.
func InlineOutput(value interface{}) OutputRef {
	return OutputRef{Kind: OutputInline, Value: value}
}

// ArtifactOutput builds an Artifact OutputRef.
func ArtifactOutput(path string, size int64, sha256 string) OutputRef {
	return OutputRef{Kind: OutputArtifact, Path: path, SizeBytes: size, SHA256: sha256}
}

// TaskRun is one append-only attempt record for a task (spec.md §3).
type TaskRun struct {
	TaskID        string                 `json:"task_id"`
	RunSeq        int                    `json:"run_seq"`
	Status        TaskStatus             `json:"status"`
	StartedAt     time.Time              `json:"started_at"`
	FinishedAt    time.Time              `json:"finished_at"`
	Params        map[string]interface{} `json:"params,omitempty"`
	Output        *OutputRef             `json:"output,omitempty"`
	Message       string                 `json:"message,omitempty"`
	GoalGateGroup string                 `json:"goal_gate_group,omitempty"`
}

// Execution is the full persisted record of one workflow run (spec.md §3).
type Execution struct {
	ID           uuid.UUID       `json:"id"`
	WorkflowHash string          `json:"workflow_hash"`
	Status       ExecutionStatus `json:"status"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
	Trigger      *TriggerPayload `json:"trigger,omitempty"`
	TaskRuns     []TaskRun       `json:"task_runs"`
}

// CompletedEntry is the checkpoint's per-task completion record.
type CompletedEntry struct {
	RunSeq        int        `json:"run_seq"`
	Status        TaskStatus `json:"status"`
	GoalGateGroup string     `json:"goal_gate_group,omitempty"`
}

// SchedulerState is the checkpoint snapshot restored on resume (spec.md §3).
type SchedulerState struct {
	Completed       map[string]CompletedEntry `json:"completed"`
	TaskIterations  map[string]int            `json:"task_iterations"`
	TotalIterations int                       `json:"total_iterations"`
	ReadyQueue      []string                  `json:"ready_queue"`
	NextRunSeq      map[string]int            `json:"next_run_seq"`
	WorkflowHash    string                    `json:"workflow_hash"`
}

// NewSchedulerState builds an empty scheduler state.
func NewSchedulerState() *SchedulerState {
	return &SchedulerState{
		Completed:      make(map[string]CompletedEntry),
		TaskIterations: make(map[string]int),
		NextRunSeq:     make(map[string]int),
	}
}

// ExecutionOverrides lets a caller override document settings at run time
// without a config-file loader (an external collaborator, out of scope).
type ExecutionOverrides struct {
	ParallelLimit  *int
	MaxTimeSeconds *int64
}

// ReadModel is the frozen `{ context, triggers, tasks }` view passed to
// `$expr`, templates, and operators (spec.md §4.3, glossary).
type ReadModel struct {
	Context  map[string]interface{}
	Triggers map[string]interface{}
	Tasks    map[string]TaskView
}

// TaskView is what `tasks.<id>` exposes to expressions at runtime: only
// completed tasks appear here.
type TaskView struct {
	Status TaskStatus  `json:"status"`
	Output interface{} `json:"output"`
}

// ExecutionContext is handed to an operator's Execute step (spec.md §4.7).
type ExecutionContext struct {
	WorkspacePath string
	ExecutionID   uuid.UUID
	TaskID        string
	Iteration     int
	StateView     ReadModel
}

// Operator is the uniform capability set every task dispatches through
// (spec.md §4.7, §9 "dynamic dispatch of operators").
type Operator interface {
	// Name is the operator's registration key.
	Name() string
	// ValidateParams runs at load time against the task's static params.
	ValidateParams(params map[string]interface{}, settings *Settings) error
	// Execute runs the operator; it may suspend on I/O and must observe
	// ctx cancellation cooperatively.
	Execute(ctx context.Context, params map[string]interface{}, execCtx ExecutionContext) (interface{}, error)
}

// Logger provides structured logging interface.
type Logger interface {
	// Debug logs a debug message
	Debug() LogEvent

	// Info logs an info message
	Info() LogEvent

	// Warn logs a warning message
	Warn() LogEvent

	// Error logs an error message
	Error() LogEvent

	// With returns a logger with additional context
	With() LogContext
}

// LogEvent represents a log event being constructed.
type LogEvent interface {
	// Str adds a string field
	Str(key, val string) LogEvent

	// Int adds an integer field
	Int(key string, val int) LogEvent

	// Dur adds a duration field
	Dur(key string, val time.Duration) LogEvent

	// Err adds an error field
	Err(err error) LogEvent

	// Bool adds a boolean field
	Bool(key string, val bool) LogEvent

	// Any adds an arbitrary field
	Any(key string, val interface{}) LogEvent

	// Msg logs the event with a message
	Msg(msg string)

	// Msgf logs the event with a formatted message
	Msgf(format string, args ...interface{})
}

// LogContext represents a logger context being constructed.
type LogContext interface {
	// Str adds a string field to the context
	Str(key, val string) LogContext

	// Logger returns the logger with the built context
	Logger() Logger
}
