// ABOUTME: Human-in-the-loop operators: approval gate and multi-choice decision
// ABOUTME: The actual prompting transport is an external collaborator (Interviewer)

package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sarlalian/newton/pkg/types"
)

// Interviewer is the external collaborator that actually prompts a human
// and waits for a response. The engine ships only a console-backed
// reference implementation; production deployments supply their own
// (webhook-backed approval UI, Slack interactive message, etc.).
type Interviewer interface {
	// InterviewerType is a human-friendly identifier used in audit logs.
	InterviewerType() string
	AskApproval(ctx context.Context, prompt string, timeout time.Duration, defaultOnTimeout string) (approved bool, reason string, defaultUsed bool, err error)
	AskChoice(ctx context.Context, prompt string, choices []string, timeout time.Duration, defaultChoice string) (choice string, defaultUsed bool, err error)
}

// AuditRecorder appends a single-line JSON record to an execution's audit
// trail (spec.md §4.6: "human-in-the-loop operators append single-line
// JSON records to audit.jsonl"). Satisfied by *checkpoint.Store without an
// import cycle.
type AuditRecorder interface {
	AppendAudit(executionID uuid.UUID, record interface{}) error
}

// HumanApprovalOperator blocks on a yes/no decision from an Interviewer.
type HumanApprovalOperator struct {
	interviewer Interviewer
	audit       AuditRecorder
}

// NewHumanApprovalOperator constructs the approval operator.
func NewHumanApprovalOperator(interviewer Interviewer, audit AuditRecorder) *HumanApprovalOperator {
	return &HumanApprovalOperator{interviewer: interviewer, audit: audit}
}

func (o *HumanApprovalOperator) Name() string { return "human_approval" }

func (o *HumanApprovalOperator) ValidateParams(raw map[string]interface{}, settings *types.Settings) error {
	prompt, ok := raw["prompt"].(string)
	if !ok || prompt == "" {
		return types.NewError(types.ErrHumanApprovalCfg, "human_approval requires a non-empty 'prompt'", nil)
	}
	if v, ok := raw["default_on_timeout"]; ok {
		def, ok := v.(string)
		if !ok || (def != "approve" && def != "reject") {
			return types.NewError(types.ErrHumanApprovalCfg, "default_on_timeout must be 'approve' or 'reject'", nil)
		}
	}
	if o.interviewer == nil {
		return types.NewError(types.ErrHumanApprovalCfg, "no interviewer configured for human_approval", nil)
	}
	return nil
}

func (o *HumanApprovalOperator) Execute(ctx context.Context, raw map[string]interface{}, execCtx types.ExecutionContext) (interface{}, error) {
	prompt := raw["prompt"].(string)
	defaultOnTimeout, _ := raw["default_on_timeout"].(string)

	var timeout time.Duration
	if v, ok := raw["timeout_seconds"]; ok {
		switch n := v.(type) {
		case int:
			timeout = time.Duration(n) * time.Second
		case float64:
			timeout = time.Duration(n) * time.Second
		}
	}

	approved, reason, defaultUsed, err := o.interviewer.AskApproval(ctx, prompt, timeout, defaultOnTimeout)
	if err != nil {
		return nil, fmt.Errorf("human_approval: %w", err)
	}

	result := map[string]interface{}{
		"approved":     approved,
		"reason":       reason,
		"default_used": defaultUsed,
		"task_id":      execCtx.TaskID,
	}

	if o.audit != nil {
		if err := o.audit.AppendAudit(execCtx.ExecutionID, map[string]interface{}{
			"task_id":      execCtx.TaskID,
			"operator":     "human_approval",
			"interviewer":  o.interviewer.InterviewerType(),
			"prompt":       prompt,
			"approved":     approved,
			"reason":       reason,
			"default_used": defaultUsed,
		}); err != nil {
			return nil, fmt.Errorf("human_approval: recording audit entry: %w", err)
		}
	}

	return result, nil
}

// HumanDecisionOperator blocks on a multi-choice decision from an
// Interviewer.
type HumanDecisionOperator struct {
	interviewer Interviewer
	audit       AuditRecorder
}

// NewHumanDecisionOperator constructs the decision operator.
func NewHumanDecisionOperator(interviewer Interviewer, audit AuditRecorder) *HumanDecisionOperator {
	return &HumanDecisionOperator{interviewer: interviewer, audit: audit}
}

func (o *HumanDecisionOperator) Name() string { return "human_decision" }

func (o *HumanDecisionOperator) ValidateParams(raw map[string]interface{}, settings *types.Settings) error {
	prompt, ok := raw["prompt"].(string)
	if !ok || prompt == "" {
		return types.NewError(types.ErrHumanDecisionCfg, "human_decision requires a non-empty 'prompt'", nil)
	}
	choicesRaw, ok := raw["choices"].([]interface{})
	if !ok || len(choicesRaw) < 2 {
		return types.NewError(types.ErrHumanDecisionCfg, "human_decision requires at least two 'choices'", nil)
	}
	for _, c := range choicesRaw {
		if _, ok := c.(string); !ok {
			return types.NewError(types.ErrHumanDecisionCfg, "all choices must be strings", nil)
		}
	}
	if v, ok := raw["default_choice"]; ok {
		def, ok := v.(string)
		if !ok {
			return types.NewError(types.ErrHumanDecisionCfg, "default_choice must be a string", nil)
		}
		found := false
		for _, c := range choicesRaw {
			if c.(string) == def {
				found = true
				break
			}
		}
		if !found {
			return types.NewError(types.ErrHumanDecisionCfg, "default_choice must be one of 'choices'", nil)
		}
	}
	if o.interviewer == nil {
		return types.NewError(types.ErrHumanDecisionCfg, "no interviewer configured for human_decision", nil)
	}
	return nil
}

func (o *HumanDecisionOperator) Execute(ctx context.Context, raw map[string]interface{}, execCtx types.ExecutionContext) (interface{}, error) {
	prompt := raw["prompt"].(string)
	choicesRaw := raw["choices"].([]interface{})
	choices := make([]string, len(choicesRaw))
	for i, c := range choicesRaw {
		choices[i] = c.(string)
	}
	defaultChoice, _ := raw["default_choice"].(string)

	var timeout time.Duration
	if v, ok := raw["timeout_seconds"]; ok {
		switch n := v.(type) {
		case int:
			timeout = time.Duration(n) * time.Second
		case float64:
			timeout = time.Duration(n) * time.Second
		}
	}

	choice, defaultUsed, err := o.interviewer.AskChoice(ctx, prompt, choices, timeout, defaultChoice)
	if err != nil {
		return nil, fmt.Errorf("human_decision: %w", err)
	}

	result := map[string]interface{}{
		"choice":       choice,
		"default_used": defaultUsed,
		"task_id":      execCtx.TaskID,
	}

	if o.audit != nil {
		if err := o.audit.AppendAudit(execCtx.ExecutionID, map[string]interface{}{
			"task_id":      execCtx.TaskID,
			"operator":     "human_decision",
			"interviewer":  o.interviewer.InterviewerType(),
			"prompt":       prompt,
			"choices":      choices,
			"choice":       choice,
			"default_used": defaultUsed,
		}); err != nil {
			return nil, fmt.Errorf("human_decision: recording audit entry: %w", err)
		}
	}

	return result, nil
}
