// ABOUTME: Tests for core document and scheduler-state types
// ABOUTME: Validates OutputRef construction and scheduler state defaults

package types

import (
	"testing"
)

func TestInlineOutput(t *testing.T) {
	ref := InlineOutput(map[string]interface{}{"ok": true})
	if ref.Kind != OutputInline {
		t.Fatalf("expected Kind %q, got %q", OutputInline, ref.Kind)
	}
	if ref.Path != "" || ref.SizeBytes != 0 || ref.SHA256 != "" {
		t.Errorf("inline output should not carry artifact fields, got %+v", ref)
	}
}

func TestArtifactOutput(t *testing.T) {
	ref := ArtifactOutput("tasks/build/out.bin", 4096, "deadbeef")
	if ref.Kind != OutputArtifact {
		t.Fatalf("expected Kind %q, got %q", OutputArtifact, ref.Kind)
	}
	if ref.Path != "tasks/build/out.bin" || ref.SizeBytes != 4096 || ref.SHA256 != "deadbeef" {
		t.Errorf("unexpected artifact fields: %+v", ref)
	}
	if ref.Value != nil {
		t.Errorf("artifact output should not carry an inline value, got %v", ref.Value)
	}
}

func TestNewSchedulerState(t *testing.T) {
	state := NewSchedulerState()

	if state.Completed == nil || len(state.Completed) != 0 {
		t.Errorf("expected empty initialized Completed map, got %+v", state.Completed)
	}
	if state.TaskIterations == nil || len(state.TaskIterations) != 0 {
		t.Errorf("expected empty initialized TaskIterations map, got %+v", state.TaskIterations)
	}
	if state.NextRunSeq == nil || len(state.NextRunSeq) != 0 {
		t.Errorf("expected empty initialized NextRunSeq map, got %+v", state.NextRunSeq)
	}
	if state.TotalIterations != 0 {
		t.Errorf("expected TotalIterations to start at 0, got %d", state.TotalIterations)
	}
	if state.ReadyQueue != nil {
		t.Errorf("expected nil ReadyQueue on a fresh state, got %+v", state.ReadyQueue)
	}
}

func TestRawTaskIsMacroPlaceholder(t *testing.T) {
	placeholder := RawTask{MacroRef: "retry_with_backoff", With: map[string]interface{}{"attempts": 3}}
	if !placeholder.IsMacroPlaceholder() {
		t.Errorf("expected task with MacroRef set to be a macro placeholder")
	}

	concrete := RawTask{ID: "build", Operator: "command"}
	if concrete.IsMacroPlaceholder() {
		t.Errorf("expected concrete task to not be a macro placeholder")
	}
}
