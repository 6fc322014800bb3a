// ABOUTME: Registers all built-in operators into an operator registry
// ABOUTME: Mirrors the teacher's RegisterBuiltinTasks aliasing pattern

package builtin

import (
	"github.com/spf13/afero"

	"github.com/sarlalian/newton/pkg/types"
)

// Registrar is the minimal interface builtin.RegisterAll needs; satisfied
// by *operator.Registry without creating an import cycle.
type Registrar interface {
	Register(name string, op types.Operator)
}

// RegisterAll wires every built-in operator (spec-named and supplemented)
// into reg. fs backs filesystem-touching operators (checksum, control
// file reads); logger backs NoOp's optional message logging; interviewer
// backs the two human-in-the-loop operators and may be nil if the
// deployment has none configured (those operators then fail validation);
// audit backs their audit.jsonl trail and may be nil to skip recording
// (e.g. lint/validate wiring that never executes a task).
func RegisterAll(reg Registrar, fs afero.Fs, logger types.Logger, interviewer Interviewer, audit AuditRecorder) {
	reg.Register("noop", NewNoOpOperator(logger))
	reg.Register("set_context", NewSetContextOperator())
	reg.Register("command", NewCommandOperator())
	reg.Register("shell", NewCommandOperator())
	reg.Register("read_control_file", NewReadControlFileOperator(fs))
	reg.Register("assert_completed", NewAssertCompletedOperator())
	reg.Register("human_approval", NewHumanApprovalOperator(interviewer, audit))
	reg.Register("human_decision", NewHumanDecisionOperator(interviewer, audit))

	reg.Register("checksum", NewChecksumOperator(fs))
	reg.Register("hash", NewChecksumOperator(fs))
	reg.Register("compress", NewCompressOperator())
	reg.Register("archive", NewCompressOperator())
	reg.Register("copy", NewCopyOperator())
	reg.Register("email", NewEmailOperator())
	reg.Register("mail", NewEmailOperator())
	reg.Register("ses", NewSESOperator())
	reg.Register("slack", NewSlackOperator())
	reg.Register("notify", NewSlackOperator())
	reg.Register("ssh", NewSSHOperator())
	reg.Register("remote", NewSSHOperator())
}
