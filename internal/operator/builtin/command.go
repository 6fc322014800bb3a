// ABOUTME: Command operator for running shell commands and scripts
// ABOUTME: Honors the command_operator.allow_shell settings gate (WFG-LINT-008)

package builtin

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/sarlalian/newton/pkg/types"
)

// CommandOperator runs a single command or shell script and captures its
// output as the task's inline result.
type CommandOperator struct{}

// NewCommandOperator constructs the command operator.
func NewCommandOperator() *CommandOperator { return &CommandOperator{} }

func (o *CommandOperator) Name() string { return "command" }

// commandParams mirrors the documented command operator fields.
type commandParams struct {
	Command     string
	Args        []string
	Script      string
	Shell       string
	WorkingDir  string
	Environment map[string]string
	TimeoutSec  int
	FailOnError bool
}

func (o *CommandOperator) parseParams(raw map[string]interface{}) (*commandParams, error) {
	p := &commandParams{Shell: "/bin/sh", FailOnError: true}

	if v, ok := raw["command"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("command must be a string")
		}
		p.Command = s
	}
	if v, ok := raw["script"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("script must be a string")
		}
		p.Script = s
	}
	if v, ok := raw["shell"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("shell must be a string")
		}
		p.Shell = s
	}
	if v, ok := raw["working_dir"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("working_dir must be a string")
		}
		p.WorkingDir = s
	}
	if v, ok := raw["args"]; ok {
		list, ok := v.([]interface{})
		if !ok {
			return nil, fmt.Errorf("args must be an array of strings")
		}
		p.Args = make([]string, len(list))
		for i, a := range list {
			s, ok := a.(string)
			if !ok {
				return nil, fmt.Errorf("all args must be strings")
			}
			p.Args[i] = s
		}
	}
	if v, ok := raw["environment"]; ok {
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("environment must be a map of strings")
		}
		p.Environment = make(map[string]string, len(m))
		for k, val := range m {
			s, ok := val.(string)
			if !ok {
				return nil, fmt.Errorf("all environment values must be strings")
			}
			p.Environment[k] = s
		}
	}
	if v, ok := raw["timeout_seconds"]; ok {
		n, ok := v.(int)
		if !ok {
			if f, ok2 := v.(float64); ok2 {
				n = int(f)
			} else {
				return nil, fmt.Errorf("timeout_seconds must be a number")
			}
		}
		p.TimeoutSec = n
	}
	if v, ok := raw["fail_on_error"]; ok {
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("fail_on_error must be a boolean")
		}
		p.FailOnError = b
	}
	return p, nil
}

// ValidateParams checks the static shape of params and gates `script:`
// behind settings.command_operator.allow_shell.
func (o *CommandOperator) ValidateParams(raw map[string]interface{}, settings *types.Settings) error {
	p, err := o.parseParams(raw)
	if err != nil {
		return err
	}
	if p.Command == "" && p.Script == "" {
		return fmt.Errorf("command operator requires 'command' or 'script'")
	}
	if p.Command != "" && p.Script != "" {
		return fmt.Errorf("command operator cannot specify both 'command' and 'script'")
	}
	if p.Script != "" && (settings == nil || !settings.CommandOperator.AllowShell) {
		return types.NewError(types.ErrLintShellNotAllowed,
			"script mode requires settings.command_operator.allow_shell: true", nil)
	}
	return nil
}

// Execute runs the configured command or script, returning stdout,
// stderr, and the exit code as the operator's inline output.
func (o *CommandOperator) Execute(ctx context.Context, raw map[string]interface{}, execCtx types.ExecutionContext) (interface{}, error) {
	p, err := o.parseParams(raw)
	if err != nil {
		return nil, err
	}

	if p.TimeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.TimeoutSec)*time.Second)
		defer cancel()
	}

	var cmd *exec.Cmd
	switch {
	case p.Script != "":
		cmd = exec.CommandContext(ctx, p.Shell, "-c", p.Script)
	case len(p.Args) > 0:
		cmd = exec.CommandContext(ctx, p.Command, p.Args...)
	default:
		parts := strings.Fields(p.Command)
		if len(parts) == 0 {
			return nil, fmt.Errorf("empty command")
		}
		cmd = exec.CommandContext(ctx, parts[0], parts[1:]...)
	}

	if p.WorkingDir != "" {
		cmd.Dir = p.WorkingDir
	} else {
		cmd.Dir = execCtx.WorkspacePath
	}

	cmd.Env = os.Environ()
	for k, v := range p.Environment {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	exitCode := 0
	if runErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("command timed out after %ds", p.TimeoutSec)
		}
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
				exitCode = status.ExitStatus()
			} else {
				exitCode = 1
			}
		} else {
			return nil, fmt.Errorf("failed to execute command: %w", runErr)
		}
	}

	output := map[string]interface{}{
		"stdout":      stdout.String(),
		"stderr":      stderr.String(),
		"exit_code":   exitCode,
		"return_code": exitCode,
	}
	if exitCode != 0 && p.FailOnError {
		return output, fmt.Errorf("command failed with exit code %d", exitCode)
	}
	return output, nil
}
