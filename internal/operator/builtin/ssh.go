// ABOUTME: SSH operator for running commands on remote hosts
// ABOUTME: Supports key-based and password authentication via golang.org/x/crypto/ssh

package builtin

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/sarlalian/newton/pkg/types"
)

// SSHOperator runs one command on a remote host over SSH.
type SSHOperator struct{}

// NewSSHOperator constructs the SSH operator.
func NewSSHOperator() *SSHOperator { return &SSHOperator{} }

func (o *SSHOperator) Name() string { return "ssh" }

func (o *SSHOperator) ValidateParams(raw map[string]interface{}, _ *types.Settings) error {
	for _, key := range []string{"host", "user", "command"} {
		if _, ok := raw[key].(string); !ok {
			return fmt.Errorf("ssh operator requires a string '%s'", key)
		}
	}
	_, hasPassword := raw["password"].(string)
	_, hasKeyFile := raw["key_file"].(string)
	if !hasPassword && !hasKeyFile {
		return fmt.Errorf("ssh operator requires 'password' or 'key_file' for authentication")
	}
	return nil
}

func (o *SSHOperator) client(raw map[string]interface{}, timeout time.Duration) (*ssh.Client, error) {
	host := raw["host"].(string)
	user := raw["user"].(string)
	port := 22
	if v, ok := raw["port"]; ok {
		if n, ok := v.(int); ok {
			port = n
		} else if f, ok := v.(float64); ok {
			port = int(f)
		}
	}

	config := &ssh.ClientConfig{
		User:            user,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	if password, ok := raw["password"].(string); ok && password != "" {
		config.Auth = append(config.Auth, ssh.Password(password))
	}
	if keyFile, ok := raw["key_file"].(string); ok && keyFile != "" {
		keyBytes, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("reading key file: %w", err)
		}
		var signer ssh.Signer
		if passphrase, ok := raw["passphrase"].(string); ok && passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(keyBytes, []byte(passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(keyBytes)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing private key: %w", err)
		}
		config.Auth = append(config.Auth, ssh.PublicKeys(signer))
	}

	return ssh.Dial("tcp", fmt.Sprintf("%s:%d", host, port), config)
}

func (o *SSHOperator) Execute(ctx context.Context, raw map[string]interface{}, _ types.ExecutionContext) (interface{}, error) {
	timeout := 30 * time.Second
	if v, ok := raw["timeout_seconds"]; ok {
		if n, ok := v.(int); ok {
			timeout = time.Duration(n) * time.Second
		} else if f, ok := v.(float64); ok {
			timeout = time.Duration(f) * time.Second
		}
	}

	client, err := o.client(raw, timeout)
	if err != nil {
		return nil, fmt.Errorf("ssh: connecting: %w", err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("ssh: opening session: %w", err)
	}
	defer session.Close()

	command := raw["command"].(string)
	if env, ok := raw["environment"].(map[string]interface{}); ok && len(env) > 0 {
		var prefix []string
		for k, v := range env {
			if s, ok := v.(string); ok {
				prefix = append(prefix, fmt.Sprintf("export %s=%q", k, s))
			}
		}
		command = strings.Join(prefix, "; ") + "; " + command
	}

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	errChan := make(chan error, 1)
	go func() { errChan <- session.Run(command) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return nil, fmt.Errorf("ssh: cancelled")
	case <-time.After(timeout):
		_ = session.Signal(ssh.SIGKILL)
		return nil, fmt.Errorf("ssh: command timed out after %v", timeout)
	case runErr := <-errChan:
		output := map[string]interface{}{
			"stdout": stdout.String(),
			"stderr": stderr.String(),
		}
		if runErr != nil {
			exitCode := 1
			if exitErr, ok := runErr.(*ssh.ExitError); ok {
				exitCode = exitErr.ExitStatus()
			}
			output["exit_code"] = exitCode
			return output, fmt.Errorf("ssh: command failed: %w", runErr)
		}
		output["exit_code"] = 0
		return output, nil
	}
}
