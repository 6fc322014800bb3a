// ABOUTME: Copy operator for copying files across any Afero-supported filesystem
// ABOUTME: Supports local, S3, and SFTP sources/destinations via internal/fsresolver

package builtin

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/sarlalian/newton/internal/fsresolver"
	"github.com/sarlalian/newton/pkg/types"
)

// CopyOperator copies one file from a source location to a destination
// location, each independently resolved to a filesystem backend.
type CopyOperator struct{}

// NewCopyOperator constructs the copy operator.
func NewCopyOperator() *CopyOperator { return &CopyOperator{} }

func (o *CopyOperator) Name() string { return "copy" }

func (o *CopyOperator) ValidateParams(raw map[string]interface{}, _ *types.Settings) error {
	if _, ok := raw["src"].(string); !ok {
		return fmt.Errorf("copy operator requires a string 'src'")
	}
	if _, ok := raw["dest"].(string); !ok {
		return fmt.Errorf("copy operator requires a string 'dest'")
	}
	return nil
}

func (o *CopyOperator) creds(raw map[string]interface{}) *fsresolver.Credentials {
	c := &fsresolver.Credentials{}
	if v, ok := raw["aws_access_key_id"].(string); ok {
		c.AWSAccessKeyID = v
	}
	if v, ok := raw["aws_secret_access_key"].(string); ok {
		c.AWSSecretAccessKey = v
	}
	if v, ok := raw["aws_region"].(string); ok {
		c.AWSRegion = v
	}
	if v, ok := raw["ssh_user"].(string); ok {
		c.SSHUser = v
	}
	if v, ok := raw["ssh_password"].(string); ok {
		c.SSHPassword = v
	}
	if v, ok := raw["ssh_private_key_path"].(string); ok {
		c.SSHPrivateKeyPath = v
	}
	return c
}

func (o *CopyOperator) Execute(_ context.Context, raw map[string]interface{}, execCtx types.ExecutionContext) (interface{}, error) {
	src := raw["src"].(string)
	dest := raw["dest"].(string)
	creds := o.creds(raw)

	srcFs, err := fsresolver.Resolve(src, creds)
	if err != nil {
		return nil, fmt.Errorf("copy: resolving source %q: %w", src, err)
	}
	destFs, err := fsresolver.Resolve(dest, creds)
	if err != nil {
		return nil, fmt.Errorf("copy: resolving destination %q: %w", dest, err)
	}

	srcLoc, _ := fsresolver.ParseLocation(src)
	destLoc, _ := fsresolver.ParseLocation(dest)
	srcPath, destPath := srcLoc.Path, destLoc.Path
	if srcLoc.Scheme == "file" && !filepath.IsAbs(srcPath) {
		srcPath = filepath.Join(execCtx.WorkspacePath, srcPath)
	}
	if destLoc.Scheme == "file" && !filepath.IsAbs(destPath) {
		destPath = filepath.Join(execCtx.WorkspacePath, destPath)
	}

	in, err := srcFs.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("copy: opening source: %w", err)
	}
	defer in.Close()

	if dir := filepath.Dir(destPath); dir != "." {
		_ = destFs.MkdirAll(dir, 0o755)
	}

	out, err := destFs.Create(destPath)
	if err != nil {
		return nil, fmt.Errorf("copy: creating destination: %w", err)
	}
	defer out.Close()

	n, err := io.Copy(out, in)
	if err != nil {
		return nil, fmt.Errorf("copy: transferring bytes: %w", err)
	}

	return map[string]interface{}{
		"src":          src,
		"dest":         dest,
		"bytes_copied": n,
	}, nil
}
