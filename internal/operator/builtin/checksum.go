// ABOUTME: Checksum operator for calculating and verifying file hashes
// ABOUTME: Supports SHA256, SHA512, MD5, and Blake2b hash algorithms

package builtin

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"path/filepath"

	"golang.org/x/crypto/blake2b"

	"github.com/spf13/afero"

	"github.com/sarlalian/newton/pkg/types"
)

var checksumAlgorithms = map[string]func() hash.Hash{
	"sha256": sha256.New,
	"sha512": sha512.New,
	"md5":    md5.New,
	"blake2b": func() hash.Hash {
		h, _ := blake2b.New256(nil)
		return h
	},
}

// ChecksumOperator calculates, and optionally verifies, a file's hash.
type ChecksumOperator struct {
	fs afero.Fs
}

// NewChecksumOperator constructs the checksum operator over fs.
func NewChecksumOperator(fs afero.Fs) *ChecksumOperator {
	return &ChecksumOperator{fs: fs}
}

func (o *ChecksumOperator) Name() string { return "checksum" }

func (o *ChecksumOperator) ValidateParams(raw map[string]interface{}, _ *types.Settings) error {
	if _, ok := raw["path"].(string); !ok {
		return fmt.Errorf("checksum operator requires a string 'path'")
	}
	algo, ok := raw["algorithm"].(string)
	if ok {
		if _, valid := checksumAlgorithms[algo]; !valid {
			return fmt.Errorf("checksum operator: unsupported algorithm %q", algo)
		}
	}
	return nil
}

func (o *ChecksumOperator) Execute(_ context.Context, raw map[string]interface{}, execCtx types.ExecutionContext) (interface{}, error) {
	path := raw["path"].(string)
	if !filepath.IsAbs(path) {
		path = filepath.Join(execCtx.WorkspacePath, path)
	}

	algo, _ := raw["algorithm"].(string)
	if algo == "" {
		algo = "sha256"
	}
	newHash := checksumAlgorithms[algo]

	f, err := o.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("checksum: opening %q: %w", path, err)
	}
	defer f.Close()

	h := newHash()
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("checksum: reading %q: %w", path, err)
	}
	sum := hex.EncodeToString(h.Sum(nil))

	output := map[string]interface{}{
		"checksum":  sum,
		"algorithm": algo,
		"path":      path,
	}

	if expected, ok := raw["expected"].(string); ok && expected != "" {
		output["expected"] = expected
		output["verified"] = sum == expected
		if sum != expected {
			return output, fmt.Errorf("checksum verification failed: expected %s, got %s", expected, sum)
		}
	}

	return output, nil
}
