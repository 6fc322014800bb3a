// ABOUTME: Artifact store: routes task outputs to inline or on-disk storage
// ABOUTME: under size quotas, with LRU/TTL cleanup when the total-bytes budget is tight

package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/sarlalian/newton/pkg/types"
)

var safeComponent = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// entry tracks one written artifact for quota accounting and cleanup.
type entry struct {
	path         string
	sizeBytes    int64
	writtenAt    time.Time
	lastAccessed time.Time
}

// Store routes task output values to inline or artifact storage per
// spec.md §4.4. One Store instance serves one execution; it is the
// exclusive writer tracking that execution's cumulative bytes, though
// concurrent reads are always safe.
type Store struct {
	fs       afero.Fs
	settings types.ArtifactStorageSettings

	mu          sync.Mutex
	writtenByID map[string]*entry
	totalBytes  int64
}

// New builds a Store backed by fs, rooted at settings.BasePath.
func New(fs afero.Fs, settings types.ArtifactStorageSettings) *Store {
	return &Store{fs: fs, settings: settings, writtenByID: make(map[string]*entry)}
}

// Put routes value for (executionID, taskID, runSeq): inline if its
// canonical JSON encoding fits under MaxInlineBytes, otherwise written to
// disk if it fits under MaxArtifactBytes, otherwise WFG-ART-002.
func (s *Store) Put(executionID, taskID string, runSeq int, value interface{}) (types.OutputRef, error) {
	if !safeComponent.MatchString(taskID) {
		return types.OutputRef{}, types.NewError(types.ErrArtifactUnsafePath,
			fmt.Sprintf("task id %q is not a safe path component", taskID), nil)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return types.OutputRef{}, fmt.Errorf("artifact: encoding output: %w", err)
	}
	size := int64(len(data))

	if size <= s.settings.MaxInlineBytes {
		return types.InlineOutput(value), nil
	}
	if size > s.settings.MaxArtifactBytes {
		return types.OutputRef{}, types.NewError(types.ErrArtifactTooLarge,
			fmt.Sprintf("output for task %q is %d bytes, exceeding max_artifact_bytes %d", taskID, size, s.settings.MaxArtifactBytes), nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureQuota(size); err != nil {
		return types.OutputRef{}, err
	}

	relPath := filepath.Join(executionID, taskID, fmt.Sprintf("run_%d.json", runSeq))
	fullPath := filepath.Join(s.settings.BasePath, relPath)

	if err := s.fs.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return types.OutputRef{}, fmt.Errorf("artifact: creating directory: %w", err)
	}
	if err := afero.WriteFile(s.fs, fullPath, data, 0o644); err != nil {
		return types.OutputRef{}, fmt.Errorf("artifact: writing artifact: %w", err)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	now := time.Now()
	key := executionID + "/" + relPath
	s.writtenByID[key] = &entry{path: fullPath, sizeBytes: size, writtenAt: now, lastAccessed: now}
	s.totalBytes += size

	return types.ArtifactOutput(relPath, size, hash), nil
}

// Get reads an artifact's bytes back from disk, bumping its last-accessed
// time for the LRU cleanup policy.
func (s *Store) Get(ref types.OutputRef) ([]byte, error) {
	if ref.Kind != types.OutputArtifact {
		return nil, fmt.Errorf("artifact: ref is not an artifact reference")
	}
	fullPath := filepath.Join(s.settings.BasePath, ref.Path)
	data, err := afero.ReadFile(s.fs, fullPath)
	if err != nil {
		return nil, fmt.Errorf("artifact: reading %s: %w", ref.Path, err)
	}

	s.mu.Lock()
	for key, e := range s.writtenByID {
		if e.path == fullPath {
			e.lastAccessed = time.Now()
			s.writtenByID[key] = e
		}
	}
	s.mu.Unlock()

	return data, nil
}

// ensureQuota evicts candidates per cleanup_policy until adding `incoming`
// bytes fits within max_total_bytes, or fails WFG-ART-002 if it cannot.
// Caller must hold s.mu.
func (s *Store) ensureQuota(incoming int64) error {
	if s.settings.MaxTotalBytes <= 0 || s.totalBytes+incoming <= s.settings.MaxTotalBytes {
		return nil
	}

	candidates := make([]string, 0, len(s.writtenByID))
	for key := range s.writtenByID {
		candidates = append(candidates, key)
	}

	switch s.settings.CleanupPolicy {
	case types.CleanupTTL:
		cutoff := time.Now().Add(-time.Duration(s.settings.RetentionHours) * time.Hour)
		sort.Slice(candidates, func(i, j int) bool {
			return s.writtenByID[candidates[i]].writtenAt.Before(s.writtenByID[candidates[j]].writtenAt)
		})
		for _, key := range candidates {
			if s.totalBytes+incoming <= s.settings.MaxTotalBytes {
				break
			}
			e := s.writtenByID[key]
			if e.writtenAt.After(cutoff) {
				continue
			}
			s.evict(key, e)
		}
	default: // CleanupLRU and unset
		sort.Slice(candidates, func(i, j int) bool {
			return s.writtenByID[candidates[i]].lastAccessed.Before(s.writtenByID[candidates[j]].lastAccessed)
		})
		for _, key := range candidates {
			if s.totalBytes+incoming <= s.settings.MaxTotalBytes {
				break
			}
			s.evict(key, s.writtenByID[key])
		}
	}

	if s.totalBytes+incoming > s.settings.MaxTotalBytes {
		return types.NewError(types.ErrArtifactTooLarge,
			fmt.Sprintf("writing %d bytes would exceed max_total_bytes %d even after cleanup", incoming, s.settings.MaxTotalBytes), nil)
	}
	return nil
}

func (s *Store) evict(key string, e *entry) {
	_ = s.fs.Remove(e.path)
	s.totalBytes -= e.sizeBytes
	delete(s.writtenByID, key)
}

// CanonicalSize returns the canonical JSON-serialized byte length of value,
// the measure the routing decision in Put is based on.
func CanonicalSize(value interface{}) (int64, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

// ValidateRelativePath guards against traversal in a caller-supplied
// relative artifact path, failing WFG-ART-001.
func ValidateRelativePath(rel string) error {
	clean := filepath.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, "../") || filepath.IsAbs(clean) {
		return types.NewError(types.ErrArtifactUnsafePath, fmt.Sprintf("path %q escapes the artifact base directory", rel), nil)
	}
	return nil
}
