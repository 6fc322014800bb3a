package artifact

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarlalian/newton/pkg/types"
)

func newStore(settings types.ArtifactStorageSettings) *Store {
	return New(afero.NewMemMapFs(), settings)
}

func TestPutInlineForSmallValues(t *testing.T) {
	s := newStore(types.ArtifactStorageSettings{BasePath: "/artifacts", MaxInlineBytes: 1024, MaxArtifactBytes: 4096, MaxTotalBytes: 1 << 20})
	ref, err := s.Put("exec-1", "task-a", 1, map[string]interface{}{"ok": true})
	require.NoError(t, err)
	assert.Equal(t, types.OutputInline, ref.Kind)
}

func TestPutWritesArtifactWhenOverInlineLimit(t *testing.T) {
	s := newStore(types.ArtifactStorageSettings{BasePath: "/artifacts", MaxInlineBytes: 4, MaxArtifactBytes: 4096, MaxTotalBytes: 1 << 20})
	ref, err := s.Put("exec-1", "task-a", 1, strings.Repeat("x", 100))
	require.NoError(t, err)
	assert.Equal(t, types.OutputArtifact, ref.Kind)
	assert.NotEmpty(t, ref.SHA256)
	assert.Greater(t, ref.SizeBytes, int64(0))

	data, err := s.Get(ref)
	require.NoError(t, err)
	assert.Contains(t, string(data), "xxxx")
}

func TestPutRejectsOversizedArtifact(t *testing.T) {
	s := newStore(types.ArtifactStorageSettings{BasePath: "/artifacts", MaxInlineBytes: 4, MaxArtifactBytes: 16, MaxTotalBytes: 1 << 20})
	_, err := s.Put("exec-1", "task-a", 1, strings.Repeat("x", 100))
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrArtifactTooLarge))
}

func TestPutRejectsUnsafeTaskID(t *testing.T) {
	s := newStore(types.ArtifactStorageSettings{BasePath: "/artifacts", MaxInlineBytes: 4, MaxArtifactBytes: 4096, MaxTotalBytes: 1 << 20})
	_, err := s.Put("exec-1", "../escape", 1, strings.Repeat("x", 100))
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrArtifactUnsafePath))
}

func TestQuotaEvictsLRUOldestAccessed(t *testing.T) {
	settings := types.ArtifactStorageSettings{
		BasePath: "/artifacts", MaxInlineBytes: 4, MaxArtifactBytes: 4096,
		MaxTotalBytes: 150, CleanupPolicy: types.CleanupLRU,
	}
	s := newStore(settings)

	_, err := s.Put("exec-1", "task-a", 1, strings.Repeat("a", 100))
	require.NoError(t, err)
	_, err = s.Put("exec-1", "task-b", 1, strings.Repeat("b", 100))
	require.NoError(t, err)

	assert.LessOrEqual(t, s.totalBytes, int64(150))
}

func TestValidateRelativePathRejectsTraversal(t *testing.T) {
	assert.Error(t, ValidateRelativePath("../../etc/passwd"))
	assert.NoError(t, ValidateRelativePath("exec-1/task-a/run_1.json"))
}
