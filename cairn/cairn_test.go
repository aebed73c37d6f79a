package cairn

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableLoads(t *testing.T) {
	table := Table()
	require.NotEmpty(t, table)
	for _, e := range table {
		assert.NotEmpty(t, e.File)
		_, ok := TensorNumber(e.Name)
		assert.True(t, ok, e.Name)
		assert.False(t, e.Time().IsZero(), e.File)
	}

	e, ok := Lookup("/some/dir/neutrosophic_turn.md")
	require.True(t, ok)
	assert.Equal(t, "T2", e.Name)
	assert.Equal(t, "claude", e.ModelFamily)
}

func TestTensorName(t *testing.T) {
	tests := []struct {
		file string
		want string
		ok   bool
	}{
		{"bridge_tensor.md", "T5", true},
		{"T12_20260301_weaving.md", "T12", true},
		{"T007_20260301_zero_padded.md", "T7", true},
		{"notes_t9.md", "T9", true},
		{"claude_session3.md", "T2", true},
		{"random_notes.md", "", false},
		{"claude_session0.md", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			got, ok := TensorName(tt.file)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHighestNumber(t *testing.T) {
	archive := t.TempDir()
	compaction := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(archive, "T14_20260301_x.md"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(compaction, "T21_20260302_compaction.md"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(compaction, "T99_not_markdown.txt"), nil, 0o644))

	n, err := HighestNumber(archive, compaction, filepath.Join(archive, "missing"))
	require.NoError(t, err)
	assert.Equal(t, 21, n)

	n, err = HighestNumber()
	require.NoError(t, err)
	assert.Equal(t, 5, n, "table alone")
}

func TestFilename(t *testing.T) {
	date := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "T22_20260304_compaction.md", Filename(22, date, "compaction"))
	assert.Equal(t, "T3_20260304_weaver_notes.md", Filename(3, date, "Weaver notes!"))
	assert.Equal(t, "T3_20260304_tensor.md", Filename(3, date, "???"))
}
