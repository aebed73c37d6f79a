package succession

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/yanantin/chasqui/pulse"
)

var _ pulse.Auditor = (*Auditor)(nil)

const blueprint = `# Yanantin Blueprint

Some prose about the project with 99 tensors mentioned outside a section
that counts.

## Test Suite

- **unit**: 3 tests
- ` + "`property`" + `: 1 test
- red_bar — 2 tests

Total: 6 tests

## Source Layers

- apacheta: 2 files
- chasqui: 1 file

## Cairn

The archive holds 2 tensors and 1 scout report.
`

func writeFiles(t *testing.T, root string, files map[string]string) {
	for name, text := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	}
}

func repo(t *testing.T) string {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"docs/blueprint.md":                blueprint,
		"tests/unit/test_models.py":        "def test_a():\n    pass\n\ndef test_b():\n    pass\n",
		"tests/unit/nested/test_store.py":  "def test_c():\n    pass\n",
		"tests/unit/helpers.py":            "def test_not_counted():\n    pass\n",
		"tests/property/test_props.py":     "def test_p():\n    pass\n",
		"tests/red_bar/test_invariants.py": "def test_r1():\n    pass\ndef test_r2():\n    pass\n",
		"tests/__pycache__/test_x.py":      "def test_cache():\n",
		"src/apacheta/models.py":           "",
		"src/apacheta/store.py":            "",
		"src/chasqui/pulse.py":             "",
		"src/chasqui/README.md":            "",
		"docs/cairn/T0_20260101_origin.md": "# T0",
		"docs/cairn/T1_20260102_second.md": "# T1",
		"docs/cairn/scout_1_20260103.md":   "report",
		"docs/cairn/compaction/T2_x.md":    "not at the top level",
	})
	return root
}

func TestParseBlueprint(t *testing.T) {
	bp := ParseBlueprint(blueprint)
	assert.Equal(t, map[string]int{"unit": 3, "property": 1, "red_bar": 2}, bp.Tests)
	assert.Equal(t, 6, bp.TotalTests)
	assert.Equal(t, map[string]int{"apacheta": 2, "chasqui": 1}, bp.Sources)
	assert.Equal(t, 2, bp.Tensors)
	assert.Equal(t, 1, bp.ScoutReports)

	empty := ParseBlueprint("# Nothing here\n")
	assert.Equal(t, Unclaimed, empty.TotalTests)
	assert.Equal(t, Unclaimed, empty.Tensors)
	assert.Empty(t, empty.Tests)
}

func TestTakeSurvey(t *testing.T) {
	s, err := Take(Config{Root: repo(t)})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"unit": 3, "property": 1, "red_bar": 2}, s.Tests)
	assert.Equal(t, 6, s.TotalTests())
	assert.Equal(t, map[string]int{"apacheta": 2, "chasqui": 1}, s.Sources)
	assert.Equal(t, 2, s.Tensors)
	assert.Equal(t, 1, s.ScoutReports)
}

func TestAuditMatchingBlueprint(t *testing.T) {
	a := NewAuditor(Config{Root: repo(t)}, zaptest.NewLogger(t).Sugar())
	lines, err := a.Audit()
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestAuditReportsDrift(t *testing.T) {
	root := repo(t)
	writeFiles(t, root, map[string]string{
		"tests/unit/test_more.py":         "def test_d():\n    pass\n",
		"tests/fuzz/test_fuzz.py":         "def test_f():\n    pass\n",
		"docs/cairn/T3_20260104_third.md": "# T3",
	})
	require.NoError(t, os.RemoveAll(filepath.Join(root, "src", "chasqui")))

	lines, err := NewAuditor(Config{Root: root}, nil).Audit()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"tests unit: blueprint claims 3 tests, found 4",
		"tests fuzz: 1 tests not in blueprint",
		"tests total: blueprint claims 6 tests, found 8",
		"source chasqui: blueprint claims 1 files, directory missing",
		"cairn: blueprint claims 2 tensors, found 3",
	}, lines)
}

func TestAuditMissingBlueprint(t *testing.T) {
	_, err := NewAuditor(Config{Root: t.TempDir()}, nil).Audit()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "blueprint"))
}

func TestCompareIgnoresUnclaimed(t *testing.T) {
	bp := ParseBlueprint("")
	s := &Survey{Tests: map[string]int{"unit": 5}, Sources: map[string]int{}, Tensors: 4}
	assert.Empty(t, Compare(bp, s))
}
