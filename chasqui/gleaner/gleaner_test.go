package gleaner

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const scoutReport = "<!-- Chasqui Scout Tensor\n" +
	"Run: 12\n" +
	"Model: deepseek/deepseek-chat\n" +
	"Cost: $0.0031\n" +
	"Timestamp: 2026-02-10T09:30:00Z\n" +
	"-->\n\n" +
	"# Scout report\n\n" +
	"## Strands\n\n" +
	"### What I saw\n\n" +
	"The `src/yanantin/apacheta/models.py` file defines 8 model classes for tensor storage.\n\n" +
	"Overall this was a pleasant codebase to read through today.\n\n" +
	"## Open Questions\n\n" +
	"- The ingest layer might drop strands with unusual headers, which should be checked.\n\n" +
	"## Declared Losses\n\n" +
	"- I did not read `tests/unit/test_memory.py` in full because of budget limits.\n\n" +
	"## Evidence\n\n" +
	"The memory backend is missing a test for duplicate entity writes.\n"

const s5Sentence = "The `src/yanantin/apacheta/models.py` file defines 8 model classes for tensor storage."

func TestParseHeader(t *testing.T) {
	h, ok := ParseHeader(scoutReport)
	require.True(t, ok)
	assert.Equal(t, KindScout, h.Kind)
	assert.Equal(t, 12, h.Run)
	assert.Equal(t, "deepseek/deepseek-chat", h.Model)
	assert.Equal(t, "$0.0031", h.Cost)
	assert.Equal(t, time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC), h.Timestamp)

	scour, ok := ParseHeader("<!-- Chasqui Scour Tensor | Run: 3 | Model: qwen | Target: src/a.py | Scope: storage -->")
	require.True(t, ok)
	assert.Equal(t, KindScour, scour.Kind)
	assert.Equal(t, 3, scour.Run)
	assert.Equal(t, "qwen", scour.Model)
	assert.Equal(t, "src/a.py", scour.Target)
	assert.Equal(t, "storage", scour.Scope)

	_, ok = ParseHeader("# no header here")
	assert.False(t, ok)
}

func TestSentences(t *testing.T) {
	text := "Short one. This sentence is long enough to keep around.\n" +
		"It continues on a soft break.\n\n" +
		"## Heading line that is long enough\n" +
		"---\n" +
		"- list item that is long enough to be kept\n"
	assert.Equal(t, []string{
		"This sentence is long enough to keep around.",
		"It continues on a soft break.",
		"list item that is long enough to be kept",
	}, Sentences(text))
}

func TestClassifyPriority(t *testing.T) {
	tests := []struct {
		text string
		want ClaimType
	}{
		{"The parser is missing validation for empty input.", TypeMissing},
		{"The backend layer lacks a retry path.", TypeMissing},
		{"I think the cache layer is unclear.", TypeEpistemic},
		{"The storage layer depends on the interface contract.", TypeArchitectural},
		{"The tensor model class stores 8 fields in storage.", TypeFactual},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.text))
		})
	}
}

func TestSubstantiveFilters(t *testing.T) {
	assert.True(t, IsSubstantive("Configuration lives in `am/config.go` and nowhere else."))
	assert.True(t, IsSubstantive("Look under src/yanantin/chasqui for the runner."))
	assert.True(t, IsSubstantive("Roughly 40 percent of the tests touch the store."))
	assert.True(t, IsSubstantive("Each backend returns fresh copies of records."))
	assert.True(t, IsSubstantive("Callers must close the store when finished."))
	assert.False(t, IsSubstantive("In summary, the code in `a.py` was a nice read."))
	assert.False(t, IsSubstantive("what a lovely afternoon of reading code"))
	assert.False(t, IsSubstantive("**___**"))
}

func TestFileRefs(t *testing.T) {
	refs, bare := FileRefs("See `src/a.py:12`, `src/a.py:12` again, `docs/x.md` and tests/test_b.py too.")
	assert.Equal(t, []string{"src/a.py:12", "docs/x.md"}, refs)
	assert.Equal(t, []string{"tests/test_b.py"}, bare)
}

func TestScoreClamps(t *testing.T) {
	high := "Every path in `a.py` always returns exactly 3 values, never more, confirmed and verified."
	assert.Equal(t, 0.9, roundTo(Score(high, SectionEvidence)))

	low := "It might perhaps possibly seem that this could maybe work."
	assert.Equal(t, 0.25, roundTo(Score(low, SectionReasoning)))
	assert.Equal(t, 0.15, roundTo(Score(low, SectionDeclaredLosses)))
}

func roundTo(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

func TestGleanReport(t *testing.T) {
	r := Glean("cairn/scout_0012.md", scoutReport)
	require.NotNil(t, r.Header)
	assert.Equal(t, []string{SectionStrands, SectionOpenQuestions, SectionDeclaredLosses, SectionEvidence}, r.Sections)
	require.Len(t, r.Claims, 4)

	top := r.Claims[0]
	assert.Equal(t, s5Sentence, top.Text)
	assert.Equal(t, TypeFactual, top.Type)
	assert.Equal(t, []string{"src/yanantin/apacheta/models.py"}, top.FileRefs)
	assert.Empty(t, top.BareRefs)
	assert.Greater(t, top.Confidence, 0.5)
	assert.InDelta(t, 0.83, top.Confidence, 1e-9)
	assert.Equal(t, "deepseek/deepseek-chat", top.SourceModel)

	byText := map[string]Claim{}
	for _, c := range r.Claims {
		byText[c.Text] = c
	}
	loss := byText["I did not read `tests/unit/test_memory.py` in full because of budget limits."]
	assert.Equal(t, TypeEpistemic, loss.Type)
	assert.InDelta(t, 0.55, loss.Confidence, 1e-9)

	question := byText["The ingest layer might drop strands with unusual headers, which should be checked."]
	assert.Equal(t, TypeEpistemic, question.Type)
	assert.InDelta(t, 0.38, question.Confidence, 1e-9)

	missing := byText["The memory backend is missing a test for duplicate entity writes."]
	assert.Equal(t, TypeMissing, missing.Type)

	for i := 1; i < len(r.Claims); i++ {
		assert.GreaterOrEqual(t, r.Claims[i-1].Confidence, r.Claims[i].Confidence)
	}
	assert.Equal(t, r, Glean("cairn/scout_0012.md", scoutReport), "gleaning is deterministic")
}

func TestGleanToVerification(t *testing.T) {
	r := Glean("cairn/scout_0012.md", scoutReport)

	selected := ClaimsForVerification(r.Claims, 5)
	require.Len(t, selected, 1)
	assert.Equal(t, s5Sentence, selected[0].Text)

	assert.Equal(t, []VerifiableClaim{{
		Text:        s5Sentence,
		FilePath:    "src/yanantin/apacheta/models.py",
		SourceModel: "deepseek/deepseek-chat",
		SourceFile:  "cairn/scout_0012.md",
	}}, ToVerifiableClaims(selected))
}

func TestDedupMergesRefs(t *testing.T) {
	claims := []Claim{
		{Text: "The `a.py` file is big.", Confidence: 0.6, FileRefs: []string{"a.py"}},
		{Text: "the a.py file is big", Confidence: 0.9, FileRefs: []string{"b.py"}},
		{Text: "Something else entirely is here.", Confidence: 0.7, FileRefs: []string{}},
	}
	out := Dedup(claims)
	require.Len(t, out, 2)
	assert.Equal(t, "the a.py file is big", out[0].Text)
	assert.Equal(t, []string{"b.py", "a.py"}, out[0].FileRefs)
	assert.Equal(t, "Something else entirely is here.", out[1].Text)
}

func TestClaimsForVerificationDiversity(t *testing.T) {
	claims := []Claim{
		{Text: "a1", SourceModel: "A", Confidence: 0.9, FileRefs: []string{"x.py"}},
		{Text: "a2", SourceModel: "A", Confidence: 0.8, Quantitative: true},
		{Text: "b1", SourceModel: "B", Confidence: 0.5, BareRefs: []string{"src/y.py"}},
		{Text: "c1", SourceModel: "C", Confidence: 0.95, Type: TypeEpistemic, FileRefs: []string{"z.py"}},
		{Text: "d1", SourceModel: "D", Confidence: 0.2, FileRefs: []string{"w.py"}},
		{Text: "e1", SourceModel: "E", Confidence: 0.9},
	}
	texts := func(cs []Claim) []string {
		var out []string
		for _, c := range cs {
			out = append(out, c.Text)
		}
		return out
	}
	assert.Equal(t, []string{"a1", "b1"}, texts(ClaimsForVerification(claims, 2)))
	assert.Equal(t, []string{"a1", "b1", "a2"}, texts(ClaimsForVerification(claims, 3)))
	assert.Equal(t, []string{"a1", "b1", "a2"}, texts(ClaimsForVerification(claims, 10)))
	assert.Empty(t, ClaimsForVerification(claims, 0))

	for _, c := range ClaimsForVerification(claims, 10) {
		assert.NotEqual(t, TypeEpistemic, c.Type)
	}
}

func TestToVerifiableClaimsStripsLine(t *testing.T) {
	out := ToVerifiableClaims([]Claim{
		{Text: "one", FileRefs: []string{"src/x.py:42"}, SourceModel: "m", SourceFile: "r.md"},
		{Text: "two"},
		{Text: "three", BareRefs: []string{"tests/t.py"}},
	})
	require.Len(t, out, 2)
	assert.Equal(t, "src/x.py", out[0].FilePath)
	assert.Equal(t, "tests/t.py", out[1].FilePath)
}

func TestCairnNewestReports(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	write := func(name string, age time.Duration, text string) {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
		ts := base.Add(-age)
		require.NoError(t, os.Chtimes(path, ts, ts))
	}
	write("scout_0001.md", 3*time.Hour, "The `old.py` module has 3 functions in total.\n")
	write("runs/scout_0002.md", 2*time.Hour, scoutReport)
	write("runs/scour_0003.md", time.Hour, scoutReport)
	write("notes.md", 0, "The `notes.py` file has 9 lines of code.\n")

	c := NewCairn(dir, "", 2, zaptest.NewLogger(t).Sugar())
	paths, err := c.Reports()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "runs", "scour_0003.md"),
		filepath.Join(dir, "runs", "scout_0002.md"),
	}, paths)

	claims, err := c.Glean()
	require.NoError(t, err)
	assert.Len(t, claims, 4, "identical reports collapse")
	assert.Equal(t, s5Sentence, claims[0].Text)

	all, err := NewCairn(dir, "", 0, nil).Glean()
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestGleanIsRepeatable(t *testing.T) {
	report := scoutReport +
		"\n## Reasoning\n\n" +
		"The memory backend is missing a test for duplicate entity writes.\n\n" +
		"The `src/yanantin/apacheta/backends/memory.py` module holds 3 dictionaries for records.\n\n" +
		"The `src/yanantin/apacheta/backends/duckdb.py` module holds 3 tables for records.\n"

	first := Glean("cairn/scout_0013.md", report)
	require.NotEmpty(t, first.Claims)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first.Claims, Glean("cairn/scout_0013.md", report).Claims)
	}

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scout_0012.md"), []byte(scoutReport), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scout_0013.md"), []byte(report), 0o644))

	c := NewCairn(dir, "", 0, zaptest.NewLogger(t).Sugar())
	once, err := c.Glean()
	require.NoError(t, err)
	require.NotEmpty(t, once)
	twice, err := c.Glean()
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}
