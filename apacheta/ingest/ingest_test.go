package ingest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/yanantin/apacheta/memory"
	"github.com/teranos/yanantin/apacheta/models"
)

const sample = `# The Bridge

Preamble paragraph here.

## Strand 0: Storage immutability matters

Some content about storage.

1. **Records are never overwritten.** Compose instead.
- **Corrections form a chain** across tensors.

### A subheading claim

More text.

## Strand 1: Error handling and failure modes

Text about error paths.

T5 = compose(T3, T4)

## Open Questions

1. Does the gateway need auth?
- What about ordering?

## Declared Losses

- **The raw session transcript** — dropped because of context budget pressure.

## Closing

Carry it forward.

— The author
`

var fixedNow = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

func TestParseStructure(t *testing.T) {
	p := Parser{Now: fixedNow}.Parse("bridge_tensor.md", sample)
	tensor := p.Tensor

	assert.Equal(t, "T5", p.Name)
	assert.Equal(t, sample, tensor.NarrativeBody)
	assert.Equal(t, "Preamble paragraph here.", tensor.Preamble)
	require.Len(t, tensor.Strands, 2)

	s0 := tensor.Strands[0]
	assert.Equal(t, 0, s0.StrandIndex)
	assert.Equal(t, "Storage immutability matters", s0.Title)
	assert.Contains(t, s0.Topics, "storage")
	assert.Contains(t, s0.Topics, "immutability")
	assert.Contains(t, s0.Topics, "correction")
	require.Len(t, s0.KeyClaims, 3)
	assert.Equal(t, "Records are never overwritten. Compose instead.", s0.KeyClaims[0].Text)
	assert.Equal(t, "Corrections form a chain across tensors.", s0.KeyClaims[1].Text)
	assert.Equal(t, "A subheading claim", s0.KeyClaims[2].Text)
	assert.Equal(t, models.DefaultEpistemic(), s0.KeyClaims[0].Epistemic)

	s1 := tensor.Strands[1]
	assert.Equal(t, []string{"error", "handling", "failure", "modes"}, s1.Topics)
	assert.NotContains(t, s1.Content, "Open Questions")
	assert.Empty(t, s1.KeyClaims)

	assert.Equal(t, []string{"Does the gateway need auth?", "What about ordering?"}, tensor.OpenQuestions)
	require.Len(t, tensor.DeclaredLosses, 1)
	assert.Equal(t, "The raw session transcript", tensor.DeclaredLosses[0].WhatWasLost)
	assert.Equal(t, models.LossContextPressure, tensor.DeclaredLosses[0].Category)
	assert.Contains(t, tensor.Closing, "Carry it forward.")
	assert.Equal(t, "T5 = compose(T3, T4)", tensor.CompositionEquation)
	assert.NoError(t, tensor.Validate())
}

func TestParseMetadata(t *testing.T) {
	known := Parser{Now: fixedNow}.Parse("bridge_tensor.md", sample)
	assert.NotEqual(t, fixedNow(), known.Tensor.Provenance.Timestamp, "table date wins")
	assert.Equal(t, "T5", known.Tensor.Provenance.AuthorInstanceID)

	unknown := Parser{Now: fixedNow}.Parse("T17_20260301_loose_notes.md", sample)
	assert.Equal(t, "T17", unknown.Name)
	assert.Equal(t, DefaultModelFamily, unknown.Tensor.Provenance.AuthorModelFamily)
	assert.Equal(t, fixedNow(), unknown.Tensor.Provenance.Timestamp)
	assert.Empty(t, unknown.Tensor.LineageTags)
	assert.Contains(t, unknown.Inferred, "filename not in table; metadata defaults")

	again := Parser{Now: time.Now}.Parse("other_name.md", sample)
	assert.Equal(t, unknown.Tensor.ID, again.Tensor.ID, "id follows content")
}

func TestParseAlternativeStrandHeaders(t *testing.T) {
	text := "**Strand 1: Bold header**\n\nalpha\n\nStrand 2: Plain header\n\nbeta\n"
	p := Parser{Now: fixedNow}.Parse("x.md", text)
	require.Len(t, p.Tensor.Strands, 2)
	assert.Equal(t, "Bold header", p.Tensor.Strands[0].Title)
	assert.Equal(t, "alpha", p.Tensor.Strands[0].Content)
	assert.Equal(t, 1, p.Tensor.Strands[1].StrandIndex)
	assert.Equal(t, "Plain header", p.Tensor.Strands[1].Title)
}

func TestParseNeverRejects(t *testing.T) {
	for _, text := range []string{"", "just prose, no structure", "## Strand x: not numbered"} {
		p := Parser{Now: fixedNow}.Parse("x.md", text)
		assert.Equal(t, text, p.Tensor.NarrativeBody)
		assert.Empty(t, p.Tensor.Strands)
		assert.NoError(t, p.Tensor.Validate())
	}
}

func TestDeclaredLossShapes(t *testing.T) {
	sentence := Parser{Now: fixedNow}.Parse("x.md", "I dropped the benchmark tables because I chose narrative over numbers.\n")
	require.Len(t, sentence.Tensor.DeclaredLosses, 1)
	assert.Equal(t, "the benchmark tables", sentence.Tensor.DeclaredLosses[0].WhatWasLost)
	assert.Equal(t, models.LossAuthorialChoice, sentence.Tensor.DeclaredLosses[0].Category)

	mine := Parser{Now: fixedNow}.Parse("x.md", "Much was left behind. The losses are mine.\n")
	require.Len(t, mine.Tensor.DeclaredLosses, 1)
	assert.Equal(t, "unspecified", mine.Tensor.DeclaredLosses[0].WhatWasLost)

	none := Parser{Now: fixedNow}.Parse("x.md", "Nothing lost here.\n")
	assert.Empty(t, none.Tensor.DeclaredLosses)
}

func TestIngestDirectory(t *testing.T) {
	dir := t.TempDir()
	write := func(name, text string) {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	}
	write("a.md", sample)
	write("b.md", sample+"\n\n")
	write("nested/c.md", "## Strand 0: Other\n\ntext\n")
	write(".drafts/d.md", "hidden")
	write("notes.txt", "not markdown")

	log := zaptest.NewLogger(t).Sugar()
	store := memory.New(log)

	first, err := NewProcessor(store, false, log).WithNow(fixedNow).IngestDirectory(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Stored)
	assert.Equal(t, 1, first.Duplicate)
	assert.Zero(t, first.Failed)
	require.Len(t, first.Files, 3)

	counts, err := store.CountRecords()
	require.NoError(t, err)
	assert.Equal(t, 2, counts["tensors"])

	second, err := NewProcessor(store, false, log).WithNow(fixedNow).IngestDirectory(dir)
	require.NoError(t, err)
	assert.Zero(t, second.Stored)
	assert.Equal(t, 2, second.Existing)
	assert.Equal(t, 1, second.Duplicate)
}

func TestIngestDryRun(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte(sample), 0o644))
	store := memory.New(nil)

	res, err := NewProcessor(store, true, nil).IngestDirectory(dir)
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Equal(t, StatusDryRun, res.Files[0].Status)
	assert.Equal(t, 2, res.Files[0].Strands)

	counts, err := store.CountRecords()
	require.NoError(t, err)
	assert.Zero(t, counts["tensors"])
}
