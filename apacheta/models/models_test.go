package models

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTensor() TensorRecord {
	claimID := uuid.MustParse("7d3c2f8a-0c59-4a38-9d2e-3d1d3a5e9f01")
	dt := DisagreementEmpirical
	budget := 0.42
	return TensorRecord{
		ID: uuid.MustParse("0f6a1b2c-3d4e-4f50-8a61-728394a5b6c7"),
		Provenance: ProvenanceEnvelope{
			Source:               SourceIdentifier{Identifier: uuid.MustParse("11111111-2222-4333-8444-555555555555"), Version: "1", Description: "test"},
			Timestamp:            time.Date(2026, 2, 3, 4, 5, 6, 789, time.UTC),
			AuthorModelFamily:    "claude",
			AuthorInstanceID:     "T7",
			ContextBudgetAtWrite: &budget,
			PredecessorsInScope:  []uuid.UUID{uuid.MustParse("99999999-8888-4777-8666-555555555555")},
			InterfaceVersion:     InterfaceVersion,
		},
		Preamble: "preamble",
		Strands: []Strand{{
			StrandIndex: 1,
			Title:       "Storage",
			Content:     "content",
			Topics:      []string{"storage"},
			KeyClaims: []KeyClaim{{
				ClaimID:      claimID,
				Text:         "the store is append-only",
				Epistemic:    EpistemicMetadata{RepresentationType: RepresentationScalar, Truth: 1.5, Indeterminacy: -0.2, Falsity: 0.9, ScopeBoundaries: []string{"local"}, DisagreementType: &dt},
				EvidenceRefs: []string{"apacheta/memory"},
			}},
		}},
		LineageTags:    []string{"yanantin"},
		DeclaredLosses: []DeclaredLoss{{WhatWasLost: "benchmarks", Why: "time", Category: LossContextPressure}},
		OpenQuestions:  []string{"what next?"},
	}
}

func TestRoundTripPreservesEveryField(t *testing.T) {
	original := sampleTensor()

	data, err := Encode(original)
	require.NoError(t, err)
	decoded, err := Decode[TensorRecord](data)
	require.NoError(t, err)

	assert.Equal(t, original, decoded)
	assert.True(t, SameJSON(original, decoded))
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := Decode[DeclaredLoss]([]byte(`{"what_was_lost":"x","why":"y","category":"authorial_choice","extra":1}`))
	require.Error(t, err)
}

func TestDecodeRejectsUnknownEnums(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"relation", `{"id":"0f6a1b2c-3d4e-4f50-8a61-728394a5b6c7","from_tensor":"0f6a1b2c-3d4e-4f50-8a61-728394a5b6c7","to_tensor":"0f6a1b2c-3d4e-4f50-8a61-728394a5b6c7","relation_type":"merges","provenance":{}}`},
		{"loss", `{"what_was_lost":"x","why":"y","category":"forgot"}`},
		{"representation", `{"representation_type":"vector","truth":0,"indeterminacy":0,"falsity":0,"scope_boundaries":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			switch tt.name {
			case "relation":
				_, err = Decode[CompositionEdge]([]byte(tt.data))
			case "loss":
				_, err = Decode[DeclaredLoss]([]byte(tt.data))
			default:
				_, err = Decode[EpistemicMetadata]([]byte(tt.data))
			}
			assert.Error(t, err)
		})
	}
}

func TestEncodeRejectsNonFiniteFloats(t *testing.T) {
	tensor := sampleTensor()
	tensor.Strands[0].KeyClaims[0].Epistemic.Truth = math.NaN()
	_, err := Encode(tensor)
	assert.Error(t, err)
}

func TestCloneDoesNotAlias(t *testing.T) {
	original := sampleTensor()
	clone, err := Clone(original)
	require.NoError(t, err)

	clone.Strands[0].Title = "changed"
	clone.LineageTags[0] = "changed"
	assert.Equal(t, "Storage", original.Strands[0].Title)
	assert.Equal(t, "yanantin", original.LineageTags[0])
}

func TestStrandProjectionKeepsID(t *testing.T) {
	tensor := sampleTensor()
	tensor.Strands = append(tensor.Strands, Strand{StrandIndex: 2, Title: "Second"})

	view, ok := tensor.StrandProjection(2)
	require.True(t, ok)
	assert.Equal(t, tensor.ID, view.ID)
	require.Len(t, view.Strands, 1)
	assert.Equal(t, "Second", view.Strands[0].Title)
	assert.Len(t, tensor.Strands, 2)

	_, ok = tensor.StrandProjection(9)
	assert.False(t, ok)
}

func TestAuthorClockNeverDecreases(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ticks := []time.Time{base, base.Add(-time.Hour), base.Add(time.Minute)}
	i := 0
	clock := NewAuthorClock(SourceIdentifier{}, "claude", "T1").WithNow(func() time.Time {
		ts := ticks[i]
		i++
		return ts
	})

	first := clock.Envelope()
	second := clock.Envelope()
	third := clock.Envelope()

	assert.Equal(t, base, first.Timestamp)
	assert.Equal(t, base, second.Timestamp)
	assert.Equal(t, base.Add(time.Minute), third.Timestamp)
	assert.Equal(t, InterfaceVersion, third.InterfaceVersion)
}

func TestRecordKindNames(t *testing.T) {
	assert.Equal(t, "composition_edges", KindCompositionEdge.CountKey())
	assert.Equal(t, "composition-edges", KindCompositionEdge.Collection())
	assert.Equal(t, "entities", KindEntity.CountKey())
	assert.Equal(t, "schema-evolutions", KindSchemaEvolution.Collection())

	kind, ok := KindForCollection("dissents")
	require.True(t, ok)
	assert.Equal(t, KindDissent, kind)
	_, ok = KindForCollection("widgets")
	assert.False(t, ok)
}

func TestDefaultEpistemic(t *testing.T) {
	e := DefaultEpistemic()
	assert.Equal(t, RepresentationScalar, e.RepresentationType)
	assert.Equal(t, 0.5, e.Truth)
	assert.Equal(t, 0.5, e.Indeterminacy)
	assert.Equal(t, 0.0, e.Falsity)
}
