package storetest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/teranos/yanantin/apacheta"
	"github.com/teranos/yanantin/apacheta/models"
)

// ID derives a stable uuid from a fixture name.
func ID(name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("yanantin/"+name))
}

var fixtureSource = models.SourceIdentifier{
	Identifier:  ID("source"),
	Version:     "1",
	Description: "conformance fixture",
}

// Envelope returns a provenance envelope at the given fixed time.
func Envelope(family, instance string, at time.Time) models.ProvenanceEnvelope {
	return models.ProvenanceEnvelope{
		Source:              fixtureSource,
		Timestamp:           at.UTC(),
		AuthorModelFamily:   family,
		AuthorInstanceID:    instance,
		PredecessorsInScope: []uuid.UUID{},
		InterfaceVersion:    models.InterfaceVersion,
	}
}

func day(d int) time.Time {
	return time.Date(2026, 1, d, 9, 30, 0, 0, time.UTC)
}

func scalar(t, i, f float64) models.EpistemicMetadata {
	return models.EpistemicMetadata{
		RepresentationType: models.RepresentationScalar,
		Truth:              t,
		Indeterminacy:      i,
		Falsity:            f,
		ScopeBoundaries:    []string{},
	}
}

func claim(name, text string, indeterminacy float64) models.KeyClaim {
	return models.KeyClaim{
		ClaimID:      ID(name),
		Text:         text,
		Epistemic:    scalar(0.8, indeterminacy, 0.1),
		EvidenceRefs: []string{},
	}
}

// Tensor builds a small tensor with one strand per title.
func Tensor(name, family string, at time.Time, tags []string, strands ...models.Strand) models.TensorRecord {
	if strands == nil {
		strands = []models.Strand{}
	}
	return models.TensorRecord{
		ID:             ID(name),
		Provenance:     Envelope(family, name, at),
		Preamble:       name + " preamble",
		Strands:        strands,
		Closing:        "",
		NarrativeBody:  "# " + name,
		LineageTags:    tags,
		DeclaredLosses: []models.DeclaredLoss{},
		OpenQuestions:  []string{},
	}
}

// Fixture is the record set used by behavioural and cross-backend tests.
type Fixture struct {
	T1, T2, T3  models.TensorRecord
	Edges       []models.CompositionEdge
	Correction  models.CorrectionRecord
	Dissent     models.DissentRecord
	Negation    models.NegationRecord
	Bootstrap   models.BootstrapRecord
	Evolution   models.SchemaEvolutionRecord
	Entities    []models.EntityResolution
	EntityGroup uuid.UUID
}

// NewFixture builds the fixture. Every id and timestamp is fixed.
func NewFixture() Fixture {
	t1 := Tensor("T1", "claude", day(2), []string{"yanantin", "apacheta"},
		models.Strand{
			StrandIndex: 0, Title: "Storage design", Content: "append-only storage",
			Topics:    []string{"storage"},
			KeyClaims: []models.KeyClaim{claim("c1", "The store is append-only", 0.2)},
		},
		models.Strand{
			StrandIndex: 1, Title: "Error handling", Content: "faults",
			Topics:    []string{"errors"},
			KeyClaims: []models.KeyClaim{claim("c2", "Duplicate ids raise immutability faults", 0.7)},
		},
	)
	t1.DeclaredLosses = []models.DeclaredLoss{
		{WhatWasLost: "benchmarks", Why: "ran out of context", Category: models.LossContextPressure},
		{WhatWasLost: "alternatives", Why: "chosen", Category: models.LossAuthorialChoice},
	}
	t1.OpenQuestions = []string{"How do backends agree?"}
	e := scalar(0.6, 0.3, 0.2)
	t1.Epistemic = &e

	t2 := Tensor("T2", "gpt", day(1), []string{"yanantin"},
		models.Strand{
			StrandIndex: 0, Title: "Anti-pattern catalogue", Content: "aliasing",
			Topics:    []string{"anti-pattern", "storage"},
			KeyClaims: []models.KeyClaim{claim("c3", "Mutable state leaks through aliases", 0.4)},
		},
	)
	t2.DeclaredLosses = []models.DeclaredLoss{
		{WhatWasLost: "profiling", Why: "budget", Category: models.LossContextPressure},
	}
	t2.CompositionEquation = "T2 = T1 ∘ reading"

	t3 := Tensor("T3", "claude", day(3), []string{"elsewhere"})

	order := 1
	c2 := ID("c2")
	strandIdx := 1
	disagreement := models.DisagreementMethodological

	f := Fixture{
		T1: t1, T2: t2, T3: t3,
		Edges: []models.CompositionEdge{
			{ID: ID("e1"), FromTensor: t1.ID, ToTensor: t2.ID, RelationType: models.RelationComposesWith, Ordering: &order, Provenance: Envelope("claude", "T1", day(4))},
			{ID: ID("e2"), FromTensor: t2.ID, ToTensor: t1.ID, RelationType: models.RelationBridges, AuthoredMapping: "strand 0 maps onto strand 1", Provenance: Envelope("gpt", "T2", day(4))},
		},
		Correction: models.CorrectionRecord{
			ID: ID("k1"), Provenance: Envelope("claude", "T1", day(5)),
			TargetTensor: t1.ID, TargetStrandIndex: &strandIdx, TargetClaimID: &c2,
			OriginalClaim: "Duplicate ids raise immutability faults", CorrectedClaim: "Duplicate ids raise ErrImmutable",
			Evidence: "apacheta/memory",
		},
		Dissent: models.DissentRecord{
			ID: ID("d1"), Provenance: Envelope("gpt", "T2", day(5)),
			TargetTensor: t1.ID, AlternativeFramework: "event sourcing", Reasoning: "replay is simpler",
			DisagreementType: &disagreement,
		},
		Negation: models.NegationRecord{
			ID: ID("n1"), Provenance: Envelope("claude", "T3", day(5)),
			TensorA: t1.ID, TensorB: t3.ID, Reasoning: "different projects",
		},
		Bootstrap: models.BootstrapRecord{
			ID: ID("b1"), Provenance: Envelope("claude", "T4", day(6)),
			InstanceID: "T4", ContextBudget: 0.25, TaskDescription: "continue storage work",
			TensorsLoaded:  []uuid.UUID{t1.ID},
			StrandsLoaded:  []models.StrandSelection{{TensorID: t1.ID, StrandIndices: []int{0}}},
			WhatWasOmitted: []string{"T2"},
		},
		Evolution: models.SchemaEvolutionRecord{
			ID: ID("s1"), Provenance: Envelope("claude", "T4", day(6)),
			FromVersion: "0.9.0", ToVersion: "1.0.0",
			FieldsAdded: []string{"open_questions"}, FieldsRemoved: []string{},
			MigrationNotes: "empty list for old tensors",
		},
		EntityGroup: ID("person"),
	}
	f.Entities = []models.EntityResolution{
		{ID: ID("ent1"), Provenance: Envelope("claude", "T4", day(7)), EntityUUID: f.EntityGroup, IdentityType: "github", IdentityData: map[string]string{"login": "tony"}},
		{ID: ID("ent2"), Provenance: Envelope("claude", "T4", day(7)), EntityUUID: f.EntityGroup, IdentityType: "email", IdentityData: map[string]string{"address": "redacted"}, Redacted: true},
	}
	return f
}

// Populate writes the fixture into s.
func Populate(t *testing.T, s apacheta.TensorStore, f Fixture) {
	t.Helper()
	for _, tensor := range []models.TensorRecord{f.T1, f.T2, f.T3} {
		require.NoError(t, s.StoreTensor(tensor))
	}
	for _, e := range f.Edges {
		require.NoError(t, s.StoreCompositionEdge(e))
	}
	require.NoError(t, s.StoreCorrection(f.Correction))
	require.NoError(t, s.StoreDissent(f.Dissent))
	require.NoError(t, s.StoreNegation(f.Negation))
	require.NoError(t, s.StoreBootstrap(f.Bootstrap))
	require.NoError(t, s.StoreSchemaEvolution(f.Evolution))
	for _, e := range f.Entities {
		require.NoError(t, s.StoreEntity(e))
	}
}
