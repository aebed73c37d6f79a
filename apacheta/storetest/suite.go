// Package storetest is the behavioural suite every tensor store backend runs.
//
//	func TestConformance(t *testing.T) {
//	    storetest.Run(t, func(t *testing.T) apacheta.TensorStore {
//	        return memory.New(zaptest.NewLogger(t).Sugar())
//	    })
//	}
package storetest

import (
	"math"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/yanantin/apacheta"
	"github.com/teranos/yanantin/apacheta/models"
	"github.com/teranos/yanantin/errors"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) apacheta.TensorStore

var forbiddenPrefixes = []string{"delete", "update", "modify", "patch", "upsert", "remove", "drop"}

// Run executes the conformance suite against stores built by factory.
func Run(t *testing.T, factory Factory) {
	t.Run("NoMutatingMethods", func(t *testing.T) {
		AssertNoMutatingMethods(t, factory(t))
	})
	t.Run("ImmutableTensor", func(t *testing.T) { testImmutableTensor(t, factory(t)) })
	t.Run("ImmutableEveryKind", func(t *testing.T) { testImmutableEveryKind(t, factory(t)) })
	t.Run("ProjectionCannotBeStored", func(t *testing.T) { testProjection(t, factory(t)) })
	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, factory(t)) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, factory(t)) })
	t.Run("NoAliasing", func(t *testing.T) { testNoAliasing(t, factory(t)) })
	t.Run("CorrectionChain", func(t *testing.T) { testCorrectionChain(t, factory(t)) })
	t.Run("DisagreementUnion", func(t *testing.T) { testDisagreementUnion(t, factory(t)) })
	t.Run("Queries", func(t *testing.T) { testQueries(t, factory(t)) })
	t.Run("Counts", func(t *testing.T) { testCounts(t, factory(t)) })
	t.Run("NonFiniteFloats", func(t *testing.T) { testNonFinite(t, factory(t)) })
	t.Run("InterfaceVersion", func(t *testing.T) {
		assert.Equal(t, apacheta.InterfaceVersion, factory(t).GetInterfaceVersion())
	})
}

// AssertNoMutatingMethods fails if the store's method set has a method whose
// name starts with a mutating verb.
func AssertNoMutatingMethods(t *testing.T, s apacheta.TensorStore) {
	t.Helper()
	check := func(typ reflect.Type) {
		for i := 0; i < typ.NumMethod(); i++ {
			name := strings.ToLower(typ.Method(i).Name)
			for _, prefix := range forbiddenPrefixes {
				assert.False(t, strings.HasPrefix(name, prefix), "%s exposes %s", typ, typ.Method(i).Name)
			}
		}
	}
	check(reflect.TypeOf((*apacheta.TensorStore)(nil)).Elem())
	check(reflect.TypeOf(s))
}

func testImmutableTensor(t *testing.T, s apacheta.TensorStore) {
	first := Tensor("S1", "claude", day(1), []string{"s1"})
	require.NoError(t, s.StoreTensor(first))

	second := Tensor("S1", "gpt", day(2), []string{"different"})
	second.Preamble = "a different tensor with the same id"
	err := s.StoreTensor(second)
	require.Error(t, err)
	assert.True(t, errors.IsImmutable(err), "got %v", err)

	counts, err := s.CountRecords()
	require.NoError(t, err)
	assert.Equal(t, 1, counts["tensors"])

	stored, err := s.GetTensor(first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Preamble, stored.Preamble)
}

func testImmutableEveryKind(t *testing.T, s apacheta.TensorStore) {
	f := NewFixture()
	Populate(t, s, f)

	writes := map[string]func() error{
		"tensor":           func() error { return s.StoreTensor(f.T1) },
		"composition_edge": func() error { return s.StoreCompositionEdge(f.Edges[0]) },
		"correction":       func() error { return s.StoreCorrection(f.Correction) },
		"dissent":          func() error { return s.StoreDissent(f.Dissent) },
		"negation":         func() error { return s.StoreNegation(f.Negation) },
		"bootstrap":        func() error { return s.StoreBootstrap(f.Bootstrap) },
		"schema_evolution": func() error { return s.StoreSchemaEvolution(f.Evolution) },
		"entity":           func() error { return s.StoreEntity(f.Entities[0]) },
	}
	for name, write := range writes {
		t.Run(name, func(t *testing.T) {
			err := write()
			require.Error(t, err)
			assert.True(t, errors.IsImmutable(err), "got %v", err)
		})
	}
}

func testProjection(t *testing.T, s apacheta.TensorStore) {
	f := NewFixture()
	require.NoError(t, s.StoreTensor(f.T1))

	view, err := s.GetStrand(f.T1.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, f.T1.ID, view.ID)
	require.Len(t, view.Strands, 1)
	assert.Equal(t, "Error handling", view.Strands[0].Title)

	err = s.StoreTensor(view)
	assert.True(t, errors.IsImmutable(err), "got %v", err)
}

func testRoundTrip(t *testing.T, s apacheta.TensorStore) {
	f := NewFixture()
	Populate(t, s, f)

	got, err := s.GetTensor(f.T1.ID)
	require.NoError(t, err)
	assert.True(t, models.SameJSON(f.T1, got))
	assert.Equal(t, f.T1, got)

	entity, err := s.GetEntity(f.Entities[1].ID)
	require.NoError(t, err)
	assert.Equal(t, f.Entities[1], entity)

	list, err := s.ListTensors()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"T1 preamble", "T2 preamble", "T3 preamble"},
		[]string{list[0].Preamble, list[1].Preamble, list[2].Preamble})
}

func testNotFound(t *testing.T, s apacheta.TensorStore) {
	f := NewFixture()
	require.NoError(t, s.StoreTensor(f.T1))

	_, err := s.GetTensor(ID("absent"))
	assert.True(t, errors.IsNotFoundError(err), "get_tensor: %v", err)
	_, err = s.GetStrand(ID("absent"), 0)
	assert.True(t, errors.IsNotFoundError(err), "get_strand: %v", err)
	_, err = s.GetStrand(f.T1.ID, 99)
	assert.True(t, errors.IsNotFoundError(err), "get_strand index: %v", err)
	_, err = s.GetEntity(ID("absent"))
	assert.True(t, errors.IsNotFoundError(err), "get_entity: %v", err)
	_, err = s.Losses(ID("absent"))
	assert.True(t, errors.IsNotFoundError(err), "losses: %v", err)
	_, err = s.Authorship(ID("absent"))
	assert.True(t, errors.IsNotFoundError(err), "authorship: %v", err)
	_, err = s.EpistemicStatus(ID("absent"))
	assert.True(t, errors.IsNotFoundError(err), "epistemic_status: %v", err)
}

func testNoAliasing(t *testing.T, s apacheta.TensorStore) {
	f := NewFixture()
	tensor := f.T1
	require.NoError(t, s.StoreTensor(tensor))

	// Mutating the caller's copy after the write must not leak in.
	tensor.Strands[0].Title = "mutated after write"

	got, err := s.GetTensor(f.T1.ID)
	require.NoError(t, err)
	assert.Equal(t, "Storage design", got.Strands[0].Title)

	got.Strands[0].Title = "mutated after read"
	got.LineageTags[0] = "mutated"
	again, err := s.GetTensor(f.T1.ID)
	require.NoError(t, err)
	assert.Equal(t, "Storage design", again.Strands[0].Title)
	assert.Equal(t, "yanantin", again.LineageTags[0])

	list, err := s.ListTensors()
	require.NoError(t, err)
	list[0].Preamble = "mutated"
	again, err = s.GetTensor(f.T1.ID)
	require.NoError(t, err)
	assert.Equal(t, "T1 preamble", again.Preamble)
}

func testCorrectionChain(t *testing.T, s apacheta.TensorStore) {
	tensor := Tensor("Ta", "claude", day(1), []string{"s2"}, models.Strand{
		StrandIndex: 0, Title: "Claims", Topics: []string{},
		KeyClaims: []models.KeyClaim{claim("c", "first", 0.1)},
	})
	require.NoError(t, s.StoreTensor(tensor))

	c := ID("c")
	steps := [][2]string{{"first", "second"}, {"second", "third"}, {"third", "fourth and final"}}
	for i, step := range steps {
		require.NoError(t, s.StoreCorrection(models.CorrectionRecord{
			ID:             ID("chain" + string(rune('1'+i))),
			Provenance:     Envelope("claude", "Ta", day(2+i)),
			TargetTensor:   tensor.ID,
			TargetClaimID:  &c,
			OriginalClaim:  step[0],
			CorrectedClaim: step[1],
		}))
	}

	chain, err := s.CorrectionChain(c)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, "second", chain[0].CorrectedClaim)
	assert.Equal(t, "fourth and final", chain[2].CorrectedClaim)

	status, err := s.EpistemicStatus(c)
	require.NoError(t, err)
	assert.Equal(t, apacheta.EpistemicStatus{
		ClaimID:         c,
		CurrentClaim:    "fourth and final",
		OriginalClaim:   "first",
		CorrectionCount: 3,
	}, status)

	// The original claim text is untouched.
	stored, err := s.GetTensor(tensor.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", stored.Strands[0].KeyClaims[0].Text)
}

func testDisagreementUnion(t *testing.T, s apacheta.TensorStore) {
	f := NewFixture()
	require.NoError(t, s.StoreDissent(f.Dissent))
	require.NoError(t, s.StoreNegation(f.Negation))
	require.NoError(t, s.StoreCorrection(f.Correction))

	got, err := s.Disagreements()
	require.NoError(t, err)
	require.Len(t, got, 3)
	types := []string{got[0].Type, got[1].Type, got[2].Type}
	assert.Equal(t, []string{"dissent", "negation", "correction"}, types)
}

func testQueries(t *testing.T, s apacheta.TensorStore) {
	f := NewFixture()
	Populate(t, s, f)

	ps, err := s.ProjectState()
	require.NoError(t, err)
	assert.Equal(t, 3, ps.TensorCount)
	assert.Equal(t, []string{"apacheta", "elsewhere", "yanantin"}, ps.LineageTags)
	assert.Equal(t, []string{"claude", "gpt"}, ps.ModelFamilies)

	storage, err := s.ClaimsAbout("STORAGE")
	require.NoError(t, err)
	require.Len(t, storage, 2)
	assert.Equal(t, ID("c1"), storage[0].Claim.ClaimID)
	assert.Equal(t, ID("c3"), storage[1].Claim.ClaimID)

	aliases, err := s.ClaimsAbout("aliases")
	require.NoError(t, err)
	require.Len(t, aliases, 1)
	assert.Equal(t, f.T2.ID, aliases[0].TensorID)

	bridges, err := s.Bridges()
	require.NoError(t, err)
	require.Len(t, bridges, 1)
	assert.Equal(t, ID("e2"), bridges[0].ID)

	graph, err := s.CompositionGraph()
	require.NoError(t, err)
	assert.Len(t, graph, 2)

	lineage, err := s.Lineage(f.T1.ID)
	require.NoError(t, err)
	require.Len(t, lineage, 1)
	assert.Equal(t, f.T2.ID, lineage[0].ID)

	order, err := s.ReadingOrder("yanantin")
	require.NoError(t, err)
	require.Len(t, order, 2)
	assert.Equal(t, f.T2.ID, order[0].ID)
	assert.Equal(t, f.T1.ID, order[1].ID)

	cross, err := s.CrossModel()
	require.NoError(t, err)
	assert.Len(t, cross, 3)

	errorsFound, err := s.ErrorClasses()
	require.NoError(t, err)
	require.Len(t, errorsFound, 1)
	assert.Equal(t, ID("c2"), errorsFound[0].Claim.ClaimID)

	anti, err := s.AntiPatterns()
	require.NoError(t, err)
	require.Len(t, anti, 1)
	assert.Equal(t, ID("c3"), anti[0].Claim.ClaimID)

	unreliable, err := s.UnreliableSignals()
	require.NoError(t, err)
	require.Len(t, unreliable, 1)
	assert.Equal(t, ID("c2"), unreliable[0].Claim.ClaimID)

	losses, err := s.Losses(f.T1.ID)
	require.NoError(t, err)
	assert.Len(t, losses, 2)

	patterns, err := s.LossPatterns()
	require.NoError(t, err)
	assert.Equal(t, []apacheta.LossPattern{
		{Category: models.LossContextPressure, Count: 2},
		{Category: models.LossAuthorialChoice, Count: 1},
	}, patterns)

	questions, err := s.OpenQuestions()
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, f.T1.ID, questions[0].TensorID)

	authorship, err := s.Authorship(f.T2.ID)
	require.NoError(t, err)
	assert.Equal(t, "gpt", authorship.Provenance.AuthorModelFamily)

	entities, err := s.EntitiesByUUID(f.EntityGroup)
	require.NoError(t, err)
	assert.Len(t, entities, 2)

	impact, err := s.Unlearn("storage")
	require.NoError(t, err)
	assert.Equal(t, 2, impact.ClaimCount)
	ids := []string{impact.AffectedTensors[0].String(), impact.AffectedTensors[1].String()}
	want := []string{f.T1.ID.String(), f.T2.ID.String()}
	sort.Strings(ids)
	sort.Strings(want)
	assert.Equal(t, want, ids)

	comps, err := s.Compositions(f.T3.ID)
	require.NoError(t, err)
	assert.Empty(t, comps)

	byModel, err := s.TensorsByModel("claude")
	require.NoError(t, err)
	assert.Len(t, byModel, 2)

	boots, err := s.Bootstraps("T4")
	require.NoError(t, err)
	assert.Len(t, boots, 1)

	history, err := s.SchemaHistory()
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "1.0.0", history[0].ToVersion)

	dissents, err := s.DissentsFor(f.T1.ID)
	require.NoError(t, err)
	assert.Len(t, dissents, 1)

	corrections, err := s.CorrectionsFor(f.T1.ID)
	require.NoError(t, err)
	assert.Len(t, corrections, 1)
}

func testCounts(t *testing.T, s apacheta.TensorStore) {
	empty, err := s.CountRecords()
	require.NoError(t, err)
	keys := make([]string, 0, len(empty))
	for k, v := range empty {
		keys = append(keys, k)
		assert.Zero(t, v, k)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{
		"bootstraps", "composition_edges", "corrections", "dissents",
		"entities", "negations", "schema_evolutions", "tensors",
	}, keys)

	Populate(t, s, NewFixture())
	counts, err := s.CountRecords()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		"tensors": 3, "composition_edges": 2, "corrections": 1, "dissents": 1,
		"negations": 1, "bootstraps": 1, "schema_evolutions": 1, "entities": 2,
	}, counts)
}

func testNonFinite(t *testing.T, s apacheta.TensorStore) {
	tensor := Tensor("nan", "claude", day(1), []string{}, models.Strand{
		StrandIndex: 0, Title: "x", Topics: []string{},
		KeyClaims: []models.KeyClaim{claim("nan-claim", "not a number", 0.5)},
	})
	tensor.Strands[0].KeyClaims[0].Epistemic.Truth = math.Inf(1)

	err := s.StoreTensor(tensor)
	require.Error(t, err)
	assert.True(t, errors.IsStoreError(err), "got %v", err)

	_, err = s.GetTensor(tensor.ID)
	assert.True(t, errors.IsNotFoundError(err))
}
