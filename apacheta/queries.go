package apacheta

import (
	"sort"

	"github.com/google/uuid"

	"github.com/teranos/yanantin/errors"
)

// ErrUnknownQuery is returned by RunQuery for a name outside QueryParams.
var ErrUnknownQuery = errors.New("unknown query")

type queryFunc func(s TensorStore, arg string) (any, error)

// byID adapts a query that takes a uuid argument. A malformed id cannot
// name a record, so it reads as absence.
func byID[T any](fn func(TensorStore, uuid.UUID) (T, error)) queryFunc {
	return func(s TensorStore, arg string) (any, error) {
		id, err := uuid.Parse(arg)
		if err != nil {
			return nil, errors.NewNotFoundError("no record with id %q", arg)
		}
		return fn(s, id)
	}
}

func byString[T any](fn func(TensorStore, string) (T, error)) queryFunc {
	return func(s TensorStore, arg string) (any, error) {
		return fn(s, arg)
	}
}

func noArg[T any](fn func(TensorStore) (T, error)) queryFunc {
	return func(s TensorStore, _ string) (any, error) {
		return fn(s)
	}
}

var queries = map[string]queryFunc{
	QueryProjectState:      noArg(TensorStore.ProjectState),
	QueryClaimsAbout:       byString(TensorStore.ClaimsAbout),
	QueryCorrectionChain:   byID(TensorStore.CorrectionChain),
	QueryEpistemicStatus:   byID(TensorStore.EpistemicStatus),
	QueryDisagreements:     noArg(TensorStore.Disagreements),
	QueryCompositionGraph:  noArg(TensorStore.CompositionGraph),
	QueryBridges:           noArg(TensorStore.Bridges),
	QueryLineage:           byID(TensorStore.Lineage),
	QueryReadingOrder:      byString(TensorStore.ReadingOrder),
	QueryCrossModel:        noArg(TensorStore.CrossModel),
	QueryErrorClasses:      noArg(TensorStore.ErrorClasses),
	QueryAntiPatterns:      noArg(TensorStore.AntiPatterns),
	QueryUnreliableSignals: noArg(TensorStore.UnreliableSignals),
	QueryLosses:            byID(TensorStore.Losses),
	QueryLossPatterns:      noArg(TensorStore.LossPatterns),
	QueryOpenQuestions:     noArg(TensorStore.OpenQuestions),
	QueryAuthorship:        byID(TensorStore.Authorship),
	QueryEntitiesByUUID:    byID(TensorStore.EntitiesByUUID),
	QueryUnlearn:           byString(TensorStore.Unlearn),
	QueryCompositions:      byID(TensorStore.Compositions),
	QueryCorrectionsFor:    byID(TensorStore.CorrectionsFor),
	QueryDissentsFor:       byID(TensorStore.DissentsFor),
	QueryTensorsByModel:    byString(TensorStore.TensorsByModel),
	QueryBootstraps:        byString(TensorStore.Bootstraps),
	QuerySchemaHistory:     noArg(TensorStore.SchemaHistory),
}

// RunQuery runs the named query with its single argument, which is
// ignored by queries that take none.
func RunQuery(s TensorStore, name, arg string) (any, error) {
	fn, ok := queries[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownQuery, "query %q", name)
	}
	return fn(s, arg)
}

// QueryNames lists every named query in sorted order.
func QueryNames() []string {
	names := make([]string, 0, len(QueryParams))
	for n := range QueryParams {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
