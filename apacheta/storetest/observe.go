package storetest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teranos/yanantin/apacheta"
	"github.com/teranos/yanantin/apacheta/models"
	"github.com/teranos/yanantin/errors"
)

// Observation is the encoded result of one read against a store.
type Observation struct {
	Name  string
	Bytes string
}

// Observe runs every read and query against a store holding f and encodes
// the results. Two backends are equivalent when their observations match.
func Observe(t *testing.T, s apacheta.TensorStore, f Fixture) []Observation {
	t.Helper()
	var out []Observation
	record := func(name string, v any, err error) {
		if err != nil {
			out = append(out, Observation{Name: name, Bytes: "error: " + faultName(err)})
			return
		}
		data, encErr := models.Encode(v)
		require.NoError(t, encErr, name)
		out = append(out, Observation{Name: name, Bytes: string(data)})
	}

	for _, tensor := range []models.TensorRecord{f.T1, f.T2, f.T3} {
		v, err := s.GetTensor(tensor.ID)
		record("get_tensor "+tensor.ID.String(), v, err)
	}
	strand, err := s.GetStrand(f.T1.ID, 1)
	record("get_strand", strand, err)
	missingStrand, err := s.GetStrand(f.T1.ID, 42)
	record("get_strand missing", missingStrand, err)
	missing, err := s.GetTensor(ID("absent"))
	record("get_tensor missing", missing, err)
	entity, err := s.GetEntity(f.Entities[0].ID)
	record("get_entity", entity, err)
	list, err := s.ListTensors()
	record("list_tensors", list, err)

	ps, err := s.ProjectState()
	record("project_state", ps, err)
	for _, topic := range []string{"storage", "ALIASES", "nothing-matches"} {
		v, err := s.ClaimsAbout(topic)
		record("claims_about "+topic, v, err)
		u, err := s.Unlearn(topic)
		record("unlearn "+topic, u, err)
	}
	chain, err := s.CorrectionChain(ID("c2"))
	record("correction_chain", chain, err)
	for _, c := range []string{"c1", "c2", "absent"} {
		v, err := s.EpistemicStatus(ID(c))
		record("epistemic_status "+c, v, err)
	}
	dis, err := s.Disagreements()
	record("disagreements", dis, err)
	graph, err := s.CompositionGraph()
	record("composition_graph", graph, err)
	bridges, err := s.Bridges()
	record("bridges", bridges, err)
	lineage, err := s.Lineage(f.T1.ID)
	record("lineage", lineage, err)
	lineageMissing, err := s.Lineage(ID("absent"))
	record("lineage missing", lineageMissing, err)
	ro, err := s.ReadingOrder("yanantin")
	record("reading_order", ro, err)
	cm, err := s.CrossModel()
	record("cross_model", cm, err)
	ec, err := s.ErrorClasses()
	record("error_classes", ec, err)
	ap, err := s.AntiPatterns()
	record("anti_patterns", ap, err)
	us, err := s.UnreliableSignals()
	record("unreliable_signals", us, err)
	losses, err := s.Losses(f.T1.ID)
	record("losses", losses, err)
	lp, err := s.LossPatterns()
	record("loss_patterns", lp, err)
	oq, err := s.OpenQuestions()
	record("open_questions", oq, err)
	auth, err := s.Authorship(f.T2.ID)
	record("authorship", auth, err)
	ents, err := s.EntitiesByUUID(f.EntityGroup)
	record("entities_by_uuid", ents, err)
	counts, err := s.CountRecords()
	record("count_records", counts, err)
	comps, err := s.Compositions(f.T1.ID)
	record("compositions", comps, err)
	cf, err := s.CorrectionsFor(f.T1.ID)
	record("corrections_for", cf, err)
	df, err := s.DissentsFor(f.T1.ID)
	record("dissents_for", df, err)
	tm, err := s.TensorsByModel("claude")
	record("tensors_by_model", tm, err)
	bs, err := s.Bootstraps("T4")
	record("bootstraps", bs, err)
	sh, err := s.SchemaHistory()
	record("schema_history", sh, err)
	record("interface_version", s.GetInterfaceVersion(), nil)
	return out
}

func faultName(err error) string {
	switch {
	case errors.IsImmutable(err):
		return "immutable"
	case errors.IsNotFoundError(err):
		return "not_found"
	case errors.IsAccessDenied(err):
		return "access_denied"
	case errors.IsInterfaceVersion(err):
		return "interface_version"
	default:
		return "store"
	}
}
