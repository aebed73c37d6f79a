package query

import (
	"github.com/google/uuid"
	"github.com/teranos/yanantin/apacheta"
	"github.com/teranos/yanantin/apacheta/models"
)

// Loader returns a snapshot owned by the caller.
type Loader func() (*Snapshot, error)

// Guard returns an error when the current caller may not run an operation.
type Guard func(operation, target string) error

// Reader implements the named queries of apacheta.TensorStore on top of a
// Loader. Local backends embed it.
type Reader struct {
	load  Loader
	guard Guard
}

// NewReader creates a Reader. A nil guard allows everything.
func NewReader(load Loader, guard Guard) *Reader {
	if guard == nil {
		guard = func(string, string) error { return nil }
	}
	return &Reader{load: load, guard: guard}
}

func (r *Reader) snapshot(operation, target string) (*Snapshot, error) {
	if err := r.guard(operation, target); err != nil {
		return nil, err
	}
	return r.load()
}

func (r *Reader) ProjectState() (apacheta.ProjectState, error) {
	s, err := r.snapshot("project_state", "")
	if err != nil {
		return apacheta.ProjectState{}, err
	}
	return ProjectState(s), nil
}

func (r *Reader) ClaimsAbout(topic string) ([]apacheta.ClaimMatch, error) {
	s, err := r.snapshot("claims_about", topic)
	if err != nil {
		return nil, err
	}
	return ClaimsAbout(s, topic), nil
}

func (r *Reader) CorrectionChain(claimID uuid.UUID) ([]models.CorrectionRecord, error) {
	s, err := r.snapshot("correction_chain", claimID.String())
	if err != nil {
		return nil, err
	}
	return CorrectionChain(s, claimID), nil
}

func (r *Reader) EpistemicStatus(claimID uuid.UUID) (apacheta.EpistemicStatus, error) {
	s, err := r.snapshot("epistemic_status", claimID.String())
	if err != nil {
		return apacheta.EpistemicStatus{}, err
	}
	return EpistemicStatus(s, claimID)
}

func (r *Reader) Disagreements() ([]apacheta.Disagreement, error) {
	s, err := r.snapshot("disagreements", "")
	if err != nil {
		return nil, err
	}
	return Disagreements(s), nil
}

func (r *Reader) CompositionGraph() ([]models.CompositionEdge, error) {
	s, err := r.snapshot("composition_graph", "")
	if err != nil {
		return nil, err
	}
	return CompositionGraph(s), nil
}

func (r *Reader) Bridges() ([]models.CompositionEdge, error) {
	s, err := r.snapshot("bridges", "")
	if err != nil {
		return nil, err
	}
	return Bridges(s), nil
}

func (r *Reader) Lineage(tensorID uuid.UUID) ([]models.TensorRecord, error) {
	s, err := r.snapshot("lineage", tensorID.String())
	if err != nil {
		return nil, err
	}
	return Lineage(s, tensorID)
}

func (r *Reader) ReadingOrder(tag string) ([]models.TensorRecord, error) {
	s, err := r.snapshot("reading_order", tag)
	if err != nil {
		return nil, err
	}
	return ReadingOrder(s, tag), nil
}

func (r *Reader) CrossModel() ([]models.TensorRecord, error) {
	s, err := r.snapshot("cross_model", "")
	if err != nil {
		return nil, err
	}
	return CrossModel(s), nil
}

func (r *Reader) ErrorClasses() ([]apacheta.ClaimMatch, error) {
	s, err := r.snapshot("error_classes", "")
	if err != nil {
		return nil, err
	}
	return ErrorClasses(s), nil
}

func (r *Reader) AntiPatterns() ([]apacheta.ClaimMatch, error) {
	s, err := r.snapshot("anti_patterns", "")
	if err != nil {
		return nil, err
	}
	return AntiPatterns(s), nil
}

func (r *Reader) UnreliableSignals() ([]apacheta.ClaimMatch, error) {
	s, err := r.snapshot("unreliable_signals", "")
	if err != nil {
		return nil, err
	}
	return UnreliableSignals(s), nil
}

func (r *Reader) Losses(tensorID uuid.UUID) ([]models.DeclaredLoss, error) {
	s, err := r.snapshot("losses", tensorID.String())
	if err != nil {
		return nil, err
	}
	return Losses(s, tensorID)
}

func (r *Reader) LossPatterns() ([]apacheta.LossPattern, error) {
	s, err := r.snapshot("loss_patterns", "")
	if err != nil {
		return nil, err
	}
	return LossPatterns(s), nil
}

func (r *Reader) OpenQuestions() ([]apacheta.OpenQuestion, error) {
	s, err := r.snapshot("open_questions", "")
	if err != nil {
		return nil, err
	}
	return OpenQuestions(s), nil
}

func (r *Reader) Authorship(tensorID uuid.UUID) (apacheta.Authorship, error) {
	s, err := r.snapshot("authorship", tensorID.String())
	if err != nil {
		return apacheta.Authorship{}, err
	}
	return Authorship(s, tensorID)
}

func (r *Reader) EntitiesByUUID(entity uuid.UUID) ([]models.EntityResolution, error) {
	s, err := r.snapshot("entities_by_uuid", entity.String())
	if err != nil {
		return nil, err
	}
	return EntitiesByUUID(s, entity), nil
}

func (r *Reader) Unlearn(topic string) (apacheta.UnlearnImpact, error) {
	s, err := r.snapshot("unlearn", topic)
	if err != nil {
		return apacheta.UnlearnImpact{}, err
	}
	return Unlearn(s, topic), nil
}

func (r *Reader) Compositions(tensorID uuid.UUID) ([]models.CompositionEdge, error) {
	s, err := r.snapshot("compositions", tensorID.String())
	if err != nil {
		return nil, err
	}
	return Compositions(s, tensorID), nil
}

func (r *Reader) CorrectionsFor(tensorID uuid.UUID) ([]models.CorrectionRecord, error) {
	s, err := r.snapshot("corrections_for", tensorID.String())
	if err != nil {
		return nil, err
	}
	return CorrectionsFor(s, tensorID), nil
}

func (r *Reader) DissentsFor(tensorID uuid.UUID) ([]models.DissentRecord, error) {
	s, err := r.snapshot("dissents_for", tensorID.String())
	if err != nil {
		return nil, err
	}
	return DissentsFor(s, tensorID), nil
}

func (r *Reader) TensorsByModel(family string) ([]models.TensorRecord, error) {
	s, err := r.snapshot("tensors_by_model", family)
	if err != nil {
		return nil, err
	}
	return TensorsByModel(s, family), nil
}

func (r *Reader) Bootstraps(instanceID string) ([]models.BootstrapRecord, error) {
	s, err := r.snapshot("bootstraps", instanceID)
	if err != nil {
		return nil, err
	}
	return Bootstraps(s, instanceID), nil
}

func (r *Reader) SchemaHistory() ([]models.SchemaEvolutionRecord, error) {
	s, err := r.snapshot("schema_history", "")
	if err != nil {
		return nil, err
	}
	return SchemaHistory(s), nil
}

func (r *Reader) CountRecords() (map[string]int, error) {
	s, err := r.snapshot("count_records", "")
	if err != nil {
		return nil, err
	}
	return s.Counts(), nil
}

func (r *Reader) ListTensors() ([]models.TensorRecord, error) {
	s, err := r.snapshot("list_tensors", "")
	if err != nil {
		return nil, err
	}
	out := make([]models.TensorRecord, len(s.Tensors))
	copy(out, s.Tensors)
	return out, nil
}
