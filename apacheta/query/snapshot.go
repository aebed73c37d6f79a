// Package query implements the read surface of the tensor store as pure
// functions over a Snapshot, so that every backend answers identically.
package query

import (
	"github.com/teranos/yanantin/apacheta/models"
)

// Snapshot holds every record of a store in storage order.
// A snapshot handed to these functions is owned by the caller; the functions
// return slices that may share record values with it.
type Snapshot struct {
	Tensors          []models.TensorRecord
	Edges            []models.CompositionEdge
	Corrections      []models.CorrectionRecord
	Dissents         []models.DissentRecord
	Negations        []models.NegationRecord
	Bootstraps       []models.BootstrapRecord
	SchemaEvolutions []models.SchemaEvolutionRecord
	Entities         []models.EntityResolution
}

// Counts returns the fixed-key count map.
func (s *Snapshot) Counts() map[string]int {
	return map[string]int{
		models.KindTensor.CountKey():          len(s.Tensors),
		models.KindCompositionEdge.CountKey(): len(s.Edges),
		models.KindCorrection.CountKey():      len(s.Corrections),
		models.KindDissent.CountKey():         len(s.Dissents),
		models.KindNegation.CountKey():        len(s.Negations),
		models.KindBootstrap.CountKey():       len(s.Bootstraps),
		models.KindSchemaEvolution.CountKey(): len(s.SchemaEvolutions),
		models.KindEntity.CountKey():          len(s.Entities),
	}
}

// Append adds a decoded record to the matching slice.
func (s *Snapshot) Append(r models.Record) {
	switch v := r.(type) {
	case models.TensorRecord:
		s.Tensors = append(s.Tensors, v)
	case models.CompositionEdge:
		s.Edges = append(s.Edges, v)
	case models.CorrectionRecord:
		s.Corrections = append(s.Corrections, v)
	case models.DissentRecord:
		s.Dissents = append(s.Dissents, v)
	case models.NegationRecord:
		s.Negations = append(s.Negations, v)
	case models.BootstrapRecord:
		s.Bootstraps = append(s.Bootstraps, v)
	case models.SchemaEvolutionRecord:
		s.SchemaEvolutions = append(s.SchemaEvolutions, v)
	case models.EntityResolution:
		s.Entities = append(s.Entities, v)
	}
}

// DecodeRecord decodes data as a record of the given kind.
func DecodeRecord(kind models.RecordKind, data []byte) (models.Record, error) {
	switch kind {
	case models.KindTensor:
		return models.Decode[models.TensorRecord](data)
	case models.KindCompositionEdge:
		return models.Decode[models.CompositionEdge](data)
	case models.KindCorrection:
		return models.Decode[models.CorrectionRecord](data)
	case models.KindDissent:
		return models.Decode[models.DissentRecord](data)
	case models.KindNegation:
		return models.Decode[models.NegationRecord](data)
	case models.KindBootstrap:
		return models.Decode[models.BootstrapRecord](data)
	case models.KindSchemaEvolution:
		return models.Decode[models.SchemaEvolutionRecord](data)
	case models.KindEntity:
		return models.Decode[models.EntityResolution](data)
	}
	return nil, errUnknownKind(kind)
}
