package models

import (
	"encoding/json"

	"github.com/teranos/yanantin/errors"
)

// RepresentationType says how an epistemic triple is encoded.
type RepresentationType string

const (
	RepresentationScalar     RepresentationType = "scalar"
	RepresentationFunctional RepresentationType = "functional"
)

// AllRepresentationTypes lists every representation type.
func AllRepresentationTypes() []RepresentationType {
	return []RepresentationType{RepresentationScalar, RepresentationFunctional}
}

// Valid reports whether r is a known representation type.
func (r RepresentationType) Valid() bool {
	switch r {
	case RepresentationScalar, RepresentationFunctional:
		return true
	}
	return false
}

// UnmarshalJSON rejects unknown representation types.
func (r *RepresentationType) UnmarshalJSON(b []byte) error {
	v, err := decodeEnum(b, "representation type", RepresentationType.Valid)
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// RelationType is the type of a composition edge between two tensors.
type RelationType string

const (
	RelationComposesWith       RelationType = "composes_with"
	RelationDoesNotComposeWith RelationType = "does_not_compose_with"
	RelationCorrects           RelationType = "corrects"
	RelationBridges            RelationType = "bridges"
	RelationBranchesFrom       RelationType = "branches_from"
	RelationRefines            RelationType = "refines"
	RelationReads              RelationType = "reads"
)

// AllRelationTypes lists every relation type.
func AllRelationTypes() []RelationType {
	return []RelationType{
		RelationComposesWith, RelationDoesNotComposeWith, RelationCorrects,
		RelationBridges, RelationBranchesFrom, RelationRefines, RelationReads,
	}
}

// Valid reports whether r is a known relation type.
func (r RelationType) Valid() bool {
	switch r {
	case RelationComposesWith, RelationDoesNotComposeWith, RelationCorrects,
		RelationBridges, RelationBranchesFrom, RelationRefines, RelationReads:
		return true
	}
	return false
}

// UnmarshalJSON rejects unknown relation types.
func (r *RelationType) UnmarshalJSON(b []byte) error {
	v, err := decodeEnum(b, "relation type", RelationType.Valid)
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// LossCategory classifies why something was left out of a tensor.
type LossCategory string

const (
	LossContextPressure     LossCategory = "context_pressure"
	LossTraversalBias       LossCategory = "traversal_bias"
	LossAuthorialChoice     LossCategory = "authorial_choice"
	LossPracticalConstraint LossCategory = "practical_constraint"
)

// AllLossCategories lists every loss category.
func AllLossCategories() []LossCategory {
	return []LossCategory{LossContextPressure, LossTraversalBias, LossAuthorialChoice, LossPracticalConstraint}
}

// Valid reports whether c is a known loss category.
func (c LossCategory) Valid() bool {
	switch c {
	case LossContextPressure, LossTraversalBias, LossAuthorialChoice, LossPracticalConstraint:
		return true
	}
	return false
}

// UnmarshalJSON rejects unknown loss categories.
func (c *LossCategory) UnmarshalJSON(b []byte) error {
	v, err := decodeEnum(b, "loss category", LossCategory.Valid)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// DisagreementType classifies the ground on which two positions differ.
type DisagreementType string

const (
	DisagreementDefinitional   DisagreementType = "definitional"
	DisagreementEmpirical      DisagreementType = "empirical"
	DisagreementMethodological DisagreementType = "methodological"
	DisagreementAxiological    DisagreementType = "axiological"
	DisagreementScope          DisagreementType = "scope"
)

// AllDisagreementTypes lists every disagreement type.
func AllDisagreementTypes() []DisagreementType {
	return []DisagreementType{
		DisagreementDefinitional, DisagreementEmpirical, DisagreementMethodological,
		DisagreementAxiological, DisagreementScope,
	}
}

// Valid reports whether d is a known disagreement type.
func (d DisagreementType) Valid() bool {
	switch d {
	case DisagreementDefinitional, DisagreementEmpirical, DisagreementMethodological,
		DisagreementAxiological, DisagreementScope:
		return true
	}
	return false
}

// UnmarshalJSON rejects unknown disagreement types.
func (d *DisagreementType) UnmarshalJSON(b []byte) error {
	v, err := decodeEnum(b, "disagreement type", DisagreementType.Valid)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// RecordKind names one stored record type. Each kind has its own table,
// collection or map in every backend.
type RecordKind string

const (
	KindTensor          RecordKind = "tensor"
	KindCompositionEdge RecordKind = "composition_edge"
	KindCorrection      RecordKind = "correction"
	KindDissent         RecordKind = "dissent"
	KindNegation        RecordKind = "negation"
	KindBootstrap       RecordKind = "bootstrap"
	KindSchemaEvolution RecordKind = "schema_evolution"
	KindEntity          RecordKind = "entity"
)

// AllRecordKinds lists every record kind in count-map order.
func AllRecordKinds() []RecordKind {
	return []RecordKind{
		KindTensor, KindCompositionEdge, KindCorrection, KindDissent,
		KindNegation, KindBootstrap, KindSchemaEvolution, KindEntity,
	}
}

// CountKey is the key used for this kind in CountRecords and as the SQL
// table name ("tensors", "composition_edges", ...).
func (k RecordKind) CountKey() string {
	switch k {
	case KindEntity:
		return "entities"
	default:
		return string(k) + "s"
	}
}

// Collection is the URL path segment of the kind on the HTTP gateway
// ("tensors", "composition-edges", ...).
func (k RecordKind) Collection() string {
	key := []byte(k.CountKey())
	for i, c := range key {
		if c == '_' {
			key[i] = '-'
		}
	}
	return string(key)
}

// KindForCollection resolves a gateway collection segment to its kind.
func KindForCollection(collection string) (RecordKind, bool) {
	for _, k := range AllRecordKinds() {
		if k.Collection() == collection {
			return k, true
		}
	}
	return "", false
}

func decodeEnum[T ~string](b []byte, what string, valid func(T) bool) (T, error) {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return "", errors.Wrapf(err, "decode %s", what)
	}
	v := T(s)
	if !valid(v) {
		return "", errors.Newf("unknown %s %q", what, s)
	}
	return v, nil
}
