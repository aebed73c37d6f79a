package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/teranos/yanantin/errors"
)

// InterfaceVersion is the store contract version stamped on every envelope.
const InterfaceVersion = "1.0.0"

// Record is implemented by every top-level stored record.
type Record interface {
	RecordID() uuid.UUID
	Kind() RecordKind
	Validate() error
}

// SourceIdentifier names the program or document a record came from.
type SourceIdentifier struct {
	Identifier  uuid.UUID `json:"identifier"`
	Version     string    `json:"version"`
	Description string    `json:"description"`
}

// ProvenanceEnvelope is embedded in every record.
type ProvenanceEnvelope struct {
	Source               SourceIdentifier `json:"source"`
	Timestamp            time.Time        `json:"timestamp"`
	AuthorModelFamily    string           `json:"author_model_family,omitempty"`
	AuthorInstanceID     string           `json:"author_instance_id,omitempty"`
	ContextBudgetAtWrite *float64         `json:"context_budget_at_write,omitempty"`
	PredecessorsInScope  []uuid.UUID      `json:"predecessors_in_scope"`
	InterfaceVersion     string           `json:"interface_version"`
}

// EpistemicMetadata is a neutrosophic triple. Truth, Indeterminacy and
// Falsity are independent and may lie outside [0,1].
type EpistemicMetadata struct {
	RepresentationType RepresentationType `json:"representation_type"`
	Truth              float64            `json:"truth"`
	Indeterminacy      float64            `json:"indeterminacy"`
	Falsity            float64            `json:"falsity"`
	FunctionalSpec     map[string]any     `json:"functional_spec,omitempty"`
	ScopeBoundaries    []string           `json:"scope_boundaries"`
	DisagreementType   *DisagreementType  `json:"disagreement_type,omitempty"`
}

// DefaultEpistemic is the scalar triple T=0.5, I=0.5, F=0.
func DefaultEpistemic() EpistemicMetadata {
	return EpistemicMetadata{
		RepresentationType: RepresentationScalar,
		Truth:              0.5,
		Indeterminacy:      0.5,
		Falsity:            0,
		ScopeBoundaries:    []string{},
	}
}

func (e EpistemicMetadata) validate() error {
	if !e.RepresentationType.Valid() {
		return errors.Newf("unknown representation type %q", e.RepresentationType)
	}
	if e.DisagreementType != nil && !e.DisagreementType.Valid() {
		return errors.Newf("unknown disagreement type %q", *e.DisagreementType)
	}
	return nil
}

// KeyClaim is one claim inside a strand. ClaimID is stable across corrections.
type KeyClaim struct {
	ClaimID      uuid.UUID         `json:"claim_id"`
	Text         string            `json:"text"`
	Epistemic    EpistemicMetadata `json:"epistemic"`
	EvidenceRefs []string          `json:"evidence_refs"`
}

// DeclaredLoss records something the author knowingly left out.
type DeclaredLoss struct {
	WhatWasLost string       `json:"what_was_lost"`
	Why         string       `json:"why"`
	Category    LossCategory `json:"category"`
}

// Strand is one thematic subsection of a tensor.
type Strand struct {
	StrandIndex int                `json:"strand_index"`
	Title       string             `json:"title"`
	Content     string             `json:"content"`
	Topics      []string           `json:"topics"`
	KeyClaims   []KeyClaim         `json:"key_claims"`
	Epistemic   *EpistemicMetadata `json:"epistemic,omitempty"`
}

// TensorRecord is an authored compression of a session.
type TensorRecord struct {
	ID                  uuid.UUID          `json:"id"`
	Provenance          ProvenanceEnvelope `json:"provenance"`
	Preamble            string             `json:"preamble"`
	Strands             []Strand           `json:"strands"`
	Closing             string             `json:"closing"`
	InstructionsForNext string             `json:"instructions_for_next"`
	NarrativeBody       string             `json:"narrative_body"`
	LineageTags         []string           `json:"lineage_tags"`
	CompositionEquation string             `json:"composition_equation,omitempty"`
	DeclaredLosses      []DeclaredLoss     `json:"declared_losses"`
	Epistemic           *EpistemicMetadata `json:"epistemic,omitempty"`
	OpenQuestions       []string           `json:"open_questions"`
}

func (t TensorRecord) RecordID() uuid.UUID { return t.ID }
func (TensorRecord) Kind() RecordKind { return KindTensor }

// Validate checks ids and every enum the tensor carries.
func (t TensorRecord) Validate() error {
	if t.ID == uuid.Nil {
		return errors.New("tensor id is nil")
	}
	if t.Epistemic != nil {
		if err := t.Epistemic.validate(); err != nil {
			return errors.Wrap(err, "tensor epistemic")
		}
	}
	for _, s := range t.Strands {
		if s.Epistemic != nil {
			if err := s.Epistemic.validate(); err != nil {
				return errors.Wrapf(err, "strand %d", s.StrandIndex)
			}
		}
		for _, c := range s.KeyClaims {
			if err := c.Epistemic.validate(); err != nil {
				return errors.Wrapf(err, "claim %s", c.ClaimID)
			}
		}
	}
	for _, l := range t.DeclaredLosses {
		if !l.Category.Valid() {
			return errors.Newf("unknown loss category %q", l.Category)
		}
	}
	return nil
}

// StrandProjection returns a view of t holding only the strand whose
// StrandIndex is index. The view keeps t's id, so storing it fails.
func (t TensorRecord) StrandProjection(index int) (TensorRecord, bool) {
	for _, s := range t.Strands {
		if s.StrandIndex == index {
			view := t
			view.Strands = []Strand{s}
			return view, true
		}
	}
	return TensorRecord{}, false
}

// Claims returns every key claim in strand order.
func (t TensorRecord) Claims() []KeyClaim {
	var out []KeyClaim
	for _, s := range t.Strands {
		out = append(out, s.KeyClaims...)
	}
	return out
}

// CompositionEdge is a typed relation between two tensors. An edge with an
// AuthoredMapping is a bridge.
type CompositionEdge struct {
	ID              uuid.UUID          `json:"id"`
	FromTensor      uuid.UUID          `json:"from_tensor"`
	ToTensor        uuid.UUID          `json:"to_tensor"`
	RelationType    RelationType       `json:"relation_type"`
	Ordering        *int               `json:"ordering,omitempty"`
	AuthoredMapping string             `json:"authored_mapping,omitempty"`
	Provenance      ProvenanceEnvelope `json:"provenance"`
}

func (e CompositionEdge) RecordID() uuid.UUID { return e.ID }
func (CompositionEdge) Kind() RecordKind { return KindCompositionEdge }

// IsBridge reports whether the edge carries an authored mapping.
func (e CompositionEdge) IsBridge() bool { return e.AuthoredMapping != "" }

func (e CompositionEdge) Validate() error {
	if e.ID == uuid.Nil {
		return errors.New("composition edge id is nil")
	}
	if !e.RelationType.Valid() {
		return errors.Newf("unknown relation type %q", e.RelationType)
	}
	return nil
}

// CorrectionRecord replaces the text of a claim without touching the original.
type CorrectionRecord struct {
	ID                uuid.UUID          `json:"id"`
	Provenance        ProvenanceEnvelope `json:"provenance"`
	TargetTensor      uuid.UUID          `json:"target_tensor"`
	TargetStrandIndex *int               `json:"target_strand_index,omitempty"`
	TargetClaimID     *uuid.UUID         `json:"target_claim_id,omitempty"`
	OriginalClaim     string             `json:"original_claim"`
	CorrectedClaim    string             `json:"corrected_claim"`
	Evidence          string             `json:"evidence,omitempty"`
}

func (c CorrectionRecord) RecordID() uuid.UUID { return c.ID }
func (CorrectionRecord) Kind() RecordKind { return KindCorrection }

func (c CorrectionRecord) Validate() error {
	if c.ID == uuid.Nil {
		return errors.New("correction id is nil")
	}
	return nil
}

// DissentRecord offers an alternative framework for a tensor or claim.
type DissentRecord struct {
	ID                   uuid.UUID          `json:"id"`
	Provenance           ProvenanceEnvelope `json:"provenance"`
	TargetTensor         uuid.UUID          `json:"target_tensor"`
	TargetClaimID        *uuid.UUID         `json:"target_claim_id,omitempty"`
	AlternativeFramework string             `json:"alternative_framework"`
	Reasoning            string             `json:"reasoning"`
	DisagreementType     *DisagreementType  `json:"disagreement_type,omitempty"`
}

func (d DissentRecord) RecordID() uuid.UUID { return d.ID }
func (DissentRecord) Kind() RecordKind { return KindDissent }

func (d DissentRecord) Validate() error {
	if d.ID == uuid.Nil {
		return errors.New("dissent id is nil")
	}
	if d.DisagreementType != nil && !d.DisagreementType.Valid() {
		return errors.Newf("unknown disagreement type %q", *d.DisagreementType)
	}
	return nil
}

// NegationRecord states that two tensors cannot be composed.
type NegationRecord struct {
	ID         uuid.UUID          `json:"id"`
	Provenance ProvenanceEnvelope `json:"provenance"`
	TensorA    uuid.UUID          `json:"tensor_a"`
	TensorB    uuid.UUID          `json:"tensor_b"`
	Reasoning  string             `json:"reasoning"`
}

func (n NegationRecord) RecordID() uuid.UUID { return n.ID }
func (NegationRecord) Kind() RecordKind { return KindNegation }

func (n NegationRecord) Validate() error {
	if n.ID == uuid.Nil {
		return errors.New("negation id is nil")
	}
	return nil
}

// StrandSelection names strands of one tensor loaded at bootstrap.
type StrandSelection struct {
	TensorID      uuid.UUID `json:"tensor_id"`
	StrandIndices []int     `json:"strand_indices"`
}

// BootstrapRecord is the provenance of an instance's startup selection.
type BootstrapRecord struct {
	ID              uuid.UUID          `json:"id"`
	Provenance      ProvenanceEnvelope `json:"provenance"`
	InstanceID      string             `json:"instance_id"`
	ContextBudget   float64            `json:"context_budget"`
	TaskDescription string             `json:"task_description"`
	TensorsLoaded   []uuid.UUID        `json:"tensors_loaded"`
	StrandsLoaded   []StrandSelection  `json:"strands_loaded"`
	WhatWasOmitted  []string           `json:"what_was_omitted"`
}

func (b BootstrapRecord) RecordID() uuid.UUID { return b.ID }
func (BootstrapRecord) Kind() RecordKind { return KindBootstrap }

func (b BootstrapRecord) Validate() error {
	if b.ID == uuid.Nil {
		return errors.New("bootstrap id is nil")
	}
	return nil
}

// SchemaEvolutionRecord documents a change to the record schema.
type SchemaEvolutionRecord struct {
	ID             uuid.UUID          `json:"id"`
	Provenance     ProvenanceEnvelope `json:"provenance"`
	FromVersion    string             `json:"from_version"`
	ToVersion      string             `json:"to_version"`
	FieldsAdded    []string           `json:"fields_added"`
	FieldsRemoved  []string           `json:"fields_removed"`
	MigrationNotes string             `json:"migration_notes"`
}

func (s SchemaEvolutionRecord) RecordID() uuid.UUID { return s.ID }
func (SchemaEvolutionRecord) Kind() RecordKind { return KindSchemaEvolution }

func (s SchemaEvolutionRecord) Validate() error {
	if s.ID == uuid.Nil {
		return errors.New("schema evolution id is nil")
	}
	return nil
}

// EntityResolution binds one identity to an entity uuid shared across aliases.
type EntityResolution struct {
	ID           uuid.UUID          `json:"id"`
	Provenance   ProvenanceEnvelope `json:"provenance"`
	EntityUUID   uuid.UUID          `json:"entity_uuid"`
	IdentityType string             `json:"identity_type"`
	IdentityData map[string]string  `json:"identity_data"`
	Redacted     bool               `json:"redacted"`
}

func (e EntityResolution) RecordID() uuid.UUID { return e.ID }
func (EntityResolution) Kind() RecordKind { return KindEntity }

func (e EntityResolution) Validate() error {
	if e.ID == uuid.Nil {
		return errors.New("entity id is nil")
	}
	return nil
}

// NewID returns a fresh random record id.
func NewID() uuid.UUID {
	return uuid.New()
}
