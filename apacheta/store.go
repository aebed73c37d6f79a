// Package apacheta defines the tensor store contract shared by every backend.
//
// A store accepts immutable records (tensors, composition edges, corrections,
// dissents, negations, bootstraps, schema evolutions and entity resolutions)
// and answers a fixed set of read queries over them. Records are never
// updated or deleted: a second write to an id fails with errors.ErrImmutable.
//
// Backends live in subpackages (memory, sqlstore, docstore, client) and must
// return byte-identical results for the same sequence of writes.
package apacheta

import (
	"github.com/google/uuid"
	"github.com/teranos/yanantin/apacheta/models"
)

// InterfaceVersion is the store contract version.
const InterfaceVersion = models.InterfaceVersion

// TensorStore is the contract every backend implements.
//
// Write methods fail with ErrImmutable on a duplicate id and ErrAccessDenied
// when the access policy refuses the caller. Read methods fail with
// ErrNotFound on absence. Every returned value is freshly built; mutating
// it never affects the store.
type TensorStore interface {
	StoreTensor(t models.TensorRecord) error
	StoreCompositionEdge(e models.CompositionEdge) error
	StoreCorrection(c models.CorrectionRecord) error
	StoreDissent(d models.DissentRecord) error
	StoreNegation(n models.NegationRecord) error
	StoreBootstrap(b models.BootstrapRecord) error
	StoreSchemaEvolution(s models.SchemaEvolutionRecord) error
	StoreEntity(e models.EntityResolution) error

	GetTensor(id uuid.UUID) (models.TensorRecord, error)
	// GetStrand returns a projection of the tensor holding one strand.
	// The projection shares the tensor's id.
	GetStrand(id uuid.UUID, index int) (models.TensorRecord, error)
	GetEntity(id uuid.UUID) (models.EntityResolution, error)
	ListTensors() ([]models.TensorRecord, error)

	ProjectState() (ProjectState, error)
	ClaimsAbout(topic string) ([]ClaimMatch, error)
	CorrectionChain(claimID uuid.UUID) ([]models.CorrectionRecord, error)
	EpistemicStatus(claimID uuid.UUID) (EpistemicStatus, error)
	Disagreements() ([]Disagreement, error)
	CompositionGraph() ([]models.CompositionEdge, error)
	Bridges() ([]models.CompositionEdge, error)
	Lineage(tensorID uuid.UUID) ([]models.TensorRecord, error)
	ReadingOrder(tag string) ([]models.TensorRecord, error)
	CrossModel() ([]models.TensorRecord, error)
	ErrorClasses() ([]ClaimMatch, error)
	AntiPatterns() ([]ClaimMatch, error)
	UnreliableSignals() ([]ClaimMatch, error)
	Losses(tensorID uuid.UUID) ([]models.DeclaredLoss, error)
	LossPatterns() ([]LossPattern, error)
	OpenQuestions() ([]OpenQuestion, error)
	Authorship(tensorID uuid.UUID) (Authorship, error)
	EntitiesByUUID(entity uuid.UUID) ([]models.EntityResolution, error)
	Unlearn(topic string) (UnlearnImpact, error)
	CountRecords() (map[string]int, error)

	Compositions(tensorID uuid.UUID) ([]models.CompositionEdge, error)
	CorrectionsFor(tensorID uuid.UUID) ([]models.CorrectionRecord, error)
	DissentsFor(tensorID uuid.UUID) ([]models.DissentRecord, error)
	TensorsByModel(family string) ([]models.TensorRecord, error)
	Bootstraps(instanceID string) ([]models.BootstrapRecord, error)
	SchemaHistory() ([]models.SchemaEvolutionRecord, error)

	// CheckAccess is the policy hook each public operation consults.
	CheckAccess(caller, operation, target string) bool
	GetInterfaceVersion() string
}

// ProjectState summarises the store.
type ProjectState struct {
	TensorCount   int      `json:"tensor_count"`
	LineageTags   []string `json:"lineage_tags"`
	ModelFamilies []string `json:"model_families"`
}

// ClaimMatch is a key claim together with where it lives.
type ClaimMatch struct {
	TensorID    uuid.UUID       `json:"tensor_id"`
	StrandIndex int             `json:"strand_index"`
	StrandTitle string          `json:"strand_title"`
	Claim       models.KeyClaim `json:"claim"`
}

// EpistemicStatus is the current reading of a claim after corrections.
type EpistemicStatus struct {
	ClaimID         uuid.UUID `json:"claim_id"`
	CurrentClaim    string    `json:"current_claim"`
	OriginalClaim   string    `json:"original_claim"`
	CorrectionCount int       `json:"correction_count"`
}

// Disagreement types in the union view.
const (
	DisagreementDissent    = "dissent"
	DisagreementNegation   = "negation"
	DisagreementCorrection = "correction"
)

// Disagreement is one entry of the union of dissents, negations and corrections.
type Disagreement struct {
	Type    string      `json:"type"`
	ID      uuid.UUID   `json:"id"`
	Tensors []uuid.UUID `json:"tensors"`
	Summary string      `json:"summary"`
}

// LossPattern counts declared losses of one category.
type LossPattern struct {
	Category models.LossCategory `json:"category"`
	Count    int                 `json:"count"`
}

// OpenQuestion is one open question and the tensor that raised it.
type OpenQuestion struct {
	TensorID uuid.UUID `json:"tensor_id"`
	Question string    `json:"question"`
}

// Authorship is the provenance view of one tensor.
type Authorship struct {
	TensorID   uuid.UUID                 `json:"tensor_id"`
	Provenance models.ProvenanceEnvelope `json:"provenance"`
}

// UnlearnImpact summarises what would be affected by dropping a topic.
type UnlearnImpact struct {
	Topic           string      `json:"topic"`
	AffectedTensors []uuid.UUID `json:"affected_tensors"`
	ClaimCount      int         `json:"claim_count"`
}
