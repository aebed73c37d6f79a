package query

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/teranos/yanantin/apacheta"
	"github.com/teranos/yanantin/apacheta/models"
	"github.com/teranos/yanantin/errors"
)

var (
	errorMarkers       = []string{"error", "failure", "bug"}
	antiPatternMarkers = []string{"anti-pattern", "antipattern", "anti_pattern"}
)

// UnreliableThreshold is the indeterminacy above which a claim is unreliable.
const UnreliableThreshold = 0.5

func errUnknownKind(kind models.RecordKind) error {
	return errors.Newf("unknown record kind %q", kind)
}

// FindTensor returns the tensor with id.
func FindTensor(s *Snapshot, id uuid.UUID) (models.TensorRecord, error) {
	for _, t := range s.Tensors {
		if t.ID == id {
			return t, nil
		}
	}
	return models.TensorRecord{}, errors.NewNotFoundError("tensor %s", id)
}

// ProjectState counts tensors and collects lineage tags and model families.
func ProjectState(s *Snapshot) apacheta.ProjectState {
	tags := map[string]struct{}{}
	families := map[string]struct{}{}
	for _, t := range s.Tensors {
		for _, tag := range t.LineageTags {
			tags[tag] = struct{}{}
		}
		if f := t.Provenance.AuthorModelFamily; f != "" {
			families[f] = struct{}{}
		}
	}
	return apacheta.ProjectState{
		TensorCount:   len(s.Tensors),
		LineageTags:   sortedKeys(tags),
		ModelFamilies: sortedKeys(families),
	}
}

// ClaimsAbout matches topic case-insensitively. A strand whose title or
// topics contain topic contributes every claim; otherwise only claims whose
// text contains topic.
func ClaimsAbout(s *Snapshot, topic string) []apacheta.ClaimMatch {
	needle := strings.ToLower(topic)
	out := []apacheta.ClaimMatch{}
	for _, t := range s.Tensors {
		for _, st := range t.Strands {
			whole := containsFold(st.Title, needle) || anyContains(st.Topics, needle)
			for _, c := range st.KeyClaims {
				if whole || containsFold(c.Text, needle) {
					out = append(out, match(t, st, c))
				}
			}
		}
	}
	return out
}

// CorrectionChain returns corrections targeting claimID in storage order.
func CorrectionChain(s *Snapshot, claimID uuid.UUID) []models.CorrectionRecord {
	out := []models.CorrectionRecord{}
	for _, c := range s.Corrections {
		if c.TargetClaimID != nil && *c.TargetClaimID == claimID {
			out = append(out, c)
		}
	}
	return out
}

// EpistemicStatus resolves the current and original text of a claim.
func EpistemicStatus(s *Snapshot, claimID uuid.UUID) (apacheta.EpistemicStatus, error) {
	chain := CorrectionChain(s, claimID)
	text, found := claimText(s, claimID)
	if !found && len(chain) == 0 {
		return apacheta.EpistemicStatus{}, errors.NewNotFoundError("claim %s", claimID)
	}

	status := apacheta.EpistemicStatus{
		ClaimID:         claimID,
		CurrentClaim:    text,
		OriginalClaim:   text,
		CorrectionCount: len(chain),
	}
	if len(chain) > 0 {
		status.OriginalClaim = chain[0].OriginalClaim
		status.CurrentClaim = chain[len(chain)-1].CorrectedClaim
	}
	return status, nil
}

// Disagreements lists dissents, then negations, then corrections.
func Disagreements(s *Snapshot) []apacheta.Disagreement {
	out := []apacheta.Disagreement{}
	for _, d := range s.Dissents {
		out = append(out, apacheta.Disagreement{
			Type:    apacheta.DisagreementDissent,
			ID:      d.ID,
			Tensors: []uuid.UUID{d.TargetTensor},
			Summary: d.AlternativeFramework,
		})
	}
	for _, n := range s.Negations {
		out = append(out, apacheta.Disagreement{
			Type:    apacheta.DisagreementNegation,
			ID:      n.ID,
			Tensors: []uuid.UUID{n.TensorA, n.TensorB},
			Summary: n.Reasoning,
		})
	}
	for _, c := range s.Corrections {
		out = append(out, apacheta.Disagreement{
			Type:    apacheta.DisagreementCorrection,
			ID:      c.ID,
			Tensors: []uuid.UUID{c.TargetTensor},
			Summary: c.OriginalClaim + " -> " + c.CorrectedClaim,
		})
	}
	return out
}

// CompositionGraph returns every edge.
func CompositionGraph(s *Snapshot) []models.CompositionEdge {
	out := make([]models.CompositionEdge, len(s.Edges))
	copy(out, s.Edges)
	return out
}

// Bridges returns edges that carry an authored mapping.
func Bridges(s *Snapshot) []models.CompositionEdge {
	out := []models.CompositionEdge{}
	for _, e := range s.Edges {
		if e.IsBridge() {
			out = append(out, e)
		}
	}
	return out
}

// Lineage returns the other tensors sharing at least one lineage tag with id.
func Lineage(s *Snapshot, id uuid.UUID) ([]models.TensorRecord, error) {
	source, err := FindTensor(s, id)
	if err != nil {
		return nil, err
	}
	tags := map[string]struct{}{}
	for _, tag := range source.LineageTags {
		tags[tag] = struct{}{}
	}
	out := []models.TensorRecord{}
	for _, t := range s.Tensors {
		if t.ID == id {
			continue
		}
		for _, tag := range t.LineageTags {
			if _, ok := tags[tag]; ok {
				out = append(out, t)
				break
			}
		}
	}
	return out, nil
}

// ReadingOrder returns tensors carrying tag ordered by envelope timestamp.
func ReadingOrder(s *Snapshot, tag string) []models.TensorRecord {
	out := []models.TensorRecord{}
	for _, t := range s.Tensors {
		for _, tt := range t.LineageTags {
			if tt == tag {
				out = append(out, t)
				break
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Provenance.Timestamp.Before(out[j].Provenance.Timestamp)
	})
	return out
}

// CrossModel returns every tensor when at least two model families wrote them.
func CrossModel(s *Snapshot) []models.TensorRecord {
	if len(ProjectState(s).ModelFamilies) < 2 {
		return []models.TensorRecord{}
	}
	out := make([]models.TensorRecord, len(s.Tensors))
	copy(out, s.Tensors)
	return out
}

// ErrorClasses returns claims in strands about errors, failures or bugs.
func ErrorClasses(s *Snapshot) []apacheta.ClaimMatch {
	return strandsMentioning(s, errorMarkers)
}

// AntiPatterns returns claims in strands about anti-patterns.
func AntiPatterns(s *Snapshot) []apacheta.ClaimMatch {
	return strandsMentioning(s, antiPatternMarkers)
}

// UnreliableSignals returns claims whose own or strand-level indeterminacy
// exceeds UnreliableThreshold.
func UnreliableSignals(s *Snapshot) []apacheta.ClaimMatch {
	out := []apacheta.ClaimMatch{}
	for _, t := range s.Tensors {
		for _, st := range t.Strands {
			strandUnreliable := st.Epistemic != nil && st.Epistemic.Indeterminacy > UnreliableThreshold
			for _, c := range st.KeyClaims {
				if strandUnreliable || c.Epistemic.Indeterminacy > UnreliableThreshold {
					out = append(out, match(t, st, c))
				}
			}
		}
	}
	return out
}

// Losses returns the declared losses of one tensor.
func Losses(s *Snapshot, id uuid.UUID) ([]models.DeclaredLoss, error) {
	t, err := FindTensor(s, id)
	if err != nil {
		return nil, err
	}
	out := make([]models.DeclaredLoss, len(t.DeclaredLosses))
	copy(out, t.DeclaredLosses)
	return out, nil
}

// LossPatterns counts declared losses per category, most frequent first.
func LossPatterns(s *Snapshot) []apacheta.LossPattern {
	counts := map[models.LossCategory]int{}
	for _, t := range s.Tensors {
		for _, l := range t.DeclaredLosses {
			counts[l.Category]++
		}
	}
	out := make([]apacheta.LossPattern, 0, len(counts))
	for cat, n := range counts {
		out = append(out, apacheta.LossPattern{Category: cat, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// OpenQuestions lists every open question with its tensor.
func OpenQuestions(s *Snapshot) []apacheta.OpenQuestion {
	out := []apacheta.OpenQuestion{}
	for _, t := range s.Tensors {
		for _, q := range t.OpenQuestions {
			out = append(out, apacheta.OpenQuestion{TensorID: t.ID, Question: q})
		}
	}
	return out
}

// Authorship returns the provenance of one tensor.
func Authorship(s *Snapshot, id uuid.UUID) (apacheta.Authorship, error) {
	t, err := FindTensor(s, id)
	if err != nil {
		return apacheta.Authorship{}, err
	}
	return apacheta.Authorship{TensorID: t.ID, Provenance: t.Provenance}, nil
}

// EntitiesByUUID returns every resolution bound to entity.
func EntitiesByUUID(s *Snapshot, entity uuid.UUID) []models.EntityResolution {
	out := []models.EntityResolution{}
	for _, e := range s.Entities {
		if e.EntityUUID == entity {
			out = append(out, e)
		}
	}
	return out
}

// Unlearn summarises the tensors and claims that mention topic.
func Unlearn(s *Snapshot, topic string) apacheta.UnlearnImpact {
	matches := ClaimsAbout(s, topic)
	seen := map[uuid.UUID]struct{}{}
	affected := []uuid.UUID{}
	for _, m := range matches {
		if _, ok := seen[m.TensorID]; ok {
			continue
		}
		seen[m.TensorID] = struct{}{}
		affected = append(affected, m.TensorID)
	}
	return apacheta.UnlearnImpact{Topic: topic, AffectedTensors: affected, ClaimCount: len(matches)}
}

// Compositions returns edges touching id on either end.
func Compositions(s *Snapshot, id uuid.UUID) []models.CompositionEdge {
	out := []models.CompositionEdge{}
	for _, e := range s.Edges {
		if e.FromTensor == id || e.ToTensor == id {
			out = append(out, e)
		}
	}
	return out
}

// CorrectionsFor returns corrections targeting tensor id.
func CorrectionsFor(s *Snapshot, id uuid.UUID) []models.CorrectionRecord {
	out := []models.CorrectionRecord{}
	for _, c := range s.Corrections {
		if c.TargetTensor == id {
			out = append(out, c)
		}
	}
	return out
}

// DissentsFor returns dissents targeting tensor id.
func DissentsFor(s *Snapshot, id uuid.UUID) []models.DissentRecord {
	out := []models.DissentRecord{}
	for _, d := range s.Dissents {
		if d.TargetTensor == id {
			out = append(out, d)
		}
	}
	return out
}

// TensorsByModel returns tensors authored by a model family.
func TensorsByModel(s *Snapshot, family string) []models.TensorRecord {
	out := []models.TensorRecord{}
	for _, t := range s.Tensors {
		if strings.EqualFold(t.Provenance.AuthorModelFamily, family) {
			out = append(out, t)
		}
	}
	return out
}

// Bootstraps returns bootstrap records of one instance, or all when
// instanceID is empty.
func Bootstraps(s *Snapshot, instanceID string) []models.BootstrapRecord {
	out := []models.BootstrapRecord{}
	for _, b := range s.Bootstraps {
		if instanceID == "" || b.InstanceID == instanceID {
			out = append(out, b)
		}
	}
	return out
}

// SchemaHistory returns schema evolutions in storage order.
func SchemaHistory(s *Snapshot) []models.SchemaEvolutionRecord {
	out := make([]models.SchemaEvolutionRecord, len(s.SchemaEvolutions))
	copy(out, s.SchemaEvolutions)
	return out
}

func strandsMentioning(s *Snapshot, markers []string) []apacheta.ClaimMatch {
	out := []apacheta.ClaimMatch{}
	for _, t := range s.Tensors {
		for _, st := range t.Strands {
			hit := false
			for _, m := range markers {
				if containsFold(st.Title, m) || anyContains(st.Topics, m) {
					hit = true
					break
				}
			}
			if !hit {
				continue
			}
			for _, c := range st.KeyClaims {
				out = append(out, match(t, st, c))
			}
		}
	}
	return out
}

func claimText(s *Snapshot, claimID uuid.UUID) (string, bool) {
	for _, t := range s.Tensors {
		for _, st := range t.Strands {
			for _, c := range st.KeyClaims {
				if c.ClaimID == claimID {
					return c.Text, true
				}
			}
		}
	}
	return "", false
}

func match(t models.TensorRecord, st models.Strand, c models.KeyClaim) apacheta.ClaimMatch {
	return apacheta.ClaimMatch{TensorID: t.ID, StrandIndex: st.StrandIndex, StrandTitle: st.Title, Claim: c}
}

// containsFold reports whether lowered needle occurs in s, ignoring case.
func containsFold(s, needle string) bool {
	return strings.Contains(strings.ToLower(s), needle)
}

func anyContains(values []string, needle string) bool {
	for _, v := range values {
		if containsFold(v, needle) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
