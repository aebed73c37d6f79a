package gleaner

import "sort"

// MinVerifyConfidence is the lowest confidence a claim needs to be verified.
const MinVerifyConfidence = 0.3

// Verifiable reports whether a claim can be checked against the repository:
// it points at a file or states a number, is not epistemic, and is
// confident enough.
func Verifiable(c Claim) bool {
	return (c.HasFileRef() || c.Quantitative) &&
		c.Type != TypeEpistemic &&
		c.Confidence >= MinVerifyConfidence
}

// ClaimsForVerification picks up to maxN verifiable claims. The first pass
// takes the best claim from each source model; the second fills the
// remaining slots by confidence.
func ClaimsForVerification(claims []Claim, maxN int) []Claim {
	if maxN <= 0 {
		return []Claim{}
	}
	var eligible []Claim
	for _, c := range claims {
		if Verifiable(c) {
			eligible = append(eligible, c)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool { return eligible[i].Confidence > eligible[j].Confidence })

	picked := make([]bool, len(eligible))
	out := []Claim{}
	models := map[string]bool{}
	for i, c := range eligible {
		if len(out) == maxN {
			return out
		}
		if models[c.SourceModel] {
			continue
		}
		models[c.SourceModel] = true
		picked[i] = true
		out = append(out, c)
	}
	for i, c := range eligible {
		if len(out) == maxN {
			break
		}
		if !picked[i] {
			out = append(out, c)
		}
	}
	return out
}

// VerifiableClaim is the handoff to a verification run.
type VerifiableClaim struct {
	Text        string `json:"text"`
	FilePath    string `json:"file_path"`
	SourceModel string `json:"source_model"`
	SourceFile  string `json:"source_file"`
}

// ToVerifiableClaims keeps claims with a file reference and strips any
// ":line" suffix from the reference.
func ToVerifiableClaims(claims []Claim) []VerifiableClaim {
	out := []VerifiableClaim{}
	for _, c := range claims {
		var ref string
		switch {
		case len(c.FileRefs) > 0:
			ref = c.FileRefs[0]
		case len(c.BareRefs) > 0:
			ref = c.BareRefs[0]
		default:
			continue
		}
		out = append(out, VerifiableClaim{
			Text:        c.Text,
			FilePath:    stripLine(ref),
			SourceModel: c.SourceModel,
			SourceFile:  c.SourceFile,
		})
	}
	return out
}
