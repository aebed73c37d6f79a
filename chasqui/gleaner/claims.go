package gleaner

import (
	"regexp"
	"sort"
	"strings"
)

// ClaimType classifies a gleaned claim.
type ClaimType string

const (
	TypeFactual       ClaimType = "factual"
	TypeArchitectural ClaimType = "architectural"
	TypeEpistemic     ClaimType = "epistemic"
	TypeMissing       ClaimType = "missing"
)

// Claim is one substantive sentence lifted from a report.
type Claim struct {
	Text         string    `json:"text"`
	Type         ClaimType `json:"type"`
	Confidence   float64   `json:"confidence"`
	FileRefs     []string  `json:"file_refs"`
	BareRefs     []string  `json:"bare_refs,omitempty"` // unquoted src/tests/docs paths
	Quantitative bool      `json:"quantitative"`
	Section      string    `json:"section"`
	SourceModel  string    `json:"source_model"`
	SourceFile   string    `json:"source_file"`
}

// HasFileRef reports whether the claim points at any file.
func (c Claim) HasFileRef() bool { return len(c.FileRefs) > 0 || len(c.BareRefs) > 0 }

// Scoring constants.
const (
	BaseConfidence    = 0.5
	FileRefBonus      = 0.15
	QuantBonus        = 0.10
	DefinitiveBonus   = 0.08
	DefinitiveCap     = 0.15
	HedgePenalty      = 0.12
	HedgeCap          = 0.25
	LossSectionDamper = 0.10
)

var (
	backtickedFile = regexp.MustCompile("`([^`\\s]+\\.(?:py|go|md|toml|yaml|yml|json|txt|cfg|ini)(?::\\d+)?)`")
	backtickedPath = regexp.MustCompile("`[^`\\s]*/[^`\\s]*`")
	bareRepoPath   = regexp.MustCompile(`(?:^|[^\w/])((?:src|tests|docs)/[\w./\-]*[\w/])`)
	quantitative   = regexp.MustCompile(`(?:^|[\s(~])\d+(?:[.,]\d+)?%?(?:[\s),;:.]|$)`)
	declarative    = regexp.MustCompile(`^(?:The|This|That|These|Those|Each|Every|All|No|It|There|Its)\s+(?:\S+\s+){0,5}?(?:is|are|was|were|has|have|had|uses|defines|contains|implements|returns|stores|calls|reads|writes|handles|provides|exposes|runs|holds|does|do|can|will|cannot|never)\b`)
	normative      = regexp.MustCompile(`(?i)\b(?:should|must|needs to|required to)\b`)
	missingPattern = regexp.MustCompile(`(?i)\b(?:missing|absent|not implemented|unimplemented|no tests?|lacks?|lacking|does not exist|doesn't exist|never called|unused|no (?:\w+ ){0,2}(?:handling|validation|coverage|check))\b`)
	epistemicWords = regexp.MustCompile(`(?i)\b(?:uncertain|unclear|unknown|i (?:think|believe|suspect|wonder)|it seems|not sure|open question|unverified|cannot tell|can't tell|hard to say)\b`)
	architectural  = regexp.MustCompile(`(?i)\b(?:architecture|architectural|layer|layers|interface|interfaces|module|modules|package|backend|backends|pipeline|boundary|abstraction|dependency|dependencies|depends on|coupling|coupled|contract|protocol|component|components|separation)\b`)
	filler         = regexp.MustCompile(`(?i)^(?:in summary|overall|in conclusion|to summarize|in short|to sum up|as (?:mentioned|noted) (?:above|earlier)|let me|i will now|here is|here are|below is|see below)\b`)
	definitive     = regexp.MustCompile(`(?i)\b(?:always|never|exactly|definitely|clearly|confirmed|verified|every|only|defines|implements|contains)\b`)
	hedged         = regexp.MustCompile(`(?i)\b(?:might|may|could|perhaps|possibly|probably|likely|seems?|appears?|suggests?|roughly|approximately|somewhat|unclear)\b`)
	formatting     = regexp.MustCompile("^[\\s*_`#>|\\-=:.]*$")
)

// IsSubstantive reports whether a sentence carries a checkable claim.
func IsSubstantive(s string) bool {
	if filler.MatchString(s) || heading.MatchString(s) || formatting.MatchString(s) {
		return false
	}
	return backtickedFile.MatchString(s) ||
		backtickedPath.MatchString(s) ||
		bareRepoPath.MatchString(s) ||
		quantitative.MatchString(s) ||
		declarative.MatchString(s) ||
		normative.MatchString(s) ||
		missingPattern.MatchString(s) ||
		epistemicWords.MatchString(s)
}

// Classify picks the highest-priority type that matches:
// missing, then epistemic, then architectural, then factual.
func Classify(s string) ClaimType {
	switch {
	case missingPattern.MatchString(s):
		return TypeMissing
	case epistemicWords.MatchString(s):
		return TypeEpistemic
	case architectural.MatchString(s):
		return TypeArchitectural
	}
	return TypeFactual
}

// FileRefs returns backticked file references, then bare repo paths not
// already covered.
func FileRefs(s string) (refs, bare []string) {
	seen := map[string]bool{}
	for _, m := range backtickedFile.FindAllStringSubmatch(s, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			refs = append(refs, m[1])
		}
	}
	for _, m := range bareRepoPath.FindAllStringSubmatch(s, -1) {
		p := m[1]
		if seen[p] || seen[stripLine(p)] || coveredBy(p, refs) {
			continue
		}
		seen[p] = true
		bare = append(bare, p)
	}
	return refs, bare
}

func coveredBy(p string, refs []string) bool {
	for _, r := range refs {
		if stripLine(r) == p {
			return true
		}
	}
	return false
}

// Score computes the confidence of a sentence found in section.
func Score(s, section string) float64 {
	conf := BaseConfidence
	refs, bare := FileRefs(s)
	if len(refs) > 0 || len(bare) > 0 {
		conf += FileRefBonus
	}
	if quantitative.MatchString(s) {
		conf += QuantBonus
	}
	conf += min(float64(len(definitive.FindAllString(s, -1)))*DefinitiveBonus, DefinitiveCap)
	conf -= min(float64(len(hedged.FindAllString(s, -1)))*HedgePenalty, HedgeCap)
	if section == SectionDeclaredLosses {
		conf -= LossSectionDamper
	}
	return clamp(conf)
}

func clamp(v float64) float64 {
	return max(0, min(1, v))
}

// extract turns one section into claims.
func extract(sec section, model, file string) []Claim {
	var out []Claim
	for _, s := range Sentences(sec.text) {
		if !IsSubstantive(s) {
			continue
		}
		refs, bare := FileRefs(s)
		c := Claim{
			Text:         s,
			Type:         Classify(s),
			Confidence:   Score(s, sec.name),
			FileRefs:     nonNil(refs),
			BareRefs:     bare,
			Quantitative: quantitative.MatchString(s),
			Section:      sec.name,
			SourceModel:  model,
			SourceFile:   file,
		}
		if sec.name == SectionOpenQuestions || sec.name == SectionDeclaredLosses {
			c.Type = TypeEpistemic
		}
		out = append(out, c)
	}
	return out
}

var (
	markdownGlyphs = regexp.MustCompile("[`*_#>\\[\\]()\"']")
	nonWord        = regexp.MustCompile(`[^\p{L}\p{N}/.\-]+`)
	shortStopwords = map[string]bool{
		"a": true, "an": true, "the": true, "of": true, "to": true, "in": true,
		"is": true, "it": true, "and": true, "or": true, "for": true, "on": true,
		"at": true, "by": true, "as": true, "be": true, "are": true, "was": true,
	}
)

// DedupKey normalizes claim text for duplicate detection.
func DedupKey(text string) string {
	text = markdownGlyphs.ReplaceAllString(strings.ToLower(text), " ")
	words := strings.Fields(nonWord.ReplaceAllString(text, " "))
	kept := words[:0]
	for _, w := range words {
		w = strings.Trim(w, ".-")
		if w == "" || shortStopwords[w] {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// Dedup keeps the most confident claim per normalized text and merges the
// file references of its siblings. Output is sorted by confidence, highest
// first; ties keep input order.
func Dedup(claims []Claim) []Claim {
	sorted := make([]Claim, len(claims))
	copy(sorted, claims)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Confidence > sorted[j].Confidence })

	index := map[string]int{}
	var out []Claim
	for _, c := range sorted {
		key := DedupKey(c.Text)
		if i, ok := index[key]; ok {
			out[i].FileRefs = union(out[i].FileRefs, c.FileRefs)
			out[i].BareRefs = union(out[i].BareRefs, c.BareRefs)
			continue
		}
		index[key] = len(out)
		c.FileRefs = union(nil, c.FileRefs)
		c.BareRefs = union(nil, c.BareRefs)
		out = append(out, c)
	}
	for i := range out {
		if out[i].FileRefs == nil {
			out[i].FileRefs = []string{}
		}
		if len(out[i].BareRefs) == 0 {
			out[i].BareRefs = nil
		}
	}
	return out
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func stripLine(ref string) string {
	if i := strings.LastIndexByte(ref, ':'); i > 0 {
		if isDigits(ref[i+1:]) {
			return ref[:i]
		}
	}
	return ref
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
