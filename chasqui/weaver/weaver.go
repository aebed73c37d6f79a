// Package weaver extracts typed composition declarations from tensor prose.
//
// Weaving is pattern matching only. A sentence yields at most one
// declaration: the first pattern that matches wins.
package weaver

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Relation is the kind of reference a sentence declares.
type Relation string

const (
	DoesNotComposeWith  Relation = "does_not_compose_with"
	ComposesWith        Relation = "composes_with"
	Predecessor         Relation = "predecessor"
	SuccessorTo         Relation = "successor_to"
	DoesNotModify       Relation = "does_not_modify"
	Corrects            Relation = "corrects"
	Bridges             Relation = "bridges"
	Connects            Relation = "connects"
	BranchesFrom        Relation = "branches_from"
	OnlyRead            Relation = "only_read"
	DidNotRead          Relation = "did_not_read"
	Read                Relation = "read"
	Traversed           Relation = "traversed"
	CompositionEquation Relation = "composition_equation"
)

// Declaration is one relation a tensor states about other tensors.
type Declaration struct {
	Source     string   `json:"source"`
	Relation   Relation `json:"relation"`
	Targets    []string `json:"targets"`
	Confidence float64  `json:"confidence"`
	Sentence   string   `json:"sentence"`
	Line       int      `json:"line"` // 1-based
}

// Key identifies a declaration for deduplication.
func (d Declaration) Key() string {
	targets := append([]string(nil), d.Targets...)
	sort.Strings(targets)
	return d.Source + "|" + string(d.Relation) + "|" + strings.Join(targets, ",")
}

type pattern struct {
	relation   Relation
	re         *regexp.Regexp
	confidence float64
	afterOnly  bool // take targets only from text after the match
}

// Ordered from most explicit to most generic.
var patterns = []pattern{
	{DoesNotComposeWith, regexp.MustCompile(`(?i)\b(?:does not|doesn't|do not|don't) compose with\b`), 0.9, false},
	{ComposesWith, regexp.MustCompile(`(?i)\bcompose[sd]? with\b`), 0.85, false},
	{Predecessor, regexp.MustCompile(`(?i)\bpredecessors?\s*:`), 0.9, false},
	{SuccessorTo, regexp.MustCompile(`(?i)\bsuccessor (?:to|of)\b`), 0.9, false},
	{DoesNotModify, regexp.MustCompile(`(?i)\b(?:doesn't|does not|do not|don't) modify\b`), 0.8, false},
	{Corrects, regexp.MustCompile(`(?i)\bcorrects?\b.*?\bclaims?\b`), 0.85, false},
	{Bridges, regexp.MustCompile(`(?i)\bbridge (?:between|tensor|composition)\b|\bis a bridge\b`), 0.8, false},
	{Connects, regexp.MustCompile(`(?i)\bconnects\b(?:.*?\b(?:and|to|with)\b|\s*:)`), 0.5, false},
	{BranchesFrom, regexp.MustCompile(`(?i)\bbranch(?:es|ed)? (?:off )?from\b`), 0.85, false},
	{OnlyRead, regexp.MustCompile(`(?i)\bonly read\b`), 0.95, true},
	{DidNotRead, regexp.MustCompile(`(?i)\b(?:didn't|did not|have not|haven't|not) read\b`), 0.85, false},
	{Read, regexp.MustCompile(`(?i)\bread\s+T\d+\s*(?:–|—|-|\.\.|through)\s*T\d+`), 0.85, false},
	{Read, regexp.MustCompile(`(?i)\bread\s+T\d+`), 0.8, false},
	{Traversed, regexp.MustCompile(`(?i)\btraversed\b.*?\bT\d+`), 0.75, false},
}

var (
	equation  = regexp.MustCompile(`^\W*T(\d+)\s*=\s*[A-Za-z_][\w∘⊗]*\s*\((.*)\)`)
	latexRef  = regexp.MustCompile(`T_\{(\d+)\}|T_(\d+)`)
	tensorRef = regexp.MustCompile(`\bT(\d+)\b`)
	rangeRef  = regexp.MustCompile(`\bT(\d+)\s*(?:–|—|-|\.\.|through)\s*T(\d+)\b`)
)

// MaxRangeSpan bounds how many names one range may expand to.
const MaxRangeSpan = 256

// LookaheadLines is how many following lines are searched when a matched
// sentence names no tensor.
const LookaheadLines = 3

var subscripts = strings.NewReplacer(
	"₀", "0", "₁", "1", "₂", "2", "₃", "3", "₄", "4",
	"₅", "5", "₆", "6", "₇", "7", "₈", "8", "₉", "9",
)

// Normalize rewrites subscript and LaTeX tensor references to plain form:
// T₁₂, T_{12} and T_12 all become T12.
func Normalize(text string) string {
	text = subscripts.Replace(text)
	return latexRef.ReplaceAllStringFunc(text, func(m string) string {
		sub := latexRef.FindStringSubmatch(m)
		return "T" + canonical(sub[1]+sub[2])
	})
}

func canonical(digits string) string {
	n, err := strconv.Atoi(digits)
	if err != nil {
		return digits
	}
	return strconv.Itoa(n)
}

// References lists the tensor names in text in order of first appearance,
// expanding ranges. The text must already be normalized.
func References(text string) []string {
	type hit struct {
		pos   int
		names []string
	}
	var hits []hit
	covered := make([][2]int, 0)
	for _, m := range rangeRef.FindAllStringSubmatchIndex(text, -1) {
		lo, errLo := strconv.Atoi(text[m[2]:m[3]])
		hi, errHi := strconv.Atoi(text[m[4]:m[5]])
		if errLo != nil || errHi != nil {
			// Out of int range; the ends still count as single references.
			continue
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		span := hi - lo
		if span >= MaxRangeSpan {
			span = MaxRangeSpan - 1
		}
		names := make([]string, 0, span+1)
		for k := 0; k <= span; k++ {
			names = append(names, "T"+strconv.Itoa(lo+k))
		}
		hits = append(hits, hit{pos: m[0], names: names})
		covered = append(covered, [2]int{m[0], m[1]})
	}
	for _, m := range tensorRef.FindAllStringSubmatchIndex(text, -1) {
		inside := false
		for _, c := range covered {
			if m[0] >= c[0] && m[1] <= c[1] {
				inside = true
				break
			}
		}
		if !inside {
			hits = append(hits, hit{pos: m[0], names: []string{"T" + canonical(text[m[2]:m[3]])}})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	seen := map[string]bool{}
	var out []string
	for _, h := range hits {
		for _, n := range h.names {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out
}

// Weave extracts declarations from text written by the tensor named source.
func Weave(source, text string) []Declaration {
	lines := strings.Split(Normalize(strings.ReplaceAll(text, "\r\n", "\n")), "\n")
	var out []Declaration
	seen := map[string]bool{}
	emit := func(d Declaration) {
		d.Targets = without(d.Targets, source)
		if len(d.Targets) == 0 {
			return
		}
		if key := d.Key(); !seen[key] {
			seen[key] = true
			out = append(out, d)
		}
	}

	for i, line := range lines {
		if m := equation.FindStringSubmatch(line); m != nil {
			if "T"+canonical(m[1]) == source {
				emit(Declaration{
					Source:     source,
					Relation:   CompositionEquation,
					Targets:    References(m[2]),
					Confidence: 0.9,
					Sentence:   strings.TrimSpace(line),
					Line:       i + 1,
				})
			}
			continue
		}
		for _, sentence := range sentences(line) {
			d, ok := match(source, sentence)
			if !ok {
				continue
			}
			d.Line = i + 1
			if len(without(d.Targets, source)) == 0 {
				for j := i + 1; j < len(lines) && j <= i+LookaheadLines; j++ {
					d.Targets = append(d.Targets, References(lines[j])...)
				}
				d.Targets = dedup(d.Targets)
			}
			emit(d)
		}
	}
	return out
}

func match(source, sentence string) (Declaration, bool) {
	for _, p := range patterns {
		loc := p.re.FindStringIndex(sentence)
		if loc == nil {
			continue
		}
		scope := sentence
		if p.afterOnly {
			scope = sentence[loc[1]:]
		}
		return Declaration{
			Source:     source,
			Relation:   p.relation,
			Targets:    References(scope),
			Confidence: p.confidence,
			Sentence:   strings.TrimSpace(sentence),
		}, true
	}
	return Declaration{}, false
}

// sentences splits a line after '.', '!' or '?' followed by whitespace.
func sentences(line string) []string {
	var out []string
	start := 0
	for i := 0; i < len(line)-1; i++ {
		switch line[i] {
		case '.', '!', '?':
			if line[i+1] == ' ' || line[i+1] == '\t' {
				out = append(out, line[start:i+1])
				start = i + 1
			}
		}
	}
	if strings.TrimSpace(line[start:]) != "" {
		out = append(out, line[start:])
	}
	return out
}

func without(names []string, drop string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != drop {
			out = append(out, n)
		}
	}
	return out
}

func dedup(names []string) []string {
	seen := map[string]bool{}
	out := names[:0]
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
