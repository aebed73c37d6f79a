// Package gleaner extracts structured claims from scout and scour reports.
//
// Extraction is deterministic: the same report always yields the same claims
// in the same order.
package gleaner

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ReportKind distinguishes free-wandering scout reports from targeted scours.
type ReportKind string

const (
	KindScout ReportKind = "scout"
	KindScour ReportKind = "scour"
)

// Header is the provenance comment at the top of a report.
type Header struct {
	Kind      ReportKind `json:"kind"`
	Run       int        `json:"run,omitempty"`
	Model     string     `json:"model,omitempty"`
	Cost      string     `json:"cost,omitempty"`
	Timestamp time.Time  `json:"timestamp,omitempty"`
	Target    string     `json:"target,omitempty"`
	Scope     string     `json:"scope,omitempty"`
}

// Section names recognised in report bodies.
const (
	SectionStrands        = "Strands"
	SectionOpenQuestions  = "Open Questions"
	SectionDeclaredLosses = "Declared Losses"
	SectionEvidence       = "Evidence"
	SectionReasoning      = "Reasoning"
	SectionBody           = "Body" // whole body, when no named section exists
)

var (
	headerComment = regexp.MustCompile(`(?is)<!--\s*Chasqui\s+(Scout|Scour)\s+Tensor\b(.*?)-->`)
	headerField   = regexp.MustCompile(`(?i)\b(Run|Model|Cost|Timestamp|Target|Scope)\s*:\s*(.+?)\s*(?:\||$)`)
	htmlComment   = regexp.MustCompile(`(?s)<!--.*?-->`)
	sectionHead   = regexp.MustCompile(`(?mi)^(#{1,4})[ \t]+(strands|open questions|declared losses|evidence|reasoning)\b[^\n]*$`)
	heading       = regexp.MustCompile(`^[ \t]*(#{1,6})[ \t]+\S`)
	ruleLine      = regexp.MustCompile(`^[ \t]*(?:-{3,}|\*{3,}|_{3,}|={3,})[ \t]*$`)
	listStart     = regexp.MustCompile(`^[ \t]*(?:[-*+]|\d+[.)])[ \t]+`)
	leadingNoise  = regexp.MustCompile(`^(?:[>*+\-][ \t]*|\d+[.)][ \t]+|#+[ \t]*|\*\*[ \t]*)+`)
)

// ParseHeader reads the provenance comment, if the report has one.
func ParseHeader(text string) (Header, bool) {
	m := headerComment.FindStringSubmatch(text)
	if m == nil {
		return Header{}, false
	}
	h := Header{Kind: ReportKind(strings.ToLower(m[1]))}
	for _, line := range strings.Split(m[2], "\n") {
		for _, f := range headerField.FindAllStringSubmatch(line, -1) {
			value := strings.TrimSpace(f[2])
			switch strings.ToLower(f[1]) {
			case "run":
				h.Run, _ = strconv.Atoi(strings.TrimPrefix(value, "#"))
			case "model":
				h.Model = value
			case "cost":
				h.Cost = value
			case "timestamp":
				if ts, err := time.Parse(time.RFC3339, value); err == nil {
					h.Timestamp = ts
				}
			case "target":
				h.Target = value
			case "scope":
				h.Scope = value
			}
		}
	}
	return h, true
}

// StripComments removes every HTML comment from the report.
func StripComments(text string) string {
	return htmlComment.ReplaceAllString(text, "")
}

type section struct {
	name string
	text string
}

// sections splits body into the named sections it contains. A section runs
// until the next heading at the same or a shallower level.
func sections(body string) []section {
	locs := sectionHead.FindAllStringSubmatchIndex(body, -1)
	if len(locs) == 0 {
		return []section{{name: SectionBody, text: body}}
	}
	out := make([]section, 0, len(locs))
	for _, loc := range locs {
		level := loc[3] - loc[2]
		rest := body[loc[1]:]
		end := len(rest)
		offset := 0
		for _, line := range strings.SplitAfter(rest, "\n") {
			if m := heading.FindStringSubmatch(line); m != nil && offset > 0 && len(m[1]) <= level {
				end = offset
				break
			}
			offset += len(line)
		}
		out = append(out, section{name: canonicalSection(body[loc[4]:loc[5]]), text: rest[:end]})
	}
	return out
}

func canonicalSection(name string) string {
	for _, s := range []string{SectionStrands, SectionOpenQuestions, SectionDeclaredLosses, SectionEvidence, SectionReasoning} {
		if strings.EqualFold(s, name) {
			return s
		}
	}
	return SectionBody
}

// MinSentenceLength is the shortest fragment kept as a sentence.
const MinSentenceLength = 25

// Sentences splits markdown into sentences. Soft line breaks become spaces;
// blank lines, list items, headings and rules end a run of text.
func Sentences(text string) []string {
	var blocks []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			blocks = append(blocks, strings.Join(cur, " "))
			cur = nil
		}
	}
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "", heading.MatchString(line), ruleLine.MatchString(line):
			flush()
			continue
		case listStart.MatchString(line):
			flush()
		}
		cur = append(cur, trimmed)
	}
	flush()

	var out []string
	for _, block := range blocks {
		for _, s := range splitSentences(block) {
			s = strings.TrimSpace(leadingNoise.ReplaceAllString(s, ""))
			if len(s) < MinSentenceLength {
				continue
			}
			out = append(out, s)
		}
	}
	return out
}

// splitSentences cuts after '.', '!' or '?' when whitespace follows.
func splitSentences(block string) []string {
	var out []string
	runes := []rune(block)
	start := 0
	for i := 0; i < len(runes)-1; i++ {
		switch runes[i] {
		case '.', '!', '?':
			if unicode.IsSpace(runes[i+1]) {
				out = append(out, string(runes[start:i+1]))
				start = i + 1
			}
		}
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}
