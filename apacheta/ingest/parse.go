// Package ingest turns authored tensor markdown into tensor records.
//
// Parsing never rejects a file. The raw markdown is always kept as the
// narrative body, and every structural guess is listed in Parsed.Inferred.
package ingest

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/yanantin/apacheta/models"
	"github.com/teranos/yanantin/cairn"
	"github.com/teranos/yanantin/contentaddr"
	"github.com/teranos/yanantin/version"
)

// Namespace seeds the deterministic ids of ingested tensors and claims.
var Namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/teranos/yanantin/ingest"))

// Source identifies this ingester in provenance envelopes.
var Source = models.SourceIdentifier{
	Identifier:  uuid.NewSHA1(Namespace, []byte("markdown-ingest")),
	Version:     version.Get().Provenance(),
	Description: "markdown tensor ingest",
}

// DefaultModelFamily is used when the filename table has no entry.
const DefaultModelFamily = "unknown"

// Parsed is one parsed file.
type Parsed struct {
	Tensor      models.TensorRecord
	Name        string // tensor name such as "T5", when known
	Label       string
	ContentHash string
	Inferred    []string
}

// Parser holds the clock used for files without a dated table entry.
type Parser struct {
	Now func() time.Time
}

var (
	strandHeaders = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^#{2,3}[ \t]+Strand[ \t]+(\d+)[ \t]*[:.\-–—][ \t]*(.+?)[ \t]*$`),
		regexp.MustCompile(`(?m)^\*\*Strand[ \t]+(\d+)[ \t]*[:.\-–—][ \t]*(.+?)\*\*[ \t]*$`),
		regexp.MustCompile(`(?m)^Strand[ \t]+(\d+)[ \t]*:[ \t]*(.+?)[ \t]*$`),
	}
	titleLine      = regexp.MustCompile(`(?m)^#[ \t]+(.+?)[ \t]*$`)
	anyHeading     = regexp.MustCompile(`(?m)^#{1,6}[ \t]+\S.*$`)
	closingHeading = regexp.MustCompile(`(?mi)^#{1,4}[ \t]+(?:closing|in closing|final words|coda|sign[- ]?off|parting words)\b.*$`)
	signOff        = regexp.MustCompile(`(?m)^[ \t]*(?:—|–|--)[ \t]*[A-Za-z].{0,80}$`)
	sectionHeading = regexp.MustCompile(`(?mi)^#{1,4}[ \t]+(?:open questions|declared losses|what (?:was|i) lost|losses|instructions for (?:the )?next.*)[ \t]*$`)

	numberedBold = regexp.MustCompile(`(?m)^[ \t]*\d+[.)][ \t]+\*\*(.+?)\*\*(.*)$`)
	bulletBold   = regexp.MustCompile(`(?m)^[ \t]*[-*+][ \t]+\*\*(.+?)\*\*(.*)$`)
	subHeading   = regexp.MustCompile(`(?m)^###[ \t]+(.+?)[ \t]*$`)

	lossesHeading = regexp.MustCompile(`(?mi)^#{1,4}[ \t]+(?:declared losses|what (?:was|i) lost|losses)\b.*$`)
	lossBullet    = regexp.MustCompile(`(?m)^[ \t]*(?:[-*+]|\d+[.)])[ \t]+\*\*(.+?)\*\*[ \t]*[:—–\-]?[ \t]*(.*)$`)
	lossSentence  = regexp.MustCompile(`(?mi)^[ \t]*(?:[-*+][ \t]+)?(?:I[ \t]+)?(?:lost|dropped|left out|did not carry|didn't carry)[ \t]+(.+?)[ \t]+because[ \t]+(.+?)\.?[ \t]*$`)
	lossesMine    = regexp.MustCompile(`(?i)the losses are mine`)

	openQuestionsHeading = regexp.MustCompile(`(?mi)^#{1,4}[ \t]+open questions\b.*$`)
	listItem             = regexp.MustCompile(`^[ \t]*(?:\d+[.)]|[-*+])[ \t]+(.+?)[ \t]*$`)
	instructionsHeading  = regexp.MustCompile(`(?mi)^#{1,4}[ \t]+instructions for (?:the )?next\b.*$`)
	compositionEquation  = regexp.MustCompile(`(?m)^[ \t]*\**[ \t]*(T\d+[ \t]*=[ \t]*[A-Za-z]+\(.*?\))[ \t]*\**[ \t]*$`)

	wordSplit = regexp.MustCompile(`[^a-z0-9]+`)
)

var stopWords = map[string]bool{
	"about": true, "after": true, "again": true, "also": true, "because": true,
	"before": true, "being": true, "between": true, "from": true, "have": true,
	"into": true, "just": true, "more": true, "most": true, "only": true,
	"other": true, "over": true, "same": true, "some": true, "than": true,
	"that": true, "their": true, "them": true, "then": true, "there": true,
	"these": true, "they": true, "this": true, "those": true, "through": true,
	"what": true, "when": true, "where": true, "which": true, "while": true,
	"with": true, "without": true, "would": true, "your": true, "strand": true,
}

// domainMarkers are phrases that become topics whenever a strand mentions them.
var domainMarkers = []string{
	"anti-pattern", "bug", "composition", "correction", "dissent", "epistemic",
	"error", "failure", "immutability", "lineage", "provenance", "storage",
}

type span struct {
	start, end   int // header span
	contentStart int
	title        string
}

// Parse builds a tensor from one file's text. It never fails.
func (p Parser) Parse(filename, text string) Parsed {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	hash := contentaddr.ContentHash(text)
	id := uuid.NewSHA1(Namespace, []byte("tensor/"+hash))
	out := Parsed{ContentHash: hash}

	env := models.ProvenanceEnvelope{
		Source:              Source,
		AuthorModelFamily:   DefaultModelFamily,
		PredecessorsInScope: []uuid.UUID{},
		InterfaceVersion:    models.InterfaceVersion,
	}
	tags := []string{}
	if e, ok := cairn.Lookup(filename); ok {
		out.Name, out.Label = e.Name, e.Label
		env.AuthorModelFamily = e.ModelFamily
		env.Timestamp = e.Time()
		tags = append(tags, e.LineageTags...)
		out.Inferred = append(out.Inferred, "metadata from filename table")
	} else {
		out.Name, _ = cairn.TensorName(filename)
		out.Inferred = append(out.Inferred, "filename not in table; metadata defaults")
	}
	if env.Timestamp.IsZero() {
		env.Timestamp = now().UTC()
		out.Inferred = append(out.Inferred, "timestamp from ingest clock")
	}
	env.AuthorInstanceID = out.Name
	if env.AuthorInstanceID == "" {
		env.AuthorInstanceID = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}

	strands := findStrands(text)
	out.Inferred = append(out.Inferred, fmt.Sprintf("%d strand headers", len(strands)))

	bodyEnd := len(text)
	closing := ""
	if len(strands) > 0 {
		last := strands[len(strands)-1]
		if at, ok := closingStart(text, last.contentStart); ok {
			closing = strings.TrimSpace(stripSections(text[at:]))
			bodyEnd = at
			out.Inferred = append(out.Inferred, "closing text after last strand")
		}
	}

	preambleEnd := bodyEnd
	if len(strands) > 0 {
		preambleEnd = strands[0].start
	}
	preamble := titleLine.ReplaceAllStringFunc(text[:preambleEnd], firstOnly())
	preamble = strings.TrimSpace(stripSections(preamble))

	tensor := models.TensorRecord{
		ID:                  id,
		Provenance:          env,
		Preamble:            preamble,
		Strands:             []models.Strand{},
		Closing:             closing,
		InstructionsForNext: sectionBody(text, instructionsHeading),
		NarrativeBody:       text,
		LineageTags:         tags,
		DeclaredLosses:      declaredLosses(text),
		OpenQuestions:       openQuestions(text),
	}
	if m := compositionEquation.FindStringSubmatch(text); m != nil {
		tensor.CompositionEquation = strings.TrimSpace(m[1])
	}

	for i, s := range strands {
		end := bodyEnd
		if i+1 < len(strands) {
			end = strands[i+1].start
		}
		if end < s.contentStart {
			end = s.contentStart
		}
		content := text[s.contentStart:end]
		if i == len(strands)-1 {
			if loc := sectionHeading.FindStringIndex(content); loc != nil {
				content = content[:loc[0]]
			}
		}
		content = strings.TrimSpace(content)
		tensor.Strands = append(tensor.Strands, models.Strand{
			StrandIndex: i,
			Title:       s.title,
			Content:     content,
			Topics:      topics(s.title, content),
			KeyClaims:   keyClaims(id, i, content),
		})
	}
	out.Tensor = tensor
	return out
}

// firstOnly returns a replacer that removes only the first match.
func firstOnly() func(string) string {
	done := false
	return func(m string) string {
		if done {
			return m
		}
		done = true
		return ""
	}
}

func findStrands(text string) []span {
	var found []span
	for _, re := range strandHeaders {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			found = append(found, span{
				start:        m[0],
				end:          m[1],
				contentStart: m[1],
				title:        strings.TrimSpace(strings.Trim(text[m[4]:m[5]], "*")),
			})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].start < found[j].start })

	out := found[:0]
	for _, s := range found {
		if len(out) > 0 && s.start < out[len(out)-1].end {
			continue
		}
		out = append(out, s)
	}
	return out
}

// closingStart finds the first closing heading or sign-off after from.
func closingStart(text string, from int) (int, bool) {
	best := -1
	for _, re := range []*regexp.Regexp{closingHeading, signOff} {
		if loc := re.FindStringIndex(text[from:]); loc != nil {
			if at := from + loc[0]; best < 0 || at < best {
				best = at
			}
		}
	}
	return best, best >= 0
}

// stripSections drops known trailing sections (open questions, losses,
// instructions) from a block of prose.
func stripSections(block string) string {
	if loc := sectionHeading.FindStringIndex(block); loc != nil {
		return block[:loc[0]]
	}
	return block
}

// sectionBody returns the text under the first heading matching re, up to
// the next heading.
func sectionBody(text string, re *regexp.Regexp) string {
	loc := re.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	rest := text[loc[1]:]
	if next := anyHeading.FindStringIndex(rest); next != nil {
		rest = rest[:next[0]]
	}
	return strings.TrimSpace(rest)
}

type claimAt struct {
	pos  int
	text string
}

func keyClaims(tensorID uuid.UUID, strand int, content string) []models.KeyClaim {
	var found []claimAt
	for _, re := range []*regexp.Regexp{numberedBold, bulletBold} {
		for _, m := range re.FindAllStringSubmatchIndex(content, -1) {
			text := strings.TrimSpace(content[m[2]:m[3]] + " " + strings.TrimSpace(content[m[4]:m[5]]))
			found = append(found, claimAt{pos: m[0], text: strings.TrimSpace(text)})
		}
	}
	for _, m := range subHeading.FindAllStringSubmatchIndex(content, -1) {
		line := content[m[0]:m[1]]
		if isStrandHeader(line) {
			continue
		}
		found = append(found, claimAt{pos: m[0], text: strings.TrimSpace(content[m[2]:m[3]])})
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].pos < found[j].pos })

	claims := []models.KeyClaim{}
	for i, c := range found {
		if c.text == "" {
			continue
		}
		claims = append(claims, models.KeyClaim{
			ClaimID:      uuid.NewSHA1(tensorID, []byte(fmt.Sprintf("claim/%d/%d", strand, i))),
			Text:         c.text,
			Epistemic:    models.DefaultEpistemic(),
			EvidenceRefs: []string{},
		})
	}
	return claims
}

func isStrandHeader(line string) bool {
	for _, re := range strandHeaders {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

func topics(title, content string) []string {
	seen := map[string]bool{}
	out := []string{}
	add := func(t string) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, w := range wordSplit.Split(strings.ToLower(title), -1) {
		if len(w) >= 4 && !stopWords[w] {
			add(w)
		}
	}
	lower := strings.ToLower(title + "\n" + content)
	for _, m := range domainMarkers {
		if strings.Contains(lower, m) {
			add(m)
		}
	}
	return out
}

func declaredLosses(text string) []models.DeclaredLoss {
	losses := []models.DeclaredLoss{}
	if section := sectionBody(text, lossesHeading); section != "" {
		for _, m := range lossBullet.FindAllStringSubmatch(section, -1) {
			what := strings.TrimSpace(strings.TrimRight(m[1], ".:"))
			why := strings.TrimSpace(m[2])
			losses = append(losses, models.DeclaredLoss{WhatWasLost: what, Why: why, Category: lossCategory(why)})
		}
	}
	if len(losses) == 0 {
		for _, m := range lossSentence.FindAllStringSubmatch(text, -1) {
			why := strings.TrimSpace(m[2])
			losses = append(losses, models.DeclaredLoss{
				WhatWasLost: strings.TrimSpace(m[1]),
				Why:         why,
				Category:    lossCategory(why),
			})
		}
	}
	if len(losses) == 0 && lossesMine.MatchString(text) {
		losses = append(losses, models.DeclaredLoss{
			WhatWasLost: "unspecified",
			Why:         "the author declared the losses without enumerating them",
			Category:    models.LossAuthorialChoice,
		})
	}
	return losses
}

func lossCategory(why string) models.LossCategory {
	w := strings.ToLower(why)
	switch {
	case containsAny(w, "context", "budget", "window", "compaction", "token"):
		return models.LossContextPressure
	case containsAny(w, "traversal", "didn't read", "did not read", "reading order", "never opened"):
		return models.LossTraversalBias
	case containsAny(w, "chose", "choice", "decided", "deliberately", "on purpose"):
		return models.LossAuthorialChoice
	}
	return models.LossPracticalConstraint
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func openQuestions(text string) []string {
	loc := openQuestionsHeading.FindStringIndex(text)
	if loc == nil {
		return []string{}
	}
	out := []string{}
	for _, line := range strings.Split(text[loc[1]:], "\n") {
		if anyHeading.MatchString(line) {
			break
		}
		if m := listItem.FindStringSubmatch(line); m != nil {
			out = append(out, m[1])
		}
	}
	return out
}
