package succession

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

// Unclaimed marks a count the blueprint does not state.
const Unclaimed = -1

// Blueprint holds the counts a blueprint document claims.
type Blueprint struct {
	Tests        map[string]int `json:"tests"`
	TotalTests   int            `json:"total_tests"`
	Sources      map[string]int `json:"sources"`
	Tensors      int            `json:"tensors"`
	ScoutReports int            `json:"scout_reports"`
}

type sectionKind int

const (
	sectionOther sectionKind = iota
	sectionTests
	sectionSources
	sectionCairn
)

var (
	heading     = regexp.MustCompile(`^#{1,6}\s+(.+?)\s*#*\s*$`)
	listItem    = regexp.MustCompile("^\\s*[-*+]\\s+(?:\\*\\*)?`?([A-Za-z0-9_./-]+)`?(?:\\*\\*)?\\s*[:=—–-]+\\s*~?(\\d+)\\s+(tests?|files?)\\b")
	totalTests  = regexp.MustCompile(`(?i)\btotal\b\D{0,20}?(\d+)\s+tests?\b`)
	tensorCount = regexp.MustCompile(`(?i)\b(\d+)\s+tensors?\b`)
	scoutCount  = regexp.MustCompile(`(?i)\b(\d+)\s+scout\s+reports?\b`)
)

func classify(title string) sectionKind {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "test"):
		return sectionTests
	case strings.Contains(t, "source") || strings.Contains(t, "layer") || strings.Contains(t, "module"):
		return sectionSources
	case strings.Contains(t, "cairn") || strings.Contains(t, "archive"):
		return sectionCairn
	}
	return sectionOther
}

// ParseBlueprint extracts count claims from a blueprint. Sections are
// recognized by heading words; list items read "- name: N tests" or
// "- name: N files".
func ParseBlueprint(text string) Blueprint {
	bp := Blueprint{
		Tests:        map[string]int{},
		TotalTests:   Unclaimed,
		Sources:      map[string]int{},
		Tensors:      Unclaimed,
		ScoutReports: Unclaimed,
	}
	kind := sectionOther
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 64<<10), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if m := heading.FindStringSubmatch(line); m != nil {
			kind = classify(m[1])
			continue
		}
		switch kind {
		case sectionTests:
			if m := totalTests.FindStringSubmatch(line); m != nil {
				bp.TotalTests = atoi(m[1])
				continue
			}
			if m := listItem.FindStringSubmatch(line); m != nil && strings.HasPrefix(m[3], "test") {
				bp.Tests[strings.TrimSuffix(m[1], "/")] = atoi(m[2])
			}
		case sectionSources:
			if m := listItem.FindStringSubmatch(line); m != nil && strings.HasPrefix(m[3], "file") {
				bp.Sources[strings.TrimSuffix(m[1], "/")] = atoi(m[2])
			}
		case sectionCairn:
			if m := scoutCount.FindStringSubmatch(line); m != nil {
				bp.ScoutReports = atoi(m[1])
			}
			if m := tensorCount.FindStringSubmatch(line); m != nil {
				bp.Tensors = atoi(m[1])
			}
		}
	}
	return bp
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return Unclaimed
	}
	return n
}
