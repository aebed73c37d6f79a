package succession

import (
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/yanantin/errors"
	"github.com/teranos/yanantin/logger"
	"github.com/teranos/yanantin/sym"
)

// Compare lists every way the survey departs from the blueprint. Counts the
// blueprint leaves unclaimed are not checked; categories and layers found on
// disk but missing from a blueprint that lists some are reported.
func Compare(bp Blueprint, s *Survey) []string {
	var out []string

	out = append(out, compareMap("tests", "tests", bp.Tests, s.Tests)...)
	if bp.TotalTests != Unclaimed && bp.TotalTests != s.TotalTests() {
		out = append(out, fmt.Sprintf("tests total: blueprint claims %d tests, found %d", bp.TotalTests, s.TotalTests()))
	}
	out = append(out, compareMap("source", "files", bp.Sources, s.Sources)...)
	if bp.Tensors != Unclaimed && bp.Tensors != s.Tensors {
		out = append(out, fmt.Sprintf("cairn: blueprint claims %d tensors, found %d", bp.Tensors, s.Tensors))
	}
	if bp.ScoutReports != Unclaimed && bp.ScoutReports != s.ScoutReports {
		out = append(out, fmt.Sprintf("cairn: blueprint claims %d scout reports, found %d", bp.ScoutReports, s.ScoutReports))
	}
	return out
}

func compareMap(area, unit string, claimed, found map[string]int) []string {
	if len(claimed) == 0 {
		return nil
	}
	var out []string
	for _, name := range sortedKeys(claimed) {
		want := claimed[name]
		got, ok := found[name]
		switch {
		case !ok:
			out = append(out, fmt.Sprintf("%s %s: blueprint claims %d %s, directory missing", area, name, want, unit))
		case got != want:
			out = append(out, fmt.Sprintf("%s %s: blueprint claims %d %s, found %d", area, name, want, unit, got))
		}
	}
	for _, name := range sortedKeys(found) {
		if _, ok := claimed[name]; !ok && found[name] > 0 {
			out = append(out, fmt.Sprintf("%s %s: %d %s not in blueprint", area, name, found[name], unit))
		}
	}
	return out
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Auditor runs the blueprint audit. It satisfies the pulse auditor
// interface.
type Auditor struct {
	cfg    Config
	logger *zap.SugaredLogger
}

// NewAuditor creates an auditor.
func NewAuditor(cfg Config, log *zap.SugaredLogger) *Auditor {
	return &Auditor{cfg: cfg.withDefaults(), logger: logger.OrNop(log).Named("succession")}
}

// Report is a full audit result.
type Report struct {
	Blueprint     Blueprint `json:"blueprint"`
	Survey        *Survey   `json:"survey"`
	Discrepancies []string  `json:"discrepancies"`
}

// Run reads the blueprint, surveys the repository and compares them.
func (a *Auditor) Run() (*Report, error) {
	start := time.Now()
	path := a.cfg.path(a.cfg.Blueprint)
	data, err := os.ReadFile(path)
	if err != nil {
		err = errors.Wrapf(err, "read blueprint %s", path)
		return nil, errors.WithHint(err, "set audit.blueprint in am.toml")
	}
	survey, err := Take(a.cfg)
	if err != nil {
		return nil, err
	}
	bp := ParseBlueprint(string(data))
	r := &Report{Blueprint: bp, Survey: survey, Discrepancies: Compare(bp, survey)}
	a.logger.Infow(sym.Audit+" blueprint audit",
		logger.FieldFile, path,
		logger.FieldCount, len(r.Discrepancies),
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	return r, nil
}

// Audit returns only the discrepancy lines.
func (a *Auditor) Audit() ([]string, error) {
	r, err := a.Run()
	if err != nil {
		return nil, err
	}
	return r.Discrepancies, nil
}
