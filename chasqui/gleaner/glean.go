package gleaner

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/teranos/yanantin/errors"
	"github.com/teranos/yanantin/logger"
	"github.com/teranos/yanantin/sym"
)

// UnknownModel stands in for reports without a provenance header.
const UnknownModel = "unknown"

// DefaultReportsGlob matches scout and scour reports under a cairn.
const DefaultReportsGlob = "**/{scout,scour}_*.md"

// Report is one gleaned report.
type Report struct {
	Path     string   `json:"path"`
	Header   *Header  `json:"header,omitempty"`
	Body     string   `json:"-"`
	Claims   []Claim  `json:"claims"`
	Sections []string `json:"sections"`
}

// Glean extracts claims from the text of the report at path.
func Glean(path, text string) Report {
	r := Report{Path: path, Body: StripComments(text), Claims: []Claim{}, Sections: []string{}}
	model := UnknownModel
	if h, ok := ParseHeader(text); ok {
		r.Header = &h
		if h.Model != "" {
			model = h.Model
		}
	}
	var all []Claim
	for _, sec := range sections(r.Body) {
		r.Sections = append(r.Sections, sec.name)
		all = append(all, extract(sec, model, path)...)
	}
	if deduped := Dedup(all); deduped != nil {
		r.Claims = deduped
	}
	return r
}

// GleanFile reads and gleans one report.
func GleanFile(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, errors.Wrapf(err, "read report %s", path)
	}
	return Glean(path, string(data)), nil
}

// Cairn gleans reports under one directory.
type Cairn struct {
	Root    string
	Pattern string
	Limit   int // newest N reports; 0 means all
	logger  *zap.SugaredLogger
}

// NewCairn creates a cairn scanner. An empty pattern uses DefaultReportsGlob.
func NewCairn(root, pattern string, limit int, log *zap.SugaredLogger) *Cairn {
	if pattern == "" {
		pattern = DefaultReportsGlob
	}
	return &Cairn{Root: root, Pattern: pattern, Limit: limit, logger: logger.OrNop(log).Named("gleaner")}
}

// Reports returns the newest matching report paths, most recent first.
func (c *Cairn) Reports() ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(c.Root), c.Pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "glob %s in %s", c.Pattern, c.Root)
	}
	type stamped struct {
		path string
		mod  time.Time
	}
	files := make([]stamped, 0, len(matches))
	for _, rel := range matches {
		path := filepath.Join(c.Root, filepath.FromSlash(rel))
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, stamped{path: path, mod: info.ModTime()})
	}
	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].mod.Equal(files[j].mod) {
			return files[i].mod.After(files[j].mod)
		}
		return files[i].path < files[j].path
	})
	if c.Limit > 0 && len(files) > c.Limit {
		files = files[:c.Limit]
	}
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.path
	}
	return out, nil
}

// Glean unions the claims of the newest reports and dedups them globally.
// A report that cannot be read is logged and skipped.
func (c *Cairn) Glean() ([]Claim, error) {
	paths, err := c.Reports()
	if err != nil {
		return nil, err
	}
	var all []Claim
	for _, path := range paths {
		r, err := GleanFile(path)
		if err != nil {
			c.logger.Warnw(sym.Glean+" report skipped", logger.FieldFile, path, logger.FieldError, err)
			continue
		}
		c.logger.Debugw(sym.Glean+" report gleaned", logger.FieldFile, path, logger.FieldCount, len(r.Claims))
		all = append(all, r.Claims...)
	}
	claims := Dedup(all)
	if claims == nil {
		claims = []Claim{}
	}
	c.logger.Infow(sym.Glean+" cairn gleaned",
		logger.FieldPath, c.Root,
		"reports", len(paths),
		logger.FieldCount, len(claims))
	return claims, nil
}
