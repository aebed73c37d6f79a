// Package succession audits the project blueprint against the repository:
// test counts per category, files per source layer, and the size of the
// cairn. Discrepancies come back as human-readable lines; none means the
// blueprint still describes reality.
package succession

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/teranos/yanantin/errors"
)

// Defaults for Config.
const (
	DefaultBlueprint   = "docs/blueprint.md"
	DefaultTestsDir    = "tests"
	DefaultSourceRoot  = "src"
	DefaultTestPattern = "def test_"
	DefaultTestGlob    = "**/test_*.py"
	DefaultSourceGlob  = "**/*.py"
	DefaultTensorGlob  = "docs/cairn/T*.md"
	DefaultScoutGlob   = "docs/cairn/scout_*.md"
)

// Config locates what the audit surveys. Relative paths resolve against
// Root.
type Config struct {
	Root        string
	Blueprint   string
	TestsDir    string
	SourceRoot  string
	TestPattern string
	TestGlob    string
	SourceGlob  string
	TensorGlob  string
	ScoutGlob   string
}

func (c Config) withDefaults() Config {
	def := func(v *string, d string) {
		if *v == "" {
			*v = d
		}
	}
	def(&c.Root, ".")
	def(&c.Blueprint, DefaultBlueprint)
	def(&c.TestsDir, DefaultTestsDir)
	def(&c.SourceRoot, DefaultSourceRoot)
	def(&c.TestPattern, DefaultTestPattern)
	def(&c.TestGlob, DefaultTestGlob)
	def(&c.SourceGlob, DefaultSourceGlob)
	def(&c.TensorGlob, DefaultTensorGlob)
	def(&c.ScoutGlob, DefaultScoutGlob)
	return c
}

func (c Config) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// Survey is what the filesystem actually holds.
type Survey struct {
	Tests        map[string]int `json:"tests"`   // category -> test functions
	Sources      map[string]int `json:"sources"` // layer -> files
	Tensors      int            `json:"tensors"`
	ScoutReports int            `json:"scout_reports"`
}

// TotalTests sums every category.
func (s *Survey) TotalTests() int {
	total := 0
	for _, n := range s.Tests {
		total += n
	}
	return total
}

// Take surveys the repository described by cfg.
func Take(cfg Config) (*Survey, error) {
	cfg = cfg.withDefaults()
	s := &Survey{Tests: map[string]int{}, Sources: map[string]int{}}

	pattern := []byte(cfg.TestPattern)
	err := eachCategory(cfg.path(cfg.TestsDir), cfg.TestGlob, func(category, path string) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}
		s.Tests[category] += bytes.Count(data, pattern)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = eachCategory(cfg.path(cfg.SourceRoot), cfg.SourceGlob, func(layer, _ string) error {
		s.Sources[layer]++
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.Tensors, err = count(cfg.Root, cfg.TensorGlob); err != nil {
		return nil, err
	}
	if s.ScoutReports, err = count(cfg.Root, cfg.ScoutGlob); err != nil {
		return nil, err
	}
	return s, nil
}

// eachCategory calls fn for every file matching glob under each immediate
// subdirectory of dir. The subdirectory name is the category. A missing dir
// yields nothing.
func eachCategory(dir, glob string, fn func(category, path string) error) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "read %s", dir)
	}
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") || strings.HasPrefix(e.Name(), "__") {
			continue
		}
		base := filepath.Join(dir, e.Name())
		matches, err := doublestar.Glob(os.DirFS(base), glob, doublestar.WithFilesOnly())
		if err != nil {
			return errors.Wrapf(err, "glob %s in %s", glob, base)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if err := fn(e.Name(), filepath.Join(base, filepath.FromSlash(m))); err != nil {
				return err
			}
		}
	}
	return nil
}

func count(root, glob string) (int, error) {
	matches, err := doublestar.Glob(os.DirFS(root), filepath.ToSlash(glob), doublestar.WithFilesOnly())
	if err != nil {
		return 0, errors.Wrapf(err, "glob %s", glob)
	}
	return len(matches), nil
}
