// Package cairn knows the layout of the tensor archive: the embedded table of
// legacy filenames and the T{n} numbering namespace shared by authored
// tensors and compaction records.
package cairn

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teranos/yanantin/errors"
)

//go:embed tensors.yaml
var tableYAML []byte

// Entry is one row of the filename table.
type Entry struct {
	File        string   `yaml:"file"`
	Name        string   `yaml:"name"`
	Label       string   `yaml:"label"`
	ModelFamily string   `yaml:"model_family"`
	LineageTags []string `yaml:"lineage_tags"`
	Date        string   `yaml:"date"`
}

// Time parses Date; the zero time when absent or malformed.
func (e Entry) Time() time.Time {
	t, err := time.Parse("2006-01-02", e.Date)
	if err != nil {
		return time.Time{}
	}
	return t
}

type table struct {
	Tensors []Entry `yaml:"tensors"`
}

var (
	loadOnce sync.Once
	entries  []Entry
	loadErr  error
)

func load() ([]Entry, error) {
	loadOnce.Do(func() {
		var t table
		if err := yaml.Unmarshal(tableYAML, &t); err != nil {
			loadErr = errors.Wrap(err, "parse embedded tensor table")
			return
		}
		entries = t.Tensors
	})
	return entries, loadErr
}

// Table returns a copy of the filename table.
func Table() []Entry {
	all, _ := load()
	out := make([]Entry, len(all))
	copy(out, all)
	return out
}

// Lookup finds the table entry for a file by base name.
func Lookup(filename string) (Entry, bool) {
	base := filepath.Base(filename)
	all, _ := load()
	for _, e := range all {
		if e.File == base {
			return e, true
		}
	}
	return Entry{}, false
}

var (
	numberedFile = regexp.MustCompile(`^T(\d+)_`)
	tSuffix      = regexp.MustCompile(`(?i)_t(\d+)(?:\.md)?$`)
	sessionFile  = regexp.MustCompile(`(?i)_session(\d+)(?:\.md)?$`)
)

// TensorName maps a filename to its tensor name (T0, T12, ...). The table
// wins; then a leading T{n}_ prefix; then an explicit _tN suffix; then a
// _sessionK suffix, which names T(K-1).
func TensorName(filename string) (string, bool) {
	if e, ok := Lookup(filename); ok {
		return e.Name, true
	}
	base := filepath.Base(filename)
	if m := numberedFile.FindStringSubmatch(base); m != nil {
		return "T" + trimZeros(m[1]), true
	}
	if m := tSuffix.FindStringSubmatch(base); m != nil {
		return "T" + trimZeros(m[1]), true
	}
	if m := sessionFile.FindStringSubmatch(base); m != nil {
		k, err := strconv.Atoi(m[1])
		if err == nil && k >= 1 {
			return fmt.Sprintf("T%d", k-1), true
		}
	}
	return "", false
}

func trimZeros(digits string) string {
	n, err := strconv.Atoi(digits)
	if err != nil {
		return digits
	}
	return strconv.Itoa(n)
}

// TensorNumber extracts n from a name like "T12".
func TensorNumber(name string) (int, bool) {
	if !strings.HasPrefix(name, "T") {
		return 0, false
	}
	n, err := strconv.Atoi(name[1:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// HighestNumber returns the largest tensor number used by any *.md file in
// dirs or by the filename table, or -1 when none is used. Missing
// directories are skipped.
func HighestNumber(dirs ...string) (int, error) {
	highest := -1
	for _, e := range Table() {
		if n, ok := TensorNumber(e.Name); ok && n > highest {
			highest = n
		}
	}
	for _, dir := range dirs {
		files, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return 0, errors.Wrapf(err, "read %s", dir)
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".md") {
				continue
			}
			name, ok := TensorName(f.Name())
			if !ok {
				continue
			}
			if n, ok := TensorNumber(name); ok && n > highest {
				highest = n
			}
		}
	}
	return highest, nil
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// Filename builds T{n}_{YYYYMMDD}_{slug}.md.
func Filename(n int, date time.Time, slug string) string {
	slug = strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(slug), "_"), "_")
	if slug == "" {
		slug = "tensor"
	}
	return fmt.Sprintf("T%d_%s_%s.md", n, date.Format("20060102"), slug)
}
