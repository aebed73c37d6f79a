// Package contentaddr names markdown files by the hash of their normalized text
// so that copies differing only in line endings or trailing whitespace collapse.
package contentaddr

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/teranos/yanantin/errors"
)

// HashLength is the number of hex characters in a content hash.
const HashLength = 16

// Normalize canonicalizes text before hashing: CRLF and CR become LF,
// trailing whitespace is stripped per line, runs of blank lines collapse to
// one, and leading and trailing blank lines are dropped.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\f\v")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}

	for len(out) > 0 && out[0] == "" {
		out = out[1:]
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

// ContentHash returns the first 16 hex characters of SHA-256(Normalize(text)).
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])[:HashLength]
}

// ContentIndex maps content hashes to the paths holding that content.
type ContentIndex struct {
	paths map[string][]string
}

// NewContentIndex returns an empty index.
func NewContentIndex() *ContentIndex {
	return &ContentIndex{paths: make(map[string][]string)}
}

// MarkdownFiles lists every *.md file under root, sorted, skipping any path
// with a component that starts with a dot.
func MarkdownFiles(root string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(root), "**/*.md")
	if err != nil {
		return nil, errors.Wrapf(err, "glob %s", root)
	}
	sort.Strings(matches)

	out := make([]string, 0, len(matches))
	for _, rel := range matches {
		if hidden(rel) {
			continue
		}
		out = append(out, filepath.Join(root, filepath.FromSlash(rel)))
	}
	return out, nil
}

// FromDirectory indexes every file MarkdownFiles finds under root.
func FromDirectory(root string) (*ContentIndex, error) {
	paths, err := MarkdownFiles(root)
	if err != nil {
		return nil, err
	}
	idx := NewContentIndex()
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", path)
		}
		idx.Register(path, string(data))
	}
	return idx, nil
}

func hidden(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// Register records that path holds text and returns its hash.
// Registering the same path twice is a no-op.
func (c *ContentIndex) Register(path, text string) string {
	h := ContentHash(text)
	for _, p := range c.paths[h] {
		if p == path {
			return h
		}
	}
	c.paths[h] = append(c.paths[h], path)
	return h
}

// HasContent reports whether text is already indexed under some path.
func (c *ContentIndex) HasContent(text string) bool {
	_, ok := c.paths[ContentHash(text)]
	return ok
}

// Lookup returns the paths registered under hash.
func (c *ContentIndex) Lookup(hash string) []string {
	return append([]string(nil), c.paths[hash]...)
}

// Duplicates returns every hash held by two or more paths.
func (c *ContentIndex) Duplicates() map[string][]string {
	out := make(map[string][]string)
	for h, paths := range c.paths {
		if len(paths) >= 2 {
			out[h] = append([]string(nil), paths...)
		}
	}
	return out
}

// Len is the number of unique hashes.
func (c *ContentIndex) Len() int {
	return len(c.paths)
}

// Files is the total number of registered paths.
func (c *ContentIndex) Files() int {
	n := 0
	for _, paths := range c.paths {
		n += len(paths)
	}
	return n
}

// DeduplicateReport renders a human-readable summary of the index. Within a
// group the first registered path is the original.
func DeduplicateReport(c *ContentIndex) string {
	dups := c.Duplicates()
	hashes := make([]string, 0, len(dups))
	redundant := 0
	for h, paths := range dups {
		hashes = append(hashes, h)
		redundant += len(paths) - 1
	}
	sort.Strings(hashes)

	var b strings.Builder
	fmt.Fprintf(&b, "Total files: %d\n", c.Files())
	fmt.Fprintf(&b, "Unique content hashes: %d\n", c.Len())
	fmt.Fprintf(&b, "Duplicate groups: %d\n", len(dups))
	fmt.Fprintf(&b, "Redundant copies: %d\n", redundant)
	for _, h := range hashes {
		paths := dups[h]
		fmt.Fprintf(&b, "\n[%s]\n", h)
		fmt.Fprintf(&b, "  original:  %s\n", paths[0])
		for _, p := range paths[1:] {
			fmt.Fprintf(&b, "  duplicate: %s\n", p)
		}
	}
	return b.String()
}
