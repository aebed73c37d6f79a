package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/yanantin/cairn"
	"github.com/teranos/yanantin/errors"
	"github.com/teranos/yanantin/logger"
	"github.com/teranos/yanantin/sym"
)

// Slug is the filename suffix of every compaction record.
const Slug = "compaction"

// maxClaimAttempts bounds the exclusive-create retry loop.
const maxClaimAttempts = 64

// Result describes a written compaction record.
type Result struct {
	Name    string   `json:"name"`
	Path    string   `json:"path"`
	Summary *Summary `json:"summary"`
}

// Capturer writes compaction records into a directory that shares the
// tensor numbering namespace with the main archive.
type Capturer struct {
	ArchiveDir    string
	CompactionDir string
	Reader        Reader
	Now           func() time.Time
	logger        *zap.SugaredLogger
}

// NewCapturer creates a capturer.
func NewCapturer(archiveDir, compactionDir string, reader Reader, log *zap.SugaredLogger) *Capturer {
	return &Capturer{
		ArchiveDir:    archiveDir,
		CompactionDir: compactionDir,
		Reader:        reader,
		Now:           time.Now,
		logger:        logger.OrNop(log).Named("capture"),
	}
}

// Capture summarizes the log at logPath and writes the record.
func (c *Capturer) Capture(logPath string) (*Result, error) {
	start := time.Now()
	summary, err := c.Reader.Summarize(logPath)
	if err != nil {
		return nil, err
	}
	now := c.Now().UTC()

	if err := os.MkdirAll(c.CompactionDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create compaction dir %s", c.CompactionDir)
	}
	f, n, err := c.claim(now)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("T%d", n)
	path := f.Name()
	_, werr := f.WriteString(Render(name, now, summary))
	cerr := f.Close()
	if werr != nil || cerr != nil {
		// Leave no half-written record holding the number.
		os.Remove(path)
		if werr == nil {
			werr = cerr
		}
		return nil, errors.Wrapf(werr, "write compaction record %s", path)
	}

	c.logger.Infow(sym.Capture+" compaction record written",
		logger.FieldRecord, name,
		logger.FieldFile, path,
		logger.FieldCount, summary.Events,
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	return &Result{Name: name, Path: path, Summary: summary}, nil
}

// claim creates the next free T{n} file exclusively. Another writer may
// win a number between the scan and the create, so EEXIST moves on to the
// next number.
func (c *Capturer) claim(now time.Time) (*os.File, int, error) {
	highest, err := cairn.HighestNumber(c.ArchiveDir, c.CompactionDir)
	if err != nil {
		return nil, 0, err
	}
	n := highest + 1
	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		path := filepath.Join(c.CompactionDir, cairn.Filename(n, now, Slug))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return f, n, nil
		}
		if !os.IsExist(err) {
			return nil, 0, errors.Wrapf(err, "claim %s", path)
		}
		c.logger.Debugw(sym.Capture+" number taken, retrying", logger.FieldFile, path)
		n++
	}
	err = errors.Newf("no free tensor number after %d attempts", maxClaimAttempts)
	return nil, 0, errors.WithDetail(err, fmt.Sprintf("Directory: %s", c.CompactionDir))
}

// Render formats a summary as a markdown compaction record.
func Render(name string, at time.Time, s *Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s: Compaction Record\n\n", name)
	b.WriteString("*This record was written by automated capture at a context boundary. ")
	b.WriteString("No instance authored it; it is a mechanical summary of the session log.*\n\n")

	b.WriteString("## Session\n\n")
	if s.SessionID != "" {
		fmt.Fprintf(&b, "- Session: `%s`\n", s.SessionID)
	}
	fmt.Fprintf(&b, "- Log: `%s` (%d bytes)\n", s.LogPath, s.LogSize)
	fmt.Fprintf(&b, "- Captured: %s\n", at.Format(time.RFC3339))
	scope := "full log"
	if !s.FullRead {
		scope = "head of log only; details from the tail window"
	}
	fmt.Fprintf(&b, "- Events: %d (%s)\n", s.Events, scope)
	if s.Malformed > 0 {
		fmt.Fprintf(&b, "- Malformed lines: %d\n", s.Malformed)
	}
	b.WriteString("\n")

	if len(s.EventTypes) > 0 {
		b.WriteString("## Event Counts\n\n| Type | Count |\n|------|-------|\n")
		for _, t := range sortedKeys(s.EventTypes) {
			fmt.Fprintf(&b, "| %s | %d |\n", t, s.EventTypes[t])
		}
		b.WriteString("\n")
	}
	if len(s.ToolUses) > 0 {
		b.WriteString("## Tool Use\n\n")
		for _, t := range s.ToolNames() {
			fmt.Fprintf(&b, "- %s: %d\n", t, s.ToolUses[t])
		}
		b.WriteString("\n")
	}
	list(&b, "Files Written", s.FilesWritten, true)
	list(&b, "Files Read", s.FilesRead, true)
	list(&b, "Commits", s.Commits, false)
	if len(s.Directions) > 0 {
		b.WriteString("## User Direction\n\n")
		for _, d := range s.Directions {
			fmt.Fprintf(&b, "> %s\n\n", d)
		}
	}
	return b.String()
}

func list(b *strings.Builder, title string, items []string, code bool) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", title)
	for _, it := range items {
		if code {
			it = "`" + it + "`"
		}
		fmt.Fprintf(b, "- %s\n", it)
	}
	b.WriteString("\n")
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
