// Package capture turns a session event log into a compaction record at the
// context boundary. Large logs are read in two windows: a structural scan
// of the head for counts and the session id, and a tail window for the
// detailed tool-use extraction.
package capture

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/teranos/yanantin/errors"
)

// Window defaults.
const (
	DefaultHeadBudget = 256 << 10
	DefaultTailWindow = 128 << 10
)

// Extraction limits.
const (
	MaxDirections     = 10
	MaxDirectionChars = 200
	MaxCommitChars    = 120
	maxLineBytes      = 16 << 20
)

// Event is one line of the session log. Unknown fields are ignored.
type Event struct {
	Type      string   `json:"type"`
	SessionID string   `json:"sessionId"`
	AltID     string   `json:"session_id"`
	Message   *Message `json:"message"`
}

func (e Event) session() string {
	if e.SessionID != "" {
		return e.SessionID
	}
	return e.AltID
}

// Message carries either plain text content or a list of blocks.
type Message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// Block is one content block of a message.
type Block struct {
	Type  string         `json:"type"`
	Text  string         `json:"text"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// Blocks decodes the message content. Plain string content becomes a
// single text block.
func (m *Message) Blocks() []Block {
	if m == nil || len(m.Content) == 0 {
		return nil
	}
	var text string
	if err := json.Unmarshal(m.Content, &text); err == nil {
		return []Block{{Type: "text", Text: text}}
	}
	var blocks []Block
	if err := json.Unmarshal(m.Content, &blocks); err != nil {
		return nil
	}
	return blocks
}

// Summary is what capture learned from a log.
type Summary struct {
	SessionID    string         `json:"session_id,omitempty"`
	LogPath      string         `json:"log_path"`
	LogSize      int64          `json:"log_size"`
	FullRead     bool           `json:"full_read"` // false when counts cover the head only
	Events       int            `json:"events"`
	EventTypes   map[string]int `json:"event_types"`
	Malformed    int            `json:"malformed"`
	ToolUses     map[string]int `json:"tool_uses"`
	FilesWritten []string       `json:"files_written,omitempty"`
	FilesRead    []string       `json:"files_read,omitempty"`
	Commits      []string       `json:"commits,omitempty"`
	Directions   []string       `json:"directions,omitempty"`
}

// ToolNames returns the tools used, most used first.
func (s *Summary) ToolNames() []string {
	names := make([]string, 0, len(s.ToolUses))
	for n := range s.ToolUses {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := s.ToolUses[names[i]], s.ToolUses[names[j]]
		if a != b {
			return a > b
		}
		return names[i] < names[j]
	})
	return names
}

// Reader reads session logs with fixed head and tail windows.
type Reader struct {
	HeadBudget int64
	TailWindow int64
}

func (r Reader) windows() (int64, int64) {
	head, tail := r.HeadBudget, r.TailWindow
	if head <= 0 {
		head = DefaultHeadBudget
	}
	if tail <= 0 {
		tail = DefaultTailWindow
	}
	return head, tail
}

// Summarize reads the log at path. When the file fits in head budget plus
// tail window it is read once in full, so nothing is counted twice.
func (r Reader) Summarize(path string) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open session log %s", path)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "stat session log %s", path)
	}

	head, tail := r.windows()
	s := &Summary{
		LogPath:    path,
		LogSize:    info.Size(),
		EventTypes: map[string]int{},
		ToolUses:   map[string]int{},
	}
	x := &extractor{summary: s, written: map[string]bool{}, read: map[string]bool{}}

	if info.Size() <= head+tail {
		s.FullRead = true
		err = eachLine(f, false, func(line []byte) {
			if ev, ok := s.count(line); ok {
				x.add(ev)
			}
		})
		if err != nil {
			return nil, errors.Wrapf(err, "read session log %s", path)
		}
		x.finish()
		return s, nil
	}

	if err := eachLine(io.LimitReader(f, head), true, func(line []byte) { s.count(line) }); err != nil {
		return nil, errors.Wrapf(err, "scan head of %s", path)
	}
	offset := info.Size() - tail
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, errors.Wrapf(err, "seek tail of %s", path)
	}
	br := bufio.NewReaderSize(f, 64<<10)
	// The window almost always starts mid-line.
	if _, err := br.ReadBytes('\n'); err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "read tail of %s", path)
	}
	err = eachLine(br, false, func(line []byte) {
		var ev Event
		if json.Unmarshal(line, &ev) == nil {
			x.add(ev)
		}
	})
	if err != nil {
		return nil, errors.Wrapf(err, "read tail of %s", path)
	}
	x.finish()
	return s, nil
}

// count records the structural facts of one line.
func (s *Summary) count(line []byte) (Event, bool) {
	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil {
		s.Malformed++
		return ev, false
	}
	s.Events++
	typ := ev.Type
	if typ == "" {
		typ = "unknown"
	}
	s.EventTypes[typ]++
	if s.SessionID == "" {
		s.SessionID = ev.session()
	}
	return ev, true
}

// eachLine calls fn for every non-blank line. With dropPartial a final
// line lacking its newline is ignored, since a byte limit cut it.
func eachLine(r io.Reader, dropPartial bool, fn func([]byte)) error {
	br := bufio.NewReaderSize(r, 64<<10)
	for {
		line, err := br.ReadBytes('\n')
		complete := err == nil
		if err != nil && err != io.EOF {
			return err
		}
		if len(line) > maxLineBytes {
			line = nil
		}
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 && (complete || !dropPartial) {
			fn(trimmed)
		}
		if err == io.EOF {
			return nil
		}
	}
}

var (
	commitMessage = regexp.MustCompile(`git\s+commit\b[^\n]*?\s-[a-zA-Z]*m\s*(?:"((?:[^"\\]|\\.)*)"|'([^']*)')`)
	heredocCommit = regexp.MustCompile(`(?s)git\s+commit\b.*?<<\s*'?EOF'?\s*\n\s*([^\n]+)`)
)

type extractor struct {
	summary *Summary
	written map[string]bool
	read    map[string]bool
}

func (x *extractor) add(ev Event) {
	if ev.Message == nil {
		return
	}
	for _, b := range ev.Message.Blocks() {
		switch {
		case b.Type == "tool_use" && b.Name != "":
			x.tool(b)
		case b.Type == "text" && ev.Type == "user":
			x.direction(b.Text)
		}
	}
}

func (x *extractor) tool(b Block) {
	s := x.summary
	s.ToolUses[b.Name]++
	path := stringInput(b.Input, "file_path", "notebook_path", "path")
	switch b.Name {
	case "Write", "Edit", "MultiEdit", "NotebookEdit":
		if path != "" && !x.written[path] {
			x.written[path] = true
			s.FilesWritten = append(s.FilesWritten, path)
		}
	case "Read":
		if path != "" && !x.read[path] {
			x.read[path] = true
			s.FilesRead = append(s.FilesRead, path)
		}
	case "Bash":
		if msg := CommitMessage(stringInput(b.Input, "command")); msg != "" {
			s.Commits = append(s.Commits, msg)
		}
	}
}

func (x *extractor) direction(text string) {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" || strings.HasPrefix(text, "<") {
		return
	}
	x.summary.Directions = append(x.summary.Directions, truncate(text, MaxDirectionChars))
}

func (x *extractor) finish() {
	if d := x.summary.Directions; len(d) > MaxDirections {
		x.summary.Directions = d[len(d)-MaxDirections:]
	}
}

// CommitMessage returns the first line of the message in a git commit
// command, or "".
func CommitMessage(command string) string {
	var msg string
	if m := heredocCommit.FindStringSubmatch(command); m != nil {
		msg = m[1]
	} else if m := commitMessage.FindStringSubmatch(command); m != nil {
		msg = m[1]
		if msg == "" {
			msg = m[2]
		}
	}
	msg = strings.ReplaceAll(msg, `\"`, `"`)
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return truncate(strings.TrimSpace(msg), MaxCommitChars)
}

func stringInput(input map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := input[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// IsMissingLog reports whether err means the session log does not exist.
// Hooks fire before a session has written anything, so callers treat this
// as a silent skip.
func IsMissingLog(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
