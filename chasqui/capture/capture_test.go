package capture

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/yanantin/cairn"
)

func line(t *testing.T, v any) string {
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b) + "\n"
}

func userText(session, text string) map[string]any {
	return map[string]any{"type": "user", "sessionId": session, "message": map[string]any{"role": "user", "content": text}}
}

func toolUse(session, name string, input map[string]any) map[string]any {
	return map[string]any{"type": "assistant", "sessionId": session, "message": map[string]any{
		"role":    "assistant",
		"content": []map[string]any{{"type": "text", "text": "working"}, {"type": "tool_use", "name": name, "input": input}},
	}}
}

func writeLog(t *testing.T, lines ...string) string {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "")), 0o644))
	return path
}

func sampleLog(t *testing.T) string {
	return writeLog(t,
		line(t, userText("s-42", "Please  fix the weaver\nrange parsing.")),
		line(t, toolUse("s-42", "Read", map[string]any{"file_path": "chasqui/weaver/weaver.go"})),
		line(t, toolUse("s-42", "Edit", map[string]any{"file_path": "chasqui/weaver/weaver.go"})),
		line(t, toolUse("s-42", "Edit", map[string]any{"file_path": "chasqui/weaver/weaver.go"})),
		"{broken json\n",
		line(t, toolUse("s-42", "Bash", map[string]any{"command": `git add -A && git commit -m "Fix range parsing in weaver"`})),
		line(t, map[string]any{"type": "user", "sessionId": "s-42", "message": map[string]any{
			"role": "user", "content": []map[string]any{{"type": "tool_result", "text": "ok"}},
		}}),
		line(t, userText("s-42", "<system-reminder>ignored</system-reminder>")),
	)
}

func TestSummarizeSmallLogReadsOnce(t *testing.T) {
	s, err := Reader{}.Summarize(sampleLog(t))
	require.NoError(t, err)

	assert.True(t, s.FullRead)
	assert.Equal(t, "s-42", s.SessionID)
	assert.Equal(t, 7, s.Events)
	assert.Equal(t, 1, s.Malformed)
	assert.Equal(t, map[string]int{"user": 3, "assistant": 4}, s.EventTypes)
	assert.Equal(t, map[string]int{"Read": 1, "Edit": 2, "Bash": 1}, s.ToolUses)
	assert.Equal(t, []string{"Edit", "Bash", "Read"}, s.ToolNames())
	assert.Equal(t, []string{"chasqui/weaver/weaver.go"}, s.FilesWritten)
	assert.Equal(t, []string{"chasqui/weaver/weaver.go"}, s.FilesRead)
	assert.Equal(t, []string{"Fix range parsing in weaver"}, s.Commits)
	assert.Equal(t, []string{"Please fix the weaver range parsing."}, s.Directions)
}

func TestSummarizeLargeLogUsesWindows(t *testing.T) {
	var lines []string
	lines = append(lines, line(t, userText("big", "start here")))
	for i := 0; i < 200; i++ {
		lines = append(lines, line(t, toolUse("big", "Read", map[string]any{"file_path": fmt.Sprintf("early/%03d.go", i)})))
	}
	lines = append(lines, line(t, toolUse("big", "Write", map[string]any{"file_path": "late/out.go"})))
	path := writeLog(t, lines...)

	r := Reader{HeadBudget: 1024, TailWindow: 512}
	s, err := r.Summarize(path)
	require.NoError(t, err)

	assert.False(t, s.FullRead)
	assert.Equal(t, "big", s.SessionID)
	assert.Zero(t, s.Malformed, "the line cut by the head budget is not malformed")
	assert.Less(t, s.Events, 201, "counts cover the head only")
	assert.Greater(t, s.Events, 0)
	assert.Equal(t, []string{"late/out.go"}, s.FilesWritten)
	assert.NotContains(t, s.FilesRead, "early/000.go", "details come from the tail")
	assert.Empty(t, s.Directions)
}

func TestCommitMessage(t *testing.T) {
	tests := []struct {
		command string
		want    string
	}{
		{`git commit -m "Add pulse watch"`, "Add pulse watch"},
		{`git commit -am 'Tidy queue'`, "Tidy queue"},
		{"git commit -m \"$(cat <<'EOF'\nRework capture windows\n\nLonger body.\nEOF\n)\"", "Rework capture windows"},
		{`git commit -m "Say \"hi\""`, `Say "hi"`},
		{`git status`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			assert.Equal(t, tt.want, CommitMessage(tt.command))
		})
	}
}

func TestCaptureClaimsNextNumber(t *testing.T) {
	base, err := cairn.HighestNumber()
	require.NoError(t, err)

	root := t.TempDir()
	archive := filepath.Join(root, "cairn")
	compaction := filepath.Join(root, "cairn", "compaction")
	require.NoError(t, os.MkdirAll(archive, 0o755))
	top := base + 10
	require.NoError(t, os.WriteFile(filepath.Join(archive, fmt.Sprintf("T%d_20260101_notes.md", top)), []byte("# notes"), 0o644))

	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	c := NewCapturer(archive, compaction, Reader{}, zaptest.NewLogger(t).Sugar())
	c.Now = func() time.Time { return now }

	first, err := c.Capture(sampleLog(t))
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("T%d", top+1), first.Name)
	assert.Equal(t, filepath.Join(compaction, fmt.Sprintf("T%d_20260302_compaction.md", top+1)), first.Path)

	second, err := c.Capture(sampleLog(t))
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("T%d", top+2), second.Name, "compaction records share the namespace")

	data, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, fmt.Sprintf("# T%d: Compaction Record", top+1)))
	assert.Contains(t, text, "No instance authored it")
	assert.Contains(t, text, "- Session: `s-42`")
	assert.Contains(t, text, "- Edit: 2")
	assert.Contains(t, text, "- Fix range parsing in weaver")
	assert.Contains(t, text, "> Please fix the weaver range parsing.")
}

func TestClaimSkipsTakenNumbers(t *testing.T) {
	base, err := cairn.HighestNumber()
	require.NoError(t, err)
	dir := t.TempDir()
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	c := NewCapturer("", dir, Reader{}, nil)

	f, n, err := c.claim(now)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, base+1, n)

	// A directory is invisible to the number scan but still collides on
	// create, like a writer that won the race after the scan.
	racer := filepath.Join(dir, cairn.Filename(base+2, now, Slug))
	require.NoError(t, os.Mkdir(racer, 0o755))
	f, n, err = c.claim(now)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, base+3, n)
}

func TestRenderPartialRead(t *testing.T) {
	s := &Summary{LogPath: "x.jsonl", LogSize: 10, Events: 3, EventTypes: map[string]int{"user": 3}}
	out := Render("T9", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), s)
	assert.Contains(t, out, "head of log only")
	assert.NotContains(t, out, "## Tool Use")
	assert.Contains(t, out, "| user | 3 |")
}

func TestMissingLogIsRecognised(t *testing.T) {
	dir := t.TempDir()
	c := NewCapturer(filepath.Join(dir, "cairn"), filepath.Join(dir, "cairn", "compaction"), Reader{}, nil)
	_, err := c.Capture(filepath.Join(dir, "absent.jsonl"))
	require.Error(t, err)
	assert.True(t, IsMissingLog(err))

	_, err = os.Stat(filepath.Join(dir, "cairn", "compaction"))
	assert.True(t, os.IsNotExist(err), "nothing is created for a missing log")
}
