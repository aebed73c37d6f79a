package display

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCmd() *cobra.Command {
	root := &cobra.Command{Use: "yanantin"}
	root.PersistentFlags().Bool("json", false, "")
	child := &cobra.Command{Use: "counts", Run: func(*cobra.Command, []string) {}}
	root.AddCommand(child)
	return child
}

func TestShouldOutputJSON(t *testing.T) {
	t.Setenv(CallerEnv, "")
	t.Setenv("CLAUDECODE", "")
	t.Setenv("CURSOR_AGENT", "")

	cmd := newCmd()
	assert.False(t, ShouldOutputJSON(cmd))

	require.NoError(t, cmd.Root().PersistentFlags().Set("json", "true"))
	assert.True(t, ShouldOutputJSON(cmd))

	t.Setenv(CallerEnv, "llm")
	assert.True(t, ShouldOutputJSON(newCmd()))
	assert.True(t, ShouldOutputJSON(nil))
}

func TestOutputJSONIsIndentedUnderTest(t *testing.T) {
	cmd := newCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	require.NoError(t, OutputJSON(cmd, map[string]int{"tensors": 3}))
	assert.Equal(t, "{\n  \"tensors\": 3\n}\n", out.String())
}
