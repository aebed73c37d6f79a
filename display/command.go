// Package display decides between JSON and human output for CLI commands.
package display

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// CallerEnv names the variable agents set to request machine output.
const CallerEnv = "YANANTIN_CALLER"

// IsAgentEnvironment reports whether the CLI is being driven by a language
// model runner rather than a person at a terminal.
func IsAgentEnvironment() bool {
	if os.Getenv(CallerEnv) == "llm" {
		return true
	}
	return os.Getenv("CLAUDECODE") != "" || os.Getenv("CURSOR_AGENT") != ""
}

// ShouldOutputJSON determines if a command should output JSON based on the
// --json flag and the caller environment
func ShouldOutputJSON(cmd *cobra.Command) bool {
	if cmd == nil {
		return IsAgentEnvironment()
	}
	if f := cmd.Flags().Lookup("json"); f != nil && f.Changed {
		v, _ := cmd.Flags().GetBool("json")
		return v
	}
	if v, err := cmd.Root().PersistentFlags().GetBool("json"); err == nil && v {
		return true
	}
	return IsAgentEnvironment()
}

// OutputJSON marshals and prints v to cmd's output
func OutputJSON(cmd *cobra.Command, v interface{}) error {
	data, err := MarshalJSON(v)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
