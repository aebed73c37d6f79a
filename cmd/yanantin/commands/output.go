package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/yanantin/display"
)

func wantJSON(cmd *cobra.Command) bool {
	return display.ShouldOutputJSON(cmd)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	return display.OutputJSON(cmd, v)
}
