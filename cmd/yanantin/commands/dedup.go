package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/yanantin/contentaddr"
)

// DedupCmd reports markdown files with identical normalised content
var DedupCmd = &cobra.Command{
	Use:   "dedup <dir>",
	Short: "Report markdown files with identical content",
	Long: `dedup - group markdown files by normalised content hash

Whitespace and line-ending differences are ignored. Nothing is modified.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := contentaddr.FromDirectory(args[0])
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, index.Duplicates())
		}
		fmt.Fprint(cmd.OutOrStdout(), contentaddr.DeduplicateReport(index))
		return nil
	},
}
