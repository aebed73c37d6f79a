package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/yanantin/cmd/yanantin/commands"
	"github.com/teranos/yanantin/logger"
	"github.com/teranos/yanantin/sym"
)

var rootCmd = &cobra.Command{
	Use:   "yanantin",
	Short: "Yanantin - tensor store and chasqui pipeline",
	Long: `Yanantin - an append-only store for authored tensors and the chasqui
pipeline that keeps it honest.

The apacheta store holds tensors, composition edges, corrections, dissents and
their provenance. Chasqui gleans claims from scout reports, weaves edges from
tensor prose, pulses a work queue on repository changes, captures session
records at context boundaries and audits the blueprint.

Available commands:
  am      - Show or initialise configuration ("I am")
  ` + sym.Tensor + ` ingest  - Ingest tensor markdown
  ` + sym.DB + ` query   - Run a named query
  ` + sym.Glean + ` glean   - Extract claims from scout reports
  ` + sym.Weave + ` weave   - Extract composition edges
  ` + sym.Anchor + ` ots     - Stamp, verify and upgrade timestamp proofs
  ` + sym.Pulse + ` pulse   - Run the reactive work queue
  ` + sym.Capture + ` capture - Write a compaction record
  ` + sym.Audit + ` audit   - Compare the blueprint against the filesystem
  ` + sym.Gateway + ` server  - Serve the store over HTTP

Examples:
  yanantin ingest docs/cairn         # Load the archive into the store
  yanantin query claims_about errors # Named query with an argument
  yanantin pulse                     # One pulse, then exit
  yanantin server                    # Gateway on :7420`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("log-json")
		if err := logger.InitializeWithVerbosity(jsonLogs, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("json", false, "Print results as JSON")
	rootCmd.PersistentFlags().Bool("log-json", false, "Write logs to stderr as JSON")

	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.IngestCmd)
	rootCmd.AddCommand(commands.QueryCmd)
	rootCmd.AddCommand(commands.CountsCmd)
	rootCmd.AddCommand(commands.GleanCmd)
	rootCmd.AddCommand(commands.WeaveCmd)
	rootCmd.AddCommand(commands.DedupCmd)
	rootCmd.AddCommand(commands.OtsCmd)
	rootCmd.AddCommand(commands.PulseCmd)
	rootCmd.AddCommand(commands.CaptureCmd)
	rootCmd.AddCommand(commands.AuditCmd)
	rootCmd.AddCommand(commands.ServerCmd)
	rootCmd.AddCommand(commands.McpCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
