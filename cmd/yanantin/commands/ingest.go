package commands

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/yanantin/am"
	"github.com/teranos/yanantin/apacheta"
	"github.com/teranos/yanantin/apacheta/ingest"
	"github.com/teranos/yanantin/logger"
	"github.com/teranos/yanantin/sym"
)

// IngestCmd loads tensor markdown into the configured store
var IngestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: sym.Tensor + " " + sym.Describe("ingest"),
	Long: sym.Tensor + ` ingest - parse tensor markdown and store it

Every .md file below dir (default: cairn.dir) is parsed into a tensor record.
Files whose normalised content was already seen in this run are skipped;
tensors already in the store are reported as existing, never overwritten.

Examples:
  yanantin ingest                   # The configured cairn
  yanantin ingest docs/cairn -n     # Parse only, store nothing`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

var ingestDryRun bool

func init() {
	IngestCmd.Flags().BoolVarP(&ingestDryRun, "dry-run", "n", false, "Parse and report without storing")
}

func runIngest(cmd *cobra.Command, args []string) error {
	return withStore(func(cfg *am.Config, store apacheta.TensorStore) error {
		root := cfg.Cairn.Dir
		if len(args) == 1 {
			root = args[0]
		}

		res, err := ingest.NewProcessor(store, ingestDryRun, logger.Logger).IngestDirectory(root)
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, res)
		}

		rows := pterm.TableData{{"File", "Status", "Strands", "Claims", "Note"}}
		for _, f := range res.Files {
			note := f.Error
			if note == "" && len(f.Inferred) > 0 {
				note = fmt.Sprintf("inferred: %v", f.Inferred)
			}
			rows = append(rows, []string{f.Path, f.Status, fmt.Sprint(f.Strands), fmt.Sprint(f.Claims), note})
		}
		if len(res.Files) > 0 {
			if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
				return err
			}
		}
		pterm.Success.Printfln("%s %d stored, %d existing, %d duplicate, %d failed (%s)",
			sym.Tensor, res.Stored, res.Existing, res.Duplicate, res.Failed,
			res.EndTime.Sub(res.StartTime).Round(time.Millisecond))
		return nil
	})
}
