package commands

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/yanantin/am"
	"github.com/teranos/yanantin/apacheta"
	"github.com/teranos/yanantin/chasqui/weaver"
	"github.com/teranos/yanantin/logger"
	"github.com/teranos/yanantin/sym"
)

// WeaveCmd extracts composition declarations from tensor prose
var WeaveCmd = &cobra.Command{
	Use:   "weave <path>",
	Short: sym.Weave + " " + sym.Describe("weave"),
	Long: sym.Weave + ` weave - find composition declarations in tensor prose

Sentences such as "T7 corrects T4" or "this tensor builds on T3" become typed
declarations. With --store, declarations whose tensors are in the store are
written as composition edges; existing edges are left alone.

Examples:
  yanantin weave docs/cairn
  yanantin weave docs/cairn/T12_20260301_bridge.md --store`,
	Args: cobra.ExactArgs(1),
	RunE: runWeave,
}

var weaveStore bool

func init() {
	WeaveCmd.Flags().BoolVar(&weaveStore, "store", false, "Write resolved declarations as composition edges")
}

func runWeave(cmd *cobra.Command, args []string) error {
	if !weaveStore {
		results, err := weaver.New(nil, logger.Logger).WeavePath(args[0])
		if err != nil {
			return err
		}
		return printWeave(cmd, results)
	}

	return withStore(func(_ *am.Config, store apacheta.TensorStore) error {
		w := weaver.New(store, logger.Logger)
		results, err := w.WeavePath(args[0])
		if err != nil {
			return err
		}
		stored, err := w.Store(results)
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, map[string]interface{}{"files": results, "store": stored})
		}
		if err := printWeave(cmd, results); err != nil {
			return err
		}
		pterm.Success.Printfln("%s %d edges stored, %d existing", sym.Compose, stored.Stored, stored.Existing)
		if len(stored.Unresolved) > 0 {
			pterm.Warning.Printfln("unresolved: %s", strings.Join(stored.Unresolved, ", "))
		}
		return nil
	})
}

func printWeave(cmd *cobra.Command, results []weaver.FileResult) error {
	if wantJSON(cmd) {
		return printJSON(cmd, results)
	}
	rows := pterm.TableData{{"Source", "Relation", "Targets", "Confidence", "Line"}}
	for _, r := range results {
		for _, d := range r.Declarations {
			rows = append(rows, []string{d.Source, string(d.Relation), strings.Join(d.Targets, ", "),
				fmt.Sprintf("%.2f", d.Confidence), fmt.Sprint(d.Line)})
		}
	}
	if len(rows) == 1 {
		pterm.Info.Println("no declarations found")
		return nil
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}
