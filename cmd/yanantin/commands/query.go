package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/yanantin/am"
	"github.com/teranos/yanantin/apacheta"
	"github.com/teranos/yanantin/display"
	"github.com/teranos/yanantin/errors"
	"github.com/teranos/yanantin/sym"
)

// QueryCmd runs a named query
var QueryCmd = &cobra.Command{
	Use:   "query <name> [arg]",
	Short: sym.DB + " " + sym.Describe("query"),
	Long: sym.DB + ` query - run a named query against the store

Results are printed as JSON. Queries taking an argument:
` + queryUsage(),
	Args:      cobra.RangeArgs(1, 2),
	ValidArgs: apacheta.QueryNames(),
	RunE:      runQuery,
}

// CountsCmd prints record counts per kind
var CountsCmd = &cobra.Command{
	Use:   "counts",
	Short: sym.DB + " Record counts per kind",
	Args:  cobra.NoArgs,
	RunE:  runCounts,
}

func queryUsage() string {
	var b strings.Builder
	for _, name := range apacheta.QueryNames() {
		if param := apacheta.QueryParams[name]; param != "" {
			fmt.Fprintf(&b, "  %-20s <%s>\n", name, param)
		}
	}
	return b.String()
}

func runQuery(cmd *cobra.Command, args []string) error {
	name := args[0]
	param, known := apacheta.QueryParams[name]
	if !known {
		err := errors.Newf("unknown query %q", name)
		return errors.WithHint(err, "known queries: "+strings.Join(apacheta.QueryNames(), ", "))
	}
	var arg string
	switch {
	case param != "" && len(args) < 2:
		return errors.Newf("query %s needs <%s>", name, param)
	case param == "" && len(args) == 2:
		return errors.Newf("query %s takes no argument", name)
	case len(args) == 2:
		arg = args[1]
	}

	return withStore(func(_ *am.Config, store apacheta.TensorStore) error {
		v, err := apacheta.RunQuery(store, name, arg)
		if err != nil {
			return err
		}
		return display.OutputJSON(cmd, v)
	})
}

func runCounts(cmd *cobra.Command, args []string) error {
	return withStore(func(_ *am.Config, store apacheta.TensorStore) error {
		counts, err := store.CountRecords()
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, counts)
		}
		kinds := make([]string, 0, len(counts))
		for k := range counts {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		rows := pterm.TableData{{"Kind", "Count"}}
		for _, k := range kinds {
			rows = append(rows, []string{k, fmt.Sprint(counts[k])})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	})
}
