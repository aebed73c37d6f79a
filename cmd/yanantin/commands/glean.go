package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/yanantin/am"
	"github.com/teranos/yanantin/chasqui/gleaner"
	"github.com/teranos/yanantin/logger"
	"github.com/teranos/yanantin/sym"
)

// GleanCmd extracts claims from scout reports
var GleanCmd = &cobra.Command{
	Use:   "glean [dir]",
	Short: sym.Glean + " " + sym.Describe("glean"),
	Long: sym.Glean + ` glean - extract claims from scout and scour reports

Reports matching --pattern below dir (default: cairn.dir) are read newest
first. With --verify N, only the N claims best suited for verification are
printed, spread across source models, as the verification handoff.

Examples:
  yanantin glean                      # Every claim in the cairn
  yanantin glean --limit 5            # Newest five reports only
  yanantin glean --verify 3 --json    # Handoff for a verify run`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGlean,
}

var (
	gleanPattern string
	gleanLimit   int
	gleanVerify  int
)

func init() {
	GleanCmd.Flags().StringVar(&gleanPattern, "pattern", "", "Report glob relative to dir (default: cairn.reports_glob)")
	GleanCmd.Flags().IntVar(&gleanLimit, "limit", -1, "Newest N reports, 0 for all (default: cairn.report_limit)")
	GleanCmd.Flags().IntVar(&gleanVerify, "verify", 0, "Select N claims for verification")
}

func runGlean(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return err
	}
	root := cfg.Cairn.Dir
	if len(args) == 1 {
		root = args[0]
	}
	pattern := gleanPattern
	if pattern == "" {
		pattern = cfg.Cairn.ReportsGlob
	}
	limit := gleanLimit
	if limit < 0 {
		limit = cfg.Cairn.ReportLimit
	}

	claims, err := gleaner.NewCairn(root, pattern, limit, logger.Logger).Glean()
	if err != nil {
		return err
	}

	if gleanVerify > 0 {
		handoff := gleaner.ToVerifiableClaims(gleaner.ClaimsForVerification(claims, gleanVerify))
		if wantJSON(cmd) {
			return printJSON(cmd, handoff)
		}
		rows := pterm.TableData{{"File", "Model", "Claim"}}
		for _, c := range handoff {
			rows = append(rows, []string{c.FilePath, c.SourceModel, c.Text})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	}

	if wantJSON(cmd) {
		return printJSON(cmd, claims)
	}
	rows := pterm.TableData{{"Type", "Confidence", "Model", "Claim"}}
	for _, c := range claims {
		rows = append(rows, []string{string(c.Type), fmt.Sprintf("%.2f", c.Confidence), c.SourceModel, c.Text})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
		return err
	}
	pterm.Info.Printfln("%s %d claims", sym.Glean, len(claims))
	return nil
}
