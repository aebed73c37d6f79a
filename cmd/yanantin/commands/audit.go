package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/yanantin/logger"
	"github.com/teranos/yanantin/succession"
	"github.com/teranos/yanantin/sym"
)

// AuditCmd compares the blueprint against the repository
var AuditCmd = &cobra.Command{
	Use:   "audit",
	Short: sym.Audit + " " + sym.Describe("audit"),
	Long: sym.Audit + ` audit - does the blueprint still describe the repository?

The blueprint's claimed test counts per category, source files per layer and
tensor and scout report counts are compared with what is on disk. Each
disagreement is printed on its own line. Disagreements are findings, not
failures: the command exits 0 either way.`,
	Args: cobra.NoArgs,
	RunE: runAudit,
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	report, err := succession.NewAuditor(auditConfig(cfg), logger.Logger).Run()
	if err != nil {
		return err
	}
	if wantJSON(cmd) {
		return printJSON(cmd, report)
	}
	if len(report.Discrepancies) == 0 {
		pterm.Success.Printfln("%s blueprint matches the repository (%d tests, %d tensors)",
			sym.Audit, report.Survey.TotalTests(), report.Survey.Tensors)
		return nil
	}
	for _, line := range report.Discrepancies {
		pterm.Warning.Println(line)
	}
	pterm.Info.Printfln("%s %d discrepancies", sym.Audit, len(report.Discrepancies))
	return nil
}
