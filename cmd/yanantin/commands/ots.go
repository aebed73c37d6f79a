package commands

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/yanantin/am"
	"github.com/teranos/yanantin/chasqui/pulse"
	"github.com/teranos/yanantin/errors"
	"github.com/teranos/yanantin/internal/httpclient"
	"github.com/teranos/yanantin/logger"
	"github.com/teranos/yanantin/ots"
	"github.com/teranos/yanantin/sym"
)

// OtsCmd groups the timestamp proof commands
var OtsCmd = &cobra.Command{
	Use:   "ots",
	Short: sym.Anchor + " " + sym.Describe("ots"),
	Long: sym.Anchor + ` ots - OpenTimestamps proofs for commits

A commit is anchored by submitting the SHA-256 of its hex id to the public
calendars. The pending proof is written to ots.dir and upgraded to a
blockchain attestation once the calendars have committed it.

Examples:
  yanantin ots stamp               # Stamp HEAD of pulse.repo_path
  yanantin ots stamp 3f2a...       # Stamp a specific commit
  yanantin ots verify              # Status of every proof in ots.dir
  yanantin ots upgrade             # Upgrade pending proofs`,
}

var otsStampCmd = &cobra.Command{
	Use:   "stamp [commit|HEAD]",
	Short: "Stamp a commit (default HEAD)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runOtsStamp,
}

var otsVerifyCmd = &cobra.Command{
	Use:   "verify [proof.ots...]",
	Short: "Classify proofs as confirmed, pending or error",
	RunE:  runOtsVerify,
}

var otsUpgradeCmd = &cobra.Command{
	Use:   "upgrade [dir]",
	Short: "Upgrade pending proofs older than ots.min_age_minutes",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runOtsUpgrade,
}

func init() {
	OtsCmd.AddCommand(otsStampCmd)
	OtsCmd.AddCommand(otsVerifyCmd)
	OtsCmd.AddCommand(otsUpgradeCmd)
}

func newProofStore(cfg *am.Config) *ots.ProofStore {
	return ots.NewProofStore(ots.Config{
		Dir:               cfg.OTS.Dir,
		Calendars:         cfg.OTS.Calendars,
		Client:            httpclient.NewSaferClient(cfg.OTSTimeout()),
		MinAge:            cfg.OTSMinAge(),
		RequestsPerMinute: cfg.OTS.RequestsPerMinute,
	}, logger.Logger)
}

func runOtsStamp(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	commit := "HEAD"
	if len(args) == 1 {
		commit = args[0]
	}
	if strings.EqualFold(commit, "HEAD") {
		if commit, err = pulse.HeadCommit(cfg.Pulse.RepoPath); err != nil {
			return errors.Wrap(err, "resolve HEAD")
		}
	}

	ctx, stop := signalContext()
	defer stop()
	path, err := newProofStore(cfg).StampCommit(ctx, commit)
	if err != nil {
		return err
	}
	if wantJSON(cmd) {
		return printJSON(cmd, map[string]string{"commit": commit, "proof": path})
	}
	pterm.Success.Printfln("%s %s stamped: %s", sym.Anchor, commit, path)
	return nil
}

type proofStatus struct {
	Proof        string   `json:"proof"`
	Status       string   `json:"status"`
	Attestations []string `json:"attestations,omitempty"`
	Error        string   `json:"error,omitempty"`
}

func runOtsVerify(cmd *cobra.Command, args []string) error {
	paths := args
	if len(paths) == 0 {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		paths, err = filepath.Glob(filepath.Join(cfg.OTS.Dir, "*"+ots.ProofExtension))
		if err != nil {
			return errors.Wrapf(err, "list proofs in %s", cfg.OTS.Dir)
		}
	}

	statuses := make([]proofStatus, 0, len(paths))
	for _, p := range paths {
		v := ots.VerifyProof(p)
		st := proofStatus{Proof: p, Status: string(v.Status)}
		for _, a := range v.Attestations {
			st.Attestations = append(st.Attestations, a.String())
		}
		if v.Err != nil {
			st.Error = v.Err.Error()
		}
		statuses = append(statuses, st)
	}
	if wantJSON(cmd) {
		return printJSON(cmd, statuses)
	}
	if len(statuses) == 0 {
		pterm.Info.Println("no proofs found")
		return nil
	}
	rows := pterm.TableData{{"Proof", "Status", "Detail"}}
	for _, st := range statuses {
		detail := st.Error
		if detail == "" {
			detail = strings.Join(st.Attestations, "; ")
		}
		rows = append(rows, []string{filepath.Base(st.Proof), st.Status, detail})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

func runOtsUpgrade(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir := cfg.OTS.Dir
	if len(args) == 1 {
		dir = args[0]
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		pterm.Info.Printfln("%s does not exist; nothing to upgrade", dir)
		return nil
	}

	ctx, stop := signalContext()
	defer stop()
	upgraded, err := newProofStore(cfg).UpgradePendingProofs(ctx, dir)
	if err != nil {
		return err
	}
	if wantJSON(cmd) {
		return printJSON(cmd, upgraded)
	}
	pterm.Success.Printfln("%s %d proofs upgraded", sym.Anchor, len(upgraded))
	for _, name := range upgraded {
		pterm.Println("  " + name)
	}
	return nil
}
