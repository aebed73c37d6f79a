package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/yanantin/chasqui/capture"
	"github.com/teranos/yanantin/logger"
	"github.com/teranos/yanantin/sym"
)

// CaptureCmd writes a compaction record for a session log
var CaptureCmd = &cobra.Command{
	Use:   "capture <session.jsonl>",
	Short: sym.Capture + " " + sym.Describe("capture"),
	Long: sym.Capture + ` capture - record what a session did before its context is compacted

The session log is summarised (tools used, files written and read, commits,
the user's directions) and written to cairn.compaction_dir as the next free
tensor number. Large logs are read through a head budget and a tail window.

A missing log is not an error: the hook that runs this may fire before any
session has been written.`,
	Args: cobra.ExactArgs(1),
	RunE: runCapture,
}

func runCapture(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reader := capture.Reader{
		HeadBudget: cfg.Capture.HeadBudgetBytes,
		TailWindow: cfg.Capture.TailWindowBytes,
	}
	c := capture.NewCapturer(cfg.Cairn.Dir, cfg.Cairn.CompactionDir, reader, logger.Logger)

	res, err := c.Capture(args[0])
	if err != nil {
		if capture.IsMissingLog(err) {
			logger.Debugw("no session log to capture", logger.FieldFile, args[0])
			return nil
		}
		return err
	}
	if wantJSON(cmd) {
		return printJSON(cmd, res)
	}
	pterm.Success.Printfln("%s %s written to %s", sym.Capture, res.Name, res.Path)
	return nil
}
