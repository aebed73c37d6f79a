package commands

import (
	"sort"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/yanantin/am"
	"github.com/teranos/yanantin/chasqui/pulse"
	"github.com/teranos/yanantin/errors"
	"github.com/teranos/yanantin/logger"
	"github.com/teranos/yanantin/succession"
	"github.com/teranos/yanantin/sym"
)

// PulseCmd runs one pulse of the work queue
var PulseCmd = &cobra.Command{
	Use:   "pulse",
	Short: sym.Pulse + " " + sym.Describe("pulse"),
	Long: sym.Pulse + ` pulse - the reactive heartbeat

One pulse: take the lock (or exit quietly if another pulse holds it), look for
new commits touching watched paths, enqueue a scout or a heartbeat when due,
then dispatch the head of the queue. Follow-up items derived from the result
are enqueued for later pulses.

Dispatchers are shell command lines configured per item type:

  [pulse.dispatchers]
  scout = "chasqui-scout --json"
  verify = "chasqui-verify --json"

tinkuy_audit items are served in-process by the blueprint audit.

Examples:
  yanantin pulse          # One pulse, then exit (cron-friendly)
  yanantin pulse watch    # Pulse again whenever HEAD moves`,
	Args: cobra.NoArgs,
	RunE: runPulse,
}

var pulseRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one pulse (same as bare pulse)",
	Args:  cobra.NoArgs,
	RunE:  runPulse,
}

var pulseWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Pulse on start and whenever repository refs change",
	Args:  cobra.NoArgs,
	RunE:  runPulseWatch,
}

var pulseDebounce time.Duration

func init() {
	pulseWatchCmd.Flags().DurationVar(&pulseDebounce, "debounce", pulse.DefaultDebounce, "Collapse ref changes within this window")
	PulseCmd.AddCommand(pulseRunCmd)
	PulseCmd.AddCommand(pulseWatchCmd)
}

func auditConfig(cfg *am.Config) succession.Config {
	return succession.Config{
		Root:        cfg.Audit.Root,
		Blueprint:   cfg.Audit.Blueprint,
		TestsDir:    cfg.Audit.TestsDir,
		SourceRoot:  cfg.Audit.SourceRoot,
		TestPattern: cfg.Audit.TestPattern,
		TestGlob:    cfg.Audit.TestGlob,
		SourceGlob:  cfg.Audit.SourceGlob,
		TensorGlob:  cfg.Audit.TensorGlob,
		ScoutGlob:   cfg.Audit.ScoutGlob,
	}
}

// newRunner wires the configured dispatchers and the blueprint auditor.
func newRunner(cfg *am.Config) (*pulse.Runner, error) {
	registry := pulse.NewRegistry()
	types := make([]string, 0, len(cfg.Pulse.Dispatchers))
	for t := range cfg.Pulse.Dispatchers {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		itemType := pulse.ItemType(t)
		if !itemType.Valid() {
			return nil, errors.Newf("pulse.dispatchers: unknown item type %q", t)
		}
		d, err := pulse.NewCommandDispatcher(cfg.Pulse.Dispatchers[t])
		if err != nil {
			return nil, errors.Wrapf(err, "pulse.dispatchers.%s", t)
		}
		registry.Register(itemType, d)
	}

	auditor := succession.NewAuditor(auditConfig(cfg), logger.Logger)
	return pulse.NewRunner(pulse.Config{
		StateFile:         cfg.Pulse.StateFile,
		QueueFile:         cfg.Pulse.QueueFile,
		LockFile:          cfg.Pulse.LockFile,
		RepoPath:          cfg.Pulse.RepoPath,
		WatchedPrefixes:   cfg.Pulse.WatchedPrefixes,
		MinScoutInterval:  cfg.MinScoutInterval(),
		HeartbeatInterval: cfg.HeartbeatInterval(),
	}, registry, auditor, logger.Logger), nil
}

func runPulse(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	runner, err := newRunner(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	out, err := runner.Pulse(ctx)
	if err != nil {
		return err
	}
	if wantJSON(cmd) {
		return printJSON(cmd, out)
	}
	printOutcome(out)
	return nil
}

func printOutcome(out *pulse.Outcome) {
	if out.Skipped {
		pterm.Info.Printfln("%s another pulse is running", sym.Pulse)
		return
	}
	for _, item := range out.Enqueued {
		pterm.Info.Printfln("%s enqueued %s (%s)", sym.Pulse, item.Type, item.Trigger)
	}
	for _, line := range out.Audit {
		pterm.Warning.Printfln("%s %s", sym.Audit, line)
	}
	switch {
	case out.Processed != nil:
		pterm.Success.Printfln("%s processed %s (%s)", sym.Pulse, out.Processed.Type, out.Processed.Trigger)
	case out.Deferred != nil:
		pterm.Info.Printfln("%s no dispatcher for %s; left at the head of the queue", sym.Pulse, out.Deferred.Type)
	}
	if out.DispatchErr != "" {
		pterm.Error.Printfln("%s dispatch failed: %s", sym.Pulse, out.DispatchErr)
	}
	pterm.Printfln("%s queue length %d", sym.Pulse, out.QueueLength)
}

func runPulseWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	runner, err := newRunner(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	pterm.Info.Printfln("%s watching %s (Ctrl+C to stop)", sym.Pulse, cfg.Pulse.RepoPath)
	if err := runner.Watch(ctx, pulseDebounce); err != nil {
		return err
	}
	pterm.Success.Printfln("%s watch stopped", sym.Pulse)
	return nil
}
