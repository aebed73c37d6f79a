package commands

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/yanantin/am"
	"github.com/teranos/yanantin/apacheta"
	"github.com/teranos/yanantin/apacheta/gateway"
	"github.com/teranos/yanantin/errors"
	"github.com/teranos/yanantin/logger"
	"github.com/teranos/yanantin/sym"
)

// ServerCmd serves the configured store over HTTP
var ServerCmd = &cobra.Command{
	Use:     "server",
	Aliases: []string{"serve"},
	Short:   sym.Gateway + " " + sym.Describe("server"),
	Long: sym.Gateway + ` server - the apacheta gateway

Serves the configured store at /api/v1 for remote clients, with /health and
Prometheus /metrics. The store must not itself be the remote backend.
Changes to server.api_key in the active am.toml apply without a restart.`,
	Args: cobra.NoArgs,
	RunE: runServer,
}

var serverPort int

func init() {
	ServerCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "Listen port (default: server.port)")
}

func runServer(cmd *cobra.Command, args []string) error {
	return withStore(func(cfg *am.Config, store apacheta.TensorStore) error {
		if cfg.Store.Backend == am.BackendRemote {
			err := errors.New("the gateway cannot serve a remote store")
			return errors.WithHint(err, "set store.backend to sqlite, badger or memory")
		}
		if serverPort != 0 {
			cfg.Server.Port = serverPort
		}

		gw, err := gateway.New(store, logger.Logger, gateway.WithAPIKey(cfg.Server.APIKey))
		if err != nil {
			return err
		}
		stopWatch := watchAPIKey(gw)
		defer stopWatch()

		verbosity, _ := cmd.Flags().GetCount("verbose")
		printStartupBanner(verbosity, cfg)

		ctx, stop := signalContext()
		defer stop()
		if err := gw.ListenAndServe(ctx, cfg.ServerAddr()); err != nil {
			return err
		}
		pterm.Success.Println("Server stopped cleanly")
		return nil
	})
}

// watchAPIKey reloads server.api_key when the active config file changes.
// Without a config file there is nothing to watch.
func watchAPIKey(gw *gateway.Server) func() {
	path := am.ActiveFile()
	if path == "" {
		return func() {}
	}
	w, err := am.NewConfigWatcher(path, logger.Logger)
	if err != nil {
		logger.Warnw("config watcher unavailable", logger.FieldFile, path, logger.FieldError, err)
		return func() {}
	}
	w.OnReload(func(cfg *am.Config) error {
		gw.SetAPIKey(cfg.Server.APIKey)
		logger.Infow("gateway API key reloaded", logger.FieldSymbol, sym.Gateway)
		return nil
	})
	am.SetGlobalWatcher(w)
	w.Start()
	return func() {
		am.SetGlobalWatcher(nil)
		if err := w.Stop(); err != nil && !os.IsNotExist(err) {
			logger.Debugw("config watcher stop", logger.FieldError, err)
		}
	}
}
