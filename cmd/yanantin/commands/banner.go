package commands

import (
	"fmt"

	"github.com/pterm/pterm"

	"github.com/teranos/yanantin/am"
	"github.com/teranos/yanantin/logger"
	"github.com/teranos/yanantin/sym"
	"github.com/teranos/yanantin/version"
)

// printStartupBanner prints the gateway startup summary
func printStartupBanner(verbosity int, cfg *am.Config) {
	info := version.Get()

	pterm.DefaultHeader.WithFullWidth().Println("yanantin " + sym.Gateway + " apacheta gateway")

	auth := "none"
	if cfg.Server.APIKey != "" {
		auth = "X-API-Key required"
	}
	rows := [][]string{
		{"Version", fmt.Sprintf("%s (commit %s)", info.Version, info.Short())},
		{"Built", info.BuildTime},
		{"Verbosity", logger.LevelName(verbosity)},
		{"Store", fmt.Sprintf("%s %s", cfg.Store.Backend, cfg.Store.Path)},
		{"Listen", cfg.ServerAddr()},
		{"Auth", auth},
	}
	if file := am.ActiveFile(); file != "" {
		rows = append(rows, []string{"Config", file})
	}
	var body string
	for _, r := range rows {
		body += fmt.Sprintf("%-10s %s\n", r[0]+":", r[1])
	}
	pterm.DefaultBox.WithTitle("Info").Println(body)
	pterm.Info.Println("Press Ctrl+C to stop")
}
