package commands

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/yanantin/am"
	"github.com/teranos/yanantin/logger"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Show or initialise yanantin configuration",
	Long: `am - yanantin configuration ("I am")

Configuration sources (in order of precedence):
1. Environment variables (YANANTIN_* prefix)
2. Project config (am.toml in the working directory or a parent)
3. User config (~/.yanantin/am.toml)
4. System config (/etc/yanantin/am.toml)
5. Default values

Examples:
  yanantin am show                 # Effective configuration as TOML
  yanantin am show --format yaml   # ... as YAML
  yanantin am show --sources       # Where each setting came from
  yanantin am init                 # Write a starter am.toml here`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runAmShow,
}

var amInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a starter am.toml holding the defaults",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAmInit,
}

var (
	configFormat string
	showSources  bool
	initForce    bool
)

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")
	amShowCmd.Flags().BoolVar(&showSources, "sources", false, "Show the source of every setting")
	amInitCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing file (keeps rotated backups)")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amInitCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	if showSources {
		return showConfigSources(cmd)
	}

	cfg, err := am.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	out := cmd.OutOrStdout()
	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
		fmt.Fprintln(out, string(data))
	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config to YAML: %w", err)
		}
		fmt.Fprintf(out, "# yanantin configuration\n%s", data)
	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config to TOML: %w", err)
		}
		fmt.Fprintf(out, "# yanantin configuration\n%s", data)
	default:
		return fmt.Errorf("unsupported format: %s (supported: toml, json, yaml)", configFormat)
	}
	return nil
}

func showConfigSources(cmd *cobra.Command) error {
	in, err := am.GetConfigIntrospection()
	if err != nil {
		return err
	}
	if wantJSON(cmd) {
		return printJSON(cmd, in)
	}

	if in.ConfigFile != "" {
		pterm.Info.Printfln("Active config: %s", in.ConfigFile)
	} else {
		pterm.Info.Println("No config file found; defaults and environment only")
	}
	rows := pterm.TableData{{"Key", "Value", "Source", "From"}}
	for _, s := range in.Settings {
		rows = append(rows, []string{s.Key, fmt.Sprint(s.Value), string(s.Source), s.SourcePath})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

func runAmInit(cmd *cobra.Command, args []string) error {
	path := am.ConfigFileName
	if len(args) == 1 {
		path = args[0]
		if filepath.Ext(path) == "" {
			path = filepath.Join(path, am.ConfigFileName)
		}
	}
	if err := am.WriteStarter(path, initForce, logger.Logger); err != nil {
		return err
	}
	pterm.Success.Printfln("Wrote %s", path)
	return nil
}
