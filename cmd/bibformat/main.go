// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the bibformat CLI.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bibformat/internal/config"
	"github.com/pdiddy/bibformat/internal/logging"
	"github.com/pdiddy/bibformat/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// cfg is the resolved configuration for the running command.
var cfg types.FormatConfig

// rootCmd formats citations; subcommands inspect history and version.
var rootCmd = &cobra.Command{
	Use:   "bibformat [keys...]",
	Short: "Format bibliography records as citations and deliver them",
	Long: `bibformat selects records from a BibTeX bibliography by citation key,
renders them with pandoc and a CSL style, splits the result into one
citation per record, and delivers the citations to standard output, a file,
the clipboard, or the run history.

Keys come from the command line, a references.yaml file, a YAML key list,
or the citations of a Markdown manuscript. Settings are read from built-in
defaults, then bibformat.yaml (./ or ~/.config/bibformat/), then BIBFORMAT_*
environment variables, then flags.`,
	Args:              cobra.ArbitraryArgs,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              runFormat,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./bibformat.yaml or ~/.config/bibformat/bibformat.yaml)")
	pf.String("history-db", config.DefaultHistoryDB(), "run history database")
	pf.String("log-level", "warn", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")

	f := rootCmd.Flags()
	f.String("bib", "demo.bib", "source bibliography")
	f.String("style", "harvard1.csl", "CSL style file")
	f.String("format", "html", "output format: plain or html")
	f.StringP("output", "o", "", "also write citations to this file")
	f.BoolP("clipboard", "c", false, "serve citations on the clipboard")
	f.BoolP("quiet", "q", false, "do not echo citations to standard output")
	f.BoolP("verbose", "v", false, "report every output target, not only after a failure")
	f.Int("loops", 1, "paste requests the clipboard serves before exiting (0 = until replaced)")
	f.String("selection", "clipboard", "clipboard selection: clipboard or primary")
	f.StringSlice("suppress-field", nil, "field to delete from every record (repeatable; default abstract,mynote,url)")
	f.Bool("history", false, "record the run in the history database")
	f.String("references", "", "read keys from a references.yaml file")
	f.String("keys-file", "", "read keys from a YAML key list")
	f.String("manuscript", "", "read keys cited in a Markdown manuscript")
}

// loadConfig layers defaults, config file, environment, and flags into cfg
// and installs the logger.
func loadConfig(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	v := config.New(cfgFile)

	used, err := config.ReadFile(v)
	if err != nil {
		return err
	}
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	cfg, err = config.Load(v)
	if err != nil {
		return err
	}

	logging.Setup(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if used != "" {
		slog.Info("using config file", "path", used)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
