// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config resolves a FormatConfig from layered sources: built-in
// defaults, then a bibformat.yaml config file, then BIBFORMAT_* environment
// variables, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/bibformat/internal/clipboard"
	"github.com/pdiddy/bibformat/internal/extract"
	"github.com/pdiddy/bibformat/pkg/types"
)

const (
	appName   = "bibformat"
	envPrefix = "BIBFORMAT"
)

// Config keys.
const (
	KeyBibliography   = "extraction.bibliography"
	KeySuppressFields = "extraction.suppress_fields"
	KeyBibtool        = "extraction.bibtool"
	KeyStyle          = "render.style"
	KeyFormat         = "render.format"
	KeyPandoc         = "render.pandoc"
	KeyPandocArgs     = "render.pandoc_args"
	KeyClipboard      = "clipboard.enabled"
	KeySelection      = "clipboard.selection"
	KeyLoops          = "clipboard.loops"
	KeyOutputFile     = "output.file"
	KeyQuiet          = "output.quiet"
	KeyVerbose        = "output.verbose"
	KeyHistory        = "output.history"
	KeyHistoryDB      = "output.history_db"
	KeyLogLevel       = "log.level"
	KeyLogFormat      = "log.format"
)

// FlagKeys maps command-line flag names to the config keys they override.
var FlagKeys = map[string]string{
	"bib":            KeyBibliography,
	"suppress-field": KeySuppressFields,
	"style":          KeyStyle,
	"format":         KeyFormat,
	"clipboard":      KeyClipboard,
	"selection":      KeySelection,
	"loops":          KeyLoops,
	"output":         KeyOutputFile,
	"quiet":          KeyQuiet,
	"verbose":        KeyVerbose,
	"history":        KeyHistory,
	"history-db":     KeyHistoryDB,
	"log-level":      KeyLogLevel,
	"log-format":     KeyLogFormat,
}

// New returns a viper instance with defaults and environment binding set.
// cfgFile selects an explicit config file; when empty, bibformat.yaml is
// looked up in the working directory and ~/.config/bibformat.
func New(cfgFile string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(appName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", appName))
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults installs the built-in defaults.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyBibliography, "demo.bib")
	v.SetDefault(KeySuppressFields, extract.DefaultSuppressFields)
	v.SetDefault(KeyBibtool, "bibtool")
	v.SetDefault(KeyStyle, "harvard1.csl")
	v.SetDefault(KeyFormat, string(types.FormatHTML))
	v.SetDefault(KeyPandoc, "pandoc")
	v.SetDefault(KeyPandocArgs, []string{})
	v.SetDefault(KeyClipboard, false)
	v.SetDefault(KeySelection, clipboard.SelectionClipboard)
	v.SetDefault(KeyLoops, 1)
	v.SetDefault(KeyOutputFile, "")
	v.SetDefault(KeyQuiet, false)
	v.SetDefault(KeyVerbose, false)
	v.SetDefault(KeyHistory, false)
	v.SetDefault(KeyHistoryDB, DefaultHistoryDB())
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyLogFormat, "text")
}

// DefaultHistoryDB returns ~/.local/share/bibformat/history.db, or a file
// in the working directory when the home directory is unknown.
func DefaultHistoryDB() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return appName + "-history.db"
	}
	return filepath.Join(home, ".local", "share", appName, "history.db")
}

// ReadFile loads the config file if one exists. A missing file is not an
// error; the used path is returned, or "" when none was found.
func ReadFile(v *viper.Viper) (string, error) {
	err := v.ReadInConfig()
	if err == nil {
		return v.ConfigFileUsed(), nil
	}
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return "", nil
	}
	return "", fmt.Errorf("reading config file: %w", err)
}

// BindFlags makes every known flag in fs override its config key when set.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range FlagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag --%s: %w", name, err)
		}
	}
	return nil
}

// Load resolves and validates the configuration held by v.
func Load(v *viper.Viper) (types.FormatConfig, error) {
	var cfg types.FormatConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}

	format, err := types.ParseOutputFormat(string(cfg.Render.Format))
	if err != nil {
		return cfg, err
	}
	cfg.Render.Format = format

	if cfg.Clipboard.Loops < 0 {
		return cfg, fmt.Errorf("clipboard loops must be zero (unbounded) or positive, got %d", cfg.Clipboard.Loops)
	}
	switch strings.ToLower(cfg.Clipboard.Selection) {
	case clipboard.SelectionClipboard, clipboard.SelectionPrimary:
		cfg.Clipboard.Selection = strings.ToLower(cfg.Clipboard.Selection)
	default:
		return cfg, fmt.Errorf("unsupported selection %q: use clipboard or primary", cfg.Clipboard.Selection)
	}

	cfg.Extraction.Bibliography = expandHome(cfg.Extraction.Bibliography)
	cfg.Render.Style = expandHome(cfg.Render.Style)
	cfg.Output.File = expandHome(cfg.Output.File)
	cfg.Output.HistoryDB = expandHome(cfg.Output.HistoryDB)
	return cfg, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
