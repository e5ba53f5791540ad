package types

// ExtractionConfig holds settings for the record selection stage.
type ExtractionConfig struct {
	// Bibliography is the source .bib file records are selected from.
	Bibliography string `json:"bibliography" yaml:"bibliography" mapstructure:"bibliography"`

	// SuppressFields lists fields deleted from every selected record
	// (default abstract, mynote, url).
	SuppressFields []string `json:"suppress_fields" yaml:"suppress_fields" mapstructure:"suppress_fields"`

	// Bibtool is the selection binary (default "bibtool").
	Bibtool string `json:"bibtool" yaml:"bibtool" mapstructure:"bibtool"`
}

// RenderConfig holds settings for the citation rendering stage.
type RenderConfig struct {
	// Style is the CSL style file.
	Style string `json:"style" yaml:"style" mapstructure:"style"`

	// Format selects plain text or HTML output.
	Format OutputFormat `json:"format" yaml:"format" mapstructure:"format"`

	// Pandoc is the rendering binary (default "pandoc").
	Pandoc string `json:"pandoc" yaml:"pandoc" mapstructure:"pandoc"`

	// PandocArgs are appended to every pandoc invocation.
	PandocArgs []string `json:"pandoc_args,omitempty" yaml:"pandoc_args,omitempty" mapstructure:"pandoc_args"`
}

// ClipboardConfig holds settings for the clipboard responder.
type ClipboardConfig struct {
	// Enabled publishes the payload to the clipboard.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Selection is the X selection to own: "clipboard" or "primary".
	Selection string `json:"selection" yaml:"selection" mapstructure:"selection"`

	// Loops is the number of paste requests served before the responder
	// exits. Zero means unbounded (default 1).
	Loops int `json:"loops" yaml:"loops" mapstructure:"loops"`
}

// OutputConfig holds settings for console, file, and history delivery.
type OutputConfig struct {
	// File, when set, is overwritten with the payload.
	File string `json:"file,omitempty" yaml:"file,omitempty" mapstructure:"file"`

	// Quiet suppresses echoing the payload to standard output.
	Quiet bool `json:"quiet" yaml:"quiet" mapstructure:"quiet"`

	// Verbose lists every target's outcome on standard error, not only
	// when one failed.
	Verbose bool `json:"verbose" yaml:"verbose" mapstructure:"verbose"`

	// History records each run in the history database.
	History bool `json:"history" yaml:"history" mapstructure:"history"`

	// HistoryDB is the SQLite history database path.
	HistoryDB string `json:"history_db" yaml:"history_db" mapstructure:"history_db"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// FormatConfig groups all settings for a formatting run.
type FormatConfig struct {
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction" mapstructure:"extraction"`
	Render     RenderConfig     `json:"render" yaml:"render" mapstructure:"render"`
	Clipboard  ClipboardConfig  `json:"clipboard" yaml:"clipboard" mapstructure:"clipboard"`
	Output     OutputConfig     `json:"output" yaml:"output" mapstructure:"output"`
	Log        LogConfig        `json:"log" yaml:"log" mapstructure:"log"`
}

// Targets returns the sinks requested by the configuration in delivery
// order: console, file, clipboard, history. Console is listed even when
// quiet so the empty-result notice still has a destination.
func (c FormatConfig) Targets() []OutputTarget {
	targets := []OutputTarget{ConsoleTarget()}
	if c.Output.File != "" {
		targets = append(targets, FileTarget(c.Output.File))
	}
	if c.Clipboard.Enabled {
		targets = append(targets, ClipboardTarget())
	}
	if c.Output.History {
		targets = append(targets, HistoryTarget())
	}
	return targets
}
