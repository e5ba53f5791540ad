// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidKey is returned for citation keys that cannot name a BibTeX record.
var ErrInvalidKey = errors.New("invalid citation key")

// CitationKey identifies a single record in a bibliography source. Keys are
// matched exactly, including case.
type CitationKey string

// keyForbidden lists characters that never appear in a BibTeX key and would
// break the selection expression passed to bibtool.
const keyForbidden = " \t\r\n\"{}(),#%'=\\[]^|"

// Validate reports whether k is usable as a selection key.
func (k CitationKey) Validate() error {
	if k == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if strings.ContainsAny(string(k), keyForbidden) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, string(k))
	}
	return nil
}

// ParseKeys converts raw strings to citation keys, trimming surrounding
// whitespace and rejecting invalid ones. Order and duplicates are kept.
func ParseKeys(raw []string) ([]CitationKey, error) {
	keys := make([]CitationKey, 0, len(raw))
	for _, r := range raw {
		k := CitationKey(strings.TrimSpace(r))
		if err := k.Validate(); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// OutputFormat selects how citations are rendered and published.
type OutputFormat string

const (
	FormatPlain OutputFormat = "plain"
	FormatHTML  OutputFormat = "html"
)

// Transfer-format identifiers offered to clipboard consumers.
const (
	MIMEPlain = "text/plain;charset=utf-8"
	MIMEHTML  = "text/html"
)

// ParseOutputFormat accepts the user-facing spellings of a format.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "plain", "text", "plain-text", "txt":
		return FormatPlain, nil
	case "html", "markup":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unsupported format %q: use plain or html", s)
	}
}

// Valid reports whether f is a known format.
func (f OutputFormat) Valid() bool {
	return f == FormatPlain || f == FormatHTML
}

// MIMEType returns the clipboard transfer-format identifier for f.
func (f OutputFormat) MIMEType() string {
	if f == FormatHTML {
		return MIMEHTML
	}
	return MIMEPlain
}

// PandocWriter returns the pandoc output format name for f.
func (f OutputFormat) PandocWriter() string {
	if f == FormatHTML {
		return "html"
	}
	return "plain"
}

// ExtractionRequest asks for the records matching Keys to be copied out of
// Source with SuppressFields removed.
type ExtractionRequest struct {
	Source         string
	Keys           []CitationKey
	SuppressFields []string
}

// SubCollection is the filtered scratch bibliography produced by extraction.
type SubCollection struct {
	// Path is the scratch .bib file.
	Path string

	// Records is the number of entries that survived selection.
	Records int
}

// RenderedDocument is the formatter output for one run.
type RenderedDocument struct {
	Text   string
	Format OutputFormat
}

// IsEmpty reports whether the document holds no visible text.
func (d RenderedDocument) IsEmpty() bool {
	return strings.TrimSpace(d.Text) == ""
}

// CitationFragment is the rendered citation for exactly one record. Index
// follows renderer emission order, which need not match request order.
type CitationFragment struct {
	Index   int    `json:"index" yaml:"index"`
	Content string `json:"content" yaml:"content"`
}
