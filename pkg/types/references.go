// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ReferenceEntry records a cited paper in a paper project's references.yaml.
type ReferenceEntry struct {
	// CitationKey is the BibTeX key (e.g. "Vaswani2017").
	CitationKey string `json:"citation_key" yaml:"citation_key"`

	// Title is the cited paper's title.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Year is the publication year.
	Year int `json:"year,omitempty" yaml:"year,omitempty"`
}

// ReferencesFile holds all cited papers from references.yaml.
type ReferencesFile struct {
	Papers []ReferenceEntry `json:"papers" yaml:"papers"`
}

// KeyList is a plain YAML list of citation keys.
type KeyList struct {
	Keys []string `json:"keys" yaml:"keys"`
}
