// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package keys collects citation keys from the places a user keeps them:
// command-line arguments, a paper project's references.yaml, a YAML key
// list, and the pandoc citations of a Markdown manuscript.
package keys

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/bibformat/pkg/types"
)

// citationPattern matches a pandoc citation key: @Key, or the @{Key} form.
// The key may not start right after a word character, which excludes email
// addresses.
var citationPattern = regexp.MustCompile(`(?:^|[^\w@])@(?:\{([^{}\s]+)\}|([\p{L}\p{N}_][\p{L}\p{N}_:.$&+?<>~/-]*))`)

// Sources names where keys come from. Keys are gathered in field order:
// Args, then References, then KeysFile, then Manuscript.
type Sources struct {
	Args       []string
	References string
	KeysFile   string
	Manuscript string
}

// Collect gathers and validates keys from every configured source. Order is
// kept and duplicates are preserved.
func Collect(src Sources) ([]types.CitationKey, error) {
	raw := append([]string(nil), src.Args...)

	if src.References != "" {
		refs, err := LoadReferences(src.References)
		if err != nil {
			return nil, err
		}
		for _, p := range refs.Papers {
			raw = append(raw, p.CitationKey)
		}
	}
	if src.KeysFile != "" {
		list, err := LoadKeyList(src.KeysFile)
		if err != nil {
			return nil, err
		}
		raw = append(raw, list...)
	}
	if src.Manuscript != "" {
		cited, err := ScanManuscript(src.Manuscript)
		if err != nil {
			return nil, err
		}
		raw = append(raw, cited...)
	}

	return types.ParseKeys(raw)
}

// LoadReferences reads a references.yaml file.
func LoadReferences(path string) (*types.ReferencesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading references: %w", err)
	}
	var refs types.ReferencesFile
	if err := yaml.Unmarshal(data, &refs); err != nil {
		return nil, fmt.Errorf("parsing references: %w", err)
	}
	return &refs, nil
}

// LoadKeyList reads a YAML key list. Both a mapping with a keys field and a
// bare sequence are accepted.
func LoadKeyList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key list: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parsing key list: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	root := node.Content[0]
	if root.Kind == yaml.SequenceNode {
		var list []string
		if err := root.Decode(&list); err != nil {
			return nil, fmt.Errorf("parsing key list: %w", err)
		}
		return list, nil
	}
	var list types.KeyList
	if err := root.Decode(&list); err != nil {
		return nil, fmt.Errorf("parsing key list: %w", err)
	}
	return list.Keys, nil
}

// ScanManuscript returns the citation keys used in a Markdown file, in
// first-use order without repeats.
func ScanManuscript(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manuscript: %w", err)
	}
	return CitedKeys(string(data)), nil
}

// CitedKeys extracts pandoc citation keys from Markdown text in first-use
// order. Trailing punctuation that pandoc does not treat as part of a key is
// dropped.
func CitedKeys(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		key := m[1]
		if key == "" {
			key = strings.TrimRight(m[2], ":.$&+?<>~/-")
		}
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}
