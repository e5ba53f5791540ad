// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package split breaks a rendered bibliography into one fragment per record.
//
// HTML output is parsed structurally: a record is the outermost element that
// citeproc wraps around one entry (class "csl-entry", or an id of the form
// "ref-<key>" from older pandoc-citeproc), so emphasis or links inside a
// citation never split it. Plain text is kept as one block.
package split

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"

	"github.com/pdiddy/bibformat/pkg/types"
)

// Separator joins fragments into a payload.
const Separator = "\n"

const (
	entryClass  = "csl-entry"
	refIDPrefix = "ref-"
)

// Split returns the per-record fragments of doc in emission order. An empty
// document yields no fragments.
func Split(doc types.RenderedDocument) []types.CitationFragment {
	if doc.IsEmpty() {
		return nil
	}
	if doc.Format == types.FormatHTML {
		return splitHTML(doc.Text)
	}
	return single(trimBlock(doc.Text))
}

// Join concatenates fragment contents with Separator.
func Join(fragments []types.CitationFragment) string {
	parts := make([]string, len(fragments))
	for i, f := range fragments {
		parts[i] = f.Content
	}
	return strings.Join(parts, Separator)
}

func splitHTML(text string) []types.CitationFragment {
	root, err := html.Parse(strings.NewReader(text))
	if err != nil {
		return single(trimBlock(text))
	}

	var blocks []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && isEntry(n) {
			blocks = append(blocks, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	// Markup with no recognizable entries is delivered whole.
	if len(blocks) == 0 {
		return single(trimBlock(text))
	}

	fragments := make([]types.CitationFragment, 0, len(blocks))
	for _, b := range blocks {
		var buf bytes.Buffer
		if err := html.Render(&buf, b); err != nil {
			continue
		}
		fragments = append(fragments, types.CitationFragment{
			Index:   len(fragments),
			Content: buf.String(),
		})
	}
	return fragments
}

// isEntry reports whether n wraps exactly one bibliography entry.
func isEntry(n *html.Node) bool {
	for _, a := range n.Attr {
		switch a.Key {
		case "class":
			for _, c := range strings.Fields(a.Val) {
				if c == entryClass {
					return true
				}
			}
		case "id":
			if strings.HasPrefix(a.Val, refIDPrefix) && len(a.Val) > len(refIDPrefix) {
				return true
			}
		}
	}
	return false
}

func single(content string) []types.CitationFragment {
	if content == "" {
		return nil
	}
	return []types.CitationFragment{{Index: 0, Content: content}}
}

// trimBlock drops blank lines and trailing whitespace around a block while
// keeping the renderer's own line layout and indentation.
func trimBlock(s string) string {
	s = strings.TrimRight(s, " \t\r\n")
	for {
		i := strings.IndexByte(s, '\n')
		if i < 0 || strings.TrimSpace(s[:i]) != "" {
			return s
		}
		s = s[i+1:]
	}
}
