// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/bibformat/internal/command"
	"github.com/pdiddy/bibformat/internal/command/commandtest"
	"github.com/pdiddy/bibformat/pkg/types"
)

func writeStyle(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "harvard1.csl")
	require.NoError(t, os.WriteFile(path, []byte("<style/>"), 0o644))
	return path
}

func TestRender(t *testing.T) {
	tests := []struct {
		name       string
		format     types.OutputFormat
		wantWriter string
	}{
		{name: "html", format: types.FormatHTML, wantWriter: "html"},
		{name: "plain", format: types.FormatPlain, wantWriter: "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			style := writeStyle(t)
			fake := &commandtest.Fake{RunFunc: func(c command.Cmd, _ string) error {
				_, _ = io.WriteString(c.Stdout, "rendered")
				_, _ = io.WriteString(c.Stderr, "[WARNING] something")
				return nil
			}}

			sub := types.SubCollection{Path: "/scratch/records.bib", Records: 2}
			doc, err := New(fake, "").Render(context.Background(), sub, style, tt.format)
			require.NoError(t, err)

			assert.Equal(t, "rendered", doc.Text, "stderr must not leak into the document")
			assert.Equal(t, tt.format, doc.Format)

			calls := fake.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, "pandoc", calls[0].Name)
			assert.Equal(t, NociteAll, calls[0].Stdin)
			assert.Equal(t, []string{
				"--citeproc",
				"--from", "markdown",
				"--to", tt.wantWriter,
				"--csl", style,
				"--bibliography", "/scratch/records.bib",
			}, calls[0].Args)
		})
	}
}

func TestRenderExtraArgs(t *testing.T) {
	fake := &commandtest.Fake{}
	r := New(fake, "/opt/pandoc", "--wrap=none")
	_, err := r.Render(context.Background(), types.SubCollection{Path: "x.bib", Records: 1}, writeStyle(t), types.FormatHTML)
	require.NoError(t, err)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/opt/pandoc", calls[0].Name)
	assert.Equal(t, "--wrap=none", calls[0].Args[len(calls[0].Args)-1])
}

func TestRenderEmptySubCollection(t *testing.T) {
	fake := &commandtest.Fake{}
	doc, err := New(fake, "").Render(context.Background(), types.SubCollection{Path: "x.bib"}, writeStyle(t), types.FormatHTML)
	require.NoError(t, err)
	assert.True(t, doc.IsEmpty())
	assert.Empty(t, fake.Calls())
}

func TestRenderEmptySubCollectionStillChecksStyle(t *testing.T) {
	fake := &commandtest.Fake{}
	missing := filepath.Join(t.TempDir(), "none.csl")
	_, err := New(fake, "").Render(context.Background(), types.SubCollection{Path: "x.bib"}, missing, types.FormatHTML)
	require.ErrorIs(t, err, ErrRender)
	assert.Empty(t, fake.Calls())
}

func TestRenderFailures(t *testing.T) {
	sub := types.SubCollection{Path: "x.bib", Records: 1}

	tests := []struct {
		name   string
		style  func(t *testing.T) string
		format types.OutputFormat
		run    func(command.Cmd, string) error
	}{
		{
			name:   "missing style",
			style:  func(t *testing.T) string { return filepath.Join(t.TempDir(), "none.csl") },
			format: types.FormatHTML,
		},
		{
			name:   "empty style",
			style:  func(*testing.T) string { return "" },
			format: types.FormatHTML,
		},
		{
			name:   "unknown format",
			style:  writeStyle,
			format: types.OutputFormat("docx"),
		},
		{
			name:   "pandoc exits non-zero",
			style:  writeStyle,
			format: types.FormatPlain,
			run: func(command.Cmd, string) error {
				return &command.ExitError{Cmd: "pandoc", Code: 83, Stderr: "citeproc: style not found"}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &commandtest.Fake{RunFunc: tt.run}
			doc, err := New(fake, "").Render(context.Background(), sub, tt.style(t), tt.format)
			require.ErrorIs(t, err, ErrRender)
			assert.True(t, doc.IsEmpty())
		})
	}
}
