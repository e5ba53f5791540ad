// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package render formats a scratch bibliography with pandoc and a CSL style.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/pdiddy/bibformat/internal/command"
	"github.com/pdiddy/bibformat/pkg/types"
)

// ErrRender is returned when the style cannot be resolved or pandoc fails.
var ErrRender = errors.New("render failed")

const defaultBin = "pandoc"

// NociteAll is the document fed to pandoc: an empty body whose metadata
// asks citeproc to include every record in the bibliography.
const NociteAll = "---\nnocite: '@*'\n...\n"

// Renderer drives pandoc's citeproc over a pre-filtered bibliography.
type Renderer struct {
	exec      command.Executor
	bin       string
	extraArgs []string
}

// New returns a Renderer that invokes bin through exec. An empty bin
// selects "pandoc". extraArgs are appended to every invocation.
func New(exec command.Executor, bin string, extraArgs ...string) *Renderer {
	if bin == "" {
		bin = defaultBin
	}
	return &Renderer{exec: exec, bin: bin, extraArgs: extraArgs}
}

// Render formats every record in sub with style. Citation order is what the
// style produces; bibliographic styles usually sort by author, so callers
// must not assume it matches the order keys were requested in.
// The style is resolved even when sub is empty, so a bad style fails the run
// before an empty result is reported.
func (r *Renderer) Render(ctx context.Context, sub types.SubCollection, style string, format types.OutputFormat) (types.RenderedDocument, error) {
	doc := types.RenderedDocument{Format: format}
	if !format.Valid() {
		return doc, fmt.Errorf("%w: unsupported format %q", ErrRender, format)
	}
	if err := checkStyle(style); err != nil {
		return doc, err
	}
	if sub.Records == 0 {
		return doc, nil
	}

	var stdout, stderr bytes.Buffer
	args := r.Args(sub.Path, style, format)
	slog.Debug("rendering citations", "bin", r.bin, "records", sub.Records, "style", style, "format", format)

	err := r.exec.Run(ctx, command.Cmd{
		Name:   r.bin,
		Args:   args,
		Stdin:  strings.NewReader(NociteAll),
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if err != nil {
		return doc, fmt.Errorf("%w: %s: %w", ErrRender, r.bin, err)
	}
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		slog.Warn("pandoc diagnostics", "stderr", msg)
	}

	doc.Text = stdout.String()
	return doc, nil
}

// Args builds the pandoc command line.
func (r *Renderer) Args(bibliography, style string, format types.OutputFormat) []string {
	args := []string{
		"--citeproc",
		"--from", "markdown",
		"--to", format.PandocWriter(),
		"--csl", style,
		"--bibliography", bibliography,
	}
	return append(args, r.extraArgs...)
}

func checkStyle(style string) error {
	if style == "" {
		return fmt.Errorf("%w: no citation style configured", ErrRender)
	}
	info, err := os.Stat(style)
	if err != nil {
		return fmt.Errorf("%w: resolving style: %v", ErrRender, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: style %s is a directory", ErrRender, style)
	}
	return nil
}
