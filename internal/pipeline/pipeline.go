// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline drives one formatting run: select records, render them,
// split the rendering into per-record fragments, and route the result.
// Stages run strictly in sequence; each waits for its external process to
// exit before the next begins.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pdiddy/bibformat/internal/command"
	"github.com/pdiddy/bibformat/internal/extract"
	"github.com/pdiddy/bibformat/internal/render"
	"github.com/pdiddy/bibformat/internal/split"
	"github.com/pdiddy/bibformat/pkg/types"
)

// Stage names reported in a StageError.
const (
	StageExtract = "extract"
	StageRender  = "render"
)

// StageError identifies the external stage that aborted a run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + " stage: " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// RecordExtractor filters a bibliography into a scratch sub-collection.
type RecordExtractor interface {
	Extract(ctx context.Context, req types.ExtractionRequest, scratchDir string) (types.SubCollection, error)
}

// CitationRenderer formats a sub-collection with a citation style.
type CitationRenderer interface {
	Render(ctx context.Context, sub types.SubCollection, style string, format types.OutputFormat) (types.RenderedDocument, error)
}

// OutputRouter delivers fragments to the requested targets.
type OutputRouter interface {
	Route(ctx context.Context, fragments []types.CitationFragment, format types.OutputFormat, targets []types.OutputTarget) types.DeliveryReport
}

// Result summarizes a completed run.
type Result struct {
	// Records is the number of records that survived extraction.
	Records int

	Fragments []types.CitationFragment
	Report    types.DeliveryReport
}

// Pipeline holds the stages and configuration of a run.
type Pipeline struct {
	Config    types.FormatConfig
	Extractor RecordExtractor
	Renderer  CitationRenderer
	Router    OutputRouter

	// NewScratch creates the run's scratch directory. Defaults to
	// extract.NewScratch.
	NewScratch func() (string, func(), error)
}

// New builds a pipeline whose extraction and rendering stages run through exec.
func New(cfg types.FormatConfig, exec command.Executor, router OutputRouter) *Pipeline {
	return &Pipeline{
		Config:    cfg,
		Extractor: extract.New(exec, cfg.Extraction.Bibtool),
		Renderer:  render.New(exec, cfg.Render.Pandoc, cfg.Render.PandocArgs...),
		Router:    router,
	}
}

// Run formats keys and delivers them to the configured targets. Extraction
// and render failures abort before any sink is touched and are returned as
// *StageError. An empty result is not an error: the router prints its
// notice and Result.Report.Empty is set. Per-target failures are in the
// report, not in the returned error.
func (p *Pipeline) Run(ctx context.Context, keys []types.CitationKey) (Result, error) {
	var res Result

	newScratch := p.NewScratch
	if newScratch == nil {
		newScratch = extract.NewScratch
	}
	scratch, cleanup, err := newScratch()
	if err != nil {
		return res, &StageError{Stage: StageExtract, Err: err}
	}
	defer cleanup()

	sub, err := p.Extractor.Extract(ctx, types.ExtractionRequest{
		Source:         p.Config.Extraction.Bibliography,
		Keys:           keys,
		SuppressFields: p.Config.Extraction.SuppressFields,
	}, scratch)
	if err != nil {
		return res, &StageError{Stage: StageExtract, Err: err}
	}
	res.Records = sub.Records

	format := p.Config.Render.Format
	doc, err := p.Renderer.Render(ctx, sub, p.Config.Render.Style, format)
	if err != nil {
		return res, &StageError{Stage: StageRender, Err: err}
	}

	// The scratch file is no longer needed once rendering is done.
	cleanup()

	res.Fragments = split.Split(doc)
	slog.Debug("split rendered document", "records", sub.Records, "fragments", len(res.Fragments))

	res.Report = p.Router.Route(ctx, res.Fragments, format, p.Config.Targets())
	return res, nil
}

// Summary describes the outcome of a run for status output.
func (r Result) Summary() string {
	if r.Report.Empty {
		return "no citations produced"
	}
	failed := len(r.Report.Failed())
	return fmt.Sprintf("%d citation(s) delivered to %d target(s), %d failed",
		len(r.Fragments), len(r.Report.Succeeded()), failed)
}
