// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/bibformat/internal/command"
	"github.com/pdiddy/bibformat/internal/command/commandtest"
	"github.com/pdiddy/bibformat/internal/extract"
	"github.com/pdiddy/bibformat/internal/render"
	"github.com/pdiddy/bibformat/internal/route"
	"github.com/pdiddy/bibformat/pkg/types"
)

var sourceEntries = map[string]string{
	"knuth1984":    "@book{knuth1984,\n  author = {Knuth},\n  abstract = {x}\n}\n",
	"lamport1994":  "@book{lamport1994,\n  author = {Lamport}\n}\n",
	"dijkstra1968": "@article{dijkstra1968,\n  author = {Dijkstra}\n}\n",
}

var (
	selectRe  = regexp.MustCompile(`^select\{\$key "\^(.*)\$"\}$`)
	bracketRe = regexp.MustCompile(`\[(.)\]`)
	keyRe     = regexp.MustCompile(`(?m)^@\w+\{([^,]+),`)
)

// tools emulates bibtool and pandoc. The fake pandoc reads the scratch
// bibliography and emits one csl-entry per record sorted by key, like an
// author-sorted style would.
type tools struct {
	t          *testing.T
	bibtoolErr error
	pandocErr  error
}

func (tl *tools) run(c command.Cmd, stdin string) error {
	switch c.Name {
	case "bibtool":
		if tl.bibtoolErr != nil {
			return tl.bibtoolErr
		}
		want := map[string]bool{}
		var out string
		for i, a := range c.Args {
			if m := selectRe.FindStringSubmatch(a); m != nil {
				want[bracketRe.ReplaceAllString(m[1], "$1")] = true
			}
			if a == "-o" {
				out = c.Args[i+1]
			}
		}
		var keys []string
		for k := range want {
			if _, ok := sourceEntries[k]; ok {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		var b strings.Builder
		for _, k := range keys {
			b.WriteString(sourceEntries[k])
		}
		return os.WriteFile(out, []byte(b.String()), 0o600)
	case "pandoc":
		if tl.pandocErr != nil {
			return tl.pandocErr
		}
		require.Equal(tl.t, render.NociteAll, stdin)
		var bib, to string
		for i, a := range c.Args {
			switch a {
			case "--bibliography":
				bib = c.Args[i+1]
			case "--to":
				to = c.Args[i+1]
			}
		}
		data, err := os.ReadFile(bib)
		if err != nil {
			return err
		}
		var keys []string
		for _, m := range keyRe.FindAllStringSubmatch(string(data), -1) {
			keys = append(keys, m[1])
		}
		sort.Strings(keys)
		if to == "plain" {
			for _, k := range keys {
				fmt.Fprintf(c.Stdout, "%s (plain).\n\n", k)
			}
			return nil
		}
		fmt.Fprintln(c.Stdout, `<div id="refs" class="references csl-bib-body" role="list">`)
		for _, k := range keys {
			fmt.Fprintf(c.Stdout, "<div id=\"ref-%s\" class=\"csl-entry\" role=\"listitem\">\n%s, <em>Work</em>.\n</div>\n", k, k)
		}
		fmt.Fprintln(c.Stdout, `</div>`)
		return nil
	}
	return fmt.Errorf("unexpected command %s", c.Name)
}

type harness struct {
	pipeline *Pipeline
	tools    *tools
	exec     *commandtest.Fake
	stdout   *bytes.Buffer
	status   *bytes.Buffer
	clip     *recordingPublisher
}

type recordingPublisher struct {
	payloads []string
	mimes    []string
	err      error
}

func (r *recordingPublisher) Publish(payload, mimeType string, _ int) error {
	if r.err != nil {
		return r.err
	}
	r.payloads = append(r.payloads, payload)
	r.mimes = append(r.mimes, mimeType)
	return nil
}

func newHarness(t *testing.T, mutate func(*types.FormatConfig)) *harness {
	t.Helper()
	dir := t.TempDir()
	bib := filepath.Join(dir, "library.bib")
	style := filepath.Join(dir, "harvard1.csl")
	require.NoError(t, os.WriteFile(bib, []byte("@book{knuth1984,}\n"), 0o644))
	require.NoError(t, os.WriteFile(style, []byte("<style/>"), 0o644))

	cfg := types.FormatConfig{
		Extraction: types.ExtractionConfig{Bibliography: bib, SuppressFields: extract.DefaultSuppressFields},
		Render:     types.RenderConfig{Style: style, Format: types.FormatHTML},
		Clipboard:  types.ClipboardConfig{Enabled: true, Loops: 1},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	h := &harness{
		tools:  &tools{t: t},
		stdout: &bytes.Buffer{},
		status: &bytes.Buffer{},
		clip:   &recordingPublisher{},
	}
	h.exec = &commandtest.Fake{RunFunc: h.tools.run}
	router := &route.Router{
		Stdout:    h.stdout,
		Status:    h.status,
		Quiet:     cfg.Output.Quiet,
		Clipboard: h.clip,
		Transfers: cfg.Clipboard.Loops,
	}
	h.pipeline = New(cfg, h.exec, router)
	return h
}

func keys(ks ...string) []types.CitationKey {
	out := make([]types.CitationKey, len(ks))
	for i, k := range ks {
		out[i] = types.CitationKey(k)
	}
	return out
}

func TestRunFragmentCountMatchesRecords(t *testing.T) {
	tests := []struct {
		name string
		keys []types.CitationKey
		want int
	}{
		{"all known", keys("knuth1984", "lamport1994", "dijkstra1968"), 3},
		{"reversed order", keys("dijkstra1968", "lamport1994", "knuth1984"), 3},
		{"subset", keys("lamport1994", "knuth1984"), 2},
		{"duplicates", keys("knuth1984", "knuth1984"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			res, err := h.pipeline.Run(context.Background(), tt.keys)
			require.NoError(t, err)

			assert.Equal(t, tt.want, res.Records)
			assert.Len(t, res.Fragments, tt.want)
			assert.False(t, res.Report.Empty)
			assert.False(t, res.Report.HasFailures())
			for i, f := range res.Fragments {
				assert.Equal(t, i, f.Index)
			}
		})
	}
}

func TestRunEmptyOutcomes(t *testing.T) {
	tests := []struct {
		name string
		keys []types.CitationKey
	}{
		{"empty key list", nil},
		{"only unknown keys", keys("nobody2000", "ghost")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(c *types.FormatConfig) {
				c.Output.File = filepath.Join(t.TempDir(), "out.html")
			})
			res, err := h.pipeline.Run(context.Background(), tt.keys)
			require.NoError(t, err)

			assert.Empty(t, res.Fragments)
			assert.True(t, res.Report.Empty)
			assert.Equal(t, route.EmptyNotice+"\n", h.stdout.String())
			assert.Empty(t, h.clip.payloads)
			assert.NoFileExists(t, h.pipeline.Config.Output.File)
			for _, c := range h.exec.Calls() {
				assert.NotEqual(t, "pandoc", c.Name, "nothing to render")
			}
		})
	}
}

func TestRunOneKnownAmongUnknown(t *testing.T) {
	h := newHarness(t, nil)
	res, err := h.pipeline.Run(context.Background(), keys("ghost", "lamport1994", "nobody2000"))
	require.NoError(t, err)

	require.Len(t, res.Fragments, 1)
	assert.Contains(t, res.Fragments[0].Content, "lamport1994")
	assert.NotContains(t, res.Fragments[0].Content, "knuth1984")
	require.Len(t, h.clip.payloads, 1)
	assert.Equal(t, res.Fragments[0].Content, h.clip.payloads[0])
}

func TestRunSingleExtractionPass(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.pipeline.Run(context.Background(), keys("knuth1984", "lamport1994", "dijkstra1968"))
	require.NoError(t, err)

	var bibtool, pandoc int
	for _, c := range h.exec.Calls() {
		switch c.Name {
		case "bibtool":
			bibtool++
		case "pandoc":
			pandoc++
		}
	}
	assert.Equal(t, 1, bibtool)
	assert.Equal(t, 1, pandoc)
}

func TestRunRendererOrderIsAuthoritative(t *testing.T) {
	h := newHarness(t, nil)
	res, err := h.pipeline.Run(context.Background(), keys("lamport1994", "dijkstra1968", "knuth1984"))
	require.NoError(t, err)

	require.Len(t, res.Fragments, 3)
	assert.Contains(t, res.Fragments[0].Content, "dijkstra1968")
	assert.Contains(t, res.Fragments[1].Content, "knuth1984")
	assert.Contains(t, res.Fragments[2].Content, "lamport1994")
}

func TestRunScratchRemovedOnEveryPath(t *testing.T) {
	tests := []struct {
		name      string
		bibtool   error
		pandoc    error
		wantStage string
	}{
		{name: "success"},
		{name: "bibtool failure", bibtool: &command.ExitError{Cmd: "bibtool", Code: 2}, wantStage: StageExtract},
		{name: "pandoc failure", pandoc: &command.ExitError{Cmd: "pandoc", Code: 83}, wantStage: StageRender},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.tools.bibtoolErr = tt.bibtool
			h.tools.pandocErr = tt.pandoc

			var scratchDir string
			h.pipeline.NewScratch = func() (string, func(), error) {
				dir, cleanup, err := extract.NewScratch()
				scratchDir = dir
				return dir, cleanup, err
			}

			_, err := h.pipeline.Run(context.Background(), keys("knuth1984"))
			if tt.wantStage != "" {
				var stageErr *StageError
				require.True(t, errors.As(err, &stageErr), "want *StageError, got %v", err)
				assert.Equal(t, tt.wantStage, stageErr.Stage)
			} else {
				require.NoError(t, err)
			}
			require.NotEmpty(t, scratchDir)
			assert.NoDirExists(t, scratchDir)
		})
	}
}

func TestRunStageFailuresSkipSinks(t *testing.T) {
	h := newHarness(t, func(c *types.FormatConfig) {
		c.Output.File = filepath.Join(t.TempDir(), "out.html")
	})
	h.tools.pandocErr = &command.ExitError{Cmd: "pandoc", Code: 1, Stderr: "bad csl"}

	_, err := h.pipeline.Run(context.Background(), keys("knuth1984"))
	require.ErrorIs(t, err, render.ErrRender)
	assert.Contains(t, err.Error(), "render stage")
	assert.Empty(t, h.stdout.String())
	assert.Empty(t, h.clip.payloads)
	assert.NoFileExists(t, h.pipeline.Config.Output.File)
}

func TestRunUnreadableSource(t *testing.T) {
	h := newHarness(t, func(c *types.FormatConfig) {
		c.Extraction.Bibliography = filepath.Join(t.TempDir(), "missing.bib")
	})
	_, err := h.pipeline.Run(context.Background(), keys("knuth1984"))
	require.ErrorIs(t, err, extract.ErrExtraction)
	assert.Empty(t, h.exec.Calls())
}

func TestRunMultipleTargetsWithFileFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	h := newHarness(t, func(c *types.FormatConfig) {
		c.Output.File = filepath.Join(blocker, "out.html")
	})
	res, err := h.pipeline.Run(context.Background(), keys("knuth1984", "lamport1994"))
	require.NoError(t, err)

	failed := res.Report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, types.TargetFile, failed[0].Target.Kind)
	assert.ErrorIs(t, failed[0].Err, route.ErrSink)

	require.Len(t, h.clip.payloads, 1)
	assert.Equal(t, res.Report.Payload, h.clip.payloads[0])
	assert.Equal(t, res.Report.Payload+"\n", h.stdout.String())
	assert.Contains(t, res.Summary(), "1 failed")
}

func TestRunClipboardFormatTag(t *testing.T) {
	for _, tt := range []struct {
		format types.OutputFormat
		mime   string
	}{
		{types.FormatHTML, types.MIMEHTML},
		{types.FormatPlain, types.MIMEPlain},
	} {
		t.Run(string(tt.format), func(t *testing.T) {
			h := newHarness(t, func(c *types.FormatConfig) { c.Render.Format = tt.format })
			_, err := h.pipeline.Run(context.Background(), keys("knuth1984", "lamport1994"))
			require.NoError(t, err)
			assert.Equal(t, []string{tt.mime}, h.clip.mimes)
		})
	}
}

func TestRunPlainIsOneBlock(t *testing.T) {
	h := newHarness(t, func(c *types.FormatConfig) { c.Render.Format = types.FormatPlain })
	res, err := h.pipeline.Run(context.Background(), keys("knuth1984", "lamport1994"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Records)
	require.Len(t, res.Fragments, 1)
	assert.Equal(t, "knuth1984 (plain).\n\nlamport1994 (plain).", res.Fragments[0].Content)
}

func TestRunCancelled(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.pipeline.Run(ctx, keys("knuth1984"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.clip.payloads)
}

func TestStageError(t *testing.T) {
	err := &StageError{Stage: StageExtract, Err: io.ErrUnexpectedEOF}
	assert.Equal(t, "extract stage: unexpected EOF", err.Error())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
