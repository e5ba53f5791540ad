// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract selects records from a BibTeX source into a run-scoped
// scratch bibliography using bibtool.
package extract

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pdiddy/bibformat/internal/command"
	"github.com/pdiddy/bibformat/pkg/types"
)

// ErrExtraction is returned when the source cannot be read or bibtool fails.
var ErrExtraction = errors.New("extraction failed")

const (
	defaultBin  = "bibtool"
	scratchName = "records.bib"
)

// DefaultSuppressFields are removed from every record unless configured otherwise.
var DefaultSuppressFields = []string{"abstract", "mynote", "url"}

// entryHeaderRe matches the opening of a BibTeX entry, e.g. "@article{".
var entryHeaderRe = regexp.MustCompile(`^\s*@\s*([A-Za-z]+)\s*[{(]`)

// nonRecordTypes are entry headers that do not denote a record.
var nonRecordTypes = map[string]bool{
	"string":   true,
	"preamble": true,
	"comment":  true,
}

// Extractor runs bibtool to filter a bibliography down to requested keys.
type Extractor struct {
	exec command.Executor
	bin  string
}

// New returns an Extractor that invokes bin through exec. An empty bin
// selects "bibtool".
func New(exec command.Executor, bin string) *Extractor {
	if bin == "" {
		bin = defaultBin
	}
	return &Extractor{exec: exec, bin: bin}
}

// Extract writes the records of req.Source matching req.Keys to a file in
// scratchDir, with req.SuppressFields deleted. All keys go to bibtool in a
// single invocation so the scratch file is written exactly once. Keys that
// match nothing are not an error.
func (e *Extractor) Extract(ctx context.Context, req types.ExtractionRequest, scratchDir string) (types.SubCollection, error) {
	if err := checkReadable(req.Source); err != nil {
		return types.SubCollection{}, err
	}

	out := filepath.Join(scratchDir, scratchName)
	sub := types.SubCollection{Path: out}

	if len(req.Keys) == 0 {
		if err := os.WriteFile(out, nil, 0o600); err != nil {
			return sub, fmt.Errorf("%w: writing scratch file: %v", ErrExtraction, err)
		}
		return sub, nil
	}

	for _, k := range req.Keys {
		if err := k.Validate(); err != nil {
			return sub, err
		}
	}

	args := Args(req, out)
	slog.Debug("selecting records", "bin", e.bin, "keys", len(req.Keys), "source", req.Source)

	if err := e.exec.Run(ctx, command.Cmd{Name: e.bin, Args: args}); err != nil {
		return sub, fmt.Errorf("%w: %s: %w", ErrExtraction, e.bin, err)
	}

	n, err := CountRecords(out)
	if errors.Is(err, fs.ErrNotExist) {
		// bibtool may skip writing when nothing matched.
		n, err = 0, os.WriteFile(out, nil, 0o600)
	}
	if err != nil {
		return sub, fmt.Errorf("%w: reading scratch file: %v", ErrExtraction, err)
	}
	sub.Records = n
	slog.Debug("records selected", "requested", len(req.Keys), "matched", n)
	return sub, nil
}

// Args builds the bibtool command line for req writing to out. Repeated
// select resources are cumulative in bibtool, so one pass covers every key.
func Args(req types.ExtractionRequest, out string) []string {
	args := []string{"-q", "--", "select.case.sensitive=on"}
	for _, k := range req.Keys {
		args = append(args, "--", fmt.Sprintf(`select{$key "%s"}`, keyPattern(k)))
	}
	for _, f := range req.SuppressFields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		args = append(args, "--", fmt.Sprintf("delete.field{%s}", f))
	}
	return append(args, "-o", out, req.Source)
}

// keyPattern anchors k and neutralizes the regex metacharacters that may
// legally appear in a key. Bracket expressions read as literals under both
// basic and extended regex syntax.
func keyPattern(k types.CitationKey) string {
	var b strings.Builder
	b.WriteByte('^')
	for _, r := range string(k) {
		switch r {
		case '.', '*', '+', '?', '$':
			b.WriteByte('[')
			b.WriteRune(r)
			b.WriteByte(']')
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('$')
	return b.String()
}

// CountRecords returns the number of record entries in the BibTeX file at path.
func CountRecords(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		m := entryHeaderRe.FindStringSubmatch(sc.Text())
		if m == nil || nonRecordTypes[strings.ToLower(m[1])] {
			continue
		}
		n++
	}
	return n, sc.Err()
}

func checkReadable(path string) error {
	if path == "" {
		return fmt.Errorf("%w: no bibliography source configured", ErrExtraction)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: opening source: %v", ErrExtraction, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: reading source: %v", ErrExtraction, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: source %s is a directory", ErrExtraction, path)
	}
	return nil
}
