// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package route delivers the joined citation payload to the requested sinks.
package route

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pdiddy/bibformat/internal/clipboard"
	"github.com/pdiddy/bibformat/internal/split"
	"github.com/pdiddy/bibformat/pkg/types"
)

// ErrSink wraps every per-target delivery failure.
var ErrSink = errors.New("delivery failed")

// EmptyNotice is printed instead of any delivery when no citation was produced.
const EmptyNotice = "No valid items to copy."

// Recorder stores a delivered payload, e.g. in the run history.
type Recorder interface {
	Record(ctx context.Context, payload string, fragments []types.CitationFragment, format types.OutputFormat) error
}

// Router fans the payload out to console, file, clipboard and history sinks.
// Any sink may be nil when its target is never requested.
type Router struct {
	// Stdout receives the payload and the empty-result notice.
	Stdout io.Writer

	// Status receives per-target failure lines.
	Status io.Writer

	// Quiet suppresses echoing the payload to Stdout.
	Quiet bool

	// Verbose reports every target on Status. Otherwise targets are only
	// reported when at least one of them failed.
	Verbose bool

	Clipboard clipboard.Publisher

	// Transfers is the clipboard paste count; zero is unbounded.
	Transfers int

	History Recorder
}

// Route joins fragments and delivers them to every target. Targets are
// independent: a failure is recorded in the report and the remaining
// targets are still attempted. When any target fails, every target is
// listed on Status as ok or failed. With no fragments only the notice is
// printed.
func (r *Router) Route(ctx context.Context, fragments []types.CitationFragment, format types.OutputFormat, targets []types.OutputTarget) types.DeliveryReport {
	if len(fragments) == 0 {
		fmt.Fprintln(r.stdout(), EmptyNotice)
		return types.DeliveryReport{Empty: true}
	}

	report := types.DeliveryReport{Payload: split.Join(fragments)}
	for _, t := range targets {
		err := r.deliver(ctx, t, report.Payload, fragments, format)
		if err != nil {
			err = fmt.Errorf("%w: %s: %w", ErrSink, t, err)
			slog.Debug("delivery failed", "target", t.String(), "error", err)
		}
		report.Deliveries = append(report.Deliveries, types.Delivery{Target: t, Err: err})
	}
	if r.Verbose || report.HasFailures() {
		WriteStatus(r.status(), report)
	}
	return report
}

// WriteStatus writes one line per delivery in target order.
func WriteStatus(w io.Writer, report types.DeliveryReport) {
	for _, d := range report.Deliveries {
		if d.OK() {
			fmt.Fprintf(w, "ok:      %s\n", d.Target)
		} else {
			fmt.Fprintf(w, "failed:  %s (%v)\n", d.Target, d.Err)
		}
	}
}

func (r *Router) deliver(ctx context.Context, t types.OutputTarget, payload string, fragments []types.CitationFragment, format types.OutputFormat) error {
	switch t.Kind {
	case types.TargetConsole:
		if r.Quiet {
			return nil
		}
		_, err := fmt.Fprintln(r.stdout(), payload)
		return err
	case types.TargetFile:
		return WriteFile(t.Path, payload)
	case types.TargetClipboard:
		if r.Clipboard == nil {
			return clipboard.ErrUnavailable
		}
		return r.Clipboard.Publish(payload, format.MIMEType(), r.Transfers)
	case types.TargetHistory:
		if r.History == nil {
			return errors.New("history is not configured")
		}
		return r.History.Record(ctx, payload, fragments, format)
	default:
		return fmt.Errorf("unknown target kind %q", t.Kind)
	}
}

// WriteFile replaces the contents of path with payload. The payload goes to
// a temporary file in the same directory that is renamed over path, so the
// destination holds either the old or the new content in full.
func WriteFile(path, payload string) error {
	if path == "" {
		return errors.New("no output path")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.WriteString(tmp, payload); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("setting mode on %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

func (r *Router) stdout() io.Writer {
	if r.Stdout == nil {
		return os.Stdout
	}
	return r.Stdout
}

func (r *Router) status() io.Writer {
	if r.Status == nil {
		return os.Stderr
	}
	return r.Status
}
