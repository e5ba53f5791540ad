// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bibformat/internal/clipboard"
	"github.com/pdiddy/bibformat/internal/command"
	"github.com/pdiddy/bibformat/internal/history"
	"github.com/pdiddy/bibformat/internal/keys"
	"github.com/pdiddy/bibformat/internal/pipeline"
	"github.com/pdiddy/bibformat/internal/route"
	"github.com/pdiddy/bibformat/pkg/types"
)

// executor runs bibtool, pandoc, and the clipboard tools.
var executor command.Executor = command.OS()

func runFormat(cmd *cobra.Command, args []string) error {
	refs, _ := cmd.Flags().GetString("references")
	keysFile, _ := cmd.Flags().GetString("keys-file")
	manuscript, _ := cmd.Flags().GetString("manuscript")

	keyList, err := keys.Collect(keys.Sources{
		Args:       args,
		References: refs,
		KeysFile:   keysFile,
		Manuscript: manuscript,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	status := cmd.ErrOrStderr()
	router := &route.Router{
		Stdout:    cmd.OutOrStdout(),
		Status:    status,
		Quiet:     cfg.Output.Quiet,
		Verbose:   cfg.Output.Verbose,
		Transfers: cfg.Clipboard.Loops,
	}
	if cfg.Clipboard.Enabled {
		router.Clipboard = clipboard.Lazy{Exec: executor, Selection: cfg.Clipboard.Selection}
	}
	if cfg.Output.History {
		router.History = history.Sink{Path: cfg.Output.HistoryDB, Keys: keyList, Style: cfg.Render.Style}
	}

	slog.Debug("formatting citations", "keys", len(keyList), "bibliography", cfg.Extraction.Bibliography,
		"style", cfg.Render.Style, "format", cfg.Render.Format)

	res, err := pipeline.New(cfg, executor, router).Run(ctx, keyList)
	if err != nil {
		return err
	}
	slog.Info(res.Summary(), "records", res.Records)

	if clipboardDelivered(res.Report) {
		fmt.Fprintf(status, "Clipboard ready: %s selection, %s\n", cfg.Clipboard.Selection, loopsLabel(cfg.Clipboard.Loops))
	}
	if failed := res.Report.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d output target(s) failed", len(failed), len(res.Report.Deliveries))
	}
	return nil
}

func clipboardDelivered(report types.DeliveryReport) bool {
	for _, d := range report.Deliveries {
		if d.Target.Kind == types.TargetClipboard && d.OK() {
			return true
		}
	}
	return false
}

func loopsLabel(loops int) string {
	switch loops {
	case 0:
		return "until replaced"
	case 1:
		return "one paste"
	default:
		return fmt.Sprintf("%d pastes", loops)
	}
}
