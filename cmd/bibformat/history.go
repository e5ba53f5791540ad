// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pdiddy/bibformat/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history [id | run-uuid]",
	Short: "List recorded formatting runs",
	Long: `History lists runs recorded with --history, newest first. Pass a run's
numeric ID or UUID to print its citations exactly as they were delivered.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	asYAML, _ := cmd.Flags().GetBool("yaml")

	store, err := history.Open(cfg.Output.HistoryDB)
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		e, err := lookupRun(cmd.Context(), store, args[0])
		if err != nil {
			return err
		}
		if asYAML {
			return history.WriteYAML(out, []history.Entry{*e})
		}
		fmt.Fprintln(out, e.Payload)
		return nil
	}

	entries, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if asYAML {
		return history.WriteYAML(out, entries)
	}
	writeHistoryTable(out, entries)
	return nil
}

// lookupRun resolves ref as a numeric run ID or a run UUID.
func lookupRun(ctx context.Context, store *history.Store, ref string) (*history.Entry, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return store.Get(ctx, id)
	}
	runID, err := uuid.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid run reference %q: want a numeric ID or a UUID", ref)
	}
	return store.GetRun(ctx, runID)
}

func writeHistoryTable(w io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}

	fmt.Fprintf(w, "%-5s  %-20s  %-6s  %-9s  %-20s  %s\n", "ID", "Ran at", "Format", "Citations", "Style", "Keys")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for _, e := range entries {
		fmt.Fprintf(w, "%-5d  %-20s  %-6s  %-9d  %-20s  %s\n",
			e.ID, e.RanAt.Local().Format("2006-01-02 15:04:05"), e.Format, e.Fragments,
			truncate(e.Style, 20), truncate(strings.Join(e.Keys, ", "), 40))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of runs to list")
	historyCmd.Flags().Bool("yaml", false, "print runs as YAML")

	rootCmd.AddCommand(historyCmd)
}
