// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/bibformat/internal/command"
	"github.com/pdiddy/bibformat/internal/command/commandtest"
	"github.com/pdiddy/bibformat/internal/route"
)

// fakeTools answers bibtool by copying the source through, and pandoc with
// one plain-text line per requested record.
func fakeTools(c command.Cmd, stdin string) error {
	switch c.Name {
	case "bibtool":
		out := c.Args[len(c.Args)-2]
		src := c.Args[len(c.Args)-1]
		data, err := os.ReadFile(src)
		if err != nil {
			return err
		}
		return os.WriteFile(out, data, 0o600)
	case "pandoc":
		fmt.Fprint(c.Stdout, "Knuth, D. (1984) The TeXbook.\n")
		return nil
	}
	return fmt.Errorf("unexpected command %s", c.Name)
}

// resetFlags restores every flag to its default so executions of the shared
// root command do not leak into each other.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCLI(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", dir)

	bib := filepath.Join(dir, "refs.bib")
	require.NoError(t, os.WriteFile(bib, []byte("@book{knuth1984,\n  title = {The TeXbook}\n}\n"), 0o644))
	style := filepath.Join(dir, "apa.csl")
	require.NoError(t, os.WriteFile(style, []byte("<style/>"), 0o644))
	out := filepath.Join(dir, "out.txt")
	db := filepath.Join(dir, "history.db")

	fake := &commandtest.Fake{
		Paths:   map[string]bool{"xclip": true},
		RunFunc: fakeTools,
	}
	prev := executor
	executor = fake
	t.Cleanup(func() { executor = prev })

	stdout, stderr, err := execute(t, "knuth1984",
		"--bib", bib, "--style", style, "--format", "plain",
		"--output", out, "--clipboard", "--loops", "2",
		"--history", "--history-db", db)
	require.NoError(t, err, stderr)

	const payload = "Knuth, D. (1984) The TeXbook."
	assert.Equal(t, payload+"\n", stdout)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))
	assert.Contains(t, stderr, "Clipboard ready: clipboard selection, 2 pastes")

	var spawned []commandtest.Call
	for _, c := range fake.Calls() {
		if c.Spawned {
			spawned = append(spawned, c)
		}
	}
	require.Len(t, spawned, 1)
	assert.Equal(t, "xclip", spawned[0].Name)
	assert.Equal(t, payload, spawned[0].Stdin)
	assert.Contains(t, spawned[0].Args, "text/plain;charset=utf-8")

	stdout, _, err = execute(t, "history", "--history-db", db, "--yaml")
	require.NoError(t, err)
	assert.Contains(t, stdout, "- knuth1984")
	assert.Contains(t, stdout, "payload: Knuth, D. (1984) The TeXbook.")

	stdout, _, err = execute(t, "history", "--history-db", db, "1")
	require.NoError(t, err)
	assert.Equal(t, payload+"\n", stdout)

	stdout, _, err = execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "bibformat dev\n", stdout)
}

func TestCLIFailures(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", dir)

	prev := executor
	executor = &commandtest.Fake{RunFunc: fakeTools}
	t.Cleanup(func() { executor = prev })

	t.Run("invalid key", func(t *testing.T) {
		_, _, err := execute(t, "bad key")
		assert.Error(t, err)
	})

	t.Run("missing bibliography", func(t *testing.T) {
		_, _, err := execute(t, "knuth1984", "--bib", filepath.Join(dir, "absent.bib"))
		require.Error(t, err)
		assert.True(t, strings.HasPrefix(err.Error(), "extract stage:"), err.Error())
	})

	t.Run("empty key list", func(t *testing.T) {
		bib := filepath.Join(dir, "refs.bib")
		require.NoError(t, os.WriteFile(bib, nil, 0o644))
		style := filepath.Join(dir, "apa.csl")
		require.NoError(t, os.WriteFile(style, []byte("<style/>"), 0o644))

		stdout, _, err := execute(t, "--bib", bib, "--style", style)
		require.NoError(t, err)
		assert.Equal(t, route.EmptyNotice+"\n", stdout)
	})
}

func TestCLIPartialDeliveryReportsEveryTarget(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", dir)

	bib := filepath.Join(dir, "refs.bib")
	require.NoError(t, os.WriteFile(bib, []byte("@book{knuth1984,\n  title = {The TeXbook}\n}\n"), 0o644))
	style := filepath.Join(dir, "apa.csl")
	require.NoError(t, os.WriteFile(style, []byte("<style/>"), 0o644))
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("a file, not a directory"), 0o644))
	out := filepath.Join(blocker, "out.txt")

	fake := &commandtest.Fake{Paths: map[string]bool{"xclip": true}, RunFunc: fakeTools}
	prev := executor
	executor = fake
	t.Cleanup(func() { executor = prev })

	_, stderr, err := execute(t, "knuth1984",
		"--bib", bib, "--style", style, "--format", "plain",
		"--output", out, "--clipboard", "--quiet")
	require.Error(t, err)
	assert.Equal(t, "1 of 3 output target(s) failed", err.Error())

	assert.Contains(t, stderr, "ok:      console\n")
	assert.Contains(t, stderr, "failed:  file("+out+")")
	assert.Contains(t, stderr, "ok:      clipboard\n")
	assert.Contains(t, stderr, "Clipboard ready: clipboard selection, one paste")
}

func TestCLIVerboseListsTargets(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", dir)

	bib := filepath.Join(dir, "refs.bib")
	require.NoError(t, os.WriteFile(bib, []byte("@book{knuth1984,\n}\n"), 0o644))
	style := filepath.Join(dir, "apa.csl")
	require.NoError(t, os.WriteFile(style, []byte("<style/>"), 0o644))

	prev := executor
	executor = &commandtest.Fake{RunFunc: fakeTools}
	t.Cleanup(func() { executor = prev })

	_, stderr, err := execute(t, "knuth1984", "--bib", bib, "--style", style, "--format", "plain", "-v")
	require.NoError(t, err)
	assert.Contains(t, stderr, "ok:      console\n")

	_, stderr, err = execute(t, "knuth1984", "--bib", bib, "--style", style, "--format", "plain")
	require.NoError(t, err)
	assert.NotContains(t, stderr, "ok:")
}

// chdir is a Go 1.21-compatible stand-in for testing.T.Chdir (Go 1.24+):
// it changes the working directory and restores it when the test ends.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}
