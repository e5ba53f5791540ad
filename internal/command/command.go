// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package command runs the external tools the pipeline drives (bibtool,
// pandoc, clipboard responders) behind an interface that tests can fake.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Cmd describes one external process invocation.
type Cmd struct {
	Name  string
	Args  []string
	Stdin io.Reader

	// Stdout receives the process output. Nil discards it.
	Stdout io.Writer

	// Stderr receives diagnostics. It is never merged into Stdout.
	Stderr io.Writer
}

// String renders the command line for logs.
func (c Cmd) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Executor abstracts process execution.
type Executor interface {
	// LookPath reports where file is found on PATH.
	LookPath(file string) (string, error)

	// Run starts the command and blocks until it exits. A non-zero exit
	// status is returned as an *ExitError.
	Run(ctx context.Context, c Cmd) error

	// Spawn starts the command detached from the caller: it gets its own
	// session and Stdin is copied to it and closed. The process is watched
	// for a short grace period; a non-zero exit within it is returned as an
	// *ExitError carrying its stderr. A failure after the grace period is
	// not detected. Cmd.Stderr is not used.
	Spawn(c Cmd) error
}

// ExitError reports a command that ran but exited unsuccessfully.
type ExitError struct {
	Cmd    string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Cmd, e.Code)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

// OS returns the Executor backed by os/exec.
func OS() Executor { return osExecutor{} }

func (osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (osExecutor) Run(ctx context.Context, c Cmd) error {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout

	var stderr bytes.Buffer
	if c.Stderr != nil {
		cmd.Stderr = io.MultiWriter(c.Stderr, &stderr)
	} else {
		cmd.Stderr = &stderr
	}

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", c.Name, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{
			Cmd:    c.Name,
			Code:   exitErr.ExitCode(),
			Stderr: strings.TrimSpace(stderr.String()),
		}
	}
	return fmt.Errorf("running %s: %w", c.Name, err)
}

// spawnGrace is how long Spawn watches a new process for an early exit.
var spawnGrace = 250 * time.Millisecond

// maxSpawnStderr caps the diagnostics read back from an early exit.
const maxSpawnStderr = 4 << 10

func (osExecutor) Spawn(c Cmd) error {
	cmd := exec.Command(c.Name, c.Args...)
	detach(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("opening stdin for %s: %w", c.Name, err)
	}
	cmd.Stdout = c.Stdout

	// Stderr goes to an unlinked temp file rather than a pipe, so a
	// responder that outlives us never writes into a closed pipe.
	errFile, err := os.CreateTemp("", "bibformat-spawn-*")
	if err != nil {
		return fmt.Errorf("creating stderr file for %s: %w", c.Name, err)
	}
	defer func() {
		errFile.Close()
		os.Remove(errFile.Name())
	}()
	cmd.Stderr = errFile

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", c.Name, err)
	}
	os.Remove(errFile.Name())

	if c.Stdin != nil {
		if _, err := io.Copy(stdin, c.Stdin); err != nil {
			stdin.Close()
			_ = cmd.Process.Kill()
			return fmt.Errorf("writing payload to %s: %w", c.Name, err)
		}
	}
	if err := stdin.Close(); err != nil {
		return fmt.Errorf("closing stdin for %s: %w", c.Name, err)
	}

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	select {
	case err := <-exited:
		if err == nil {
			return nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Cmd: c.Name, Code: exitErr.ExitCode(), Stderr: readBack(errFile)}
		}
		return fmt.Errorf("waiting for %s: %w", c.Name, err)
	case <-time.After(spawnGrace):
		// The responder owns its lifetime from here on.
		return nil
	}
}

func readBack(f *os.File) string {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return ""
	}
	data, _ := io.ReadAll(io.LimitReader(f, maxSpawnStderr))
	return strings.TrimSpace(string(data))
}
