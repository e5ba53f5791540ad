// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package commandtest provides a recording command.Executor for tests.
package commandtest

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/pdiddy/bibformat/internal/command"
)

// Call is one recorded invocation.
type Call struct {
	Name    string
	Args    []string
	Stdin   string
	Spawned bool
}

// Fake records every call and delegates behavior to the optional hooks.
type Fake struct {
	// Paths maps binaries to their LookPath result. Missing entries fail.
	Paths map[string]bool

	// RunFunc handles Run. Nil succeeds with no output.
	RunFunc func(c command.Cmd, stdin string) error

	// SpawnErr is returned by Spawn when set.
	SpawnErr error

	mu    sync.Mutex
	calls []Call
}

var _ command.Executor = (*Fake)(nil)

func (f *Fake) LookPath(file string) (string, error) {
	if f.Paths[file] {
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("executable file not found in $PATH: " + file)
}

func (f *Fake) Run(ctx context.Context, c command.Cmd) error {
	stdin := f.record(c, false)
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.RunFunc != nil {
		return f.RunFunc(c, stdin)
	}
	return nil
}

func (f *Fake) Spawn(c command.Cmd) error {
	f.record(c, true)
	return f.SpawnErr
}

func (f *Fake) record(c command.Cmd, spawned bool) string {
	var stdin string
	if c.Stdin != nil {
		data, _ := io.ReadAll(c.Stdin)
		stdin = string(data)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{
		Name:    c.Name,
		Args:    append([]string(nil), c.Args...),
		Stdin:   stdin,
		Spawned: spawned,
	})
	return stdin
}

// Calls returns a copy of the recorded invocations.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}
