// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package clipboard hands a payload to a long-lived clipboard responder.
//
// X11 and Wayland keep no clipboard buffer of their own: the owning process
// must stay alive to answer paste requests. The responder (xclip or wl-copy)
// is therefore spawned detached and outlives this program; it exits after
// serving its configured number of transfers.
package clipboard

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pdiddy/bibformat/internal/command"
)

// ErrUnavailable is returned when no responder could be started.
var ErrUnavailable = errors.New("clipboard unavailable")

const (
	binXclip  = "xclip"
	binWlCopy = "wl-copy"
)

// Selection names the X selection the responder owns.
const (
	SelectionClipboard = "clipboard"
	SelectionPrimary   = "primary"
)

// Publisher places a payload on the clipboard under one transfer format.
type Publisher interface {
	// Publish serves payload as mimeType to the next transfers paste
	// requests; zero means unbounded. It returns once the responder runs.
	Publish(payload, mimeType string, transfers int) error
}

// Responder is a Publisher backed by a specific clipboard binary. xclip and
// wl-copy differ only in how the selection, loop count and target are spelled.
type Responder struct {
	bin       string
	selection string
	args      func(selection, mimeType string, transfers int) ([]string, error)
	exec      command.Executor
}

// Name returns the responder binary.
func (r *Responder) Name() string { return r.bin }

// Publish spawns the responder with payload on its stdin.
func (r *Responder) Publish(payload, mimeType string, transfers int) error {
	if transfers < 0 {
		return fmt.Errorf("%w: negative transfer count %d", ErrUnavailable, transfers)
	}
	args, err := r.args(r.selection, mimeType, transfers)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	slog.Debug("publishing to clipboard", "bin", r.bin, "target", mimeType, "transfers", transfers, "bytes", len(payload))
	if err := r.exec.Spawn(command.Cmd{
		Name:  r.bin,
		Args:  args,
		Stdin: strings.NewReader(payload),
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func xclipArgs(selection, mimeType string, transfers int) ([]string, error) {
	return []string{
		"-selection", selection,
		"-loops", strconv.Itoa(transfers),
		"-target", mimeType,
	}, nil
}

func wlCopyArgs(selection, mimeType string, transfers int) ([]string, error) {
	args := []string{"--type", mimeType}
	if selection == SelectionPrimary {
		args = append(args, "--primary")
	}
	switch transfers {
	case 0:
	case 1:
		args = append(args, "--paste-once")
	default:
		return nil, fmt.Errorf("%s serves either one or unlimited pastes, not %d", binWlCopy, transfers)
	}
	return args, nil
}

// NewXclip returns a responder that runs xclip.
func NewXclip(exec command.Executor, selection string) *Responder {
	return &Responder{bin: binXclip, selection: normalizeSelection(selection), args: xclipArgs, exec: exec}
}

// NewWlCopy returns a responder that runs wl-copy.
func NewWlCopy(exec command.Executor, selection string) *Responder {
	return &Responder{bin: binWlCopy, selection: normalizeSelection(selection), args: wlCopyArgs, exec: exec}
}

func normalizeSelection(s string) string {
	if strings.EqualFold(s, SelectionPrimary) {
		return SelectionPrimary
	}
	return SelectionClipboard
}

// Detect returns the first responder found on PATH, trying xclip and then
// wl-copy.
func Detect(exec command.Executor, selection string) (*Responder, error) {
	for _, r := range []*Responder{NewXclip(exec, selection), NewWlCopy(exec, selection)} {
		if _, err := exec.LookPath(r.bin); err == nil {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: neither %s nor %s found on PATH", ErrUnavailable, binXclip, binWlCopy)
}

// Lazy defers responder detection until the first Publish, so runs that end
// empty or fail early never probe for a clipboard tool.
type Lazy struct {
	Exec      command.Executor
	Selection string
}

// Publish detects a responder and publishes through it.
func (l Lazy) Publish(payload, mimeType string, transfers int) error {
	r, err := Detect(l.Exec, l.Selection)
	if err != nil {
		return err
	}
	return r.Publish(payload, mimeType, transfers)
}
