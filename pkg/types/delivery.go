// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// TargetKind names a sink the router can deliver to.
type TargetKind string

const (
	TargetConsole   TargetKind = "console"
	TargetFile      TargetKind = "file"
	TargetClipboard TargetKind = "clipboard"
	TargetHistory   TargetKind = "history"
)

// OutputTarget is one requested destination for the payload.
type OutputTarget struct {
	Kind TargetKind

	// Path is the destination file for TargetFile.
	Path string
}

// ConsoleTarget returns the standard output target.
func ConsoleTarget() OutputTarget { return OutputTarget{Kind: TargetConsole} }

// FileTarget returns a target that overwrites path.
func FileTarget(path string) OutputTarget { return OutputTarget{Kind: TargetFile, Path: path} }

// ClipboardTarget returns the clipboard target.
func ClipboardTarget() OutputTarget { return OutputTarget{Kind: TargetClipboard} }

// HistoryTarget returns the run-history target.
func HistoryTarget() OutputTarget { return OutputTarget{Kind: TargetHistory} }

func (t OutputTarget) String() string {
	if t.Kind == TargetFile {
		return fmt.Sprintf("file(%s)", t.Path)
	}
	return string(t.Kind)
}

// Delivery records the outcome of writing the payload to one target.
type Delivery struct {
	Target OutputTarget
	Err    error
}

// OK reports whether the delivery succeeded.
func (d Delivery) OK() bool { return d.Err == nil }

// DeliveryReport summarizes a routing pass.
type DeliveryReport struct {
	// Empty is set when there were no fragments; no sink was written.
	Empty bool

	// Payload is the joined text handed to every sink.
	Payload string

	Deliveries []Delivery
}

// Succeeded returns the targets that received the payload.
func (r DeliveryReport) Succeeded() []OutputTarget {
	var out []OutputTarget
	for _, d := range r.Deliveries {
		if d.OK() {
			out = append(out, d.Target)
		}
	}
	return out
}

// Failed returns the deliveries that did not complete.
func (r DeliveryReport) Failed() []Delivery {
	var out []Delivery
	for _, d := range r.Deliveries {
		if !d.OK() {
			out = append(out, d)
		}
	}
	return out
}

// HasFailures reports whether any target failed.
func (r DeliveryReport) HasFailures() bool {
	return len(r.Failed()) > 0
}
