// Package ui implements the "sink for messages and a factory for child
// processes" abstraction spec.md deliberately keeps out of the core, along
// with concrete backends: a console UI for interactive use, and a
// Jenkins-aware UI adapted from the teacher's workspace-artifact handling
// (cmd/jenkins.go).
package ui

import (
	"context"
	"io"
	"os/exec"
)

// UI is the boundary the run controller talks to: it never prints
// directly and never decides how a child process is constructed.
type UI interface {
	// Output writes a line of progress/status text.
	Output(format string, args ...interface{})

	// OutputStream copies r verbatim to wherever the UI sends raw
	// streams (used by the failing-view --subunit mode).
	OutputStream(r io.Reader) error

	// OutputTestsMeta renders a map of test id -> metadata as either a
	// plain list or JSON, per spec §4.7.
	OutputTestsMeta(tests map[string]TestMeta, style string) error

	// NewCommand builds a *exec.Cmd for shellCommand (already variable
	// substituted), wired up the way this UI wants child output handled
	// (piped, inherited, etc). Commands are shell command lines, as in
	// the config surface's templates (spec §6).
	NewCommand(ctx context.Context, shellCommand string) *exec.Cmd
}

// TestMeta is the per-test rendering payload for OutputTestsMeta.
type TestMeta struct {
	Profiles []string `json:"profiles"`
}
