package controller

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/coalesceci/testr/internal/ui"
)

// defaultTerminationGrace is how long a child gets to exit after SIGTERM
// before being sent SIGKILL, when the config bag sets no termination_grace
// value. The teacher hardcodes this; testr exposes it as an ambient config
// knob instead (see resolvedConfig.terminationGrace).
const defaultTerminationGrace = 30 * time.Second

// runTerm starts cmd and waits for it, terminating it gracefully if ctx is
// cancelled first, escalating to SIGKILL after grace. Adapted from the
// teacher's cmdRunTerm/handleTermination (cmd/exec.go), parameterised on
// the grace period instead of a package constant.
func runTerm(ctx context.Context, logger log.FieldLogger, cmd *exec.Cmd, grace time.Duration) error {
	if err := cmd.Start(); err != nil {
		return err
	}

	complete := make(chan struct{})
	finished := make(chan struct{})

	go handleTermination(ctx, logger, cmd, grace, complete, finished)

	err := cmd.Wait()

	close(complete)
	<-finished

	return err
}

func handleTermination(ctx context.Context, logger log.FieldLogger, cmd *exec.Cmd, grace time.Duration, complete <-chan struct{}, finished chan<- struct{}) {
	select {
	case <-ctx.Done():
		logger.Warnln("TERMINATING: sending SIGTERM")
		cmd.Process.Signal(unix.SIGTERM)
		select {
		case <-time.After(grace):
			logger.Errorln("TERMINATING: sending SIGKILL")
			cmd.Process.Kill()
		case <-complete:
		}
	case <-complete:
	}
	close(finished)
}

// runCapture runs cmd to completion (graceful-terminating on ctx
// cancellation) and returns its stdout and stderr separately, used for the
// provisioning, list-profiles and concurrency config callouts, all of which
// are "run once, read all of output" commands. Callers forward stderr to
// the UI before reporting a ListFailed/ProvisionFailed/DisposeFailed error,
// per spec.md §7.
func runCapture(ctx context.Context, logger log.FieldLogger, cmd *exec.Cmd, grace time.Duration) (stdout, stderr []byte, err error) {
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	err = runTerm(ctx, logger, cmd, grace)
	return out.Bytes(), errOut.Bytes(), err
}

// forwardStderr sends a callout's captured stderr through factory before
// the caller reports the failure it caused. A callout that produced no
// stderr forwards nothing.
func forwardStderr(factory ui.UI, stderr []byte) {
	if len(stderr) == 0 {
		return
	}
	_ = factory.OutputStream(bytes.NewReader(stderr))
}
