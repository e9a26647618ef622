package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	uuid "github.com/satori/go.uuid"

	"github.com/coalesceci/testr/internal/event"
	"github.com/coalesceci/testr/internal/pool"
	"github.com/coalesceci/testr/internal/subunit"
	"github.com/coalesceci/testr/internal/subst"
	"github.com/coalesceci/testr/internal/testid"
	"github.com/coalesceci/testr/internal/testlist"
	"github.com/coalesceci/testr/internal/ui"
)

// buildCommand assembles the shell command line for one partition, per
// spec.md §4.4 step 7. ids may be nil, meaning "let the runner pick its
// own tests" (no $IDFILE/$IDLIST/$IDOPTION substitution). failingOnly
// selects spec.md §4.4's "oldschool compat" fixed list file name,
// failing.list, instead of the usual unique-per-partition name: that name
// is owned by the failing-mode codepath alone.
func buildCommand(rc resolvedConfig, profile testid.Profile, ids []testid.ID, instance *pool.Instance, extraArgs []string, workDir string, failingOnly bool) (command string, listFile string, err error) {
	vars := map[string]string{
		"PROFILE": string(profile),
		"LISTOPT": "",
	}

	if ids != nil {
		vars["IDLIST"] = joinIDs(ids)

		if strings.Contains(rc.testCommand, "$IDFILE") || strings.Contains(rc.testIDOption, "$IDFILE") {
			name := fmt.Sprintf("testr-%s.list", uuid.NewV4().String())
			if failingOnly {
				name = "failing.list"
			}
			listFile = filepath.Join(workDir, name)
			f, ferr := os.Create(listFile)
			if ferr != nil {
				return "", "", ferr
			}
			werr := testlist.WriteList(f, ids)
			cerr := f.Close()
			if werr != nil {
				return "", "", werr
			}
			if cerr != nil {
				return "", "", cerr
			}
			vars["IDFILE"] = listFile
		}

		if rc.testIDOption != "" {
			vars["IDOPTION"] = subst.Expand(rc.testIDOption, vars)
		} else {
			vars["IDOPTION"] = ""
		}
	} else {
		vars["IDLIST"] = ""
		vars["IDOPTION"] = ""
	}

	command = subst.Expand(rc.testCommand, vars)

	if rc.instanceExecute != "" {
		instanceID := ""
		if instance != nil {
			instanceID = instance.ID
		}
		command = subst.Expand(rc.instanceExecute, map[string]string{
			"INSTANCE_ID": instanceID,
			"PROFILE":     string(profile),
			"FILES":       listFile,
			"COMMAND":     command,
		})
	}

	if len(extraArgs) > 0 {
		command = command + " " + strings.Join(extraArgs, " ")
	}

	return command, listFile, nil
}

func joinIDs(ids []testid.ID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, " ")
}

// runWorker spawns one partition's command and streams its decoded
// subunit events to out as they arrive (the fan-in point spec.md §4.4
// step 9 describes), synthesising the edge-case events step 8 calls for:
// a stdout attachment for any non-subunit bytes, and a process-returncode
// failure if the child exited non-zero without reporting any failure
// itself. It returns once the child has exited and every event has been
// sent. A non-zero exit is reported only through the event stream, never
// as the returned error.
func runWorker(ctx context.Context, factory ui.UI, label, command string, grace time.Duration, out chan<- event.TestEvent) error {
	logger := log.WithField("worker", label)

	cmd := factory.NewCommand(ctx, command)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		return err
	}

	complete := make(chan struct{})
	finished := make(chan struct{})
	go handleTermination(ctx, logger, cmd, grace, complete, finished)

	sawFail := false
	var decodeErr error
	dec := subunit.NewDecoder(stdout)
	for {
		ev, raw, derr := dec.Next()
		if derr == io.EOF {
			break
		}
		if derr != nil {
			decodeErr = derr
			break
		}
		if raw != nil {
			out <- event.TestEvent{
				ID:        testid.ID("process-stdout"),
				Status:    event.Skip,
				FileName:  "stdout",
				FileBytes: raw.Bytes,
			}
			continue
		}
		if ev.Status == event.Fail {
			sawFail = true
		}
		out <- *ev
	}

	waitErr := cmd.Wait()
	close(complete)
	<-finished

	if waitErr != nil && !sawFail {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code = exitErr.ExitCode()
		}
		out <- event.TestEvent{
			ID:        testid.ID("process-returncode"),
			Status:    event.Fail,
			FileName:  "traceback",
			FileBytes: []byte(fmt.Sprintf("returncode %d", code)),
		}
	}
	if waitErr != nil {
		logger.Warnf("worker exited non-zero: %v", waitErr)
	}
	if decodeErr != nil {
		return decodeErr
	}
	return nil
}
