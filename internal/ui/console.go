package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"

	log "github.com/sirupsen/logrus"
)

// Console is the default UI: it logs through logrus (using the teacher's
// custom formatter, see log.go) and spawns children with stdout piped,
// stdin closed, matching spec §4.4 step 7.
type Console struct {
	Out io.Writer
}

// NewConsole returns a Console writing to stdout.
func NewConsole() *Console {
	return &Console{Out: os.Stdout}
}

func (c *Console) Output(format string, args ...interface{}) {
	log.Infof(format, args...)
}

func (c *Console) OutputStream(r io.Reader) error {
	_, err := io.Copy(c.Out, r)
	return err
}

func (c *Console) OutputTestsMeta(tests map[string]TestMeta, style string) error {
	if style == "json" {
		enc := json.NewEncoder(c.Out)
		return enc.Encode(tests)
	}

	ids := make([]string, 0, len(tests))
	for id := range tests {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintln(c.Out, id)
	}
	return nil
}

func (c *Console) NewCommand(ctx context.Context, shellCommand string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", shellCommand)
	cmd.Stdin = nil
	return cmd
}
