package ui

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coalesceci/testr/internal/event"
)

func TestConsoleOutputTestsMetaList(t *testing.T) {
	var buf bytes.Buffer
	c := &Console{Out: &buf}

	err := c.OutputTestsMeta(map[string]TestMeta{
		"b.Test": {Profiles: []string{"py34"}},
		"a.Test": {Profiles: []string{"py27"}},
	}, "list")
	if err != nil {
		t.Fatalf("OutputTestsMeta: %v", err)
	}

	got := buf.String()
	if !strings.HasPrefix(got, "a.Test\nb.Test\n") {
		t.Fatalf("expected sorted listing, got %q", got)
	}
}

func TestConsoleOutputTestsMetaJSON(t *testing.T) {
	var buf bytes.Buffer
	c := &Console{Out: &buf}

	err := c.OutputTestsMeta(map[string]TestMeta{"a.Test": {Profiles: []string{"py27"}}}, "json")
	if err != nil {
		t.Fatalf("OutputTestsMeta: %v", err)
	}
	if !strings.Contains(buf.String(), `"profiles"`) {
		t.Fatalf("expected json output, got %q", buf.String())
	}
}

func TestWriteJUnitRendersFailure(t *testing.T) {
	dir := t.TempDir()
	events := []event.TestEvent{
		{ID: "pkg.TestFoo", Status: event.InProgress, Timestamp: time.Unix(0, 0)},
		{ID: "pkg.TestFoo", Status: event.Fail, Timestamp: time.Unix(1, 0), FileBytes: []byte("boom")},
	}
	if err := WriteJUnit(dir, "run-1", time.Unix(0, 0), events); err != nil {
		t.Fatalf("WriteJUnit: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "run-1.xml"))
	if err != nil {
		t.Fatalf("reading run-1.xml: %v", err)
	}
	if !strings.Contains(string(b), `<failure message="FAILED"/>`) {
		t.Fatalf("expected a failure element, got %q", b)
	}
	if !strings.Contains(string(b), "boom") {
		t.Fatalf("expected captured output in system-out, got %q", b)
	}
}
