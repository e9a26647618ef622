package repository

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/coalesceci/testr/internal/event"
	"github.com/coalesceci/testr/internal/testid"
)

func TestFileStoreRunRoundTrip(t *testing.T) {
	dir := t.TempDir()
	repo, err := InitialiseFile(dir)
	if err != nil {
		t.Fatalf("InitialiseFile: %v", err)
	}

	mustInsert(t, repo, false, nil, []event.TestEvent{
		{ID: "ok", Status: event.InProgress},
		{ID: "ok", Status: event.Success},
	})

	reopened, err := OpenFile(dir)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	run, err := reopened.GetLatestRun()
	if err != nil {
		t.Fatalf("GetLatestRun: %v", err)
	}
	if len(run.Events) != 2 {
		t.Fatalf("got %d events back, want 2", len(run.Events))
	}
}

// TestFileStoreLoadFailingStripsProfileTag is review-driven: LoadFailing
// must not leak its own "profile:<name>" bookkeeping tag (used to survive
// the subunit round trip) into the FailingEntry.Tags a caller sees.
func TestFileStoreLoadFailingStripsProfileTag(t *testing.T) {
	dir := t.TempDir()
	repo, err := InitialiseFile(dir)
	if err != nil {
		t.Fatalf("InitialiseFile: %v", err)
	}

	mustInsert(t, repo, false, []testid.Profile{"p1", "p2"}, []event.TestEvent{
		{ID: "flaky", Status: event.Fail, Tags: event.TagSet("p1", "real-tag")},
	})

	reopened, err := OpenFile(dir)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	run, err := reopened.GetFailing()
	if err != nil {
		t.Fatalf("GetFailing: %v", err)
	}
	if len(run.Events) != 1 {
		t.Fatalf("expected 1 failing entry, got %d", len(run.Events))
	}
	ev := run.Events[0]
	if !ev.HasTag("real-tag") {
		t.Fatalf("expected real-tag to survive, got %v", ev.Tags)
	}
	for tag := range ev.Tags {
		if strings.HasPrefix(tag, "profile:") {
			t.Fatalf("bookkeeping tag %q leaked into FailingEntry.Tags: %v", tag, ev.Tags)
		}
	}

	profiles, err := reopened.GetFailingProfiles()
	if err != nil {
		t.Fatalf("GetFailingProfiles: %v", err)
	}
	got := profiles["flaky"]
	if len(got) != 1 || got[0] != "p1" {
		t.Fatalf("profiles[flaky] = %v, want [p1]", got)
	}
}

func TestFileStoreSaveFailingWritesFixedListPath(t *testing.T) {
	dir := t.TempDir()
	repo, err := InitialiseFile(dir)
	if err != nil {
		t.Fatalf("InitialiseFile: %v", err)
	}

	mustInsert(t, repo, false, nil, []event.TestEvent{
		{ID: "flaky", Status: event.Fail},
	})

	b, err := os.ReadFile(filepath.Join(dir, "failing.list"))
	if err != nil {
		t.Fatalf("reading failing.list: %v", err)
	}
	if strings.TrimSpace(string(b)) != "flaky" {
		t.Fatalf("failing.list = %q, want %q", b, "flaky")
	}
}
