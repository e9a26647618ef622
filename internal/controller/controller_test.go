package controller

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/coalesceci/testr/internal/config"
	"github.com/coalesceci/testr/internal/event"
	"github.com/coalesceci/testr/internal/pool"
	"github.com/coalesceci/testr/internal/repository"
	"github.com/coalesceci/testr/internal/testid"
	"github.com/coalesceci/testr/internal/ui"
)

func bagWithCommand(t *testing.T, command string) *config.Bag {
	t.Helper()
	bag, err := config.Load(bytes.NewBufferString("test_command = " + command + "\n"))
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return bag
}

func TestRunSynthesizesFailureOnNonZeroExit(t *testing.T) {
	bag := bagWithCommand(t, "exit 7")
	repo := repository.OpenMemory()
	ctl := New(bag, repo, pool.New(), ui.NewConsole(), t.TempDir())

	success, err := ctl.Run(context.Background(), Options{
		TestIDs:     []testid.ID{"pkg.TestA"},
		Concurrency: 1,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if success {
		t.Fatal("expected success=false for a non-zero exit with no reported failure")
	}

	run, err := repo.GetLatestRun()
	if err != nil {
		t.Fatalf("GetLatestRun: %v", err)
	}
	found := false
	for _, ev := range run.Events {
		if ev.ID == "process-returncode" && ev.Status == event.Fail {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a synthetic process-returncode failure, got events: %+v", run.Events)
	}
}

func TestRunSuccessPath(t *testing.T) {
	bag := bagWithCommand(t, "true")
	repo := repository.OpenMemory()
	ctl := New(bag, repo, pool.New(), ui.NewConsole(), t.TempDir())

	success, err := ctl.Run(context.Background(), Options{
		TestIDs:     []testid.ID{"pkg.TestA"},
		Concurrency: 1,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !success {
		t.Fatal("expected success=true for a clean zero exit")
	}

	failing, err := repo.GetFailing()
	if err != nil {
		t.Fatalf("GetFailing: %v", err)
	}
	if len(failing.Events) != 0 {
		t.Fatalf("expected no failing entries, got %+v", failing.Events)
	}
}

func TestRunMisconfiguredMissingTestCommand(t *testing.T) {
	repo := repository.OpenMemory()
	ctl := New(config.Empty(), repo, pool.New(), ui.NewConsole(), t.TempDir())

	_, err := ctl.Run(context.Background(), Options{})
	if !errors.Is(err, config.ErrMisconfigured) {
		t.Fatalf("got %v, want ErrMisconfigured", err)
	}
}

func TestBuildGroupOfAnchoredPrefix(t *testing.T) {
	groupOf := buildGroupOf(`pkg\.[A-Za-z]+`)
	if got := groupOf("pkg.TestA/variant1"); got != "pkg.TestA" {
		t.Fatalf("groupOf = %q, want pkg.TestA", got)
	}
	if got := groupOf("other.TestB"); got != "other.TestB" {
		t.Fatalf("unmatched id should fall back to itself, got %q", got)
	}
}

func TestApplyFiltersOrsAcrossPatterns(t *testing.T) {
	ids := []testid.ID{"pkg.TestA", "pkg.TestB", "other.TestC"}
	got := applyFilters(ids, []string{"TestA", "TestC"})
	if len(got) != 2 || got[0] != "pkg.TestA" || got[1] != "other.TestC" {
		t.Fatalf("applyFilters = %v", got)
	}
}

// TestRunFailingUsesFixedListFile is review-driven: failing-only mode must
// write its $IDFILE at the fixed path failing.list (spec.md §4.4's
// "oldschool compat"), never a fresh uuid name, so external tooling that
// expects that name keeps working.
func TestRunFailingUsesFixedListFile(t *testing.T) {
	repo := repository.OpenMemory()
	ins, err := repo.GetInserter(false, nil)
	if err != nil {
		t.Fatalf("GetInserter: %v", err)
	}
	if err := ins.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := ins.Status(event.TestEvent{ID: "pkg.TestA", Status: event.Fail}); err != nil {
		t.Fatalf("Status: %v", err)
	}
	if _, err := ins.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	workDir := t.TempDir()
	bag := bagWithCommand(t, "cat $IDFILE")
	ctl := New(bag, repo, pool.New(), ui.NewConsole(), workDir)

	success, err := ctl.RunFailing(context.Background(), Options{Concurrency: 1})
	if err != nil {
		t.Fatalf("RunFailing: %v", err)
	}
	if !success {
		t.Fatal("expected success=true: the re-run of the same failing test reported no new failure")
	}

	listPath := filepath.Join(workDir, "failing.list")
	b, err := os.ReadFile(listPath)
	if err != nil {
		t.Fatalf("expected fixed list file at %s: %v", listPath, err)
	}
	if strings.TrimSpace(string(b)) != "pkg.TestA" {
		t.Fatalf("failing.list = %q, want %q", b, "pkg.TestA")
	}
}

func TestRunUntilFailureStopsAtFirstFailure(t *testing.T) {
	bag := bagWithCommand(t, "exit 1")
	repo := repository.OpenMemory()
	ctl := New(bag, repo, pool.New(), ui.NewConsole(), t.TempDir())

	success, err := ctl.RunUntilFailure(context.Background(), Options{
		TestIDs:     []testid.ID{"pkg.TestA"},
		Concurrency: 1,
	})
	if err != nil {
		t.Fatalf("RunUntilFailure: %v", err)
	}
	if success {
		t.Fatal("expected success=false after the first failing run")
	}
}
