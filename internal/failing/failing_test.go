package failing

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"testing"

	"github.com/coalesceci/testr/internal/event"
	"github.com/coalesceci/testr/internal/repository"
	"github.com/coalesceci/testr/internal/testid"
	"github.com/coalesceci/testr/internal/ui"
)

type recordingUI struct {
	lines   []string
	streams []string
	metas   []map[string]ui.TestMeta
	styles  []string
}

func (r *recordingUI) Output(format string, args ...interface{}) {
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func (r *recordingUI) OutputStream(rd io.Reader) error {
	b, err := io.ReadAll(rd)
	if err != nil {
		return err
	}
	r.streams = append(r.streams, string(b))
	return nil
}

func (r *recordingUI) OutputTestsMeta(tests map[string]ui.TestMeta, style string) error {
	r.metas = append(r.metas, tests)
	r.styles = append(r.styles, style)
	return nil
}

func (r *recordingUI) NewCommand(ctx context.Context, shellCommand string) *exec.Cmd {
	return exec.CommandContext(ctx, "/bin/sh", "-c", shellCommand)
}

func seedFailing(t *testing.T) *repository.Repository {
	t.Helper()
	repo := repository.OpenMemory()
	ins, err := repo.GetInserter(false, []testid.Profile{"py27"})
	if err != nil {
		t.Fatalf("GetInserter: %v", err)
	}
	if err := ins.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	events := []event.TestEvent{
		{ID: "pkg.TestA", Status: event.InProgress},
		{ID: "pkg.TestA", Status: event.Fail},
	}
	for _, ev := range events {
		if err := ins.Status(ev); err != nil {
			t.Fatalf("Status: %v", err)
		}
	}
	if _, err := ins.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	return repo
}

// seedFailingMultiProfile runs one inserter declaring two profiles, tagging
// pkg.TestA's failure with the literal name of the profile it belongs to
// (p1) per Inserter.matchedProfiles' real, live convention: with more than
// one declared profile, an event belongs to exactly the profiles named
// among its own tags, nothing synthesised on top.
func seedFailingMultiProfile(t *testing.T) *repository.Repository {
	t.Helper()
	repo := repository.OpenMemory()
	ins, err := repo.GetInserter(false, []testid.Profile{"p1", "p2"})
	if err != nil {
		t.Fatalf("GetInserter: %v", err)
	}
	if err := ins.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	events := []event.TestEvent{
		{ID: "pkg.TestA", Status: event.InProgress, Tags: event.TagSet("p1")},
		{ID: "pkg.TestA", Status: event.Fail, Tags: event.TagSet("p1")},
		{ID: "pkg.TestB", Status: event.InProgress, Tags: event.TagSet("p2")},
		{ID: "pkg.TestB", Status: event.Fail, Tags: event.TagSet("p2")},
	}
	for _, ev := range events {
		if err := ins.Status(ev); err != nil {
			t.Fatalf("Status: %v", err)
		}
	}
	if _, err := ins.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	return repo
}

func TestRenderListRecoversMultipleProfiles(t *testing.T) {
	repo := seedFailingMultiProfile(t)
	rui := &recordingUI{}

	has, err := Render(repo, rui, List, StyleText)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !has {
		t.Fatal("expected hasFailures=true")
	}
	if len(rui.metas) != 1 {
		t.Fatalf("expected 1 meta render, got %d", len(rui.metas))
	}
	meta, ok := rui.metas[0]["pkg.TestA"]
	if !ok {
		t.Fatalf("missing meta for pkg.TestA: %+v", rui.metas[0])
	}
	if len(meta.Profiles) != 1 || meta.Profiles[0] != "p1" {
		t.Fatalf("profiles = %v, want [p1]", meta.Profiles)
	}
	metaB, ok := rui.metas[0]["pkg.TestB"]
	if !ok {
		t.Fatalf("missing meta for pkg.TestB: %+v", rui.metas[0])
	}
	if len(metaB.Profiles) != 1 || metaB.Profiles[0] != "p2" {
		t.Fatalf("profiles = %v, want [p2]", metaB.Profiles)
	}
}

func TestRenderDefaultListsFailures(t *testing.T) {
	repo := seedFailing(t)
	rui := &recordingUI{}

	has, err := Render(repo, rui, Default, "")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !has {
		t.Fatal("expected hasFailures=true")
	}
	if len(rui.lines) != 1 {
		t.Fatalf("expected 1 output line, got %d", len(rui.lines))
	}
}

func TestRenderListRecoversProfiles(t *testing.T) {
	repo := seedFailing(t)
	rui := &recordingUI{}

	has, err := Render(repo, rui, List, StyleText)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !has {
		t.Fatal("expected hasFailures=true")
	}
	if len(rui.metas) != 1 {
		t.Fatalf("expected 1 meta render, got %d", len(rui.metas))
	}
	meta, ok := rui.metas[0]["pkg.TestA"]
	if !ok {
		t.Fatalf("missing meta for pkg.TestA: %+v", rui.metas[0])
	}
	if len(meta.Profiles) != 1 || meta.Profiles[0] != "py27" {
		t.Fatalf("profiles = %v, want [py27]", meta.Profiles)
	}
}

func TestRenderStreamEmitsSubunit(t *testing.T) {
	repo := seedFailing(t)
	rui := &recordingUI{}

	has, err := Render(repo, rui, Stream, "")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !has {
		t.Fatal("expected hasFailures=true")
	}
	if len(rui.streams) != 1 || len(rui.streams[0]) == 0 {
		t.Fatalf("expected non-empty stream output, got %v", rui.streams)
	}
}

func TestRenderNoFailures(t *testing.T) {
	repo := repository.OpenMemory()
	rui := &recordingUI{}

	has, err := Render(repo, rui, Default, "")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if has {
		t.Fatal("expected hasFailures=false on empty repository")
	}
}
