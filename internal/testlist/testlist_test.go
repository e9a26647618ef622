package testlist

import (
	"bytes"
	"testing"

	"github.com/coalesceci/testr/internal/event"
	"github.com/coalesceci/testr/internal/subunit"
	"github.com/coalesceci/testr/internal/testid"
)

func TestWriteParseRoundTrip(t *testing.T) {
	ids := []testid.ID{"pkg.TestA", "pkg.TestB", "pkg.TestC"}

	var buf bytes.Buffer
	if err := WriteList(&buf, ids); err != nil {
		t.Fatalf("WriteList: %v", err)
	}

	got, err := ParseList(&buf)
	if err != nil {
		t.Fatalf("ParseList: %v", err)
	}
	if len(got) != len(ids) {
		t.Fatalf("got %v, want %v", got, ids)
	}
	for i := range ids {
		if got[i] != ids[i] {
			t.Errorf("index %d: got %q want %q", i, got[i], ids[i])
		}
	}
}

func TestParseListSkipsBlankLines(t *testing.T) {
	got, err := ParseList(bytes.NewBufferString("a\n\n  \nb\n"))
	if err != nil {
		t.Fatalf("ParseList: %v", err)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("got %v", got)
	}
}

func TestParseEnumeration(t *testing.T) {
	var buf bytes.Buffer
	enc := subunit.NewEncoder(&buf)
	enc.Encode(event.TestEvent{ID: "pkg.TestA", Status: event.Exists})
	enc.Encode(event.TestEvent{ID: "pkg.TestB", Status: event.Exists})
	// A non-exists event must not be collected.
	enc.Encode(event.TestEvent{ID: "pkg.TestA", Status: event.InProgress})

	ids, err := ParseEnumeration(&buf)
	if err != nil {
		t.Fatalf("ParseEnumeration: %v", err)
	}
	if len(ids) != 2 || ids[0] != "pkg.TestA" || ids[1] != "pkg.TestB" {
		t.Fatalf("got %v", ids)
	}
}
