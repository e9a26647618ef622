package config

import (
	"bytes"
	"errors"
	"testing"
)

func TestLoadAndString(t *testing.T) {
	src := bytes.NewBufferString("test_command = run --list=$IDLIST\ntest_run_concurrency = pick-concurrency\n")
	bag, err := Load(src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	got, ok := bag.String(KeyTestCommand)
	if !ok || got != "run --list=$IDLIST" {
		t.Fatalf("String(test_command) = (%q, %v)", got, ok)
	}

	if _, ok := bag.String("nonexistent_key"); ok {
		t.Fatalf("expected nonexistent_key to be absent")
	}
}

func TestRequireStringMissing(t *testing.T) {
	bag := Empty()
	if _, err := bag.RequireString(KeyTestCommand); !errors.Is(err, ErrMisconfigured) {
		t.Fatalf("got %v, want ErrMisconfigured", err)
	}
}

func TestStringOrFallback(t *testing.T) {
	bag := Empty()
	if got := bag.StringOr(KeyTestIDListDefault, "discover"); got != "discover" {
		t.Fatalf("got %q", got)
	}
}
