package pool

import (
	"errors"
	"testing"
)

func TestAddAllocateReleaseRemove(t *testing.T) {
	p := New()
	inst, err := NewInstance("py27", "inst-1")
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}

	p.Add(inst)
	if got := p.Size("py27"); got != 1 {
		t.Fatalf("size after add = %d, want 1", got)
	}

	got, err := p.Allocate("py27")
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if got != inst {
		t.Fatalf("Allocate returned %+v, want %+v", got, inst)
	}
	if got := p.Size("py27"); got != 1 {
		t.Fatalf("size after allocate = %d, want 1", got)
	}

	if err := p.Release(inst); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := p.Remove(inst); !errors.Is(err, ErrNotAllocated) {
		t.Fatalf("Remove after release: got %v, want ErrNotAllocated", err)
	}
}

// TestSizeDecreasesByOneAfterFullCycle mirrors spec §8's add; allocate;
// release; remove cycle. Remove only accepts allocated instances, so the
// released instance is allocated again before it is removed; size(profile)
// then decreases by exactly one.
func TestSizeDecreasesByOneAfterFullCycle(t *testing.T) {
	p := New()
	inst, _ := NewInstance("py27", "inst-1")
	p.Add(inst)
	before := p.Size("py27")

	p.Allocate("py27")
	p.Release(inst)
	if _, err := p.Allocate("py27"); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := p.Remove(inst); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	after := p.Size("py27")
	if before-after != 1 {
		t.Fatalf("size went from %d to %d, want a decrease of exactly 1", before, after)
	}
}

func TestAllocateEmptyFails(t *testing.T) {
	p := New()
	if _, err := p.Allocate("py27"); !errors.Is(err, ErrEmpty) {
		t.Fatalf("Allocate on empty pool: got %v, want ErrEmpty", err)
	}
}

func TestReleaseNotAllocatedFails(t *testing.T) {
	p := New()
	inst, _ := NewInstance("py27", "inst-1")
	p.Add(inst)
	if err := p.Release(inst); !errors.Is(err, ErrNotAllocated) {
		t.Fatalf("Release of available-only instance: got %v, want ErrNotAllocated", err)
	}
}

func TestRemoveAvailableOnlyFails(t *testing.T) {
	p := New()
	inst, _ := NewInstance("py27", "inst-1")
	p.Add(inst)
	if err := p.Remove(inst); !errors.Is(err, ErrNotAllocated) {
		t.Fatalf("Remove of available-only instance: got %v, want ErrNotAllocated", err)
	}
}

func TestNewInstanceValidation(t *testing.T) {
	if _, err := NewInstance("", "x"); !errors.Is(err, ErrBadArgument) {
		t.Fatalf("empty profile: got %v, want ErrBadArgument", err)
	}
	if _, err := NewInstance("py27", ""); !errors.Is(err, ErrBadArgument) {
		t.Fatalf("empty id: got %v, want ErrBadArgument", err)
	}
}

func TestAllUnion(t *testing.T) {
	p := New()
	a, _ := NewInstance("py27", "a")
	b, _ := NewInstance("py34", "b")
	p.Add(a)
	p.Add(b)
	p.Allocate("py27")

	all := p.All()
	if len(all) != 2 {
		t.Fatalf("All() = %v, want 2 instances", all)
	}
}
