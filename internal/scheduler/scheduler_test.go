package scheduler

import (
	"testing"

	"github.com/coalesceci/testr/internal/testid"
)

func ids(names ...string) []testid.ID {
	out := make([]testid.ID, len(names))
	for i, n := range names {
		out[i] = testid.ID(n)
	}
	return out
}

func TestPartitionInvariants(t *testing.T) {
	all := ids("a", "b", "c", "d", "e", "f", "g")
	timing := Timing{
		Known:   map[testid.ID]float64{"a": 5, "b": 2},
		Unknown: map[testid.ID]struct{}{"c": {}, "d": {}, "e": {}, "f": {}, "g": {}},
	}

	const k = 3
	parts := Partition(all, k, timing, nil)

	if len(parts) != k {
		t.Fatalf("len(parts) = %d, want %d", len(parts), k)
	}

	seen := map[testid.ID]int{}
	for i, p := range parts {
		for _, id := range p {
			seen[id]++
			_ = i
		}
	}
	if len(seen) != len(all) {
		t.Fatalf("union has %d distinct ids, want %d", len(seen), len(all))
	}
	for id, count := range seen {
		if count != 1 {
			t.Errorf("id %s appears in %d partitions, want exactly 1", id, count)
		}
	}
}

func TestPartitionKeepsGroupsTogether(t *testing.T) {
	all := ids("a1", "a2", "b1")
	groupOf := func(id testid.ID) string {
		if id == "a1" || id == "a2" {
			return "groupA"
		}
		return "groupB"
	}

	parts := Partition(all, 2, Timing{Known: map[testid.ID]float64{}, Unknown: map[testid.ID]struct{}{"a1": {}, "a2": {}, "b1": {}}}, groupOf)

	var partOfA1, partOfA2 int = -1, -1
	for i, p := range parts {
		for _, id := range p {
			if id == "a1" {
				partOfA1 = i
			}
			if id == "a2" {
				partOfA2 = i
			}
		}
	}
	if partOfA1 != partOfA2 {
		t.Fatalf("a1 in partition %d, a2 in partition %d, want same", partOfA1, partOfA2)
	}
}

// TestPartitionLPTScenario mirrors spec §8 scenario 5: durations
// {slow:3, fast1:1, fast2:1} with 4 unknowns and K=2 should put slow with 2
// unknowns in one partition, and fast1+fast2 with 2 unknowns in the other.
func TestPartitionLPTScenario(t *testing.T) {
	all := ids("slow", "fast1", "fast2", "u1", "u2", "u3", "u4")
	timing := Timing{
		Known: map[testid.ID]float64{"slow": 3, "fast1": 1, "fast2": 1},
		Unknown: map[testid.ID]struct{}{
			"u1": {}, "u2": {}, "u3": {}, "u4": {},
		},
	}

	parts := Partition(all, 2, timing, nil)

	partitionOf := func(id testid.ID) int {
		for i, p := range parts {
			for _, x := range p {
				if x == id {
					return i
				}
			}
		}
		return -1
	}

	slowPart := partitionOf("slow")
	fastPart := partitionOf("fast1")
	if partitionOf("fast2") != fastPart {
		t.Fatalf("fast1 and fast2 landed in different partitions")
	}
	if slowPart == fastPart {
		t.Fatalf("slow landed in the same partition as fast1+fast2")
	}

	// Each partition should end up with exactly 2 of the unknown ids,
	// since untimed groups are distributed round robin after the timed
	// assignment has already balanced slow vs fast1+fast2.
	for i, p := range parts {
		unknownCount := 0
		for _, id := range p {
			if _, ok := timing.Unknown[id]; ok {
				unknownCount++
			}
		}
		if unknownCount != 2 {
			t.Errorf("partition %d has %d unknown ids, want 2", i, unknownCount)
		}
	}
}

func TestPartitionEmptyPartitionsAllowed(t *testing.T) {
	parts := Partition(ids("only"), 3, Timing{Known: map[testid.ID]float64{}, Unknown: map[testid.ID]struct{}{"only": {}}}, nil)
	if len(parts) != 3 {
		t.Fatalf("len(parts) = %d, want 3", len(parts))
	}
	nonEmpty := 0
	for _, p := range parts {
		if len(p) > 0 {
			nonEmpty++
		}
	}
	if nonEmpty != 1 {
		t.Fatalf("expected exactly 1 non-empty partition, got %d", nonEmpty)
	}
}
