// Package scheduler partitions a set of test ids across K concurrent
// workers using historical timing data and a grouping constraint, an LPT
// (longest processing time) heuristic that mirrors the teacher's own
// worst-fit-decreasing VM/network assignment in cmd/schedule.go
// (runBetter picks the emptiest, then smallest, partition for the next
// unit of work).
package scheduler

import (
	"sort"

	"github.com/coalesceci/testr/internal/testid"
)

// Timing is the timing oracle the scheduler consults: Known maps test ids
// to their last recorded duration in seconds; Unknown holds ids with no
// recorded duration.
type Timing struct {
	Known   map[testid.ID]float64
	Unknown map[testid.ID]struct{}
}

// GroupOf maps a test id to its group key. If nil, every id is its own
// group. This mirrors the "regex group callback" design note in spec §9:
// a small interface kept outside the scheduler itself.
type GroupOf func(id testid.ID) string

type group struct {
	key      string
	ids      []testid.ID
	duration float64 // sum of known durations
	unknown  int      // count of ids with unknown duration
}

func (g group) classify() groupClass {
	switch {
	case g.unknown == 0:
		return classTimed
	case g.duration > 0:
		return classPartial
	default:
		return classUntimed
	}
}

type groupClass int

const (
	classTimed groupClass = iota
	classPartial
	classUntimed
)

// Partition splits ids into k disjoint slices whose union is ids, honoring
// groupOf (ids sharing a group key land in the same partition) and
// minimizing makespan for ids with known or partially-known duration.
//
// Invariants held regardless of input: len(result) == k; partitions are
// disjoint; their union equals ids (as a set); every group key present in
// ids lies in exactly one partition.
func Partition(ids []testid.ID, k int, timing Timing, groupOf GroupOf) [][]testid.ID {
	partitions := make([][]testid.ID, k)
	if k <= 0 {
		return partitions
	}

	groups := bucket(ids, groupOf, timing)

	var timed, partial, untimed []group
	for _, g := range groups {
		switch g.classify() {
		case classTimed:
			timed = append(timed, g)
		case classPartial:
			partial = append(partial, g)
		default:
			untimed = append(untimed, g)
		}
	}

	sort.SliceStable(timed, func(i, j int) bool { return timed[i].duration > timed[j].duration })
	sort.SliceStable(partial, func(i, j int) bool { return partial[i].duration > partial[j].duration })

	accumulated := make([]float64, k)
	counts := make([]int, k)

	assignLPT := func(gs []group) {
		for _, g := range gs {
			p := bestPartition(accumulated, counts)
			partitions[p] = append(partitions[p], g.ids...)
			accumulated[p] += g.duration
			counts[p] += len(g.ids)
		}
	}
	assignLPT(timed)
	assignLPT(partial)

	for i, g := range untimed {
		p := i % k
		partitions[p] = append(partitions[p], g.ids...)
		counts[p] += len(g.ids)
	}

	return partitions
}

// bestPartition returns the index of the partition with the lowest
// accumulated time, ties broken by fewest ids currently assigned.
func bestPartition(accumulated []float64, counts []int) int {
	best := 0
	for i := 1; i < len(accumulated); i++ {
		if accumulated[i] < accumulated[best] ||
			(accumulated[i] == accumulated[best] && counts[i] < counts[best]) {
			best = i
		}
	}
	return best
}

// bucket groups ids by their group key, in first-seen order, summing known
// durations and counting unknowns per group.
func bucket(ids []testid.ID, groupOf GroupOf, timing Timing) []group {
	index := make(map[string]int)
	var groups []group

	for _, id := range ids {
		key := string(id)
		if groupOf != nil {
			key = groupOf(id)
		}

		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, group{key: key})
		}

		groups[i].ids = append(groups[i].ids, id)
		if d, known := timing.Known[id]; known {
			groups[i].duration += d
		} else {
			groups[i].unknown++
		}
	}

	return groups
}
