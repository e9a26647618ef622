// Package repository is the append-only store of test runs described in
// spec.md §3/§4.6/§6: it persists runs, answers count/latest/get-by-id,
// and materialises a "currently failing" view with correct semantics
// across partial and full runs, across multiple profiles.
//
// Two Store implementations share this contract (memory.go, file.go);
// everything below this comment is common logic layered on top of
// whichever Store a caller opens.
package repository

import (
	"errors"
	"sort"

	"github.com/coalesceci/testr/internal/event"
	"github.com/coalesceci/testr/internal/testid"
)

// Sentinel errors, spec.md §7.
var (
	ErrNotFound     = errors.New("repository: not found")
	ErrEmpty        = errors.New("repository: empty")
	ErrInserterBusy = errors.New("repository: inserter busy")
)

// Run is a single stored (or, for GetFailing, synthetic) test run.
//
// ID 0 is the "no id" sentinel spec.md calls for on the value returned by
// GetFailing ("a Run whose id = null"); every persisted run has an ID >= 1,
// strictly increasing in insertion order.
type Run struct {
	ID       int64
	Partial  bool
	Profiles map[testid.Profile]struct{}
	Events   []event.TestEvent
	Start, End int64 // unix nanoseconds; 0 means unset
}

// FailKey identifies one (test id, profile) pair in the materialised
// failing view.
type FailKey struct {
	ID      testid.ID
	Profile testid.Profile
}

// FailingEntry is one entry in the materialised failing view.
type FailingEntry struct {
	ID      testid.ID
	Tags    map[string]struct{}
	Start   int64
	End     int64
	Details map[string][]byte
}

// TestTimes is the result of GetTestTimes: Known maps ids to their last
// recorded duration in seconds; Unknown holds every requested id absent
// from Known.
type TestTimes struct {
	Known   map[testid.ID]float64
	Unknown map[testid.ID]struct{}
}

// Store is the persistence contract a Repository backend must implement.
// Repository (below) layers the shared failing-set/timing logic on top.
type Store interface {
	Count() (int, error)
	LatestID() (int64, error)
	LoadRun(id int64) (*Run, error)
	AppendRun(run *Run) (int64, error)
	LoadFailing() (map[FailKey]FailingEntry, error)
	SaveFailing(map[FailKey]FailingEntry) error

	// TryLockInserter serialises writers (spec §5: "concurrent inserters
	// on the same repository are not supported and produce an
	// InserterBusy error"). unlock must be called exactly once.
	TryLockInserter() (unlock func() error, err error)
}

// Repository is the full contract from spec.md §4.6, implemented once on
// top of any Store.
type Repository struct {
	store Store
}

// New wraps store with the shared repository logic.
func New(store Store) *Repository {
	return &Repository{store: store}
}

func (r *Repository) Count() (int, error) { return r.store.Count() }

func (r *Repository) LatestID() (int64, error) {
	id, err := r.store.LatestID()
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Repository) GetTestRun(id int64) (*Run, error) {
	return r.store.LoadRun(id)
}

func (r *Repository) GetLatestRun() (*Run, error) {
	id, err := r.LatestID()
	if err != nil {
		return nil, err
	}
	return r.GetTestRun(id)
}

// GetTestIDs returns the ordered, distinct, non-Exists test ids that
// appeared in run id.
func (r *Repository) GetTestIDs(id int64) ([]testid.ID, error) {
	run, err := r.GetTestRun(id)
	if err != nil {
		return nil, err
	}
	seen := map[testid.ID]struct{}{}
	var ids []testid.ID
	for _, ev := range run.Events {
		if ev.Status == event.Exists {
			continue
		}
		if _, ok := seen[ev.ID]; ok {
			continue
		}
		seen[ev.ID] = struct{}{}
		ids = append(ids, ev.ID)
	}
	return ids, nil
}

// GetInserter returns a single-use Inserter. partial indicates whether
// this run only exercises a subset of tests; profiles are the profiles
// that may be in use by this run's events (used to filter which tags
// participate in failing-set deduplication).
func (r *Repository) GetInserter(partial bool, profiles []testid.Profile) (*Inserter, error) {
	unlock, err := r.store.TryLockInserter()
	if err != nil {
		return nil, err
	}
	profileSet := make(map[testid.Profile]struct{}, len(profiles))
	for _, p := range profiles {
		profileSet[p] = struct{}{}
	}
	if len(profileSet) == 0 {
		profileSet[testid.DefaultProfile] = struct{}{}
	}
	return &Inserter{
		repo:     r,
		unlock:   unlock,
		partial:  partial,
		profiles: profileSet,
	}, nil
}

// GetFailing returns a synthetic Run (ID 0) whose events reconstruct the
// current failing set: one Fail event per FailingEntry.
func (r *Repository) GetFailing() (*Run, error) {
	entries, err := r.store.LoadFailing()
	if err != nil {
		return nil, err
	}

	keys := make([]FailKey, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ID != keys[j].ID {
			return keys[i].ID < keys[j].ID
		}
		return keys[i].Profile < keys[j].Profile
	})

	run := &Run{ID: 0}
	for _, k := range keys {
		entry := entries[k]
		ev := event.TestEvent{
			ID:     entry.ID,
			Status: event.Fail,
			Tags:   entry.Tags,
		}
		if details, ok := entry.Details["traceback"]; ok {
			ev.FileName = "traceback"
			ev.FileBytes = details
		}
		run.Events = append(run.Events, ev)
	}
	return run, nil
}

// GetFailingProfiles returns, for every currently failing test id, the
// sorted set of profiles it is failing under. Unlike GetFailing's
// synthetic events, this reads FailKey.Profile directly off the
// materialised failing set rather than recovering it from event tags.
func (r *Repository) GetFailingProfiles() (map[testid.ID][]testid.Profile, error) {
	entries, err := r.store.LoadFailing()
	if err != nil {
		return nil, err
	}
	out := map[testid.ID][]testid.Profile{}
	for key := range entries {
		out[key.ID] = append(out[key.ID], key.Profile)
	}
	for id := range out {
		sort.Slice(out[id], func(i, j int) bool { return out[id][i] < out[id][j] })
	}
	return out, nil
}

// GetTestTimes estimates, per requested id, the duration of the most
// recent run that carried an explicit InProgress -> Success/Fail
// timestamp pair for that id. Exists-only appearances never contribute.
func (r *Repository) GetTestTimes(ids []testid.ID) (TestTimes, error) {
	want := make(map[testid.ID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	times := TestTimes{
		Known:   map[testid.ID]float64{},
		Unknown: map[testid.ID]struct{}{},
	}

	count, err := r.Count()
	if err != nil {
		return times, err
	}

	remaining := len(want)
	for runID := int64(count); runID >= 1 && remaining > 0; runID-- {
		run, err := r.GetTestRun(runID)
		if err != nil {
			return times, err
		}
		inProgress := map[testid.ID]int64{}
		for _, ev := range run.Events {
			if _, wanted := want[ev.ID]; !wanted {
				continue
			}
			if _, already := times.Known[ev.ID]; already {
				continue
			}
			switch ev.Status {
			case event.InProgress:
				inProgress[ev.ID] = ev.Timestamp.UnixNano()
			case event.Success, event.Fail:
				if start, ok := inProgress[ev.ID]; ok {
					duration := float64(ev.Timestamp.UnixNano()-start) / 1e9
					if duration < 0 {
						duration = 0
					}
					times.Known[ev.ID] = duration
					remaining--
				}
			}
		}
	}

	for id := range want {
		if _, ok := times.Known[id]; !ok {
			times.Unknown[id] = struct{}{}
		}
	}
	return times, nil
}
