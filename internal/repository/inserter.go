package repository

import (
	"errors"
	"time"

	"github.com/coalesceci/testr/internal/event"
	"github.com/coalesceci/testr/internal/testid"
)

// ErrInserterDone is returned by Status/Stop once a Inserter has already
// been stopped.
var ErrInserterDone = errors.New("repository: inserter already stopped")

// Inserter accumulates the events of a single test run and, on Stop,
// persists the run and folds its results into the materialised failing
// view per spec.md §4.6.
//
// Not safe for concurrent use; a run has exactly one inserter, matching
// the single-writer discipline the teacher's schedule.go assumes for its
// result channel.
type Inserter struct {
	repo     *Repository
	unlock   func() error
	partial  bool
	profiles map[testid.Profile]struct{}

	run  Run
	done bool
}

// Start marks the run as beginning now.
func (in *Inserter) Start() error {
	if in.done {
		return ErrInserterDone
	}
	in.run.Start = time.Now().UnixNano()
	in.run.Partial = in.partial
	in.run.Profiles = in.profiles
	return nil
}

// Status records one test event as part of the run in progress.
func (in *Inserter) Status(ev event.TestEvent) error {
	if in.done {
		return ErrInserterDone
	}
	in.run.Events = append(in.run.Events, ev)
	return nil
}

// matchedProfiles returns which of the inserter's declared profiles ev
// should be attributed to. With a single declared profile every event
// belongs to it, tagged or not (there is nothing to disambiguate). With
// more than one declared profile, an event belongs to exactly the
// profiles named among its tags.
func (in *Inserter) matchedProfiles(ev event.TestEvent) []testid.Profile {
	if len(in.profiles) == 1 {
		for p := range in.profiles {
			return []testid.Profile{p}
		}
	}
	var matched []testid.Profile
	for p := range in.profiles {
		if ev.HasTag(string(p)) {
			matched = append(matched, p)
		}
	}
	return matched
}

// Stop finalises the run: it is persisted via the Store, then the
// failing view is updated in place and persisted too. It returns the new
// run's id.
func (in *Inserter) Stop() (int64, error) {
	if in.done {
		return 0, ErrInserterDone
	}
	in.done = true
	defer in.unlock()

	in.run.End = time.Now().UnixNano()

	id, err := in.repo.store.AppendRun(&in.run)
	if err != nil {
		return 0, err
	}

	entries, err := in.repo.store.LoadFailing()
	if err != nil {
		return 0, err
	}
	if entries == nil {
		entries = map[FailKey]FailingEntry{}
	}

	touched := map[FailKey]struct{}{}
	lastStatus := map[FailKey]event.Status{}
	lastTags := map[FailKey]map[string]struct{}{}
	lastEvent := map[FailKey]event.TestEvent{}

	for _, ev := range in.run.Events {
		if ev.Status == event.Exists {
			continue
		}
		for _, p := range in.matchedProfiles(ev) {
			key := FailKey{ID: ev.ID, Profile: p}
			touched[key] = struct{}{}
			lastStatus[key] = ev.Status
			lastTags[key] = ev.Tags
			lastEvent[key] = ev
		}
	}

	for key, status := range lastStatus {
		switch status {
		case event.Fail:
			ev := lastEvent[key]
			details := map[string][]byte{}
			if len(ev.FileBytes) > 0 {
				details["traceback"] = ev.FileBytes
			}
			entries[key] = FailingEntry{
				ID:      key.ID,
				Tags:    lastTags[key],
				Start:   in.run.Start,
				End:     in.run.End,
				Details: details,
			}
		case event.Success, event.Skip, event.XFail:
			delete(entries, key)
		}
	}

	if !in.partial {
		for key := range entries {
			if _, relevant := in.profiles[key.Profile]; !relevant {
				continue
			}
			if _, ran := touched[key]; !ran {
				delete(entries, key)
			}
		}
	}

	if err := in.repo.store.SaveFailing(entries); err != nil {
		return 0, err
	}
	return id, nil
}
