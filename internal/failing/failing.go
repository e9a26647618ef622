// Package failing implements the failing-view command from spec.md §4.7:
// stream the materialised failing set through verbatim, render it as a
// list (text or JSON), or drive it through the UI's ordinary rendering.
package failing

import (
	"bytes"

	"github.com/coalesceci/testr/internal/repository"
	"github.com/coalesceci/testr/internal/subunit"
	"github.com/coalesceci/testr/internal/ui"
)

// Mode selects one of spec.md §4.7's three renderings.
type Mode int

const (
	// Default drives the failing run through the UI's ordinary result
	// rendering, one Output line per failing (test id, profile) entry.
	Default Mode = iota
	// Stream passes the failing set's subunit encoding through to the
	// UI untouched.
	Stream
	// List renders {id -> {profiles}} as a text or JSON list via the
	// UI's OutputTestsMeta.
	List
)

// ListStyle picks List mode's rendering; it is passed straight through
// to ui.UI.OutputTestsMeta's style argument ("list" or "json").
type ListStyle string

const (
	StyleText ListStyle = "list"
	StyleJSON ListStyle = "json"
)

// Render implements the failing-view command. It reports whether there
// is at least one failing test (the caller maps this to the spec's exit
// code 1, except in Stream mode where only generation failures count).
func Render(repo *repository.Repository, factory ui.UI, mode Mode, style ListStyle) (hasFailures bool, err error) {
	run, err := repo.GetFailing()
	if err != nil {
		return false, err
	}
	hasFailures = len(run.Events) > 0

	switch mode {
	case Stream:
		var buf bytes.Buffer
		enc := subunit.NewEncoder(&buf)
		for _, ev := range run.Events {
			if err := enc.Encode(ev); err != nil {
				return hasFailures, err
			}
		}
		if err := factory.OutputStream(&buf); err != nil {
			return hasFailures, err
		}
		return hasFailures, nil

	case List:
		profiles, err := repo.GetFailingProfiles()
		if err != nil {
			return hasFailures, err
		}
		meta := make(map[string]ui.TestMeta, len(profiles))
		for id, ps := range profiles {
			names := make([]string, len(ps))
			for i, p := range ps {
				names[i] = string(p)
			}
			meta[string(id)] = ui.TestMeta{Profiles: names}
		}
		if err := factory.OutputTestsMeta(meta, string(style)); err != nil {
			return hasFailures, err
		}
		return hasFailures, nil

	default:
		for _, ev := range run.Events {
			factory.Output("%s: %s\n", ev.Status, ev.ID)
		}
		return hasFailures, nil
	}
}
