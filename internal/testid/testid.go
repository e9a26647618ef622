// Package testid defines the identifiers used throughout testr: the opaque
// test id namespace and the named execution-context profiles tests run
// under.
package testid

import "sort"

// ID identifies a single test within the project's namespace. It is an
// opaque Unicode string; testr never parses or interprets it.
type ID string

// Profile names an execution context, e.g. an interpreter variant or OS
// target. DefaultProfile is used whenever no profile list is configured.
type Profile string

// DefaultProfile is the sentinel profile used when no profiles are
// configured.
const DefaultProfile Profile = "DEFAULT"

// Meta records which profiles a test id has been observed running under.
// Profiles is kept sorted so that rendering (list/JSON output) is
// deterministic.
type Meta struct {
	Profiles []Profile
}

// AddProfile inserts p into m.Profiles if not already present, preserving
// sort order.
func (m *Meta) AddProfile(p Profile) {
	i := sort.Search(len(m.Profiles), func(i int) bool { return m.Profiles[i] >= p })
	if i < len(m.Profiles) && m.Profiles[i] == p {
		return
	}
	m.Profiles = append(m.Profiles, "")
	copy(m.Profiles[i+1:], m.Profiles[i:])
	m.Profiles[i] = p
}

// SortProfiles sorts a slice of profiles in place, for callers assembling
// a Meta without going through AddProfile one at a time.
func SortProfiles(profiles []Profile) {
	sort.Slice(profiles, func(i, j int) bool { return profiles[i] < profiles[j] })
}
