package repository

import "sync"

// memStore is the in-memory Store, used for tests and for runs that
// never need the result to survive the process (spec.md's "--subunit"
// on a throwaway repository).
type memStore struct {
	mu       sync.Mutex
	runs     []*Run
	failing  map[FailKey]FailingEntry
	inserter bool
}

// OpenMemory returns a fresh, empty in-memory Repository. Unlike the
// on-disk backend there is no "initialise vs open" distinction: every
// call starts blank.
func OpenMemory() *Repository {
	return New(&memStore{failing: map[FailKey]FailingEntry{}})
}

func (m *memStore) Count() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs), nil
}

func (m *memStore) LatestID() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.runs) == 0 {
		return 0, ErrEmpty
	}
	return int64(len(m.runs)), nil
}

func (m *memStore) LoadRun(id int64) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id < 1 || int(id) > len(m.runs) {
		return nil, ErrNotFound
	}
	return m.runs[id-1], nil
}

func (m *memStore) AppendRun(run *Run) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	id := int64(len(m.runs))
	run.ID = id
	return id, nil
}

func (m *memStore) LoadFailing() (map[FailKey]FailingEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[FailKey]FailingEntry, len(m.failing))
	for k, v := range m.failing {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) SaveFailing(entries map[FailKey]FailingEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing = entries
	return nil
}

func (m *memStore) TryLockInserter() (func() error, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inserter {
		return nil, ErrInserterBusy
	}
	m.inserter = true
	return func() error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.inserter = false
		return nil
	}, nil
}
