package repository

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/nightlyone/lockfile"

	"github.com/coalesceci/testr/internal/event"
	"github.com/coalesceci/testr/internal/subunit"
	"github.com/coalesceci/testr/internal/testid"
)

// On-disk layout, spec.md §6 / SPEC_FULL.md §6:
//
//	<repo>/repository.toml   {version, next_id}
//	<repo>/runs/<id>.subunit  one subunit v2 stream per run id
//	<repo>/latest             decimal latest run id
//	<repo>/failing.subunit    regenerated after every inserter stop
//	<repo>/failing.list       sorted failing ids, one per line
const schemaVersion = 1

type metadata struct {
	Version int   `toml:"version"`
	NextID  int64 `toml:"next_id"`
}

// fileStore is the on-disk Store, grounded on the teacher's lockfile
// usage (cmd/vmshed.go's PID-file guard) for the InserterBusy contract
// and on BurntSushi/toml for the small metadata file.
type fileStore struct {
	dir string
}

// InitialiseFile creates a brand-new on-disk repository rooted at dir.
func InitialiseFile(dir string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Join(dir, "runs"), 0755); err != nil {
		return nil, err
	}
	meta := metadata{Version: schemaVersion, NextID: 1}
	if err := writeMetadata(dir, meta); err != nil {
		return nil, err
	}
	return New(&fileStore{dir: dir}), nil
}

// OpenFile opens an existing on-disk repository rooted at dir.
func OpenFile(dir string) (*Repository, error) {
	if _, err := readMetadata(dir); err != nil {
		return nil, err
	}
	return New(&fileStore{dir: dir}), nil
}

func writeMetadata(dir string, m metadata) error {
	f, err := os.Create(filepath.Join(dir, "repository.toml"))
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(m)
}

func readMetadata(dir string) (metadata, error) {
	var m metadata
	_, err := toml.DecodeFile(filepath.Join(dir, "repository.toml"), &m)
	if err != nil {
		if os.IsNotExist(err) {
			return m, fmt.Errorf("%w: %s has no repository.toml", ErrNotFound, dir)
		}
		return m, err
	}
	return m, nil
}

func (s *fileStore) Count() (int, error) {
	m, err := readMetadata(s.dir)
	if err != nil {
		return 0, err
	}
	return int(m.NextID - 1), nil
}

func (s *fileStore) LatestID() (int64, error) {
	b, err := os.ReadFile(filepath.Join(s.dir, "latest"))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrEmpty
		}
		return 0, err
	}
	id, err := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: corrupt latest pointer: %w", err)
	}
	return id, nil
}

func (s *fileStore) runPath(id int64) string {
	return filepath.Join(s.dir, "runs", strconv.FormatInt(id, 10)+".subunit")
}

func (s *fileStore) LoadRun(id int64) (*Run, error) {
	f, err := os.Open(s.runPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: run %d", ErrNotFound, id)
		}
		return nil, err
	}
	defer f.Close()

	run := &Run{ID: id}
	dec := subunit.NewDecoder(f)
	for {
		ev, _, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if ev != nil {
			run.Events = append(run.Events, *ev)
		}
	}
	return run, nil
}

func (s *fileStore) AppendRun(run *Run) (int64, error) {
	m, err := readMetadata(s.dir)
	if err != nil {
		return 0, err
	}
	id := m.NextID
	run.ID = id

	f, err := os.Create(s.runPath(id))
	if err != nil {
		return 0, err
	}
	enc := subunit.NewEncoder(f)
	for _, ev := range run.Events {
		if err := enc.Encode(ev); err != nil {
			f.Close()
			return 0, err
		}
	}
	if err := f.Close(); err != nil {
		return 0, err
	}

	m.NextID = id + 1
	if err := writeMetadata(s.dir, m); err != nil {
		return 0, err
	}
	if err := os.WriteFile(filepath.Join(s.dir, "latest"), []byte(strconv.FormatInt(id, 10)), 0644); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *fileStore) LoadFailing() (map[FailKey]FailingEntry, error) {
	f, err := os.Open(filepath.Join(s.dir, "failing.subunit"))
	if err != nil {
		if os.IsNotExist(err) {
			return map[FailKey]FailingEntry{}, nil
		}
		return nil, err
	}
	defer f.Close()

	entries := map[FailKey]FailingEntry{}
	dec := subunit.NewDecoder(f)
	for {
		ev, _, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if ev == nil {
			continue
		}
		profile := testid.DefaultProfile
		tags := make(map[string]struct{}, len(ev.Tags))
		for tag := range ev.Tags {
			if strings.HasPrefix(tag, "profile:") {
				profile = testid.Profile(strings.TrimPrefix(tag, "profile:"))
				continue
			}
			tags[tag] = struct{}{}
		}
		details := map[string][]byte{}
		if len(ev.FileBytes) > 0 {
			details["traceback"] = ev.FileBytes
		}
		entries[FailKey{ID: ev.ID, Profile: profile}] = FailingEntry{
			ID:      ev.ID,
			Tags:    tags,
			Details: details,
		}
	}
	return entries, nil
}

// SaveFailing regenerates both the subunit materialisation and the plain
// failing.list (sorted failing ids, one per line) in the repository root.
// Failing-only runs do not read this file: the controller takes their ids
// from GetFailing and writes its own failing.list into its work directory.
func (s *fileStore) SaveFailing(entries map[FailKey]FailingEntry) error {
	subPath := filepath.Join(s.dir, "failing.subunit")
	f, err := os.Create(subPath)
	if err != nil {
		return err
	}
	enc := subunit.NewEncoder(f)

	ids := map[testid.ID]struct{}{}
	for key, entry := range entries {
		tags := map[string]struct{}{}
		for t := range entry.Tags {
			tags[t] = struct{}{}
		}
		tags["profile:"+string(key.Profile)] = struct{}{}
		ev := event.TestEvent{ID: key.ID, Status: event.Fail, Tags: tags}
		if details, ok := entry.Details["traceback"]; ok {
			ev.FileName = "traceback"
			ev.FileBytes = details
		}
		if err := enc.Encode(ev); err != nil {
			f.Close()
			return err
		}
		ids[key.ID] = struct{}{}
	}
	if err := f.Close(); err != nil {
		return err
	}

	list := make([]testid.ID, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}
	sortIDs(list)

	listFile, err := os.Create(filepath.Join(s.dir, "failing.list"))
	if err != nil {
		return err
	}
	defer listFile.Close()
	for _, id := range list {
		if _, err := fmt.Fprintln(listFile, id); err != nil {
			return err
		}
	}
	return nil
}

func sortIDs(ids []testid.ID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}

// TryLockInserter acquires the repository's PID lockfile, adapted from
// the teacher's nightlyone/lockfile guard in cmd/vmshed.go.
func (s *fileStore) TryLockInserter() (func() error, error) {
	abs, err := filepath.Abs(filepath.Join(s.dir, "inserter.lock"))
	if err != nil {
		return nil, err
	}
	lock, err := lockfile.New(abs)
	if err != nil {
		return nil, err
	}
	if err := lock.TryLock(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInserterBusy, err)
	}
	return lock.Unlock, nil
}
