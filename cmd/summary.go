package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/coalesceci/testr/internal/event"
	"github.com/coalesceci/testr/internal/repository"
)

// saveRunJSON writes one JSON object per terminal test event in run to
// path, adapted from the teacher's saveResultsJSON in cmd/results.go:
// there it recorded one VM test's outcome per line (id, name, status,
// score, duration); here it records one testr test event per line, since
// testr's "run" is a set of (id, profile) outcomes rather than VM jobs.
func saveRunJSON(path string, run *repository.Run) error {
	type resultLine struct {
		ID         string    `json:"id"`
		Time       time.Time `json:"time"`
		Status     string    `json:"status"`
		Score      int       `json:"score"`
		DurationNS int64     `json:"duration_ns"`
	}

	log.Infof("saving run %d summary as JSON to %s", run.ID, path)
	dest, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create run summary JSON file: %w", err)
	}
	defer dest.Close()

	enc := json.NewEncoder(dest)
	runStart := time.Unix(0, run.Start)

	for _, ev := range run.Events {
		if !ev.Status.Terminal() {
			continue
		}
		line := resultLine{
			ID:     string(ev.ID),
			Time:   runStart,
			Status: string(ev.Status),
			Score:  statusScore(ev.Status),
		}
		if !ev.Timestamp.IsZero() {
			line.DurationNS = ev.Timestamp.Sub(runStart).Nanoseconds()
		}
		if err := enc.Encode(&line); err != nil {
			return fmt.Errorf("failed to encode run summary JSON: %w", err)
		}
	}

	return dest.Sync()
}

func statusScore(s event.Status) int {
	if s == event.Success || s == event.XFail {
		return 1
	}
	return 0
}
