// Package event defines the TestEvent stream record and the statuses a
// test may report, shared by the subunit codec, the repository and the
// run controller.
package event

import (
	"time"

	"github.com/coalesceci/testr/internal/testid"
)

// Status is the lifecycle state a TestEvent reports for a test id.
type Status string

// The statuses a worker stream may report. Exists is enumeration-only and
// never contributes to timing or the failing set.
const (
	InProgress Status = "inprogress"
	Exists     Status = "exists"
	Success    Status = "success"
	Fail       Status = "fail"
	Skip       Status = "skip"
	XFail      Status = "xfail"
	UXSuccess  Status = "uxsuccess"
)

// Terminal reports whether s ends a test's lifecycle (as opposed to
// InProgress, which only opens it).
func (s Status) Terminal() bool {
	return s != InProgress
}

// TestEvent is one record in a test-event stream.
type TestEvent struct {
	ID        testid.ID
	Status    Status
	Tags      map[string]struct{}
	Timestamp time.Time

	// Attachment fields, set only for events that carry captured output
	// (e.g. stdout re-emitted by the subunit decoder, or a failure
	// traceback).
	FileName  string
	FileBytes []byte
	MIMEType  string
}

// HasTag reports whether tag is present on the event.
func (e TestEvent) HasTag(tag string) bool {
	_, ok := e.Tags[tag]
	return ok
}

// TagSet builds a Tags map from a variadic list, convenient for tests and
// for callers building synthetic events.
func TagSet(tags ...string) map[string]struct{} {
	if len(tags) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	return set
}
