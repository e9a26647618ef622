package ui

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/coalesceci/testr/internal/event"
)

// invalidXMLRune strips control bytes that are not legal in XML 1.0 text
// content, adapted from the teacher's cmd/xml.go regexp.
var invalidXMLRune = regexp.MustCompile("[^\t\n\r\x20-\x7e]")

// WriteJUnit renders a run's test events as a single JUnit XML file at
// <dir>/<name>.xml, one testcase per distinct test id in events (an id
// seen only as InProgress still gets one, with no status), attaching its
// captured output if any was recorded.
//
// Grounded on the teacher's Jenkins.XMLLog/XMLLog: same CDATA-wrapped
// system-out body and failure-element shape, generalized from "one test
// per execution" to one testsuite per run with N testcases.
func WriteJUnit(dir, name string, start time.Time, events []event.TestEvent) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	type testcase struct {
		id      string
		status  event.Status
		start   time.Time
		end     time.Time
		output  []byte
		failure string
	}
	order := []string{}
	byID := map[string]*testcase{}

	for _, ev := range events {
		id := string(ev.ID)
		tc, ok := byID[id]
		if !ok {
			tc = &testcase{id: id}
			byID[id] = tc
			order = append(order, id)
		}
		if ev.Status == event.InProgress {
			tc.start = ev.Timestamp
			continue
		}
		tc.status = ev.Status
		tc.end = ev.Timestamp
		if len(ev.FileBytes) > 0 {
			tc.output = append(tc.output, ev.FileBytes...)
		}
		if ev.Status == event.Fail {
			tc.failure = "FAILED"
		}
	}

	var failures int
	for _, id := range order {
		if byID[id].status == event.Fail {
			failures++
		}
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<testsuite tests=\"%d\" failures=\"%d\">\n", len(order), failures)
	for _, id := range order {
		tc := byID[id]
		duration := tc.end.Sub(tc.start).Seconds()
		if duration < 0 {
			duration = 0
		}
		fmt.Fprintf(&buf, "<testcase classname=%q name=%q time=\"%.2f\">", id, id, duration)
		buf.WriteString("<system-out>\n<![CDATA[\n")
		buf.Write(invalidXMLRune.ReplaceAllLiteral(tc.output, []byte{' '}))
		buf.WriteString("]]></system-out>\n")
		if tc.failure != "" {
			fmt.Fprintf(&buf, "<failure message=%q/>\n", tc.failure)
		}
		buf.WriteString("</testcase>\n")
	}
	buf.WriteString("</testsuite>")

	return os.WriteFile(filepath.Join(dir, name+".xml"), buf.Bytes(), 0644)
}
