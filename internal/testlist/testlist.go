// Package testlist implements the line-oriented test-id list format used
// for $IDFILE substitution, and decodes an enumeration-only subunit stream
// into the ids it carries.
package testlist

import (
	"bufio"
	"io"
	"strings"

	"github.com/coalesceci/testr/internal/event"
	"github.com/coalesceci/testr/internal/subunit"
	"github.com/coalesceci/testr/internal/testid"
)

// WriteList writes each id on its own line, UTF-8, terminated by a final
// newline.
//
// Round-trip law: ParseList(WriteList(ids)) == trimmed non-empty lines of
// ids.
func WriteList(w io.Writer, ids []testid.ID) error {
	var b strings.Builder
	for _, id := range ids {
		b.WriteString(string(id))
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// ParseList parses a newline-separated list of test ids, trimming
// whitespace and skipping blank lines.
func ParseList(r io.Reader) ([]testid.ID, error) {
	var ids []testid.ID
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ids = append(ids, testid.ID(line))
	}
	return ids, scanner.Err()
}

// ParseEnumeration decodes a subunit stream and returns the ordered list of
// test ids carrying an Exists status event. Non-subunit bytes interleaved
// on the stream are tolerated and discarded (enumeration is concerned only
// with ids, not stray output).
func ParseEnumeration(r io.Reader) ([]testid.ID, error) {
	dec := subunit.NewDecoder(r)
	var ids []testid.ID
	for {
		ev, _, err := dec.Next()
		if err == io.EOF {
			return ids, nil
		}
		if err != nil {
			return ids, err
		}
		if ev == nil {
			continue
		}
		if ev.Status == event.Exists {
			ids = append(ids, ev.ID)
		}
	}
}
