package ui

import (
	"io"
	"sort"

	log "github.com/sirupsen/logrus"
)

// StandardLogFormatter creates a logrus.TextFormatter with testr's field
// ordering, ported from the teacher's VmshedStandardLogFormatter
// (cmd/log.go).
func StandardLogFormatter() *log.TextFormatter {
	return &log.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05.000",
		SortingFunc:     logKeySort,
	}
}

func logKeySort(keys []string) {
	sort.Sort(biasedStringSlice(keys))
}

// biasedStringSlice sorts with a fixed set of keys preferred first,
// falling back to lexical order, ported from the teacher's
// BiasedStringSlice.
type biasedStringSlice []string

func (s biasedStringSlice) Len() int { return len(s) }

func (s biasedStringSlice) Less(i, j int) bool {
	iStr, jStr := s[i], s[j]
	iPref, iFixed := fixedKeys[iStr]
	jPref, jFixed := fixedKeys[jStr]

	switch {
	case iFixed && jFixed:
		return iPref < jPref
	case iFixed:
		return true
	case jFixed:
		return false
	default:
		return sort.StringSlice(s).Less(i, j)
	}
}

func (s biasedStringSlice) Swap(i, j int) { sort.StringSlice(s).Swap(i, j) }

var fixedKeys = map[string]int{
	log.FieldKeyTime:  1,
	log.FieldKeyLevel: 2,
	log.FieldKeyFile:  3,
	log.FieldKeyFunc:  4,
	logFieldKeyRun:    5,
}

const logFieldKeyRun = "run"

// WorkerLogger creates a Logger for a single worker/partition run. Logs
// are written to out (the worker's own log file) as well as duplicated to
// the standard logger with a "run" field attached, ported from the
// teacher's TestLogger/StandardLoggerHook pair.
func WorkerLogger(runID string, out io.Writer) *log.Logger {
	logger := log.New()
	logger.Out = out
	logger.Level = log.DebugLevel
	logger.Formatter = &log.TextFormatter{
		DisableQuote:    true,
		TimestampFormat: "15:04:05.000",
	}
	logger.AddHook(&standardLoggerHook{runID: runID})
	return logger
}

type standardLoggerHook struct {
	runID string
}

func (h *standardLoggerHook) Fire(entry *log.Entry) error {
	logEntry := *entry
	logEntry.Logger = log.StandardLogger()
	logEntry.Data[logFieldKeyRun] = h.runID
	logEntry.Log(logEntry.Level, logEntry.Message)
	delete(entry.Data, logFieldKeyRun)
	return nil
}

func (h *standardLoggerHook) Levels() []log.Level {
	return log.AllLevels
}
