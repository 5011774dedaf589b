package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

// tbAppender writes entries through testing.TB.Log so each line is attributed to the test, and to
// the subtest, that produced it.
type tbAppender struct {
	tb testing.TB
}

// NewTestAppender returns an Appender that logs to tb.
func NewTestAppender(tb testing.TB) Appender {
	return &tbAppender{tb: tb}
}

func (a *tbAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	a.tb.Helper()
	parts := []string{
		entry.Time.Format(DefaultTimeFormatStr),
		strings.ToUpper(entry.Level.String()),
		entry.LoggerName,
	}
	if entry.Caller.Defined {
		parts = append(parts, callerToString(&entry.Caller))
	}
	parts = append(parts, entry.Message)

	var err error
	if len(fields) > 0 {
		var fieldsJSON string
		if fieldsJSON, err = ZapcoreFieldsToJSON(fields); err == nil {
			parts = append(parts, fieldsJSON)
		}
	}
	a.tb.Log(strings.Join(parts, "\t"))
	return err
}

func (a *tbAppender) Sync() error {
	return nil
}
