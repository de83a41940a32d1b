package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
)

// TestLogger captures JSON log output in memory so tests can assert on
// messages and attributes without touching the process default logger.
type TestLogger struct {
	buffer *bytes.Buffer
}

// NewTestLogger returns an slog.Logger whose output is captured by the
// returned TestLogger. The handler chain matches SetupLogger, including
// stacktrace extraction, so tests see production-shaped records.
func NewTestLogger(loglevel string) (*slog.Logger, *TestLogger) {
	tl := &TestLogger{buffer: &bytes.Buffer{}}
	ops := slog.HandlerOptions{Level: ToLogLevel(loglevel)}
	handler := WrapByErrFmtHandler(slog.NewJSONHandler(tl.buffer, &ops))
	return slog.New(handler), tl
}

// Entries parses the captured output into one map per log record.
func (t *TestLogger) Entries() ([]map[string]interface{}, error) {
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(t.buffer.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ContainsMessage reports whether any captured record contains the given
// text.
func (t *TestLogger) ContainsMessage(message string) bool {
	return strings.Contains(t.buffer.String(), message)
}

// ContainsAttr reports whether any captured record has the attribute key
// with the given value.
func (t *TestLogger) ContainsAttr(key string, value interface{}) bool {
	entries, err := t.Entries()
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if v, ok := entry[key]; ok && v == value {
			return true
		}
	}
	return false
}

// Clear resets the captured output between test cases.
func (t *TestLogger) Clear() {
	t.buffer.Reset()
}
