package models

import (
	"time"
)

// wireTimeLayouts covers the timestamp shapes the backend emits: RFC 3339
// with or without sub-second precision, and naive ISO 8601 (no zone), which
// is read as UTC.
var wireTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseWireTime parses a timestamp string from the REST or stream wire
// format. It returns the zero time when the value is empty or unparseable;
// callers fall back to local monotonic ordering in that case.
func ParseWireTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range wireTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
