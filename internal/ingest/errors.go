package ingest

import (
	"fmt"
	"time"
)

// ValidationError is a rejected report. The reason is a stable machine
// keyword, suitable for per-source rejection counters and API responses.
type ValidationError struct {
	Field  string
	Reason string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("validation failed: %s %s (%s)", e.Field, e.Reason, e.Detail)
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// StaleDataError is a report whose observed timestamp falls outside the
// acceptance window, in either direction.
type StaleDataError struct {
	ObservedAt time.Time
	Age        time.Duration // negative when the timestamp is in the future
}

func (e *StaleDataError) Error() string {
	if e.Age < 0 {
		return fmt.Sprintf("report timestamp %s is in the future", e.ObservedAt.Format(time.RFC3339))
	}
	return fmt.Sprintf("report is stale: observed %s ago", e.Age.Round(time.Second))
}
