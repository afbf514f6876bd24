package usecase

import (
	"errors"
	"fmt"

	"MandiWatch/internal/domain/models"
)

// ErrNotFound means the referenced anomaly or pattern is unknown.
var ErrNotFound = errors.New("record not found")

// TransitionError is an illegal review status change.
type TransitionError struct {
	ID   string
	From models.AnomalyStatus
	To   models.AnomalyStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("record %s cannot move from %s to %s", e.ID, e.From, e.To)
}

// SinkUnavailableError wraps an alert sink delivery failure. The dispatcher
// retries these with backoff and dead-letters after the retry budget; the
// evidence package itself is already persisted and never dropped.
type SinkUnavailableError struct {
	Sink string
	Err  error
}

func (e *SinkUnavailableError) Error() string {
	return fmt.Sprintf("alert sink %s unavailable: %v", e.Sink, e.Err)
}

func (e *SinkUnavailableError) Unwrap() error { return e.Err }
