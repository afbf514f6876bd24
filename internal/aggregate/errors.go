package aggregate

import "fmt"

// InsufficientBaselineError means the rolling window holds fewer days than
// the configured minimum, so detection for the key must be suppressed.
type InsufficientBaselineError struct {
	Key  string
	Have int
	Need int
}

func (e *InsufficientBaselineError) Error() string {
	return fmt.Sprintf("baseline for %s has %d of %d required days", e.Key, e.Have, e.Need)
}
