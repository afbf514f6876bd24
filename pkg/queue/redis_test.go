package queue

import (
	"testing"
	"time"
)

func TestRetryBackoffDoublesPerAttempt(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 30 * time.Second},
		{2, time.Minute},
		{3, 2 * time.Minute},
		{4, 4 * time.Minute},
	}
	for _, tc := range cases {
		if got := retryBackoff(30*time.Second, tc.attempt); got != tc.want {
			t.Fatalf("attempt %d: got %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestRetryBackoffCapped(t *testing.T) {
	if got := retryBackoff(30*time.Second, 10); got != maxRetryBackoff {
		t.Fatalf("backoff not capped: %v", got)
	}
	if got := retryBackoff(time.Second, 200); got != maxRetryBackoff {
		t.Fatalf("extreme attempt count not capped: %v", got)
	}
}

func TestRetryBackoffDefaults(t *testing.T) {
	if got := retryBackoff(0, 1); got != time.Second {
		t.Fatalf("zero base delay: got %v, want 1s", got)
	}
	if got := retryBackoff(time.Second, 0); got != time.Second {
		t.Fatalf("zero attempt: got %v, want 1s", got)
	}
}
