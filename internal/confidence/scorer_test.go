package confidence

import (
	"math"
	"testing"
	"time"

	"MandiWatch/internal/domain/models"
)

func weights() models.ConfidenceWeights {
	return models.DefaultDetectionConfig().Confidence
}

func TestScoreMonotonicInSamples(t *testing.T) {
	s := NewScorer(weights())
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	prev := -1.0
	for _, n := range []int{0, 1, 5, 10, 50, 500} {
		got := s.Score(Inputs{
			SampleCount:  n,
			SourceCount:  3,
			LastObserved: now,
			Now:          now,
		})
		if got < prev {
			t.Fatalf("score dropped from %v to %v at %d samples", prev, got, n)
		}
		prev = got
	}
}

func TestScoreMonotonicInSources(t *testing.T) {
	s := NewScorer(weights())
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	prev := -1.0
	for _, n := range []int{0, 1, 3, 10, 100} {
		got := s.Score(Inputs{
			SampleCount:  10,
			SourceCount:  n,
			LastObserved: now,
			Now:          now,
		})
		if got < prev {
			t.Fatalf("score dropped from %v to %v at %d sources", prev, got, n)
		}
		prev = got
	}
}

func TestScoreDecaysWithAge(t *testing.T) {
	s := NewScorer(weights())
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	fresh := s.Score(Inputs{SampleCount: 10, SourceCount: 3, LastObserved: now, Now: now})
	stale := s.Score(Inputs{SampleCount: 10, SourceCount: 3, LastObserved: now.Add(-2 * time.Hour), Now: now})
	if stale >= fresh {
		t.Fatalf("stale evidence scored %v >= fresh %v", stale, fresh)
	}
}

func TestScoreBounded(t *testing.T) {
	s := NewScorer(weights())
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	hi := s.Score(Inputs{
		SampleCount:    1 << 20,
		SourceCount:    1 << 20,
		LastObserved:   now,
		Now:            now,
		Consistency:    1,
		HasConsistency: true,
	})
	if hi < 0 || hi > 1 {
		t.Fatalf("score out of range: %v", hi)
	}
	lo := s.Score(Inputs{})
	if lo != 0 {
		t.Fatalf("empty inputs must score 0, got %v", lo)
	}
}

func TestMissingConsistencyRedistributed(t *testing.T) {
	s := NewScorer(weights())
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// Perfect sample, diversity and recency factors would sum below 1 if
	// the absent consistency weight were simply dropped.
	withOut := s.Score(Inputs{SampleCount: 1 << 20, SourceCount: 1 << 20, LastObserved: now, Now: now})
	if withOut < 0.99 {
		t.Fatalf("absent consistency weight not renormalized: %v", withOut)
	}

	withIn := s.Score(Inputs{
		SampleCount: 10, SourceCount: 3, LastObserved: now, Now: now,
		Consistency: 0.5, HasConsistency: true,
	})
	if withIn <= 0 || withIn >= 1 {
		t.Fatalf("score out of range with consistency: %v", withIn)
	}
}

func TestSaturateHalfPoint(t *testing.T) {
	if got := saturate(10, 10); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("saturate(10, 10) = %v, want 0.5", got)
	}
}
