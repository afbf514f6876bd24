package aggregate

import (
	"errors"
	"math"
	"testing"
	"time"

	"MandiWatch/internal/domain/models"
	"MandiWatch/internal/domain/repository"
)

func day(d int, price float64) models.DailyAggregate {
	return models.DailyAggregate{
		Day:      time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC),
		Price:    price,
		Quantity: 100,
		Samples:  10,
	}
}

func TestBaselineStats(t *testing.T) {
	s := NewBaselineStore(30, 3)
	key := repository.NewKey("onion", "nashik")

	s.Append(key, day(1, 1000))
	s.Append(key, day(2, 2000))
	b := s.Append(key, day(3, 3000))

	if math.Abs(b.Mean-2000) > 1e-9 {
		t.Fatalf("mean = %v, want 2000", b.Mean)
	}
	if math.Abs(b.StdDev-1000) > 1e-9 {
		t.Fatalf("stddev = %v, want 1000 (sample variance)", b.StdDev)
	}
	if _, err := s.Get(key); err != nil {
		t.Fatalf("unexpected error at min days: %v", err)
	}
}

func TestBaselineInsufficient(t *testing.T) {
	s := NewBaselineStore(30, 10)
	key := repository.NewKey("onion", "nashik")

	if _, err := s.Get(key); err == nil {
		t.Fatalf("expected error for unknown key")
	}

	for d := 1; d <= 9; d++ {
		s.Append(key, day(d, 1500))
	}
	_, err := s.Get(key)
	var ib *InsufficientBaselineError
	if !errors.As(err, &ib) {
		t.Fatalf("expected InsufficientBaselineError, got %v", err)
	}
	if ib.Have != 9 || ib.Need != 10 {
		t.Fatalf("unexpected counts: %+v", ib)
	}

	s.Append(key, day(10, 1500))
	if _, err := s.Get(key); err != nil {
		t.Fatalf("baseline should be sufficient at 10 days: %v", err)
	}
}

func TestBaselineSameDayReplaces(t *testing.T) {
	s := NewBaselineStore(30, 1)
	key := repository.NewKey("onion", "nashik")

	s.Append(key, day(1, 1000))
	b := s.Append(key, day(1, 2000))

	if len(b.Days) != 1 {
		t.Fatalf("repeated day must replace, got %d entries", len(b.Days))
	}
	if b.Mean != 2000 {
		t.Fatalf("mean = %v, want the replacement value", b.Mean)
	}
}

func TestBaselineWindowEviction(t *testing.T) {
	s := NewBaselineStore(5, 1)
	key := repository.NewKey("onion", "nashik")

	var b models.Baseline
	for d := 1; d <= 8; d++ {
		b = s.Append(key, day(d, float64(d)*100))
	}
	if len(b.Days) != 5 {
		t.Fatalf("window not enforced: %d days retained", len(b.Days))
	}
	// Only days 4..8 remain; mean over 400..800.
	if math.Abs(b.Mean-600) > 1e-9 {
		t.Fatalf("mean = %v, want 600 after eviction", b.Mean)
	}
}

func TestBaselineSeed(t *testing.T) {
	s := NewBaselineStore(30, 3)
	key := repository.NewKey("onion", "nashik")

	b := s.Seed(key, []models.DailyAggregate{day(1, 1000), day(2, 1500), day(3, 2000)})
	if len(b.Days) != 3 || b.Mean != 1500 {
		t.Fatalf("seed did not rebuild the window: %+v", b)
	}
}
