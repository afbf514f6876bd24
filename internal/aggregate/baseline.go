package aggregate

import (
	"math"
	"sync"
	"time"

	"MandiWatch/internal/domain/models"
	"MandiWatch/internal/domain/repository"
)

// BaselineStore keeps the rolling daily-aggregate window per key. Appending
// a day evicts beyond the window and recomputes mean and sample standard
// deviation over exactly the retained days.
type BaselineStore struct {
	mu      sync.RWMutex
	window  int
	minDays int
	states  map[repository.Key]*models.Baseline
}

func NewBaselineStore(windowDays, minDays int) *BaselineStore {
	if windowDays < 1 {
		windowDays = 30
	}
	if minDays < 1 || minDays > windowDays {
		minDays = windowDays / 3
		if minDays < 1 {
			minDays = 1
		}
	}
	return &BaselineStore{
		window:  windowDays,
		minDays: minDays,
		states:  make(map[repository.Key]*models.Baseline),
	}
}

// Append rolls one closed day into the key's window. A repeated day replaces
// the earlier entry rather than double-counting it.
func (s *BaselineStore) Append(key repository.Key, day models.DailyAggregate) models.Baseline {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.states[key]
	if b == nil {
		b = &models.Baseline{
			Commodity:  key.Commodity,
			Region:     key.Region,
			WindowDays: s.window,
			MinDays:    s.minDays,
		}
		s.states[key] = b
	}

	replaced := false
	for i := range b.Days {
		if b.Days[i].Day.Equal(day.Day) {
			b.Days[i] = day
			replaced = true
			break
		}
	}
	if !replaced {
		b.Days = append(b.Days, day)
	}
	if len(b.Days) > s.window {
		b.Days = b.Days[len(b.Days)-s.window:]
	}

	b.Mean, b.StdDev = stats(b.Days)
	b.UpdatedAt = time.Now().UTC()
	return b.Clone()
}

// Get returns a clone of the key's baseline. The error is an
// *InsufficientBaselineError when the window is too short for detection.
func (s *BaselineStore) Get(key repository.Key) (models.Baseline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b := s.states[key]
	if b == nil {
		return models.Baseline{}, &InsufficientBaselineError{Key: key.String(), Have: 0, Need: s.minDays}
	}
	if !b.Sufficient() {
		return b.Clone(), &InsufficientBaselineError{Key: key.String(), Have: len(b.Days), Need: b.MinDays}
	}
	return b.Clone(), nil
}

// Seed installs a previously persisted window, used on startup recovery.
func (s *BaselineStore) Seed(key repository.Key, days []models.DailyAggregate) models.Baseline {
	var last models.Baseline
	for _, d := range days {
		last = s.Append(key, d)
	}
	return last
}

func stats(days []models.DailyAggregate) (mean, stddev float64) {
	n := len(days)
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, d := range days {
		sum += d.Price
	}
	mean = sum / float64(n)
	if n < 2 {
		return mean, 0
	}
	var ss float64
	for _, d := range days {
		diff := d.Price - mean
		ss += diff * diff
	}
	return mean, math.Sqrt(ss / float64(n-1))
}
